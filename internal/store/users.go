package store

import (
	"context"
	"strings"

	"github.com/diewo77/go-billdesk/internal/models"
	"gorm.io/gorm"
)

// Users stores back-office operators.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users { return &Users{db: db} }

// Create inserts u. A taken email yields ErrDuplicateKey.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)
	return translate(s.db.WithContext(ctx).Create(u).Error, "create user")
}

// ByEmail looks a user up by email, case-insensitively.
func (s *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", normalizeEmail(email)).Error; err != nil {
		return nil, translate(err, "get user by email")
	}
	return &u, nil
}

// Get returns the user with the given id.
func (s *Users) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &u, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
