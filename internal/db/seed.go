package db

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/store"
)

// SeedAdmin creates the bootstrap admin account unless a user with that
// email already exists. It reports whether a user was created.
func SeedAdmin(ctx context.Context, users *store.Users, email, password string, log *zap.Logger) (bool, error) {
	if email == "" || password == "" {
		log.Info("admin seed skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return false, nil
	}
	_, err := users.ByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Wrap(err, "hash admin password")
	}
	u := &models.User{Email: email, Name: "Administrator", Password: string(hash), Role: models.RoleAdmin}
	if err := users.Create(ctx, u); err != nil {
		return false, err
	}
	log.Info("admin user created", zap.String("email", u.Email))
	return true, nil
}
