package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role grants access levels. Only admins may register other users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStaff }

// User represents an authenticated operator of the back office.
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Role      Role      `gorm:"size:20;not null" json:"role"`
}

// BeforeCreate assigns a random id and the staff role when unset.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleStaff
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
