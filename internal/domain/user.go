package domain

import (
	"time"

	"github.com/pocketlist/pocketlist/pkg/idx"
)

// User roles. Every account gets RoleUser on registration; RoleAdmin is
// assigned out of band.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. PasswordHash is an argon2id PHC string and
// never leaves the store layer in API responses.
type User struct {
	ID           idx.ID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
