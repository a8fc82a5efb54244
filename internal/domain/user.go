package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

const MinPasswordLength = 8

// User is an operator of the ledger. Every user sees the whole ledger;
// users only matter for authentication and the audit trail.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser validates the registration fields and returns an active user
// without a password hash.
func NewUser(email, name, password string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, Invalid("invalid email address")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("name is required")
	}
	if len(password) < MinPasswordLength {
		return nil, Invalid("password must be at least %d characters", MinPasswordLength)
	}
	return &User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Status:    UserStatusActive,
		CreatedAt: now.UTC(),
	}, nil
}

func (u *User) CanLogin() bool {
	return u.Status == UserStatusActive
}
