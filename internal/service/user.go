package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

type UserService struct {
	users userRepository
	cost  int
	now   func() time.Time
}

func NewUserService(users userRepository) *UserService {
	return &UserService{users: users, cost: bcrypt.DefaultCost, now: time.Now}
}

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	u, err := domain.NewUser(req.Email, req.Name, req.Password, s.now())
	if err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}
	logging.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

// Authenticate checks credentials and returns ErrUnauthorized for an unknown
// email, a wrong password or a suspended user alike. A successful login is
// stamped on the user; failing to stamp it does not fail the login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("Authenticate: %w", domain.ErrUnauthorized)
	case err != nil:
		return nil, fmt.Errorf("Authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.CanLogin() {
		return nil, fmt.Errorf("Authenticate: %w", domain.ErrUnauthorized)
	}

	at := s.now().UTC()
	if err := s.users.RecordLogin(ctx, u.ID, at); err != nil {
		logging.FromContext(ctx).Warn("failed to record login", "user_id", u.ID, "error", err)
	} else {
		u.LastLoginAt = &at
	}
	return u, nil
}
