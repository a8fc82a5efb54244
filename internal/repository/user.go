package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create expects u.Email already normalized; the table rejects mixed case.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Status, u.CreatedAt,
	)
	switch {
	case IsUniqueViolation(err):
		return fmt.Errorf("Create: email %s: %w", u.Email, domain.ErrDuplicate)
	case err != nil:
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := r.getOne(ctx, "id = $1", id)
	if err != nil {
		return nil, wrap("GetByID", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := r.getOne(ctx, "email = $1", domain.NormalizeEmail(email))
	if err != nil {
		return nil, wrap("GetByEmail", err)
	}
	return u, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return domain.StorageFailure("RecordLogin", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("RecordLogin: user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, status, created_at, last_login_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Status, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}
