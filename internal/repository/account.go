package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const accountColumns = `id, category_id, name, type, code, description,
	is_active, created_at, updated_at`

type AccountFilter struct {
	CategoryID *uuid.UUID
	Type       *domain.AccountType
	ActiveOnly bool
}

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, wrap("GetByID", err)
	}
	return a, nil
}

// GetByName matches the account name case-insensitively. Ambiguous names
// resolve to the lowest code.
func (r *AccountRepository) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE lower(name) = lower($1) ORDER BY code LIMIT 1`, strings.TrimSpace(name),
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, wrap("GetByName", err)
	}
	return a, nil
}

func (r *AccountRepository) List(ctx context.Context, f AccountFilter) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.ActiveOnly {
		query += " AND is_active"
	}
	query += " ORDER BY length(code), code"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	return collectAccounts("List", rows)
}

func (r *AccountRepository) ListByCategory(ctx context.Context, tx *sql.Tx, categoryID uuid.UUID) ([]domain.Account, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE category_id = $1
		ORDER BY length(code), code FOR UPDATE`, categoryID,
	)
	if err != nil {
		return nil, domain.StorageFailure("ListByCategory", err)
	}
	return collectAccounts("ListByCategory", rows)
}

// LockForPosting share-locks the given accounts so they cannot be deleted
// while entries referencing them are written.
func (r *AccountRepository) LockForPosting(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) (map[uuid.UUID]domain.Account, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE id = ANY($1::uuid[]) ORDER BY id FOR SHARE`,
		pq.Array(uuidStrings(ids)),
	)
	if err != nil {
		return nil, domain.StorageFailure("LockForPosting", err)
	}
	accounts, err := collectAccounts("LockForPosting", rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID, nil
}

// LastCode returns the highest code carrying prefix, comparing the numeric
// suffix rather than the raw string so X-1000 sorts after X-999.
func (r *AccountRepository) LastCode(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	var code string
	err := tx.QueryRowContext(ctx,
		`SELECT code FROM accounts WHERE code LIKE $1
		ORDER BY length(code) DESC, code DESC LIMIT 1`, prefix+"-%",
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.StorageFailure("LastCode", err)
	}
	return code, nil
}

func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (
			id, category_id, name, type, code, description, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.CategoryID, a.Name, a.Type, a.Code, a.Description,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: code %s: %w", a.Code, domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Create: category: %w", domain.ErrNotFound)
		}
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, wrap("GetForUpdate", err)
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, tx *sql.Tx, a *domain.Account) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE accounts SET category_id = $1, name = $2, description = $3,
			is_active = $4, updated_at = $5
		WHERE id = $6`,
		a.CategoryID, a.Name, a.Description, a.IsActive, a.UpdatedAt, a.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Update: category: %w", domain.ErrNotFound)
		}
		return domain.StorageFailure("Update", err)
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, domain.StorageFailure("Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageFailure("Delete: rows affected", err)
	}
	return n > 0, nil
}

func collectAccounts(op string, rows *sql.Rows) ([]domain.Account, error) {
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, domain.StorageFailure(op+": scan", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure(op+": rows", err)
	}
	return accounts, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.CategoryID, &a.Name, &a.Type, &a.Code, &a.Description,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
