package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const transactionColumns = `id, transaction_date, description, reference_number, status,
	staged_transaction_id, created_by, created_at, updated_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, transaction_date, description, reference_number, status,
			staged_transaction_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, dateArg(t.Date), t.Description, t.ReferenceNumber, t.Status,
		t.StagedTransactionID, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicate)
		}
		return domain.StorageFailure("Create", err)
	}
	return nil
}

// LastReference returns the highest reference number issued on date, or "".
func (r *TransactionRepository) LastReference(ctx context.Context, tx *sql.Tx, date time.Time) (string, error) {
	var ref string
	err := tx.QueryRowContext(ctx,
		`SELECT reference_number FROM transactions WHERE reference_number LIKE $1
		ORDER BY length(reference_number) DESC, reference_number DESC LIMIT 1`,
		domain.ReferencePattern(date),
	).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.StorageFailure("LastReference", err)
	}
	return ref, nil
}

// Get reads a header inside tx so it can be paired with its entries from the
// same snapshot.
func (r *TransactionRepository) Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, wrap("Get", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, wrap("GetForUpdate", err)
	}
	return t, nil
}

func (r *TransactionRepository) List(ctx context.Context, tx *sql.Tx, start, end *time.Time) ([]domain.Transaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE ($1::date IS NULL OR transaction_date >= $1::date)
		  AND ($2::date IS NULL OR transaction_date <= $2::date)
		ORDER BY transaction_date DESC, reference_number DESC`,
		optionalDateArg(start), optionalDateArg(end),
	)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.StorageFailure("List: scan", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("List: rows", err)
	}
	return txns, nil
}

func (r *TransactionRepository) UpdateHeader(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE transactions SET transaction_date = $1, description = $2, status = $3, updated_at = $4
		WHERE id = $5`,
		dateArg(t.Date), t.Description, t.Status, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return domain.StorageFailure("UpdateHeader", err)
	}
	return nil
}

// Delete removes the header; journal entries go with it via ON DELETE CASCADE.
func (r *TransactionRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return false, domain.StorageFailure("Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageFailure("Delete: rows affected", err)
	}
	return n > 0, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.Date, &t.Description, &t.ReferenceNumber, &t.Status,
		&t.StagedTransactionID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
