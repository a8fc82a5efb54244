package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const journalColumns = `je.id, je.transaction_id, je.account_id, je.debit_amount, je.credit_amount, je.created_at`

type EntryFilter struct {
	AccountID *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}

type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.JournalEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO journal_entries (
			id, transaction_id, account_id, debit_amount, credit_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.TransactionID, e.AccountID, e.DebitAmount, e.CreditAmount, e.CreatedAt,
	)
	if err != nil {
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *JournalRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.JournalEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries je WHERE je.id = $1 FOR UPDATE`, id,
	)
	e, err := scanJournalEntry(row)
	if err != nil {
		return nil, wrap("GetForUpdate", err)
	}
	return e, nil
}

// GetByTransactionIDs reads the entries of every listed transaction in one
// query, inside the caller's tx.
func (r *JournalRepository) GetByTransactionIDs(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) ([]domain.JournalEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries je
		WHERE je.transaction_id = ANY($1::uuid[]) ORDER BY je.created_at, je.id`, pq.Array(keys),
	)
	if err != nil {
		return nil, domain.StorageFailure("GetByTransactionIDs", err)
	}
	return collectEntries("GetByTransactionIDs", rows)
}

func (r *JournalRepository) GetByTransactionIDForUpdate(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) ([]domain.JournalEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries je
		WHERE je.transaction_id = $1 ORDER BY je.created_at, je.id FOR UPDATE`, transactionID,
	)
	if err != nil {
		return nil, domain.StorageFailure("GetByTransactionIDForUpdate", err)
	}
	return collectEntries("GetByTransactionIDForUpdate", rows)
}

func (r *JournalRepository) List(ctx context.Context, f EntryFilter) ([]domain.JournalEntry, error) {
	var accountID any
	if f.AccountID != nil {
		accountID = *f.AccountID
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries je
		JOIN transactions t ON t.id = je.transaction_id
		WHERE ($1::uuid IS NULL OR je.account_id = $1::uuid)
		  AND ($2::date IS NULL OR t.transaction_date >= $2::date)
		  AND ($3::date IS NULL OR t.transaction_date <= $3::date)
		ORDER BY t.transaction_date DESC, t.reference_number DESC, je.created_at`,
		accountID, optionalDateArg(f.StartDate), optionalDateArg(f.EndDate),
	)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	return collectEntries("List", rows)
}

func (r *JournalRepository) CountByAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE account_id = $1`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, domain.StorageFailure("CountByAccount", err)
	}
	return n, nil
}

func (r *JournalRepository) Update(ctx context.Context, tx *sql.Tx, e *domain.JournalEntry) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE journal_entries SET account_id = $1, debit_amount = $2, credit_amount = $3
		WHERE id = $4`,
		e.AccountID, e.DebitAmount, e.CreditAmount, e.ID,
	)
	if err != nil {
		return domain.StorageFailure("Update", err)
	}
	return nil
}

func (r *JournalRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1`, id); err != nil {
		return domain.StorageFailure("Delete", err)
	}
	return nil
}

func (r *JournalRepository) DeleteByTransactionID(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE transaction_id = $1`, transactionID,
	)
	if err != nil {
		return 0, domain.StorageFailure("DeleteByTransactionID", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StorageFailure("DeleteByTransactionID: rows affected", err)
	}
	return n, nil
}

func collectEntries(op string, rows *sql.Rows) ([]domain.JournalEntry, error) {
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, domain.StorageFailure(op+": scan", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure(op+": rows", err)
	}
	return entries, nil
}

func scanJournalEntry(s scanner) (*domain.JournalEntry, error) {
	var e domain.JournalEntry
	err := s.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.DebitAmount, &e.CreditAmount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
