package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

const stagedColumns = `id, source_id, external_id, transaction_date, description, amount,
	account_id, raw_data, status, error_message, processed_at, transaction_id, created_at`

type StagedRepository struct {
	db *sql.DB
}

func NewStagedRepository(db *sql.DB) *StagedRepository {
	return &StagedRepository{db: db}
}

func (r *StagedRepository) Create(ctx context.Context, s *domain.StagedTransaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO staged_transactions (
			id, source_id, external_id, transaction_date, description, amount,
			account_id, raw_data, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.SourceID, s.ExternalID, dateArg(s.Date), s.Description, s.Amount,
		s.AccountID, jsonArg(s.RawData), s.Status, s.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: external id: %w", domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Create: source or account: %w", domain.ErrNotFound)
		}
		return domain.StorageFailure("Create", err)
	}
	return nil
}

func (r *StagedRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_transactions WHERE id = $1`, id,
	)
	s, err := scanStaged(row)
	if err != nil {
		return nil, wrap("GetByID", err)
	}
	return s, nil
}

// GetForUpdate locks the staged row so two concurrent processing attempts
// of the same record serialize.
func (r *StagedRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.StagedTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_transactions WHERE id = $1 FOR UPDATE`, id,
	)
	s, err := scanStaged(row)
	if err != nil {
		return nil, wrap("GetForUpdate", err)
	}
	return s, nil
}

func (r *StagedRepository) List(ctx context.Context, f domain.StagedFilter) ([]domain.StagedTransaction, error) {
	var sourceID, status any
	if f.SourceID != nil {
		sourceID = *f.SourceID
	}
	if f.Status != nil {
		status = string(*f.Status)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stagedColumns+` FROM staged_transactions
		WHERE ($1::uuid IS NULL OR source_id = $1::uuid)
		  AND ($2::text IS NULL OR status = $2::text)
		  AND ($3::date IS NULL OR transaction_date >= $3::date)
		  AND ($4::date IS NULL OR transaction_date <= $4::date)
		ORDER BY transaction_date DESC, created_at DESC`,
		sourceID, status, optionalDateArg(f.StartDate), optionalDateArg(f.EndDate),
	)
	if err != nil {
		return nil, domain.StorageFailure("List", err)
	}
	defer rows.Close()

	var staged []domain.StagedTransaction
	for rows.Next() {
		s, err := scanStaged(rows)
		if err != nil {
			return nil, domain.StorageFailure("List: scan", err)
		}
		staged = append(staged, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("List: rows", err)
	}
	return staged, nil
}

// LatestDate is the most recent transaction date staged for a source, used
// as the cursor for incremental pulls.
func (r *StagedRepository) LatestDate(ctx context.Context, sourceID uuid.UUID) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(transaction_date) FROM staged_transactions WHERE source_id = $1`, sourceID,
	).Scan(&latest)
	if err != nil {
		return nil, domain.StorageFailure("LatestDate", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func (r *StagedRepository) UpdateAccount(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE staged_transactions SET account_id = $1 WHERE id = $2 AND status <> $3`,
		accountID, id, domain.StagedStatusProcessed,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("UpdateAccount: account: %w", domain.ErrNotFound)
		}
		return domain.StorageFailure("UpdateAccount", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StorageFailure("UpdateAccount: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateAccount: %w", domain.Invalid("staged transaction is missing or already processed"))
	}
	return nil
}

func (r *StagedRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, id, transactionID uuid.UUID, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE staged_transactions
		SET status = $1, processed_at = $2, transaction_id = $3, error_message = NULL
		WHERE id = $4`,
		domain.StagedStatusProcessed, at, transactionID, id,
	)
	if err != nil {
		return domain.StorageFailure("MarkProcessed", err)
	}
	return nil
}

func (r *StagedRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE staged_transactions SET status = $1, error_message = $2
		WHERE id = $3 AND status <> $4`,
		domain.StagedStatusError, message, id, domain.StagedStatusProcessed,
	)
	if err != nil {
		return domain.StorageFailure("MarkError", err)
	}
	return nil
}

// DeleteUnprocessed removes the given records except those already posted.
func (r *StagedRepository) DeleteUnprocessed(ctx context.Context, ids []uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM staged_transactions WHERE id = ANY($1::uuid[]) AND status <> $2`,
		pq.Array(uuidStrings(ids)), domain.StagedStatusProcessed,
	)
	if err != nil {
		return 0, domain.StorageFailure("DeleteUnprocessed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StorageFailure("DeleteUnprocessed: rows affected", err)
	}
	return n, nil
}

func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanStaged(s scanner) (*domain.StagedTransaction, error) {
	var st domain.StagedTransaction
	var raw []byte
	err := s.Scan(
		&st.ID, &st.SourceID, &st.ExternalID, &st.Date, &st.Description, &st.Amount,
		&st.AccountID, &raw, &st.Status, &st.ErrorMessage, &st.ProcessedAt,
		&st.TransactionID, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		st.RawData = raw
	}
	return &st, nil
}
