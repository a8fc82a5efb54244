package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

type PostRequest struct {
	Date                time.Time
	Description         string
	Status              domain.TransactionStatus
	Entries             []domain.EntryInput
	CreatedBy           *uuid.UUID
	StagedTransactionID *uuid.UUID
}

func (s *Service) PostTransaction(ctx context.Context, req PostRequest) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("PostTransaction: begin tx", err)
	}
	defer tx.Rollback()

	txn, err := s.PostWithin(ctx, tx, req)
	if err != nil {
		return nil, fmt.Errorf("PostTransaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("PostTransaction: commit", err)
	}

	logging.FromContext(ctx).Info("transaction posted",
		"transaction_id", txn.ID,
		"reference", txn.ReferenceNumber,
		"entries", len(txn.Entries),
	)
	s.Announce(ctx, events.TransactionPosted, txn)
	return txn, nil
}

// PostWithin validates and writes a transaction inside the caller's tx. The
// caller owns commit and rollback; nothing is announced.
func (s *Service) PostWithin(ctx context.Context, tx *sql.Tx, req PostRequest) (*domain.Transaction, error) {
	if err := validateHeader(req.Date, req.Description); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = domain.TransactionStatusCompleted
	}
	if !status.IsValid() {
		return nil, domain.Invalid("invalid status %q", status)
	}

	entries, err := normalizeEntries(req.Entries)
	if err != nil {
		return nil, err
	}
	if err := s.lockAndCheck(ctx, tx, entries); err != nil {
		return nil, err
	}

	if err := repository.LockScope(ctx, tx, "txn-ref:"+req.Date.Format(domain.DateLayout)); err != nil {
		return nil, err
	}
	last, err := s.transactions.LastReference(ctx, tx, req.Date)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:                  uuid.New(),
		Date:                req.Date,
		Description:         req.Description,
		ReferenceNumber:     domain.NextReference(req.Date, last),
		Status:              status,
		StagedTransactionID: req.StagedTransactionID,
		CreatedBy:           req.CreatedBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	txn.Entries, err = s.writeEntries(ctx, tx, txn.ID, entries, now)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// lockAndCheck share-locks every referenced account, so none can be deleted
// mid-post, and checks the double-entry rule.
func (s *Service) lockAndCheck(ctx context.Context, tx *sql.Tx, entries []domain.EntryInput) error {
	found, err := s.accounts.LockForPosting(ctx, tx, accountIDs(entries))
	if err != nil {
		return err
	}
	if err := requireAccounts(entries, found); err != nil {
		return err
	}
	return checkBalance(entries)
}

func (s *Service) writeEntries(ctx context.Context, tx *sql.Tx, txnID uuid.UUID, entries []domain.EntryInput, now time.Time) ([]domain.JournalEntry, error) {
	written := make([]domain.JournalEntry, 0, len(entries))
	for _, in := range entries {
		e := domain.JournalEntry{
			ID:            uuid.New(),
			TransactionID: txnID,
			AccountID:     in.AccountID,
			DebitAmount:   in.DebitAmount,
			CreditAmount:  in.CreditAmount,
			CreatedAt:     now,
		}
		if err := s.entries.Create(ctx, tx, &e); err != nil {
			return nil, err
		}
		written = append(written, e)
	}
	return written, nil
}
