package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// UpdateRequest replaces a transaction's header and its whole entry set. The
// reference number is kept even when the date moves.
type UpdateRequest struct {
	Date        time.Time
	Description string
	Status      *domain.TransactionStatus
	Entries     []domain.EntryInput
}

// UpdateTransaction reports ErrNotFound for an unknown id before it looks at
// the request body.
func (s *Service) UpdateTransaction(ctx context.Context, id uuid.UUID, req UpdateRequest) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("UpdateTransaction: begin tx", err)
	}
	defer tx.Rollback()

	txn, err := s.transactions.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	if err := validateHeader(req.Date, req.Description); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if req.Status != nil && !req.Status.IsValid() {
		return nil, fmt.Errorf("UpdateTransaction: %w", domain.Invalid("invalid status %q", *req.Status))
	}
	entries, err := normalizeEntries(req.Entries)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if err := s.lockAndCheck(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	now := time.Now().UTC()
	txn.Date = req.Date
	txn.Description = req.Description
	if req.Status != nil {
		txn.Status = *req.Status
	}
	txn.UpdatedAt = now
	if err := s.transactions.UpdateHeader(ctx, tx, txn); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	if _, err := s.entries.DeleteByTransactionID(ctx, tx, id); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	txn.Entries, err = s.writeEntries(ctx, tx, id, entries, now)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("UpdateTransaction: commit", err)
	}

	logging.FromContext(ctx).Info("transaction updated", "transaction_id", id, "entries", len(txn.Entries))
	s.Announce(ctx, events.TransactionUpdated, txn)
	return txn, nil
}

// DeleteTransaction removes a transaction and its entries. It reports false
// when no such transaction exists.
func (s *Service) DeleteTransaction(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageFailure("DeleteTransaction: begin tx", err)
	}
	defer tx.Rollback()

	txn, err := s.transactions.GetForUpdate(ctx, tx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}
	txn.Entries, err = s.entries.GetByTransactionIDForUpdate(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}

	if _, err := s.entries.DeleteByTransactionID(ctx, tx, id); err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}
	deleted, err := s.transactions.Delete(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, domain.StorageFailure("DeleteTransaction: commit", err)
	}

	logging.FromContext(ctx).Info("transaction deleted", "transaction_id", id, "reference", txn.ReferenceNumber)
	s.Announce(ctx, events.TransactionDeleted, txn)
	return deleted, nil
}
