package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// UpdateEntry edits one journal line; the transaction it belongs to must still
// balance afterwards.
func (s *Service) UpdateEntry(ctx context.Context, entryID uuid.UUID, in domain.EntryInput) (*domain.JournalEntry, error) {
	if in.AccountID == uuid.Nil {
		return nil, fmt.Errorf("UpdateEntry: %w", domain.Invalid("account_id is required"))
	}
	if in.DebitAmount.IsZero() && in.CreditAmount.IsZero() {
		return nil, fmt.Errorf("UpdateEntry: %w", domain.Invalid("an entry needs a debit or a credit amount"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("UpdateEntry: begin tx", err)
	}
	defer tx.Rollback()

	entry, err := s.entries.GetForUpdate(ctx, tx, entryID)
	if err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}
	txn, err := s.transactions.GetForUpdate(ctx, tx, entry.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}
	siblings, err := s.entries.GetByTransactionIDForUpdate(ctx, tx, entry.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}

	candidate := toEntryInputs(siblings)
	for i := range siblings {
		if siblings[i].ID == entryID {
			candidate[i] = in
		}
	}
	normalized, err := normalizeEntries(candidate)
	if err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}
	if err := s.lockAndCheck(ctx, tx, normalized); err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}

	entry.AccountID = in.AccountID
	entry.DebitAmount = in.DebitAmount
	entry.CreditAmount = in.CreditAmount
	if err := s.entries.Update(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("UpdateEntry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("UpdateEntry: commit", err)
	}

	for i := range siblings {
		if siblings[i].ID == entryID {
			siblings[i] = *entry
		}
	}
	txn.Entries = siblings
	logging.FromContext(ctx).Info("journal entry updated", "entry_id", entryID, "transaction_id", txn.ID)
	s.Announce(ctx, events.TransactionUpdated, txn)
	return entry, nil
}

// DeleteEntry removes one journal line. It refuses when the remaining lines
// would be fewer than two or would not balance, and reports false when the
// entry does not exist.
func (s *Service) DeleteEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageFailure("DeleteEntry: begin tx", err)
	}
	defer tx.Rollback()

	entry, err := s.entries.GetForUpdate(ctx, tx, entryID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", err)
	}
	txn, err := s.transactions.GetForUpdate(ctx, tx, entry.TransactionID)
	if err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", err)
	}
	siblings, err := s.entries.GetByTransactionIDForUpdate(ctx, tx, entry.TransactionID)
	if err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", err)
	}

	remaining := make([]domain.JournalEntry, 0, len(siblings))
	for _, e := range siblings {
		if e.ID != entryID {
			remaining = append(remaining, e)
		}
	}
	if len(remaining) < 2 {
		return false, fmt.Errorf("DeleteEntry: %w", domain.Invalid("a transaction must keep at least two entries"))
	}
	if err := checkBalance(toEntryInputs(remaining)); err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", domain.Invalid("deleting this entry would unbalance the transaction"))
	}

	if err := s.entries.Delete(ctx, tx, entryID); err != nil {
		return false, fmt.Errorf("DeleteEntry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.StorageFailure("DeleteEntry: commit", err)
	}

	txn.Entries = remaining
	logging.FromContext(ctx).Info("journal entry deleted", "entry_id", entryID, "transaction_id", txn.ID)
	s.Announce(ctx, events.TransactionUpdated, txn)
	return true, nil
}
