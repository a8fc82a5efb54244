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

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	LastReference(ctx context.Context, tx *sql.Tx, date time.Time) (string, error)
	Get(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, tx *sql.Tx, start, end *time.Time) ([]domain.Transaction, error)
	UpdateHeader(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.JournalEntry) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.JournalEntry, error)
	GetByTransactionIDs(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) ([]domain.JournalEntry, error)
	GetByTransactionIDForUpdate(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) ([]domain.JournalEntry, error)
	List(ctx context.Context, f repository.EntryFilter) ([]domain.JournalEntry, error)
	Update(ctx context.Context, tx *sql.Tx, e *domain.JournalEntry) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	DeleteByTransactionID(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (int64, error)
}

type accountLocker interface {
	LockForPosting(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) (map[uuid.UUID]domain.Account, error)
}

// Service is the transaction poster: the only writer of transactions and
// journal entries, and the place double-entry integrity is enforced.
type Service struct {
	transactions transactionRepo
	entries      entryRepo
	accounts     accountLocker
	publisher    events.Publisher
	db           *sql.DB
}

func NewService(
	transactions transactionRepo,
	entries entryRepo,
	accounts accountLocker,
	publisher events.Publisher,
	db *sql.DB,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		transactions: transactions,
		entries:      entries,
		accounts:     accounts,
		publisher:    publisher,
		db:           db,
	}
}

// snapshotRead runs fn in a read-only repeatable-read transaction, so headers
// and entries come from one snapshot even while writers commit.
func (s *Service) snapshotRead(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.StorageFailure("begin read tx", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.StorageFailure("commit read tx", err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t *domain.Transaction
	err := s.snapshotRead(ctx, func(tx *sql.Tx) error {
		var err error
		if t, err = s.transactions.Get(ctx, tx, id); err != nil {
			return err
		}
		t.Entries, err = s.entries.GetByTransactionIDs(ctx, tx, []uuid.UUID{id})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (s *Service) ListTransactions(ctx context.Context, start, end *time.Time) ([]domain.Transaction, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, fmt.Errorf("ListTransactions: %w", domain.Invalid("end_date must not be before start_date"))
	}
	var txns []domain.Transaction
	err := s.snapshotRead(ctx, func(tx *sql.Tx) error {
		var err error
		if txns, err = s.transactions.List(ctx, tx, start, end); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(txns))
		for i := range txns {
			ids[i] = txns[i].ID
		}
		entries, err := s.entries.GetByTransactionIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		byTxn := make(map[uuid.UUID][]domain.JournalEntry, len(txns))
		for _, e := range entries {
			byTxn[e.TransactionID] = append(byTxn[e.TransactionID], e)
		}
		for i := range txns {
			txns[i].Entries = byTxn[txns[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, nil
}

func (s *Service) ListEntries(ctx context.Context, f repository.EntryFilter) ([]domain.JournalEntry, error) {
	entries, err := s.entries.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, nil
}

// Announce publishes a change notification after commit. Failures are
// logged and never surface to the caller: the journal is already durable.
func (s *Service) Announce(ctx context.Context, kind events.TransactionEventType, t *domain.Transaction) {
	debits, _ := t.Totals()
	event := events.TransactionEvent{
		Type:            kind,
		TransactionID:   t.ID,
		ReferenceNumber: t.ReferenceNumber,
		Date:            t.Date.Format(domain.DateLayout),
		Total:           debits.StringFixed(2),
		OccurredAt:      time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		logging.FromContext(ctx).Warn("failed to publish transaction event",
			"transaction_id", t.ID,
			"event_type", kind,
			"error", err,
		)
	}
}
