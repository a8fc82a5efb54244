package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
	"github.com/josh-kwaku/ledgerbook/internal/service/ledger"
)

type categoryRepository interface {
	Create(ctx context.Context, c *domain.AccountCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AccountCategory, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.AccountCategory, error)
	List(ctx context.Context) ([]domain.AccountCategory, error)
	Update(ctx context.Context, c *domain.AccountCategory) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type accountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByName(ctx context.Context, name string) (*domain.Account, error)
	List(ctx context.Context, f repository.AccountFilter) ([]domain.Account, error)
	ListByCategory(ctx context.Context, tx *sql.Tx, categoryID uuid.UUID) ([]domain.Account, error)
	LastCode(ctx context.Context, tx *sql.Tx, prefix string) (string, error)
	Create(ctx context.Context, tx *sql.Tx, a *domain.Account) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	Update(ctx context.Context, tx *sql.Tx, a *domain.Account) error
	Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
}

type entryCounter interface {
	CountByAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (int, error)
}

type balanceRepository interface {
	AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error)
	AccountBalances(ctx context.Context, f repository.BalanceFilter) (map[uuid.UUID]decimal.Decimal, error)
	Activity(ctx context.Context, types []domain.AccountType, start, end *time.Time) ([]domain.AccountActivity, error)
}

type importSourceRepository interface {
	Create(ctx context.Context, s *domain.ImportSource) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSource, error)
	List(ctx context.Context, activeOnly bool) ([]domain.ImportSource, error)
	ListActiveByType(ctx context.Context, t domain.ImportSourceType) ([]domain.ImportSource, error)
	Update(ctx context.Context, s *domain.ImportSource) error
}

type stagedRepository interface {
	Create(ctx context.Context, s *domain.StagedTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedTransaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.StagedTransaction, error)
	List(ctx context.Context, f domain.StagedFilter) ([]domain.StagedTransaction, error)
	LatestDate(ctx context.Context, sourceID uuid.UUID) (*time.Time, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error
	MarkProcessed(ctx context.Context, tx *sql.Tx, id, transactionID uuid.UUID, at time.Time) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	DeleteUnprocessed(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type userRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// poster is the slice of the transaction poster the staging reconciler needs.
type poster interface {
	PostWithin(ctx context.Context, tx *sql.Tx, req ledger.PostRequest) (*domain.Transaction, error)
	Announce(ctx context.Context, kind events.TransactionEventType, t *domain.Transaction)
}
