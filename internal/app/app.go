// Package app assembles the repositories and services shared by the API
// server and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/josh-kwaku/ledgerbook/internal/config"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
	"github.com/josh-kwaku/ledgerbook/internal/service"
	"github.com/josh-kwaku/ledgerbook/internal/service/ledger"
)

type App struct {
	DB        *sql.DB
	Publisher events.Publisher

	Users       *repository.UserRepository
	Idempotency *repository.IdempotencyRepository

	Accounts *service.AccountService
	Balances *service.BalanceService
	Reports  *service.ReportService
	Ledger   *ledger.Service
	Staging  *service.StagingService
	UserSvc  *service.UserService
	Sync     *service.SyncWorker
}

// Open connects to PostgreSQL and builds every service over it.
// syncInterval only matters to callers that Start the sync worker.
func Open(ctx context.Context, st config.Store, syncInterval time.Duration) (*App, error) {
	db, err := repository.NewPostgresDB(ctx, st.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     st.DBMaxOpenConns,
		MaxIdleConns:     st.DBMaxIdleConns,
		ConnMaxLifetimeS: st.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: st.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return nil, fmt.Errorf("app.Open: %w", err)
	}
	return New(db, events.New(st.KafkaBrokers, st.KafkaTopic), st.OpenBankingRatePerSec, syncInterval), nil
}

func New(db *sql.DB, publisher events.Publisher, bankRatePerSec float64, syncInterval time.Duration) *App {
	categoryRepo := repository.NewCategoryRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	sourceRepo := repository.NewImportSourceRepository(db)
	stagedRepo := repository.NewStagedRepository(db)
	userRepo := repository.NewUserRepository(db)

	poster := ledger.NewService(repository.NewTransactionRepository(db), journalRepo, accountRepo, publisher, db)
	staging := service.NewStagingService(sourceRepo, stagedRepo, accountRepo, poster, db)

	return &App{
		DB:          db,
		Publisher:   publisher,
		Users:       userRepo,
		Idempotency: repository.NewIdempotencyRepository(db),
		Accounts:    service.NewAccountService(categoryRepo, accountRepo, journalRepo, db),
		Balances:    service.NewBalanceService(balanceRepo, accountRepo),
		Reports:     service.NewReportService(balanceRepo),
		Ledger:      poster,
		Staging:     staging,
		UserSvc:     service.NewUserService(userRepo),
		Sync: service.NewSyncWorker(
			sourceRepo, stagedRepo, staging,
			service.NewBankClientFactory(bankRatePerSec),
			slog.Default().With("component", "sync_worker"),
			syncInterval,
		),
	}
}

// SchemaReady fails until the migrations have created the journal tables.
func (a *App) SchemaReady(ctx context.Context) error {
	_, err := a.DB.ExecContext(ctx, "SELECT 1 FROM journal_entries LIMIT 0")
	return err
}

func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		slog.Error("failed to close event publisher", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}
