// Package testutil starts throwaway PostgreSQL instances and seeds them for
// integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

const defaultImage = "postgres:16-alpine"

// SetupTestDB returns a migrated database in a fresh container that lives
// for the test. LEDGER_TEST_PG_IMAGE overrides the image; -short skips.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker; skipped in -short mode")
	}

	image := os.Getenv("LEDGER_TEST_PG_IMAGE")
	if image == "" {
		image = defaultImage
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.Run(ctx, image,
		postgres.WithDatabase("ledgerbook"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	db, err := repository.NewPostgresDB(ctx, dsn, repository.PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applied, err := repository.RunMigrations(ctx, db, repository.FindMigrationsDir())
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Logf("applied %d migrations on %s", len(applied), image)

	return db
}
