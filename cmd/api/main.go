package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/ledgerbook/internal/app"
	"github.com/josh-kwaku/ledgerbook/internal/config"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

const (
	idempotencySweepInterval = time.Hour
	shutdownGrace            = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("ledger-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("ledger api exited", "error", err)
		os.Exit(1)
	}
	slog.Info("ledger api stopped")
}

// run serves the API and its background jobs until ctx is cancelled or one
// of them fails.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.Open(ctx, cfg.Store, cfg.SyncInterval)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           routes(cfg, a),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", srv.Addr, "sync_enabled", cfg.SyncEnabled)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.SyncEnabled {
		g.Go(func() error {
			a.Sync.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		sweepIdempotency(gctx, a)
		return nil
	})

	return g.Wait()
}

func sweepIdempotency(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(idempotencySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Idempotency.Purge(ctx)
			switch {
			case err != nil:
				slog.Error("idempotency sweep failed", "error", err)
			case n > 0:
				slog.Info("expired idempotent responses purged", "count", n)
			}
		}
	}
}
