package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/importer"
)

type syncSources interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportSource, error)
	ListActiveByType(ctx context.Context, t domain.ImportSourceType) ([]domain.ImportSource, error)
}

type syncCursor interface {
	LatestDate(ctx context.Context, sourceID uuid.UUID) (*time.Time, error)
}

type stager interface {
	Stage(ctx context.Context, req domain.StageRequest) (*domain.StagedTransaction, error)
}

// BankFetcher pulls booked transactions from an aggregator.
type BankFetcher interface {
	FetchTransactions(ctx context.Context, from *time.Time) ([]importer.BankTransaction, error)
}

// BankClientFactory builds an aggregator client for one source config.
type BankClientFactory func(ctx context.Context, cfg importer.OpenBankingConfig) BankFetcher

// NewBankClientFactory returns a factory whose clients all share one limiter,
// so the aggregator sees a single request budget across sources.
func NewBankClientFactory(ratePerSec float64) BankClientFactory {
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), 1)
	return func(ctx context.Context, cfg importer.OpenBankingConfig) BankFetcher {
		return importer.NewOpenBankingClient(ctx, cfg, limiter)
	}
}

type SyncResult struct {
	SourceID   uuid.UUID `json:"source_id"`
	Fetched    int       `json:"fetched"`
	Staged     int       `json:"staged"`
	Duplicates int       `json:"duplicates"`
	Invalid    int       `json:"invalid"`
	Error      string    `json:"error,omitempty"`
}

// SyncWorker periodically pulls booked transactions from every active
// open-banking source and stages the new ones.
type SyncWorker struct {
	sources   syncSources
	cursor    syncCursor
	staging   stager
	newClient BankClientFactory
	logger    *slog.Logger
	interval  time.Duration
}

func NewSyncWorker(
	sources syncSources,
	cursor syncCursor,
	staging stager,
	newClient BankClientFactory,
	logger *slog.Logger,
	interval time.Duration,
) *SyncWorker {
	return &SyncWorker{
		sources:   sources,
		cursor:    cursor,
		staging:   staging,
		newClient: newClient,
		logger:    logger,
		interval:  interval,
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info("sync worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopped")
			return
		case <-ticker.C:
			if _, err := w.SyncAll(ctx); err != nil {
				w.logger.Error("sync pass failed", "error", err)
			}
		}
	}
}

const maxConcurrentSyncs = 4

// SyncAll runs one pass over every active open-banking source. A failing
// source is reported in its result and does not stop the others.
func (w *SyncWorker) SyncAll(ctx context.Context) ([]SyncResult, error) {
	srcs, err := w.sources.ListActiveByType(ctx, domain.ImportSourceOpenBanking)
	if err != nil {
		return nil, fmt.Errorf("SyncAll: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make([]SyncResult, 0, len(srcs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSyncs)
	for _, src := range srcs {
		g.Go(func() error {
			res := w.syncSource(gctx, src)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("SyncAll: %w", err)
	}
	return results, nil
}

// SyncSource runs one pass for a single source.
func (w *SyncWorker) SyncSource(ctx context.Context, sourceID uuid.UUID) (SyncResult, error) {
	src, err := w.sources.GetByID(ctx, sourceID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("SyncSource: %w", err)
	}
	if src.Type != domain.ImportSourceOpenBanking {
		return SyncResult{}, fmt.Errorf("SyncSource: %w",
			domain.Invalid("import source %s is %s, not open-banking", src.ID, src.Type))
	}
	if !src.IsActive {
		return SyncResult{}, fmt.Errorf("SyncSource: %w", domain.Invalid("import source %s is inactive", src.ID))
	}
	res := w.syncSource(ctx, *src)
	if res.Error != "" {
		return res, fmt.Errorf("SyncSource: %s", res.Error)
	}
	return res, nil
}

func (w *SyncWorker) syncSource(ctx context.Context, src domain.ImportSource) SyncResult {
	log := w.logger.With("source_id", src.ID)
	res := SyncResult{SourceID: src.ID}

	fail := func(msg string, err error) SyncResult {
		log.Error(msg, "error", err)
		res.Error = err.Error()
		return res
	}

	cfg, err := importer.ParseOpenBankingConfig(src.Config)
	if err != nil {
		return fail("invalid open-banking config", err)
	}
	from, err := w.cursor.LatestDate(ctx, src.ID)
	if err != nil {
		return fail("failed to read sync cursor", err)
	}

	txns, err := w.newClient(ctx, *cfg).FetchTransactions(ctx, from)
	if err != nil {
		return fail("failed to fetch bank transactions", err)
	}
	res.Fetched = len(txns)

	for _, bt := range txns {
		req, err := bt.StageRequest(src.ID)
		if err != nil {
			res.Invalid++
			log.Warn("skipping malformed bank transaction", "error", err)
			continue
		}
		_, err = w.staging.Stage(ctx, req)
		switch {
		case err == nil:
			res.Staged++
		case errors.Is(err, domain.ErrDuplicate):
			res.Duplicates++
		case errors.Is(err, domain.ErrValidation):
			res.Invalid++
			log.Warn("bank transaction rejected", "external_id", bt.ID, "error", err)
		default:
			return fail("failed to stage bank transaction", err)
		}
	}

	log.Info("open-banking sync finished",
		"fetched", res.Fetched,
		"staged", res.Staged,
		"duplicates", res.Duplicates,
		"invalid", res.Invalid,
	)
	return res
}
