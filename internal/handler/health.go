package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// Version is reported by the liveness probe; overridden at build time with -ldflags.
var Version = "dev"

const checkTimeout = 2 * time.Second

// HealthCheck is one readiness dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []HealthCheck
	started time.Time
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, started: time.Now()}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// Readiness runs every check concurrently; the service is ready only when
// all of them pass.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "ok"
			if err := c.Check(ctx); err != nil {
				logging.FromContext(r.Context()).Warn("readiness check failed", "check", c.Name, "error", err)
				status = "down"
			}
			mu.Lock()
			results[c.Name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall, code := "ok", http.StatusOK
	for _, s := range results {
		if s != "ok" {
			overall, code = "down", http.StatusServiceUnavailable
			break
		}
	}
	RespondJSON(w, code, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
