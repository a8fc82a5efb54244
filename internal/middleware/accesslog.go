package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// requestInfo is filled in by inner middleware so the access log line can
// name the authenticated caller.
type requestInfo struct {
	callerID uuid.UUID
}

type requestInfoKey struct{}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// AccessLog writes one line per request. Health probes are not logged.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))
		cw := newCaptureWriter(w, false)

		next.ServeHTTP(cw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", cw.status,
			"bytes", cw.written,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if info.callerID != uuid.Nil {
			attrs = append(attrs, "user_id", info.callerID)
		}
		logging.FromContext(r.Context()).Log(r.Context(), statusLevel(cw.status), "request completed", attrs...)
	})
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
