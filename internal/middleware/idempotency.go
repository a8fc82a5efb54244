package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/handler"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "X-Idempotent-Replayed"

	idempotencyTTL    = 24 * time.Hour
	maxIdempotencyKey = 255
	maxIdempotentBody = 10 << 20
)

type responseStore interface {
	Lookup(ctx context.Context, userID uuid.UUID, key string) (*repository.StoredResponse, error)
	Save(ctx context.Context, userID uuid.UUID, key string, resp repository.StoredResponse, ttl time.Duration) error
}

// Idempotency replays the stored response when a caller retries a write
// with the same Idempotency-Key and the same request. Reusing a key for a
// different request is a conflict. Requests without a key, and 5xx
// responses, are never stored.
func Idempotency(store responseStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || !mutates(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				handler.RespondAppError(w, handler.ErrInvalidRequest.WithMessage("Idempotency-Key is too long"), nil)
				return
			}
			userID, ok := auth.CallerID(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					handler.RespondAppError(w, handler.ErrPayloadTooLarge, nil)
					return
				}
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fp := fingerprint(r, body)

			log := logging.FromContext(r.Context()).With("idempotency_key", key)

			stored, err := store.Lookup(r.Context(), userID, key)
			if err != nil {
				log.Error("idempotency lookup failed", "error", err)
				handler.RespondAppError(w, handler.ErrStorageFailure, nil)
				return
			}
			if stored != nil {
				if stored.Fingerprint != fp {
					handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
					return
				}
				replay(w, stored)
				return
			}

			cw := newCaptureWriter(w, true)
			next.ServeHTTP(cw, r)
			if cw.status >= http.StatusInternalServerError {
				return
			}

			err = store.Save(r.Context(), userID, key, repository.StoredResponse{
				Fingerprint: fp,
				StatusCode:  cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
			}, idempotencyTTL)
			if err != nil {
				log.Error("idempotency save failed", "error", err)
			}
		})
	}
}

func mutates(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func replay(w http.ResponseWriter, stored *repository.StoredResponse) {
	w.Header().Set("Content-Type", stored.ContentType)
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.StatusCode)
	_, _ = w.Write(stored.Body)
}

// fingerprint binds a key to one request: method, path with query, body.
func fingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	io.WriteString(h, r.Method)
	h.Write([]byte{0})
	io.WriteString(h, r.URL.RequestURI())
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
