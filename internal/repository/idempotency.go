package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

// StoredResponse is a write's response kept for replay under the caller's
// Idempotency-Key. Fingerprint identifies the request that produced it.
type StoredResponse struct {
	Fingerprint string
	StatusCode  int
	ContentType string
	Body        []byte
	StoredAt    time.Time
}

type IdempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db, now: time.Now}
}

// Lookup returns nil when nothing live is stored under the key.
func (r *IdempotencyRepository) Lookup(ctx context.Context, userID uuid.UUID, key string) (*StoredResponse, error) {
	var s StoredResponse
	err := r.db.QueryRowContext(ctx, `
		SELECT fingerprint, status_code, content_type, body, stored_at
		FROM idempotent_responses
		WHERE user_id = $1 AND idempotency_key = $2 AND expires_at > $3`,
		userID, key, r.now().UTC(),
	).Scan(&s.Fingerprint, &s.StatusCode, &s.ContentType, &s.Body, &s.StoredAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, domain.StorageFailure("Lookup", err)
	}
	return &s, nil
}

// Save keeps the first response stored under a key; later saves for the
// same key are ignored until that response expires, after which the key is
// taken over even if Purge has not run yet.
func (r *IdempotencyRepository) Save(ctx context.Context, userID uuid.UUID, key string, resp StoredResponse, ttl time.Duration) error {
	now := r.now().UTC()
	if resp.ContentType == "" {
		resp.ContentType = "application/json"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotent_responses
			(user_id, idempotency_key, fingerprint, status_code, content_type, body, stored_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			stored_at = EXCLUDED.stored_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotent_responses.expires_at <= EXCLUDED.stored_at`,
		userID, key, resp.Fingerprint, resp.StatusCode, resp.ContentType, resp.Body, now, now.Add(ttl),
	)
	if err != nil {
		return domain.StorageFailure("Save", err)
	}
	return nil
}

// Purge drops expired responses and reports how many went.
func (r *IdempotencyRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotent_responses WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, domain.StorageFailure("Purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StorageFailure("Purge", err)
	}
	return n, nil
}
