package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
)

type memoryResponses struct {
	mu      sync.Mutex
	entries map[string]repository.StoredResponse
}

func newMemoryResponses() *memoryResponses {
	return &memoryResponses{entries: map[string]repository.StoredResponse{}}
}

func (m *memoryResponses) Lookup(_ context.Context, userID uuid.UUID, key string) (*repository.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[userID.String()+"/"+key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryResponses) Save(_ context.Context, userID uuid.UUID, key string, resp repository.StoredResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[userID.String()+"/"+key]; !ok {
		m.entries[userID.String()+"/"+key] = resp
	}
	return nil
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	})
}

func TestIdempotency(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryResponses())(countingHandler(&calls))
	userID := uuid.New()

	send := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		req = req.WithContext(auth.WithCaller(req.Context(), auth.Claims{UserID: userID}))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := send("k1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, calls)

	rr = send("k1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	rr = send("k1", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, calls)

	rr = send("", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	rr = send("", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 3, calls, "requests without a key are never replayed")
}

func TestAuth(t *testing.T) {
	const secret = "test-secret"
	userID := uuid.New()
	tokens := auth.NewTokens(secret, time.Minute)
	token, _, err := tokens.Issue(userID, "a@example.com")
	require.NoError(t, err)

	var seen uuid.UUID
	h := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.CallerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
	assert.Equal(t, userID, seen)
}

func TestIdempotency_ServerErrorsAreNotStored(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryResponses())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ctx := auth.WithCaller(context.Background(), auth.Claims{UserID: uuid.New()})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{}`)).WithContext(ctx)
		req.Header.Set(IdempotencyKeyHeader, "k")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Empty(t, rr.Header().Get(ReplayedHeader))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_KeysAreScopedPerCaller(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryResponses())(countingHandler(&calls))

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{}`))
		req = req.WithContext(auth.WithCaller(req.Context(), auth.Claims{UserID: user}))
		req.Header.Set(IdempotencyKeyHeader, "shared")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates caller id", incoming: "req-42", keep: true},
		{name: "generates when absent", incoming: ""},
		{name: "replaces id with spaces", incoming: "bad id"},
		{name: "replaces oversized id", incoming: strings.Repeat("a", maxRequestIDLen+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.NotEmpty(t, got)
			assert.Equal(t, got, rr.Header().Get(RequestIDHeader))
			if tc.keep {
				assert.Equal(t, tc.incoming, got)
			} else {
				assert.NotEqual(t, tc.incoming, got)
			}
		})
	}
}

func TestAccessLog_RecordsStatusAndCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Service: "test", Level: "debug", Env: "production", Out: &buf})

	tokens := auth.NewTokens("s", time.Minute)
	userID := uuid.New()
	token, _, err := tokens.Issue(userID, "a@example.com")
	require.NoError(t, err)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}), AccessLog, Auth(tokens))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/x", nil)
	req = req.WithContext(logging.WithLogger(req.Context(), logger))
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])
	assert.EqualValues(t, 4, line["bytes"])
	assert.Equal(t, userID.String(), line["user_id"])
}

func TestAccessLog_SkipsHealth(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Service: "test", Level: "debug", Env: "production", Out: &buf})
	h := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(logging.WithLogger(req.Context(), logger)))
	assert.Zero(t, buf.Len())
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")

	abort := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
