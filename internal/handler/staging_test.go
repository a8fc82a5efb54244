package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/service"
)

type fakeStaging struct {
	stagingService
	processErr  error
	counterpart uuid.UUID
	bulk        domain.BulkResult
	csvBody     string
	csvErr      error
	staged      *domain.StageRequest
}

func (f *fakeStaging) ProcessStaged(_ context.Context, _, counterpartID uuid.UUID, _ *uuid.UUID) (*domain.Transaction, error) {
	f.counterpart = counterpartID
	if f.processErr != nil {
		return nil, f.processErr
	}
	return sampleTransaction(), nil
}

func (f *fakeStaging) BulkProcess(context.Context, []uuid.UUID, uuid.UUID, *uuid.UUID) domain.BulkResult {
	return f.bulk
}

func (f *fakeStaging) ImportCSV(_ context.Context, _ uuid.UUID, r io.Reader) (*service.ImportResult, error) {
	b, _ := io.ReadAll(r)
	f.csvBody = string(b)
	if f.csvErr != nil {
		return nil, f.csvErr
	}
	return &service.ImportResult{Staged: []domain.StagedTransaction{{ID: uuid.New(), Amount: decimal.RequireFromString("-3.2")}}, Duplicates: 1}, nil
}

func (f *fakeStaging) Stage(_ context.Context, req domain.StageRequest) (*domain.StagedTransaction, error) {
	f.staged = &req
	return &domain.StagedTransaction{ID: uuid.New(), SourceID: req.SourceID, Date: req.Date, Amount: req.Amount, Status: domain.StagedStatusPending}, nil
}

type fakeSyncer struct {
	res service.SyncResult
	err error
}

func (f fakeSyncer) SyncSource(context.Context, uuid.UUID) (service.SyncResult, error) {
	return f.res, f.err
}

func TestStagingHandler_Process(t *testing.T) {
	counterpart := uuid.New()
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "processed",
			body:       fmt.Sprintf(`{"counterpart_account_id":%q}`, counterpart),
			wantStatus: http.StatusCreated,
		},
		{
			name:       "counterpart required",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "already processed",
			body:       fmt.Sprintf(`{"counterpart_account_id":%q}`, counterpart),
			err:        fmt.Errorf("ProcessStaged: %w", domain.Invalid("staged transaction already processed")),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "staged transaction already processed",
		},
		{
			name:       "missing staged record",
			body:       fmt.Sprintf(`{"counterpart_account_id":%q}`, counterpart),
			err:        fmt.Errorf("ProcessStaged: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeStaging{processErr: tc.err}
			h := NewStagingHandler(fake, fakeSyncer{})

			id := uuid.NewString()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/staged-transactions/"+id+"/process", strings.NewReader(tc.body))
			req.SetPathValue("id", id)
			rr := httptest.NewRecorder()
			h.Process(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			resp, _ := decodeResponse(t, rr)
			if tc.wantMsg != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantMsg, resp.Error.Message)
			}
			if tc.wantStatus == http.StatusCreated {
				assert.Equal(t, counterpart, fake.counterpart)
			}
		})
	}
}

func TestStagingHandler_BulkProcess(t *testing.T) {
	failed := uuid.New()
	fake := &fakeStaging{bulk: domain.BulkResult{
		Processed: []domain.Transaction{*sampleTransaction()},
		Failed:    []domain.BulkFailure{{StagedID: failed, Error: "staged transaction has no account assigned"}},
	}}
	h := NewStagingHandler(fake, fakeSyncer{})

	body := fmt.Sprintf(`{"staged_transaction_ids":[%q,%q],"counterpart_account_id":%q}`, uuid.New(), failed, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staged-transactions/bulk-process", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.BulkProcess(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data bulkProcessDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Processed, 1)
	require.Len(t, resp.Data.Failed, 1)
	assert.Equal(t, failed, resp.Data.Failed[0].StagedID)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/staged-transactions/bulk-process", strings.NewReader(`{"staged_transaction_ids":[]}`))
	rr = httptest.NewRecorder()
	h.BulkProcess(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStagingHandler_ImportCSV(t *testing.T) {
	fake := &fakeStaging{}
	h := NewStagingHandler(fake, fakeSyncer{})

	id := uuid.NewString()
	csv := "date,description,amount\n2024-03-01,Coffee,-3.20\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import-sources/"+id+"/csv", strings.NewReader(csv))
	req.SetPathValue("id", id)
	rr := httptest.NewRecorder()
	h.ImportCSV(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, csv, fake.csvBody)
	_, data := decodeResponse(t, rr)
	assert.EqualValues(t, 1, data["duplicates"])

	fake.csvErr = domain.Invalid("csv: 1 invalid rows: line 2: invalid date")
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/import-sources/"+id+"/csv", strings.NewReader(csv))
	req.SetPathValue("id", id)
	h.ImportCSV(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStagingHandler_Stage(t *testing.T) {
	fake := &fakeStaging{}
	h := NewStagingHandler(fake, fakeSyncer{})
	source := uuid.New()

	body := fmt.Sprintf(`{"source_id":%q,"transaction_date":"2024-05-02","description":"Printer paper","amount":"-25.00"}`, source)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staged-transactions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Stage(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, fake.staged)
	assert.Equal(t, source, fake.staged.SourceID)
	_, data := decodeResponse(t, rr)
	assert.Equal(t, "-25.00", data["amount"])
	assert.Equal(t, "pending", data["status"])
}

func TestStagingHandler_Sync(t *testing.T) {
	source := uuid.New()
	tests := []struct {
		name       string
		syncer     fakeSyncer
		wantStatus int
	}{
		{
			name:       "synced",
			syncer:     fakeSyncer{res: service.SyncResult{SourceID: source, Fetched: 2, Staged: 2}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown source",
			syncer:     fakeSyncer{err: fmt.Errorf("SyncSource: %w", domain.ErrNotFound)},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "aggregator failure",
			syncer: fakeSyncer{
				res: service.SyncResult{SourceID: source, Error: "aggregator unavailable"},
				err: errors.New("SyncSource: aggregator unavailable"),
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewStagingHandler(&fakeStaging{}, tc.syncer)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/import-sources/"+source.String()+"/sync", nil)
			req.SetPathValue("id", source.String())
			rr := httptest.NewRecorder()
			h.Sync(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}
