package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/service"
)

const maxCSVBody = 10 << 20

type stagingService interface {
	CreateImportSource(ctx context.Context, req service.ImportSourceRequest) (*domain.ImportSource, error)
	GetImportSource(ctx context.Context, id uuid.UUID) (*domain.ImportSource, error)
	ListImportSources(ctx context.Context, activeOnly bool) ([]domain.ImportSource, error)
	UpdateImportSource(ctx context.Context, id uuid.UUID, req service.ImportSourceRequest) (*domain.ImportSource, error)
	Stage(ctx context.Context, req domain.StageRequest) (*domain.StagedTransaction, error)
	ListStaged(ctx context.Context, f domain.StagedFilter) ([]domain.StagedTransaction, error)
	AssignAccount(ctx context.Context, stagedID, accountID uuid.UUID) (*domain.StagedTransaction, error)
	ProcessStaged(ctx context.Context, stagedID, counterpartID uuid.UUID, createdBy *uuid.UUID) (*domain.Transaction, error)
	BulkProcess(ctx context.Context, ids []uuid.UUID, counterpartID uuid.UUID, createdBy *uuid.UUID) domain.BulkResult
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	ImportCSV(ctx context.Context, sourceID uuid.UUID, r io.Reader) (*service.ImportResult, error)
}

type sourceSyncer interface {
	SyncSource(ctx context.Context, sourceID uuid.UUID) (service.SyncResult, error)
}

type StagingHandler struct {
	staging stagingService
	syncer  sourceSyncer
}

func NewStagingHandler(staging stagingService, syncer sourceSyncer) *StagingHandler {
	return &StagingHandler{staging: staging, syncer: syncer}
}

type importSourceRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Config   string `json:"config"`
	IsActive *bool  `json:"is_active"`
}

func (r importSourceRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if r.Type == "" {
		errs = append(errs, FieldError{Field: "type", Message: "required"})
	} else if !domain.ImportSourceType(r.Type).IsValid() {
		errs = append(errs, FieldError{Field: "type", Message: "must be csv, tally-form, or open-banking"})
	}
	return errs
}

func (r importSourceRequest) toService() service.ImportSourceRequest {
	return service.ImportSourceRequest{
		Name:     r.Name,
		Type:     domain.ImportSourceType(r.Type),
		Config:   r.Config,
		IsActive: r.IsActive == nil || *r.IsActive,
	}
}

type importSourceDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Config    string    `json:"config"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toImportSourceDTO(s *domain.ImportSource) importSourceDTO {
	return importSourceDTO{
		ID:        s.ID,
		Name:      s.Name,
		Type:      string(s.Type),
		Config:    s.Config,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
}

type stagedDTO struct {
	ID              uuid.UUID       `json:"id"`
	SourceID        uuid.UUID       `json:"source_id"`
	ExternalID      *string         `json:"external_id"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
	Amount          string          `json:"amount"`
	AccountID       *uuid.UUID      `json:"account_id"`
	RawData         json.RawMessage `json:"raw_data,omitempty"`
	Status          string          `json:"status"`
	ErrorMessage    *string         `json:"error_message"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	TransactionID   *uuid.UUID      `json:"transaction_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toStagedDTO(s *domain.StagedTransaction) stagedDTO {
	return stagedDTO{
		ID:              s.ID,
		SourceID:        s.SourceID,
		ExternalID:      s.ExternalID,
		TransactionDate: formatDate(s.Date),
		Description:     s.Description,
		Amount:          money(s.Amount),
		AccountID:       s.AccountID,
		RawData:         s.RawData,
		Status:          string(s.Status),
		ErrorMessage:    s.ErrorMessage,
		ProcessedAt:     s.ProcessedAt,
		TransactionID:   s.TransactionID,
		CreatedAt:       s.CreatedAt,
	}
}

func toStagedDTOs(list []domain.StagedTransaction) []stagedDTO {
	out := make([]stagedDTO, len(list))
	for i := range list {
		out[i] = toStagedDTO(&list[i])
	}
	return out
}

func (h *StagingHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req importSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	src, err := h.staging.CreateImportSource(r.Context(), req.toService())
	if err != nil {
		logging.FromContext(r.Context()).Warn("import source creation failed", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/import-sources/%s", src.ID))
	RespondSuccess(w, http.StatusCreated, toImportSourceDTO(src))
}

func (h *StagingHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	activeOnly := q.flag("active_only")
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	srcs, err := h.staging.ListImportSources(r.Context(), activeOnly)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	dtos := make([]importSourceDTO, len(srcs))
	for i := range srcs {
		dtos[i] = toImportSourceDTO(&srcs[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *StagingHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	src, err := h.staging.GetImportSource(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toImportSourceDTO(src))
}

func (h *StagingHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req importSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	src, err := h.staging.UpdateImportSource(r.Context(), id, req.toService())
	if err != nil {
		logging.FromContext(r.Context()).Warn("import source update failed", "source_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toImportSourceDTO(src))
}

func (h *StagingHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	res, err := h.staging.ImportCSV(r.Context(), id, http.MaxBytesReader(w, r.Body, maxCSVBody))
	if err != nil {
		logging.FromContext(r.Context()).Warn("csv import failed", "source_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"staged":     toStagedDTOs(res.Staged),
		"duplicates": res.Duplicates,
	})
}

func (h *StagingHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	res, err := h.syncer.SyncSource(r.Context(), id)
	if err != nil && res.SourceID == uuid.Nil {
		RespondDomainError(w, r, err)
		return
	}
	if res.Error != "" {
		logging.FromContext(r.Context()).Warn("sync failed", "source_id", id, "error", err)
		RespondAppError(w, ErrUpstreamFailure.WithMessage(res.Error), res)
		return
	}
	RespondSuccess(w, http.StatusOK, res)
}

type stageRequest struct {
	SourceID        *uuid.UUID      `json:"source_id"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	ExternalID      *string         `json:"external_id"`
	AccountID       *uuid.UUID      `json:"account_id"`
	RawData         json.RawMessage `json:"raw_data"`
}

func (r stageRequest) Validate() (time.Time, []FieldError) {
	var errs []FieldError
	if r.SourceID == nil {
		errs = append(errs, FieldError{Field: "source_id", Message: "required"})
	}
	return parseDate("transaction_date", r.TransactionDate, errs)
}

func (h *StagingHandler) Stage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	date, fields := req.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	st, err := h.staging.Stage(r.Context(), domain.StageRequest{
		SourceID:    *req.SourceID,
		Date:        date,
		Description: req.Description,
		Amount:      req.Amount,
		ExternalID:  req.ExternalID,
		AccountID:   req.AccountID,
		RawData:     req.RawData,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("staging failed", "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toStagedDTO(st))
}

func (h *StagingHandler) ListStaged(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := domain.StagedFilter{
		SourceID:  q.id("source_id"),
		StartDate: q.date("start_date"),
		EndDate:   q.date("end_date"),
	}
	if s := q.text("status"); s != nil {
		status := domain.StagedStatus(*s)
		f.Status = &status
	}
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	list, err := h.staging.ListStaged(r.Context(), f)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toStagedDTOs(list))
}

type assignAccountRequest struct {
	AccountID *uuid.UUID `json:"account_id"`
}

func (h *StagingHandler) AssignAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req assignAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.AccountID == nil {
		RespondValidationError(w, []FieldError{{Field: "account_id", Message: "required"}})
		return
	}

	st, err := h.staging.AssignAccount(r.Context(), id, *req.AccountID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toStagedDTO(st))
}

type processRequest struct {
	CounterpartAccountID *uuid.UUID `json:"counterpart_account_id"`
}

func (r processRequest) Validate() []FieldError {
	if r.CounterpartAccountID == nil {
		return []FieldError{{Field: "counterpart_account_id", Message: "required"}}
	}
	return nil
}

func (h *StagingHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.staging.ProcessStaged(r.Context(), id, *req.CounterpartAccountID, callerID(r))
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

type bulkRequest struct {
	IDs                  []uuid.UUID `json:"staged_transaction_ids"`
	CounterpartAccountID *uuid.UUID  `json:"counterpart_account_id"`
}

type bulkProcessDTO struct {
	Processed []transactionDTO     `json:"processed"`
	Failed    []domain.BulkFailure `json:"failed"`
}

func (h *StagingHandler) BulkProcess(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var fields []FieldError
	if len(req.IDs) == 0 {
		fields = append(fields, FieldError{Field: "staged_transaction_ids", Message: "required"})
	}
	if req.CounterpartAccountID == nil {
		fields = append(fields, FieldError{Field: "counterpart_account_id", Message: "required"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res := h.staging.BulkProcess(r.Context(), req.IDs, *req.CounterpartAccountID, callerID(r))
	out := bulkProcessDTO{Processed: make([]transactionDTO, len(res.Processed)), Failed: res.Failed}
	for i := range res.Processed {
		out.Processed[i] = toTransactionDTO(&res.Processed[i])
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *StagingHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if len(req.IDs) == 0 {
		RespondValidationError(w, []FieldError{{Field: "staged_transaction_ids", Message: "required"}})
		return
	}

	n, err := h.staging.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]int64{"deleted": n})
}

func callerID(r *http.Request) *uuid.UUID {
	if id, ok := auth.CallerID(r.Context()); ok {
		return &id
	}
	return nil
}
