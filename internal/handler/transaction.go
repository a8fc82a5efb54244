package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
	"github.com/josh-kwaku/ledgerbook/internal/service/ledger"
)

type entryLister interface {
	ListEntries(ctx context.Context, f repository.EntryFilter) ([]domain.JournalEntry, error)
}

type ledgerService interface {
	entryLister
	PostTransaction(ctx context.Context, req ledger.PostRequest) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, start, end *time.Time) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, req ledger.UpdateRequest) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateEntry(ctx context.Context, entryID uuid.UUID, in domain.EntryInput) (*domain.JournalEntry, error)
	DeleteEntry(ctx context.Context, entryID uuid.UUID) (bool, error)
}

type TransactionHandler struct {
	ledger ledgerService
}

func NewTransactionHandler(ledger ledgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

type entryRequest struct {
	AccountID    *uuid.UUID      `json:"account_id"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

func (e entryRequest) input() domain.EntryInput {
	in := domain.EntryInput{DebitAmount: e.DebitAmount, CreditAmount: e.CreditAmount}
	if e.AccountID != nil {
		in.AccountID = *e.AccountID
	}
	return in
}

type transactionRequest struct {
	TransactionDate string         `json:"transaction_date"`
	Description     string         `json:"description"`
	Status          string         `json:"status"`
	Entries         []entryRequest `json:"entries"`
}

func (r transactionRequest) Validate() (time.Time, []FieldError) {
	date, errs := parseDate("transaction_date", r.TransactionDate, nil)
	if r.Status != "" && !domain.TransactionStatus(r.Status).IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "must be pending, completed, or void"})
	}
	return date, errs
}

func (r transactionRequest) inputs() []domain.EntryInput {
	out := make([]domain.EntryInput, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.input()
	}
	return out
}

type entryDTO struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	DebitAmount   string    `json:"debit_amount"`
	CreditAmount  string    `json:"credit_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

func toEntryDTO(e *domain.JournalEntry) entryDTO {
	return entryDTO{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		AccountID:     e.AccountID,
		DebitAmount:   money(e.DebitAmount),
		CreditAmount:  money(e.CreditAmount),
		CreatedAt:     e.CreatedAt,
	}
}

type transactionDTO struct {
	ID                  uuid.UUID  `json:"id"`
	TransactionDate     string     `json:"transaction_date"`
	Description         string     `json:"description"`
	ReferenceNumber     string     `json:"reference_number"`
	Status              string     `json:"status"`
	Total               string     `json:"total"`
	StagedTransactionID *uuid.UUID `json:"staged_transaction_id"`
	CreatedBy           *uuid.UUID `json:"created_by"`
	Entries             []entryDTO `json:"entries"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	debits, _ := t.Totals()
	entries := make([]entryDTO, len(t.Entries))
	for i := range t.Entries {
		entries[i] = toEntryDTO(&t.Entries[i])
	}
	return transactionDTO{
		ID:                  t.ID,
		TransactionDate:     formatDate(t.Date),
		Description:         t.Description,
		ReferenceNumber:     t.ReferenceNumber,
		Status:              string(t.Status),
		Total:               money(debits),
		StagedTransactionID: t.StagedTransactionID,
		CreatedBy:           t.CreatedBy,
		Entries:             entries,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	date, fields := req.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	txn, err := h.ledger.PostTransaction(r.Context(), ledger.PostRequest{
		Date:        date,
		Description: req.Description,
		Status:      domain.TransactionStatus(req.Status),
		Entries:     req.inputs(),
		CreatedBy:   callerID(r),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction posting failed", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transactions/%s", txn.ID))
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	start, end := q.date("start_date"), q.date("end_date")
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	txns, err := h.ledger.ListTransactions(r.Context(), start, end)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]transactionDTO, len(txns))
	for i := range txns {
		dtos[i] = toTransactionDTO(&txns[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	txn, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	date, fields := req.Validate()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	update := ledger.UpdateRequest{
		Date:        date,
		Description: req.Description,
		Entries:     req.inputs(),
	}
	if req.Status != "" {
		status := domain.TransactionStatus(req.Status)
		update.Status = &status
	}

	txn, err := h.ledger.UpdateTransaction(r.Context(), id, update)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transaction update failed", "transaction_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	deleted, err := h.ledger.DeleteTransaction(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("transaction delete failed", "transaction_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	if !deleted {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *TransactionHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := repository.EntryFilter{
		AccountID: q.id("account_id"),
		StartDate: q.date("start_date"),
		EndDate:   q.date("end_date"),
	}
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}
	respondEntries(w, r, h.ledger, f)
}

func (h *TransactionHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.AccountID == nil {
		RespondValidationError(w, []FieldError{{Field: "account_id", Message: "required"}})
		return
	}

	entry, err := h.ledger.UpdateEntry(r.Context(), id, req.input())
	if err != nil {
		logging.FromContext(r.Context()).Warn("journal entry update failed", "entry_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toEntryDTO(entry))
}

func (h *TransactionHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	deleted, err := h.ledger.DeleteEntry(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("journal entry delete failed", "entry_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	if !deleted {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

func respondEntries(w http.ResponseWriter, r *http.Request, entries entryLister, f repository.EntryFilter) {
	list, err := entries.ListEntries(r.Context(), f)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]entryDTO, len(list))
	for i := range list {
		dtos[i] = toEntryDTO(&list[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
