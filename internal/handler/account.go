package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
	"github.com/josh-kwaku/ledgerbook/internal/service"
)

type accountService interface {
	CreateAccount(ctx context.Context, req service.CreateAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, f repository.AccountFilter) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, req service.UpdateAccountRequest) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) (bool, error)
}

type balanceService interface {
	AccountBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error)
	AccountBalances(ctx context.Context, f repository.BalanceFilter) (map[uuid.UUID]decimal.Decimal, error)
}

type AccountHandler struct {
	accounts accountService
	balances balanceService
	entries  entryLister
}

func NewAccountHandler(accounts accountService, balances balanceService, entries entryLister) *AccountHandler {
	return &AccountHandler{accounts: accounts, balances: balances, entries: entries}
}

type accountRequest struct {
	CategoryID  *uuid.UUID `json:"category_id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description *string    `json:"description"`
	IsActive    *bool      `json:"is_active"`
}

func (r accountRequest) Validate(typeRequired bool) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	switch {
	case r.Type == "" && typeRequired:
		errs = append(errs, FieldError{Field: "type", Message: "required"})
	case r.Type != "" && !domain.AccountType(r.Type).IsValid():
		errs = append(errs, FieldError{Field: "type", Message: "must be asset, liability, equity, income, or expense"})
	}
	return errs
}

func (r accountRequest) active() bool {
	return r.IsActive == nil || *r.IsActive
}

type accountDTO struct {
	ID          uuid.UUID  `json:"id"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Code        string     `json:"code"`
	Description *string    `json:"description"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:          a.ID,
		CategoryID:  a.CategoryID,
		Name:        a.Name,
		Type:        string(a.Type),
		Code:        a.Code,
		Description: a.Description,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type balanceDTO struct {
	AccountID uuid.UUID `json:"account_id"`
	AsOf      *string   `json:"as_of"`
	Balance   string    `json:"balance"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(true); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), service.CreateAccountRequest{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Type:        domain.AccountType(req.Type),
		Description: req.Description,
		IsActive:    req.active(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("account creation failed", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s", account.ID))
	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := repository.AccountFilter{
		CategoryID: q.id("category_id"),
		ActiveOnly: q.flag("active_only"),
	}
	if t := q.text("type"); t != nil {
		typ := domain.AccountType(*t)
		f.Type = &typ
	}
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), f)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(false); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), id, service.UpdateAccountRequest{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Type:        domain.AccountType(req.Type),
		Description: req.Description,
		IsActive:    req.active(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("account update failed", "account_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	deleted, err := h.accounts.DeleteAccount(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("account delete failed", "account_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	if !deleted {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	q := newQueryParams(r)
	asOf := q.date("as_of")
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	balance, err := h.balances.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, balanceDTO{AccountID: id, AsOf: formatDatePtr(asOf), Balance: money(balance)})
}

func (h *AccountHandler) Balances(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := repository.BalanceFilter{
		AsOf:       q.date("as_of"),
		CategoryID: q.id("category_id"),
	}
	if t := q.text("type"); t != nil {
		typ := domain.AccountType(*t)
		f.Type = &typ
	}
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}

	balances, err := h.balances.AccountBalances(r.Context(), f)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	out := make(map[string]string, len(balances))
	for id, b := range balances {
		out[id.String()] = money(b)
	}
	RespondSuccess(w, http.StatusOK, map[string]any{
		"as_of":    formatDatePtr(f.AsOf),
		"balances": out,
	})
}

func (h *AccountHandler) JournalEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	if _, err := h.accounts.GetAccount(r.Context(), id); err != nil {
		RespondDomainError(w, r, err)
		return
	}

	q := newQueryParams(r)
	f := repository.EntryFilter{
		AccountID: &id,
		StartDate: q.date("start_date"),
		EndDate:   q.date("end_date"),
	}
	if len(q.errs) > 0 {
		RespondValidationError(w, q.errs)
		return
	}
	respondEntries(w, r, h.entries, f)
}
