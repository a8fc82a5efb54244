package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

type categoryService interface {
	CreateCategory(ctx context.Context, name string, description *string) (*domain.AccountCategory, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.AccountCategory, error)
	ListCategories(ctx context.Context) ([]domain.AccountCategory, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name string, description *string) (*domain.AccountCategory, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (bool, error)
}

type CategoryHandler struct {
	categories categoryService
}

func NewCategoryHandler(categories categoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (r categoryRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	return errs
}

type categoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCategoryDTO(c *domain.AccountCategory) categoryDTO {
	return categoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

func (h *CategoryHandler) decode(w http.ResponseWriter, r *http.Request) (categoryRequest, bool) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return req, false
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return req, false
	}
	return req, true
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	c, err := h.categories.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		logging.FromContext(r.Context()).Warn("category creation failed", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/categories/%s", c.ID))
	RespondSuccess(w, http.StatusCreated, toCategoryDTO(c))
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.ListCategories(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list categories", "error", err)
		RespondDomainError(w, r, err)
		return
	}

	dtos := make([]categoryDTO, len(cats))
	for i := range cats {
		dtos[i] = toCategoryDTO(&cats[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	c, err := h.categories.GetCategory(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCategoryDTO(c))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	c, err := h.categories.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if err != nil {
		logging.FromContext(r.Context()).Warn("category update failed", "category_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCategoryDTO(c))
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	deleted, err := h.categories.DeleteCategory(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("category delete failed", "category_id", id, "error", err)
		RespondDomainError(w, r, err)
		return
	}
	if !deleted {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}
