package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const encodeFailureBody = `{"success":false,"data":null,"error":{"code":"INTERNAL_ERROR","message":"failed to encode response"}}` + "\n"

// RespondJSON marshals before writing the status line, so an unencodable
// payload still produces a well-formed 500.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailureBody))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{Success: true, Data: data})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Error: &APIError{Code: appErr.Code, Message: appErr.Message, Details: details},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps the domain error taxonomy onto HTTP statuses.
// Validation failures carry their reason as the message.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := ErrValidationFailed.Message
		if reason, ok := domain.ValidationReason(err); ok {
			msg = reason
		}
		RespondAppError(w, ErrValidationFailed.WithMessage(msg), nil)
	case errors.Is(err, domain.ErrNotFound):
		RespondAppError(w, ErrResourceNotFound, nil)
	case errors.Is(err, domain.ErrDuplicate):
		RespondAppError(w, ErrDuplicate, nil)
	case errors.Is(err, domain.ErrUnauthorized):
		RespondAppError(w, ErrInvalidCredentials, nil)
	case errors.Is(err, domain.ErrStorage):
		logging.FromContext(r.Context()).Error("storage failure", "error", err)
		RespondAppError(w, ErrStorageFailure, nil)
	default:
		logging.FromContext(r.Context()).Error("unhandled error", "error", err)
		RespondAppError(w, ErrInternalError, nil)
	}
}
