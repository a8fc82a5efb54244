package handler

import "net/http"

// AppError is an error with a fixed HTTP status and a stable code clients
// can switch on.
type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Code + ": " + e.Message }

// WithMessage keeps the status and code but replaces the client-facing message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{Status: e.Status, Code: e.Code, Message: msg}
}

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrInvalidSignature   = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}

	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrPayloadTooLarge  = &AppError{http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrDuplicate        = &AppError{http.StatusConflict, "DUPLICATE", "Resource already exists"}

	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}

	ErrInternalError   = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrStorageFailure  = &AppError{http.StatusInternalServerError, "STORAGE_FAILURE", "The ledger store failed; nothing was written"}
	ErrUpstreamFailure = &AppError{http.StatusBadGateway, "UPSTREAM_FAILURE", "The bank aggregator request failed"}
)
