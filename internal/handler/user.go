package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/domain"
)

type userGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type UserHandler struct {
	users userGetter
}

func NewUserHandler(users userGetter) *UserHandler {
	return &UserHandler{users: users}
}

type sessionDTO struct {
	User           userDTO   `json:"user"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// Me describes the caller and the session their token grants.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.Caller(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	if !user.CanLogin() {
		RespondAppError(w, ErrInvalidToken.WithMessage("Account is suspended"), nil)
		return
	}

	RespondSuccess(w, http.StatusOK, sessionDTO{
		User:           toUserDTO(user),
		TokenExpiresAt: claims.ExpiresAt,
	})
}
