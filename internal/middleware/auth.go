package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/ledgerbook/internal/auth"
	"github.com/josh-kwaku/ledgerbook/internal/handler"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

type tokenValidator interface {
	Validate(raw string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and puts the caller's
// claims in the request context.
func Auth(tokens tokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.callerID = claims.UserID
			}
			ctx := auth.WithCaller(r.Context(), *claims)
			ctx = logging.With(ctx, "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
