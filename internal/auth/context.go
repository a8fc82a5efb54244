package auth

import (
	"context"

	"github.com/google/uuid"
)

type callerKey struct{}

func WithCaller(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func Caller(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(callerKey{}).(Claims)
	return c, ok
}

// CallerID is the authenticated user id, if the request carried a valid token.
func CallerID(ctx context.Context) (uuid.UUID, bool) {
	c, ok := Caller(ctx)
	return c.UserID, ok
}
