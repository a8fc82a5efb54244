package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func TestIssueAndValidate(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	userID := uuid.New()

	raw, expiresAt, err := tokens.Issue(userID, "owner@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tokens.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims tokenClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidate_Rejects(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	userID := uuid.New()
	valid, _, err := tokens.Issue(userID, "a@example.com")
	require.NoError(t, err)

	expired, _, err := NewTokens(testSecret, -time.Hour).Issue(userID, "a@example.com")
	require.NoError(t, err)

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name      string
		token     string
		tokens    *Tokens
		wantErrIs error
	}{
		{"expired", expired, tokens, jwt.ErrTokenExpired},
		{"wrong secret", valid, NewTokens("other-secret", time.Hour), jwt.ErrTokenSignatureInvalid},
		{"malformed", "not.a.jwt", tokens, jwt.ErrTokenMalformed},
		{"empty", "", tokens, jwt.ErrTokenMalformed},
		{
			"foreign issuer",
			sign(t, jwt.SigningMethodHS256, []byte(testSecret), tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "someone-else", Subject: userID.String(), ExpiresAt: future,
			}}),
			tokens, jwt.ErrTokenInvalidIssuer,
		},
		{
			"no expiry",
			sign(t, jwt.SigningMethodHS256, []byte(testSecret), tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: Issuer, Subject: userID.String(),
			}}),
			tokens, jwt.ErrTokenRequiredClaimMissing,
		},
		{
			"alg none",
			sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: Issuer, Subject: userID.String(), ExpiresAt: future,
			}}),
			tokens, jwt.ErrTokenSignatureInvalid,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.tokens.Validate(tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidate_BadSubject(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer: Issuer, Subject: "not-a-uuid", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	_, err := tokens.Validate(raw)
	require.Error(t, err)
}

func TestCallerContext(t *testing.T) {
	_, ok := CallerID(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	ctx := WithCaller(context.Background(), Claims{UserID: id, Email: "a@example.com"})
	got, ok := CallerID(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	c, _ := Caller(ctx)
	assert.Equal(t, "a@example.com", c.Email)
}
