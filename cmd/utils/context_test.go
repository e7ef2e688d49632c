package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret string, subject string, ttl time.Duration) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"

	var gotID uint
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotID = id
	})
	handler := AuthMiddleware(secret)(next)

	run := func(authorization string) *httptest.ResponseRecorder {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("valid token passes the identity through", func(t *testing.T) {
		rr := run("Bearer " + signedToken(t, secret, "42", time.Hour))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, called)
		assert.Equal(t, uint(42), gotID)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := run("")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})

	t.Run("malformed token", func(t *testing.T) {
		rr := run("Bearer not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rr := run("Bearer " + signedToken(t, "other-secret", "42", time.Hour))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})

	t.Run("expired token", func(t *testing.T) {
		rr := run("Bearer " + signedToken(t, secret, "42", -time.Hour))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})

	t.Run("non-numeric subject", func(t *testing.T) {
		rr := run("Bearer " + signedToken(t, secret, "forty-two", time.Hour))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, called)
	})
}

func TestGetUserIDFromContext(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.Error(t, err)

	ctx := context.WithValue(context.Background(), UserIDKey, uint(7))
	id, err := GetUserIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	// A value of the wrong type is treated as absent.
	ctx = context.WithValue(context.Background(), UserIDKey, "7")
	_, err = GetUserIDFromContext(ctx)
	assert.Error(t, err)
}
