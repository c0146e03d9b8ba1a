package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = r.Context().Value(UserIDKey).(string)
	})
	handler := AuthMiddleware(cfg)(next)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/plans", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", "treasurer@example.org"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "treasurer@example.org", gotUser)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/plans", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/plans", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other", "treasurer@example.org"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
