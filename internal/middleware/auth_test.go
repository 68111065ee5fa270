package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelite/pkg/logger"
)

const testSecret = "stats-secret"

func signToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func statsRequest(authorization string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/api/sites/site-1/stats", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return httptest.NewRecorder(), req
}

func TestStatsAuth(t *testing.T) {
	protected := StatsAuth(testSecret, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes", func(t *testing.T) {
		rec, req := statsRequest("Bearer " + signToken(t, testSecret, time.Now().Add(time.Hour)))
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		rec, req := statsRequest("")
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":{"type":"authentication","message":"Authorization header is required"}}`, rec.Body.String())
	})

	t.Run("non-bearer scheme rejected", func(t *testing.T) {
		rec, req := statsRequest("Basic abc123")
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		rec, req := statsRequest("Bearer " + signToken(t, "other-secret", time.Now().Add(time.Hour)))
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		rec, req := statsRequest("Bearer " + signToken(t, testSecret, time.Now().Add(-time.Hour)))
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
