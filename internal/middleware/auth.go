package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "tracelite/pkg/errors"
	"tracelite/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// StatsAuth validates HS256 bearer tokens on the stats read endpoint. The
// dashboard holds the shared secret; the public collection endpoint is not
// gated by this middleware.
func StatsAuth(secret string, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Authorization header is required", logger)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "Invalid authorization header format", logger)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				writeAuthError(w, "Token is required", logger)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.WithError(err).Debug("Stats token validation failed")
				writeAuthError(w, "Invalid or expired token", logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string, logger *logger.Logger) {
	appErr := apperrors.NewAuthenticationError(message)

	response := map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"type":    string(appErr.Type),
			"message": appErr.Message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode auth error response")
	}
}
