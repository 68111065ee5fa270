package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tracelite/pkg/database"
	"tracelite/pkg/logger"
	"tracelite/pkg/redis"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db          *database.PostgresDB
	redisClient *redis.Client
	logger      *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"postgres": "ok",
		"redis":    "ok",
	}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		h.logger.WithError(err).Warn("Database health check failed")
		checks["postgres"] = "unavailable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	if err := h.redisClient.Health(ctx); err != nil {
		h.logger.WithError(err).Warn("Redis health check failed")
		checks["redis"] = "unavailable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   "tracelite",
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode health check response")
	}
}
