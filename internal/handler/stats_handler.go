package handler

import (
	"encoding/json"
	"net/http"

	"tracelite/internal/service"
	"tracelite/pkg/errors"
	"tracelite/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// StatsHandler serves live daily counters to the external dashboard
type StatsHandler struct {
	ingestService service.IngestService
	logger        *logger.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(ingestService service.IngestService, logger *logger.Logger) *StatsHandler {
	return &StatsHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// StatsResponse represents the response for site statistics
type StatsResponse struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GetStats handles GET /api/sites/{siteID}/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := chi.URLParam(r, "siteID")

	stats, err := h.ingestService.GetStats(ctx, siteID)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			h.sendErrorResponse(w, appErr.StatusCode, string(appErr.Type), appErr.Message)
			return
		}
		h.logger.WithError(err).Error("Failed to get site stats")
		h.sendErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to get site stats")
		return
	}

	response := StatsResponse{
		Success: true,
		Data:    stats,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode stats response")
	}
}

// sendErrorResponse sends a standardized error response
func (h *StatsHandler) sendErrorResponse(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := StatsResponse{
		Success: false,
		Error: &ErrorResponse{
			Type:    errorType,
			Message: message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}
