package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"

	"tracelite/internal/domain"
	"tracelite/internal/service"
	"tracelite/pkg/errors"
	"tracelite/pkg/logger"
)

// maxTrackBodyBytes bounds a single collection request body
const maxTrackBodyBytes = 1 << 20 // 1MB

// TrackHandler handles the event collection endpoint
type TrackHandler struct {
	ingestService service.IngestService
	logger        *logger.Logger
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(ingestService service.IngestService, logger *logger.Logger) *TrackHandler {
	return &TrackHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// trackErrorResponse is the wire error shape of the collection endpoint
type trackErrorResponse struct {
	Error string `json:"error"`
}

// trackSuccessResponse is the minimal acknowledgment; it deliberately never
// echoes the computed visitor id
type trackSuccessResponse struct {
	Success bool `json:"success"`
}

// Track handles POST /track. The body is either a single event object or a
// JSON array of events (one batch from the collector).
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events, appErr := decodeTrackBody(r)
	if appErr != nil {
		h.writeTrackError(w, appErr)
		return
	}

	ipAddress := getRealIPAddress(r)
	userAgent := r.UserAgent()

	rateLimitInfo, err := h.ingestService.Ingest(ctx, events, ipAddress, userAgent)
	if rateLimitInfo != nil {
		setRateLimitHeaders(w, rateLimitInfo)
	}
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			if appErr.Type == errors.ErrorTypeInternal || appErr.Type == errors.ErrorTypeStorage {
				h.logger.WithError(err).Error("Ingestion failed")
			}
			h.writeTrackError(w, appErr)
			return
		}
		h.logger.WithError(err).Error("Ingestion failed")
		h.writeTrackError(w, errors.NewInternalError("failed to record events", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(trackSuccessResponse{Success: true}); err != nil {
		h.logger.WithError(err).Error("Failed to encode track response")
	}
}

// decodeTrackBody parses the request body into a batch of events
func decodeTrackBody(r *http.Request) ([]domain.TrackRequest, *errors.AppError) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxTrackBodyBytes))
	if err != nil {
		return nil, errors.NewValidationError("request body unreadable or too large", nil)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.NewValidationError("request body is empty", nil)
	}

	if trimmed[0] == '[' {
		var events []domain.TrackRequest
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, errors.NewValidationError("malformed JSON array", nil)
		}
		return events, nil
	}

	var event domain.TrackRequest
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, errors.NewValidationError("malformed JSON payload", nil)
	}
	return []domain.TrackRequest{event}, nil
}

// writeTrackError writes the collection endpoint's wire error format. The
// structured error never carries the visitor id, IP, or user agent.
func (h *TrackHandler) writeTrackError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(trackErrorResponse{Error: appErr.Message}); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// setRateLimitHeaders sets standard rate limit headers
func setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	remaining := info.Limit - info.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.WindowStart.Add(info.TTL).Unix(), 10))
}

// getRealIPAddress extracts the real IP address from the request
func getRealIPAddress(r *http.Request) string {
	// Check for IP in various headers (in order of preference)
	headers := []string{
		"CF-Connecting-IP", // Cloudflare
		"X-Forwarded-For",  // Standard proxy header
		"X-Real-IP",        // Nginx proxy
		"X-Client-IP",      // Apache proxy
	}

	for _, header := range headers {
		if ip := r.Header.Get(header); ip != "" {
			// X-Forwarded-For can contain multiple IPs, take the first one
			if header == "X-Forwarded-For" {
				if firstIP := getFirstIP(ip); firstIP != "" {
					return firstIP
				}
			} else {
				return ip
			}
		}
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// getFirstIP extracts the first IP from a comma-separated list
func getFirstIP(ips string) string {
	for i, char := range ips {
		if char == ',' || char == ' ' {
			return ips[:i]
		}
	}
	return ips
}
