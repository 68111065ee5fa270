package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelite/internal/domain"
	"tracelite/pkg/errors"
	"tracelite/pkg/logger"
)

// stubIngest records what the handler passed through and returns canned
// results
type stubIngest struct {
	info   *domain.RateLimitInfo
	err    error
	events []domain.TrackRequest
	ip     string
	ua     string
}

func (s *stubIngest) Ingest(ctx context.Context, events []domain.TrackRequest, ipAddress, userAgent string) (*domain.RateLimitInfo, error) {
	s.events = events
	s.ip = ipAddress
	s.ua = userAgent
	return s.info, s.err
}

func (s *stubIngest) GetStats(ctx context.Context, siteID string) (*domain.SiteStats, error) {
	return nil, errors.NewNotFoundError("not implemented")
}

func allowedInfo() *domain.RateLimitInfo {
	return &domain.RateLimitInfo{
		RequestCount: 1,
		Limit:        120,
		WindowStart:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
		TTL:          time.Minute,
		IsAllowed:    true,
	}
}

func postTrack(t *testing.T, h *TrackHandler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader(body))
	req.RemoteAddr = "192.0.2.4:51234"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.Track(rec, req)
	return rec
}

func TestTrackSingleEvent(t *testing.T) {
	stub := &stubIngest{info: allowedInfo()}
	h := NewTrackHandler(stub, logger.NewNop())

	rec := postTrack(t, h, `{"siteId":"site-1","path":"/home","referrer":"https://search.example"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	require.Len(t, stub.events, 1)
	assert.Equal(t, "site-1", stub.events[0].SiteID)
	assert.Equal(t, "/home", stub.events[0].Path)
	assert.Equal(t, "Mozilla/5.0", stub.ua)
}

func TestTrackBatch(t *testing.T) {
	stub := &stubIngest{info: allowedInfo()}
	h := NewTrackHandler(stub, logger.NewNop())

	body := `[
		{"siteId":"site-1","path":"/a"},
		{"siteId":"site-1","path":"/b","type":"click","customData":{"button":"signup"}}
	]`
	rec := postTrack(t, h, body, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.events, 2)
	assert.Equal(t, "click", stub.events[1].Type)
	assert.Equal(t, "signup", stub.events[1].CustomData["button"])
}

func TestTrackMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace only", "   "},
		{"broken object", `{"siteId":`},
		{"broken array", `[{"siteId":"site-1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubIngest{info: allowedInfo()}
			h := NewTrackHandler(stub, logger.NewNop())

			rec := postTrack(t, h, tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, stub.events)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestTrackValidationError(t *testing.T) {
	stub := &stubIngest{
		info: allowedInfo(),
		err:  errors.NewValidationError("path is required", nil),
	}
	h := NewTrackHandler(stub, logger.NewNop())

	rec := postTrack(t, h, `{"siteId":"site-1"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"path is required"}`, rec.Body.String())
}

func TestTrackRateLimited(t *testing.T) {
	info := allowedInfo()
	info.RequestCount = 121
	info.IsAllowed = false

	stub := &stubIngest{
		info: info,
		err:  errors.NewRateLimitError("rate limit exceeded"),
	}
	h := NewTrackHandler(stub, logger.NewNop())

	rec := postTrack(t, h, `{"siteId":"site-1","path":"/home"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestTrackRateLimitHeadersOnSuccess(t *testing.T) {
	info := allowedInfo()
	info.RequestCount = 5

	stub := &stubIngest{info: info}
	h := NewTrackHandler(stub, logger.NewNop())

	rec := postTrack(t, h, `{"siteId":"site-1","path":"/home"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "115", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTrackPrivacyRejection(t *testing.T) {
	stub := &stubIngest{
		info: allowedInfo(),
		err:  errors.NewPrivacyError("customData contains values resembling personal data"),
	}
	h := NewTrackHandler(stub, logger.NewNop())

	rec := postTrack(t, h, `{"siteId":"site-1","path":"/home","customData":{"contact":"user@example.com"}}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// the rejected value never echoes back
	assert.NotContains(t, resp["error"], "user@example.com")
}

func TestGetRealIPAddress(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"remote addr fallback", nil, "192.0.2.4"},
		{"cloudflare header", map[string]string{"CF-Connecting-IP": "203.0.113.9"}, "203.0.113.9"},
		{"forwarded for single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"forwarded for chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubIngest{info: allowedInfo()}
			h := NewTrackHandler(stub, logger.NewNop())

			rec := postTrack(t, h, `{"siteId":"site-1","path":"/home"}`, tt.header)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, stub.ip)
		})
	}
}
