package service

import (
	"context"

	"tracelite/internal/domain"
)

// IngestService defines the server-side ingestion stage: validation,
// rate limiting, anonymization, and persistence of incoming events.
type IngestService interface {
	// Ingest validates and persists a batch of events reported by one
	// client request. The raw IP and user agent are consumed for
	// anonymization and rate limiting only and are discarded before any
	// record is built.
	Ingest(ctx context.Context, events []domain.TrackRequest, ipAddress, userAgent string) (*domain.RateLimitInfo, error)

	// GetStats returns the live daily counters for a site
	GetStats(ctx context.Context, siteID string) (*domain.SiteStats, error)
}
