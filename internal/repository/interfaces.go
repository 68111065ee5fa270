package repository

import (
	"context"

	"tracelite/internal/domain"
)

// PageviewRepository defines the interface for persisted pageview records.
// Records are append-only; there is no update or delete path in the
// ingestion core (retention is enforced by external infrastructure).
type PageviewRepository interface {
	// InsertBatch persists a batch of records in arrival order
	InsertBatch(ctx context.Context, records []*domain.PageviewRecord) error

	// CountBySiteAndDay returns the number of records persisted for a site
	// on a given UTC date (2006-01-02)
	CountBySiteAndDay(ctx context.Context, siteID, date string) (int64, error)
}
