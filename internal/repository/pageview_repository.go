package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tracelite/internal/domain"
	"tracelite/pkg/database"

	"github.com/jackc/pgx/v5"
)

// pageviewRepository handles pageview persistence with PostgreSQL
type pageviewRepository struct {
	db *database.PostgresDB
}

// NewPageviewRepository creates a new pageview repository
func NewPageviewRepository(db *database.PostgresDB) PageviewRepository {
	return &pageviewRepository{
		db: db,
	}
}

// InsertBatch persists a batch of pageview records using a single pgx
// batch round trip. Inserts are independent and append-only, so there is
// no conflict handling.
func (r *pageviewRepository) InsertBatch(ctx context.Context, records []*domain.PageviewRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO pageviews (site_id, path, referrer, event_type, visitor_id, occurred_at, custom_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, record := range records {
		customData, err := json.Marshal(record.CustomData)
		if err != nil {
			return fmt.Errorf("failed to marshal custom data: %w", err)
		}
		batch.Queue(query,
			record.SiteID,
			record.Path,
			record.Referrer,
			record.EventType,
			record.VisitorID,
			record.OccurredAt,
			customData,
			record.CreatedAt,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert pageview record: %w", err)
		}
	}

	return nil
}

// CountBySiteAndDay returns the persisted record count for a site and UTC date
func (r *pageviewRepository) CountBySiteAndDay(ctx context.Context, siteID, date string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM pageviews
		WHERE site_id = $1 AND occurred_at::date = $2::date
	`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query, siteID, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pageviews: %w", err)
	}

	return count, nil
}
