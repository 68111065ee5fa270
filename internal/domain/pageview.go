package domain

import (
	"time"
)

// TrackRequest is the wire payload accepted by POST /track. One request
// carries either a single object or a JSON array of these.
type TrackRequest struct {
	SiteID     string                 `json:"siteId"`
	Path       string                 `json:"path"`
	Referrer   string                 `json:"referrer,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Timestamp  int64                  `json:"timestamp,omitempty"` // unix milliseconds
	CustomData map[string]interface{} `json:"customData,omitempty"`
}

// PageviewRecord is the persisted unit. It is created once per accepted
// event and never mutated. VisitorID is the anonymized identity; the raw
// IP and user agent are discarded before this struct is built.
type PageviewRecord struct {
	ID         int64                  `json:"id" db:"id"`
	SiteID     string                 `json:"site_id" db:"site_id"`
	Path       string                 `json:"path" db:"path"`
	Referrer   string                 `json:"referrer" db:"referrer"`
	EventType  string                 `json:"event_type" db:"event_type"`
	VisitorID  string                 `json:"visitor_id" db:"visitor_id"`
	OccurredAt time.Time              `json:"occurred_at" db:"occurred_at"`
	CustomData map[string]interface{} `json:"custom_data" db:"custom_data"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// SiteStats represents live daily counters read back from Redis
type SiteStats struct {
	SiteID         string    `json:"site_id"`
	Date           string    `json:"date"`
	Pageviews      int64     `json:"pageviews"`
	UniqueVisitors int64     `json:"unique_visitors"`
	LastUpdated    time.Time `json:"last_updated"`
}

// RateLimitInfo represents the outcome of a rate-limit check
type RateLimitInfo struct {
	RequestCount int64         `json:"request_count"`
	Limit        int64         `json:"limit"`
	WindowStart  time.Time     `json:"window_start"`
	TTL          time.Duration `json:"ttl"`
	IsAllowed    bool          `json:"is_allowed"`
}
