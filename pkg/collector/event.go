package collector

import (
	"time"
)

// Event is one user-observable occurrence. Events are immutable once
// created and owned by the queue until handed to a Batch.
type Event struct {
	Type       string                 `json:"type,omitempty"`
	Path       string                 `json:"path"`
	Referrer   string                 `json:"referrer,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Timestamp  int64                  `json:"timestamp,omitempty"` // unix milliseconds
	Attributes map[string]interface{} `json:"customData,omitempty"`
}

// Batch is an ordered group of events sent together in one delivery
// attempt. A batch is consumed exactly once successfully, retried up to a
// configured maximum, or discarded.
type Batch struct {
	Events     []Event
	RetryCount int
	CreatedAt  time.Time
}

// wireEvent is the payload shape of the collection endpoint
type wireEvent struct {
	SiteID     string                 `json:"siteId"`
	Path       string                 `json:"path"`
	Referrer   string                 `json:"referrer,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Timestamp  int64                  `json:"timestamp,omitempty"`
	CustomData map[string]interface{} `json:"customData,omitempty"`
}

func toWire(siteID string, events []Event) []wireEvent {
	wire := make([]wireEvent, 0, len(events))
	for _, e := range events {
		wire = append(wire, wireEvent{
			SiteID:     siteID,
			Path:       e.Path,
			Referrer:   e.Referrer,
			URL:        e.URL,
			Type:       e.Type,
			Timestamp:  e.Timestamp,
			CustomData: e.Attributes,
		})
	}
	return wire
}
