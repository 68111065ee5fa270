package service

import (
	"context"
	"fmt"
	"time"

	"tracelite/internal/domain"
	"tracelite/internal/repository"
	"tracelite/pkg/errors"
	"tracelite/pkg/logger"
	"tracelite/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

// Timestamp plausibility bounds. Client clocks skew; instead of rejecting
// events outside the window we clamp them to receipt time.
const (
	ClockSkewTolerance = 5 * time.Minute
	MaxEventAge        = 7 * 24 * time.Hour
)

// DefaultEventType is assumed when a payload does not name an event type
const DefaultEventType = "pageview"

// ingestService implements IngestService on PostgreSQL and Redis
type ingestService struct {
	repo         repository.PageviewRepository
	redisClient  *redis.Client
	anonymizer   *Anonymizer
	logger       *logger.Logger
	rateLimit    int64
	monthlyQuota int64
	now          func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(
	repo repository.PageviewRepository,
	redisClient *redis.Client,
	anonymizer *Anonymizer,
	logger *logger.Logger,
	rateLimitPerMinute int64,
	monthlyQuota int64,
) IngestService {
	return &ingestService{
		repo:         repo,
		redisClient:  redisClient,
		anonymizer:   anonymizer,
		logger:       logger,
		rateLimit:    rateLimitPerMinute,
		monthlyQuota: monthlyQuota,
		now:          time.Now,
	}
}

// Ingest validates and persists one client batch
func (s *ingestService) Ingest(ctx context.Context, events []domain.TrackRequest, ipAddress, userAgent string) (*domain.RateLimitInfo, error) {
	if len(events) == 0 {
		return nil, errors.NewValidationError("request contains no events", nil)
	}

	siteID, err := validateBatch(events)
	if err != nil {
		return nil, err
	}

	rateLimitInfo, err := s.checkRateLimit(ctx, siteID, ipAddress)
	if err != nil {
		return nil, errors.NewInternalError("rate limit check failed", err)
	}
	if !rateLimitInfo.IsAllowed {
		return rateLimitInfo, errors.NewRateLimitError("rate limit exceeded")
	}

	if err := s.checkQuota(ctx, siteID, int64(len(events))); err != nil {
		return rateLimitInfo, err
	}

	receivedAt := s.now().UTC()

	// One request carries one visitor fingerprint: compute the anonymized
	// identity once, then drop the raw inputs.
	visitorID, err := s.anonymizer.VisitorID(ipAddress, userAgent, receivedAt)
	if err != nil {
		return rateLimitInfo, err
	}

	records := make([]*domain.PageviewRecord, 0, len(events))
	for _, event := range events {
		records = append(records, &domain.PageviewRecord{
			SiteID:     event.SiteID,
			Path:       event.Path,
			Referrer:   event.Referrer,
			EventType:  eventType(event),
			VisitorID:  visitorID,
			OccurredAt: clampTimestamp(event.Timestamp, receivedAt),
			CustomData: event.CustomData,
			CreatedAt:  receivedAt,
		})
	}

	if err := s.repo.InsertBatch(ctx, records); err != nil {
		s.logger.WithError(err).Error("Failed to persist pageview batch")
		return rateLimitInfo, errors.NewStorageError("failed to persist events", err)
	}

	if err := s.updateCounters(ctx, siteID, visitorID, int64(len(records)), receivedAt); err != nil {
		// Records are already durable; counter drift is tolerable and the
		// reporting layer reconciles from PostgreSQL.
		s.logger.WithError(err).Warn("Failed to update live counters")
	}

	s.logger.WithFields(map[string]interface{}{
		"site_id":      siteID,
		"events":       len(records),
		"visitor_hash": visitorID[:8] + "...",
	}).Debug("Batch ingested successfully")

	return rateLimitInfo, nil
}

// GetStats returns today's live counters for a site from Redis
func (s *ingestService) GetStats(ctx context.Context, siteID string) (*domain.SiteStats, error) {
	if siteID == "" {
		return nil, errors.NewValidationError("siteId is required", nil)
	}

	today := s.now().UTC().Format("2006-01-02")

	pageviews, err := s.redisClient.Get(ctx, s.redisClient.KeyBuilder.KeyPageviewsDaily(siteID, today))
	if err != nil && !isRedisNil(err) {
		return nil, errors.NewInternalError("failed to read pageview counter", err)
	}

	uniques, err := s.redisClient.SCard(ctx, s.redisClient.KeyBuilder.KeyVisitorsDaily(siteID, today))
	if err != nil {
		return nil, errors.NewInternalError("failed to read unique visitor set", err)
	}

	return &domain.SiteStats{
		SiteID:         siteID,
		Date:           today,
		Pageviews:      parseCounter(pageviews),
		UniqueVisitors: uniques,
		LastUpdated:    s.now().UTC(),
	}, nil
}

// checkRateLimit atomically counts the request against the fixed one-minute
// window for this site and hashed client IP. The counter lives in Redis so
// horizontally scaled instances share one window.
func (s *ingestService) checkRateLimit(ctx context.Context, siteID, ipAddress string) (*domain.RateLimitInfo, error) {
	key := s.redisClient.KeyBuilder.KeyRateLimit(siteID, IPHash(ipAddress))

	count, err := s.redisClient.Incr(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiry on first request in the window
	if count == 1 {
		if err := s.redisClient.Expire(ctx, key, redis.TTLRateLimitWindow); err != nil {
			s.logger.WithError(err).Warn("Failed to set rate limit key expiry")
		}
	}

	return &domain.RateLimitInfo{
		RequestCount: count,
		Limit:        s.rateLimit,
		WindowStart:  s.now().Truncate(redis.TTLRateLimitWindow),
		TTL:          redis.TTLRateLimitWindow,
		IsAllowed:    count <= s.rateLimit,
	}, nil
}

// checkQuota counts n events against the site's monthly quota. The counter
// may overshoot on the rejecting request; once exhausted every later batch
// is rejected anyway.
func (s *ingestService) checkQuota(ctx context.Context, siteID string, n int64) error {
	if s.monthlyQuota <= 0 {
		return nil
	}

	month := s.now().UTC().Format("2006-01")
	key := s.redisClient.KeyBuilder.KeyQuotaMonthly(siteID, month)

	total, err := s.redisClient.IncrBy(ctx, key, n)
	if err != nil {
		return errors.NewInternalError("failed to increment quota counter", err)
	}
	if total == n {
		if err := s.redisClient.Expire(ctx, key, redis.TTLQuotaMonthly); err != nil {
			s.logger.WithError(err).Warn("Failed to set quota key expiry")
		}
	}

	if total > s.monthlyQuota {
		return errors.NewQuotaError("monthly event quota exceeded")
	}
	return nil
}

// updateCounters maintains the live daily counters consumed by the stats
// endpoint and the external quota/dashboard layer
func (s *ingestService) updateCounters(ctx context.Context, siteID, visitorID string, n int64, receivedAt time.Time) error {
	date := receivedAt.Format("2006-01-02")

	pipe := s.redisClient.Pipeline()

	pageviewsKey := s.redisClient.KeyBuilder.KeyPageviewsDaily(siteID, date)
	pipe.IncrBy(ctx, pageviewsKey, n)
	pipe.Expire(ctx, pageviewsKey, redis.TTLDailyCounters)

	visitorsKey := s.redisClient.KeyBuilder.KeyVisitorsDaily(siteID, date)
	pipe.SAdd(ctx, visitorsKey, visitorID)
	pipe.Expire(ctx, visitorsKey, redis.TTLDailyCounters)

	_, err := pipe.Exec(ctx)
	return err
}

// validateBatch checks payload shape for every event and returns the
// batch's site id. The first invalid event rejects the whole batch so no
// partial persistence happens on client mistakes.
func validateBatch(events []domain.TrackRequest) (string, error) {
	siteID := events[0].SiteID

	for i, event := range events {
		if event.SiteID == "" {
			return "", errors.NewValidationError("siteId is required", map[string]interface{}{"index": i})
		}
		if event.SiteID != siteID {
			return "", errors.NewValidationError("all events in a batch must share one siteId", map[string]interface{}{"index": i})
		}
		if event.Path == "" {
			return "", errors.NewValidationError("path is required", map[string]interface{}{"index": i})
		}
		if scanForPII(event.CustomData) {
			return "", errors.NewPrivacyError("customData contains values resembling personal data")
		}
	}

	return siteID, nil
}

// clampTimestamp converts a client-supplied unix-millisecond timestamp to
// a UTC time, replacing absent or implausible values with receipt time
func clampTimestamp(millis int64, receivedAt time.Time) time.Time {
	if millis <= 0 {
		return receivedAt
	}

	t := time.UnixMilli(millis).UTC()
	if t.After(receivedAt.Add(ClockSkewTolerance)) {
		return receivedAt
	}
	if t.Before(receivedAt.Add(-MaxEventAge)) {
		return receivedAt
	}
	return t
}

func eventType(event domain.TrackRequest) string {
	if event.Type == "" {
		return DefaultEventType
	}
	return event.Type
}

func parseCounter(value string) int64 {
	var n int64
	_, _ = fmt.Sscanf(value, "%d", &n)
	return n
}

func isRedisNil(err error) bool {
	return err == goredis.Nil
}
