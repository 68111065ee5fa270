package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyRateLimit keys the fixed-window request counter for one site and one
// hashed client IP. The raw IP never appears in a key.
func (kb *KeyBuilder) KeyRateLimit(siteID, ipHash string) string {
	return kb.BuildKey(fmt.Sprintf("ratelimit:%s:%s", siteID, ipHash))
}

// KeyPageviewsDaily keys the per-site daily pageview counter
func (kb *KeyBuilder) KeyPageviewsDaily(siteID, date string) string {
	return kb.BuildKey(fmt.Sprintf("pageviews:%s:%s", siteID, date))
}

// KeyVisitorsDaily keys the per-site daily unique-visitor set
func (kb *KeyBuilder) KeyVisitorsDaily(siteID, date string) string {
	return kb.BuildKey(fmt.Sprintf("visitors:%s:%s", siteID, date))
}

// KeyQuotaMonthly keys the per-site monthly event counter used for quota
// enforcement, month formatted 2006-01
func (kb *KeyBuilder) KeyQuotaMonthly(siteID, month string) string {
	return kb.BuildKey(fmt.Sprintf("quota:%s:%s", siteID, month))
}

// KeyCustom builds an arbitrary prefixed key
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	return kb.BuildKey(fmt.Sprintf(pattern, args...))
}
