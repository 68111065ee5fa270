package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port                 string
	AllowedOrigins       []string
	LogLevel             string
	DatabaseURL          string
	RedisURL             string
	Environment          string
	AnonymizationRootKey string
	RateLimitPerMinute   int64
	MonthlyEventQuota    int64
	StatsJWTSecret       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigins:       parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		Environment:          getEnv("ENVIRONMENT", "production"),
		AnonymizationRootKey: getEnv("ANONYMIZATION_ROOT_KEY", ""),
		RateLimitPerMinute:   getInt64Env("RATE_LIMIT_PER_MINUTE", 120),
		MonthlyEventQuota:    getInt64Env("MONTHLY_EVENT_QUOTA", 1_000_000),
		StatsJWTSecret:       getEnv("STATS_JWT_SECRET", ""),
	}

	// Without the root key every visitor id would be forgeable or, worse,
	// empty-salted. Refuse to boot.
	if cfg.AnonymizationRootKey == "" {
		return nil, fmt.Errorf("ANONYMIZATION_ROOT_KEY must be set")
	}

	return cfg, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getInt64Env gets an integer environment variable with a fallback value
func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
