package config

import (
	"os"
)

// Config holds process-level configuration loaded from environment variables.
// Provider descriptors, policy entries and the TTL table live in the YAML
// sources file (see sources.go); they are configuration, not code.
type Config struct {
	// Infrastructure
	HTTPAddr      string
	MetricsAddr   string
	RedisAddr     string // empty → in-memory cache
	RedisPassword string
	AuditDBPath   string

	// Source table
	SourcesPath string

	// Partner API credentials (only needed when the partner provider is in a chain)
	PartnerAPIKey     string
	PartnerClientCode string
	PartnerPassword   string
	PartnerTOTPSecret string

	// Live feed
	FeedSubjects string // comma-separated "subject:stream" pairs
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		AuditDBPath:   getEnv("AUDIT_DB_PATH", "data/audit.db"),

		SourcesPath: getEnv("SOURCES_PATH", "config/sources.yaml"),

		PartnerAPIKey:     getEnv("PARTNER_API_KEY", ""),
		PartnerClientCode: getEnv("PARTNER_CLIENT_CODE", ""),
		PartnerPassword:   getEnv("PARTNER_PASSWORD", ""),
		PartnerTOTPSecret: getEnv("PARTNER_TOTP_SECRET", ""),

		FeedSubjects: getEnv("FEED_SUBJECTS", "bitcoin:btcusdt"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
