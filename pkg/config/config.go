// Package config loads authorization pipeline configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lnkday/authcore/pkg/observability"
)

// Config holds all pipeline configuration.
type Config struct {
	// Environment names the deployment tier: "development", "staging",
	// or "production".
	Environment string

	Auth  AuthConfig
	Redis RedisConfig

	LogLevel observability.LogLevel
}

// AuthConfig holds credential verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer credentials.
	JWTSecret string

	// InternalServiceToken is the pre-shared secret for trusted internal
	// callers. Empty disables the internal-service credential.
	InternalServiceToken string

	// VersionCheckEnabled turns on fast revocation via the permission
	// version store.
	VersionCheckEnabled bool

	// CacheTTL bounds permission cache staleness.
	CacheTTL time.Duration

	// VersionTTL bounds version counter lifetime.
	VersionTTL time.Duration
}

// RedisConfig holds the cache and version store connection settings. An
// empty URL disables both: permissions resolve uncached and revocation
// degrades to credential expiry.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// Load reads configuration from AUTHCORE_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("AUTHCORE_ENV", "development"),
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTHCORE_JWT_SECRET", ""),
			InternalServiceToken: getEnv("AUTHCORE_INTERNAL_TOKEN", ""),
			VersionCheckEnabled:  getEnvBool("AUTHCORE_VERSION_CHECK", true),
			CacheTTL:             getEnvDuration("AUTHCORE_CACHE_TTL", 300*time.Second),
			VersionTTL:           getEnvDuration("AUTHCORE_VERSION_TTL", 30*24*time.Hour),
		},
		Redis: RedisConfig{
			URL:        getEnv("AUTHCORE_REDIS_URL", ""),
			Password:   getEnv("AUTHCORE_REDIS_PASSWORD", ""),
			DB:         getEnvInt("AUTHCORE_REDIS_DB", 0),
			PoolSize:   getEnvInt("AUTHCORE_REDIS_POOL_SIZE", 10),
			MaxRetries: getEnvInt("AUTHCORE_REDIS_MAX_RETRIES", 3),
		},
		LogLevel: observability.ParseLogLevel(getEnv("AUTHCORE_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for deployment mistakes. Production
// refuses the degraded no-revocation mode rather than running it
// silently.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Auth.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.IsProduction() {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required in production: running without a version store disables revocation")
		}
		if !c.Auth.VersionCheckEnabled {
			return fmt.Errorf("version checking must stay enabled in production")
		}
	}
	return nil
}

// IsProduction reports whether the deployment tier is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
