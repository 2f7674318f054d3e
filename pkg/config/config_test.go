package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHCORE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.VersionCheckEnabled)
	assert.Equal(t, 300*time.Second, cfg.Auth.CacheTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.VersionTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTHCORE_JWT_SECRET", "secret")
	t.Setenv("AUTHCORE_CACHE_TTL", "2m")
	t.Setenv("AUTHCORE_VERSION_CHECK", "false")
	t.Setenv("AUTHCORE_REDIS_URL", "redis://localhost:6379")
	t.Setenv("AUTHCORE_REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Auth.CacheTTL)
	assert.False(t, cfg.Auth.VersionCheckEnabled)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("AUTHCORE_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestValidateProductionRequiresRedis(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Auth: AuthConfig{
			JWTSecret:           "secret",
			VersionCheckEnabled: true,
			CacheTTL:            time.Minute,
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL is required in production")
}

func TestValidateProductionRequiresVersionCheck(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Auth: AuthConfig{
			JWTSecret:           "secret",
			VersionCheckEnabled: false,
			CacheTTL:            time.Minute,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version checking")
}

func TestValidateProductionComplete(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Auth: AuthConfig{
			JWTSecret:           "secret",
			VersionCheckEnabled: true,
			CacheTTL:            time.Minute,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379"},
	}
	assert.NoError(t, cfg.Validate())
}
