// Package permissions computes and caches a principal's effective
// permission set and tracks the per-principal version counters used for
// instant revocation.
package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lnkday/authcore/pkg/principal"
)

const (
	permissionKeyPrefix = "authz:perms:"
	versionKeyPrefix    = "authz:permver:"
)

// CacheStore holds resolved permission sets with a TTL. Absence of a
// cache makes resolution slower but equally strict.
type CacheStore interface {
	// GetPermissions returns the cached permission list for a key and
	// whether the key was present.
	GetPermissions(ctx context.Context, key string) ([]principal.Permission, bool, error)

	// SetPermissions stores a permission list under a key with a TTL.
	SetPermissions(ctx context.Context, key string, perms []principal.Permission, ttl time.Duration) error

	// DeleteByPrincipal removes every cached permission set for a
	// principal across all teams and roles.
	DeleteByPrincipal(ctx context.Context, principalID string) error
}

// VersionStore tracks the monotonic per-principal permission version.
// Increments must be atomic at the store level.
type VersionStore interface {
	// Get returns the live version for a principal, 0 if absent.
	Get(ctx context.Context, principalID string) (int64, error)

	// Increment atomically bumps and returns a principal's version.
	Increment(ctx context.Context, principalID string) (int64, error)

	// Set overwrites a principal's version.
	Set(ctx context.Context, principalID string, version int64) error

	// Delete removes a principal's version counter.
	Delete(ctx context.Context, principalID string) error

	// IncrementBatch bumps every listed principal's version.
	IncrementBatch(ctx context.Context, principalIDs []string) error
}

// RedisStore implements CacheStore and VersionStore on a shared Redis
// instance.
type RedisStore struct {
	client     *redis.Client
	versionTTL time.Duration
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int

	// VersionTTL bounds how long version counters live without activity.
	// Defaults to 30 days.
	VersionTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if opts.Password != "" {
		ro.Password = opts.Password
	}
	if opts.DB > 0 {
		ro.DB = opts.DB
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}
	if opts.MaxRetries > 0 {
		ro.MaxRetries = opts.MaxRetries
	}
	ro.DialTimeout = 5 * time.Second
	ro.ReadTimeout = 3 * time.Second
	ro.WriteTimeout = 3 * time.Second

	client := redis.NewClient(ro)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	versionTTL := opts.VersionTTL
	if versionTTL <= 0 {
		versionTTL = 30 * 24 * time.Hour
	}

	return &RedisStore{client: client, versionTTL: versionTTL}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests and by
// deployments that share a connection pool.
func NewRedisStoreFromClient(client *redis.Client, versionTTL time.Duration) *RedisStore {
	if versionTTL <= 0 {
		versionTTL = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, versionTTL: versionTTL}
}

// PermissionKey builds the cache key for a principal's resolved set. The
// key includes team and role so a role change can never serve a stale
// set from a previous assignment.
func PermissionKey(principalID, teamID string, role principal.Role) string {
	return permissionKeyPrefix + principalID + ":" + teamID + ":" + string(role)
}

func versionKey(principalID string) string {
	return versionKeyPrefix + principalID
}

// GetPermissions retrieves a cached permission list.
func (s *RedisStore) GetPermissions(ctx context.Context, key string) ([]principal.Permission, bool, error) {
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var perms []principal.Permission
	if err := json.Unmarshal([]byte(data), &perms); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		s.client.Del(ctx, key)
		return nil, false, nil
	}
	return perms, true, nil
}

// SetPermissions stores a permission list with a TTL.
func (s *RedisStore) SetPermissions(ctx context.Context, key string, perms []principal.Permission, ttl time.Duration) error {
	data, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// DeleteByPrincipal removes every cached set for a principal using SCAN,
// never KEYS.
func (s *RedisStore) DeleteByPrincipal(ctx context.Context, principalID string) error {
	pattern := permissionKeyPrefix + principalID + ":*"
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return nil
}

// Get returns the live version for a principal, 0 if absent.
func (s *RedisStore) Get(ctx context.Context, principalID string) (int64, error) {
	v, err := s.client.Get(ctx, versionKey(principalID)).Int64()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

// Increment atomically bumps a principal's version and refreshes its
// TTL. INCR is atomic at the server; there is no read-modify-write here.
func (s *RedisStore) Increment(ctx context.Context, principalID string) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, versionKey(principalID))
	pipe.Expire(ctx, versionKey(principalID), s.versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return incr.Val(), nil
}

// Set overwrites a principal's version.
func (s *RedisStore) Set(ctx context.Context, principalID string, version int64) error {
	return s.client.Set(ctx, versionKey(principalID), version, s.versionTTL).Err()
}

// Delete removes a principal's version counter.
func (s *RedisStore) Delete(ctx context.Context, principalID string) error {
	return s.client.Del(ctx, versionKey(principalID)).Err()
}

// IncrementBatch bumps every listed principal's version in one round
// trip.
func (s *RedisStore) IncrementBatch(ctx context.Context, principalIDs []string) error {
	if len(principalIDs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, id := range principalIDs {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), s.versionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis batch incr failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
