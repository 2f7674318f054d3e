package permissions

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lnkday/authcore/pkg/observability"
	"github.com/lnkday/authcore/pkg/principal"
)

// DefaultCacheTTL bounds how long a resolved permission set may be
// served without re-resolution. The explicit version-bump path is the
// escape hatch for revocations that cannot tolerate this staleness.
const DefaultCacheTTL = 300 * time.Second

const (
	customRoleCacheSize = 1024
	customRoleCacheTTL  = 60 * time.Second
)

// CustomRoleLookup resolves a tenant-defined role's permission list.
// Optional collaborator; when absent, custom-role principals resolve to
// an empty permission set.
type CustomRoleLookup interface {
	GetPermissions(ctx context.Context, roleID string) ([]principal.Permission, error)
}

// Resolver computes a principal's effective permission set. Resolution
// never fails on its own: an unresolved custom role yields an empty set,
// which is valid but maximally restrictive. Collaborator errors are
// surfaced so callers deny rather than guess.
type Resolver struct {
	cache       CacheStore // nil disables caching; slower but equally strict
	customRoles CustomRoleLookup

	// roleCache keeps custom-role permission lists in process. It is a
	// backstop only: CustomRoleChanged on the Invalidator evicts entries
	// before the TTL runs out.
	roleCache *lru.LRU[string, []principal.Permission]

	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache attaches a permission cache store.
func WithCache(cache CacheStore) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

// WithCustomRoles attaches the custom-role lookup collaborator.
func WithCustomRoles(lookup CustomRoleLookup) ResolverOption {
	return func(r *Resolver) { r.customRoles = lookup }
}

// WithTTL overrides the permission cache TTL.
func WithTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *observability.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *observability.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a permission resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		ttl:    DefaultCacheTTL,
		logger: observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.roleCache = lru.NewLRU[string, []principal.Permission](
		customRoleCacheSize,
		nil,
		customRoleCacheTTL,
	)
	return r
}

// Resolve computes the principal's effective permission set.
func (r *Resolver) Resolve(ctx context.Context, p *principal.Principal) (principal.Set, error) {
	if p == nil {
		return principal.Set{}, nil
	}

	// Internal services carry the full permission universe; no cache
	// round trip.
	if p.IsInternalService() {
		return principal.Universe(), nil
	}

	key := PermissionKey(p.ID, p.Scope.TeamID, p.Role)
	if r.cache != nil {
		perms, hit, err := r.cache.GetPermissions(ctx, key)
		if err != nil {
			// A broken cache must not break resolution; fall through to
			// the authoritative path.
			r.logger.WithError(err).Warn("permission cache read failed")
		} else {
			r.metrics.RecordCacheHit(hit)
			if hit {
				return principal.NewSet(perms...), nil
			}
		}
	}

	perms, err := r.resolveUncached(ctx, p)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetPermissions(ctx, key, perms, r.ttl); err != nil {
			r.logger.WithError(err).Warn("permission cache write failed")
		}
	}

	return principal.NewSet(perms...), nil
}

func (r *Resolver) resolveUncached(ctx context.Context, p *principal.Principal) ([]principal.Permission, error) {
	if p.CustomRoleID != "" {
		return r.resolveCustomRole(ctx, p.CustomRoleID)
	}
	return principal.PermissionsForRole(p.Type, p.Role).List(), nil
}

func (r *Resolver) resolveCustomRole(ctx context.Context, roleID string) ([]principal.Permission, error) {
	if perms, ok := r.roleCache.Get(roleID); ok {
		return perms, nil
	}

	if r.customRoles == nil {
		// Absent collaborator: empty set, not an error.
		return nil, nil
	}

	perms, err := r.customRoles.GetPermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("custom role lookup for %q: %w", roleID, err)
	}

	r.roleCache.Add(roleID, perms)
	return perms, nil
}

// EvictCustomRole drops a custom role's in-process cache entry. Called
// by the Invalidator when the role's permission list changes.
func (r *Resolver) EvictCustomRole(roleID string) {
	r.roleCache.Remove(roleID)
}
