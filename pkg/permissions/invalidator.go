package permissions

import (
	"context"
	"fmt"

	"github.com/lnkday/authcore/pkg/observability"
)

// Invalidator is the single entry point for every mutation that must
// revoke previously resolved permissions: role changes, membership
// changes, and custom-role edits all flow through the same version-bump
// path. Bumping a principal's version invalidates its cached permission
// sets and causes any credential stamped with an older version to fail
// authentication on next use.
type Invalidator struct {
	cache    CacheStore
	versions VersionStore
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewInvalidator wires the invalidation path. cache and resolver may be
// nil when the deployment runs without them.
func NewInvalidator(cache CacheStore, versions VersionStore, resolver *Resolver, logger *observability.Logger, metrics *observability.Metrics) *Invalidator {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Invalidator{
		cache:    cache,
		versions: versions,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// PrincipalChanged revokes a single principal: role change, suspension,
// or any other identity-level mutation.
func (i *Invalidator) PrincipalChanged(ctx context.Context, principalID string) error {
	return i.revoke(ctx, principalID)
}

// MembershipChanged revokes a principal after a team membership change.
func (i *Invalidator) MembershipChanged(ctx context.Context, principalID string) error {
	return i.revoke(ctx, principalID)
}

func (i *Invalidator) revoke(ctx context.Context, principalID string) error {
	if i.cache != nil {
		if err := i.cache.DeleteByPrincipal(ctx, principalID); err != nil {
			return fmt.Errorf("cache invalidation for %q: %w", principalID, err)
		}
	}
	if i.versions != nil {
		v, err := i.versions.Increment(ctx, principalID)
		if err != nil {
			return fmt.Errorf("version bump for %q: %w", principalID, err)
		}
		i.metrics.RecordVersionBump()
		i.logger.WithFields(map[string]interface{}{
			"principal_id": principalID,
			"version":      v,
		}).Info("permission version bumped")
	}
	return nil
}

// CustomRoleChanged revokes every principal currently holding a custom
// role after its permission list changed. The role's in-process cache
// entry is evicted and all affected principals are version-bumped in one
// batch, so neither the permission cache TTL nor the role cache TTL is
// load-bearing for revocation.
func (i *Invalidator) CustomRoleChanged(ctx context.Context, roleID string, principalIDs []string) error {
	if i.resolver != nil {
		i.resolver.EvictCustomRole(roleID)
	}
	if i.cache != nil {
		for _, id := range principalIDs {
			if err := i.cache.DeleteByPrincipal(ctx, id); err != nil {
				return fmt.Errorf("cache invalidation for %q: %w", id, err)
			}
		}
	}
	if i.versions != nil {
		if err := i.versions.IncrementBatch(ctx, principalIDs); err != nil {
			return fmt.Errorf("batch version bump for role %q: %w", roleID, err)
		}
		for range principalIDs {
			i.metrics.RecordVersionBump()
		}
	}
	i.logger.WithFields(map[string]interface{}{
		"custom_role_id":      roleID,
		"affected_principals": len(principalIDs),
	}).Info("custom role revoked")
	return nil
}
