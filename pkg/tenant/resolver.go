// Package tenant resolves which tenant a request is authorized to act
// within and enforces membership for cross-tenant requests.
package tenant

import (
	"context"

	"github.com/lnkday/authcore/pkg/authz"
	"github.com/lnkday/authcore/pkg/observability"
	"github.com/lnkday/authcore/pkg/principal"
)

// MembershipService verifies that a principal belongs to a team.
// Optional collaborator: when absent, every cross-tenant request from a
// non-privileged principal is denied. Absence fails closed, never open.
type MembershipService interface {
	IsTeamMember(ctx context.Context, principalID, teamID string) (bool, error)
}

// ScopeResolver determines the authoritative tenant for a request.
type ScopeResolver struct {
	membership MembershipService
	logger     *observability.Logger
}

// NewScopeResolver creates a scope resolver. membership may be nil.
func NewScopeResolver(membership MembershipService, logger *observability.Logger) *ScopeResolver {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &ScopeResolver{membership: membership, logger: logger}
}

// Resolve computes the tenant scope for a principal given the request's
// tenant hint. The hint comes from the transport layer (header, query,
// body, or path parameter, in that priority order).
func (r *ScopeResolver) Resolve(ctx context.Context, p *principal.Principal, hint string) (principal.TenantScope, error) {
	if p == nil {
		return principal.TenantScope{}, authz.Unauthenticated("authentication required")
	}

	// Platform-level principals and internal services: an explicit hint
	// pins the scope with the admin-override flag set; otherwise access
	// stays global.
	if p.IsPlatformLevel() || p.IsPlatformAdmin() {
		if hint != "" {
			return principal.TenantScope{ResolvedTeamID: hint, IsAdminOverride: true}, nil
		}
		return principal.TenantScope{}, nil
	}

	own := p.Scope.TeamID
	if hint == "" || hint == own {
		if own == "" {
			return principal.TenantScope{}, authz.Forbidden(authz.CodeTenantMismatch, "no tenant scope for this request")
		}
		return principal.TenantScope{ResolvedTeamID: own}, nil
	}

	// Cross-tenant request: membership must be proven.
	if r.membership == nil {
		r.logger.WithFields(map[string]interface{}{
			"principal_id":   p.ID,
			"requested_team": hint,
		}).Warn("cross-tenant request denied: no membership service configured")
		return principal.TenantScope{}, authz.Forbidden(authz.CodeTenantMismatch, "access to requested team denied")
	}

	member, err := r.membership.IsTeamMember(ctx, p.ID, hint)
	if err != nil {
		// Lookup failures, including timeouts, deny.
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"principal_id":   p.ID,
			"requested_team": hint,
		}).Warn("membership check failed")
		return principal.TenantScope{}, authz.Forbidden(authz.CodeTenantMismatch, "access to requested team denied")
	}
	if !member {
		return principal.TenantScope{}, authz.Forbidden(authz.CodeTenantMismatch, "access to requested team denied")
	}

	return principal.TenantScope{ResolvedTeamID: hint}, nil
}
