// Package principal defines the identity types resolved from a credential
// and the static role permission tables used across the authorization
// pipeline.
package principal

import "strings"

// Type identifies the kind of caller behind a request.
type Type string

const (
	TypeUser            Type = "user"
	TypeAdmin           Type = "admin"
	TypeInternalService Type = "internal-service"
)

// ScopeLevel indicates whether a principal is bound to a single team or
// operates platform-wide.
type ScopeLevel string

const (
	ScopeLevelPlatform ScopeLevel = "platform"
	ScopeLevelTeam     ScopeLevel = "team"
)

// Scope describes which tenant boundary a principal belongs to.
// Platform-level principals are not bound to one tenant.
type Scope struct {
	Level  ScopeLevel `json:"level"`
	TeamID string     `json:"team_id,omitempty"`
}

// Role represents a role name. Team roles and platform admin roles share
// the type; the principal's Type disambiguates which table applies.
type Role string

const (
	// Team roles, lowest to highest.
	RoleViewer Role = "VIEWER"
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
	RoleOwner  Role = "OWNER"

	// Platform admin roles.
	RoleOperator   Role = "OPERATOR"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Principal is the identity resolved from a credential. It is constructed
// once per request by the authentication verifier and is immutable for the
// request's lifetime. It is never persisted.
type Principal struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	Type         Type   `json:"type"`
	Scope        Scope  `json:"scope"`
	Role         Role   `json:"role"`
	CustomRoleID string `json:"custom_role_id,omitempty"`

	// PermissionVersion is the version stamp embedded at credential-issue
	// time. nil when the credential predates version stamping.
	PermissionVersion *int64 `json:"permission_version,omitempty"`
}

// IsInternalService reports whether the principal is a trusted internal
// service. Internal services bypass permission checks entirely.
func (p *Principal) IsInternalService() bool {
	return p.Type == TypeInternalService
}

// IsPlatformLevel reports whether the principal operates platform-wide
// rather than inside a single tenant.
func (p *Principal) IsPlatformLevel() bool {
	return p.IsInternalService() || p.Scope.Level == ScopeLevelPlatform
}

// IsPlatformAdmin reports whether the principal is a platform
// administrator of any tier.
func (p *Principal) IsPlatformAdmin() bool {
	return p.Type == TypeAdmin
}

// IsSuperAdmin reports whether the principal holds the highest platform
// admin tier.
func (p *Principal) IsSuperAdmin() bool {
	return p.Type == TypeAdmin && p.Role == RoleSuperAdmin
}

// IsTeamOwner reports whether the principal owns its team. A team owner
// is never implicitly a platform admin.
func (p *Principal) IsTeamOwner() bool {
	return p.Type == TypeUser && p.Role == RoleOwner
}

// TenantScope is the per-request derived tenant binding produced by the
// scope resolver. ResolvedTeamID equals the principal's own team unless
// the principal is privileged or a verified member of the requested team.
type TenantScope struct {
	ResolvedTeamID  string `json:"resolved_team_id,omitempty"`
	IsAdminOverride bool   `json:"is_admin_override,omitempty"`
}

// Permission is a permission string in "resource:action" format. Platform
// admin permissions carry an "admin:" namespace prefix.
type Permission string

// AdminNamespace prefixes permissions that only platform admins may hold.
const AdminNamespace = "admin:"

// IsAdminScoped reports whether the permission lives in the admin
// namespace.
func (p Permission) IsAdminScoped() bool {
	return strings.HasPrefix(string(p), AdminNamespace)
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

// NewSet builds a Set from a permission list.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the permission.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether the set contains every listed permission.
func (s Set) HasAll(perms []Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether the set contains at least one listed permission.
func (s Set) HasAny(perms []Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Missing returns the listed permissions absent from the set, preserving
// input order.
func (s Set) Missing(perms []Permission) []Permission {
	var missing []Permission
	for _, p := range perms {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// List returns the set's permissions as a slice. Order is unspecified.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
