// Package authz evaluates declarative authorization requirements against
// a resolved principal, tenant scope, and request attributes.
package authz

import "github.com/lnkday/authcore/pkg/principal"

// Mode selects how a requirement's permission list is combined.
type Mode string

const (
	// ModeAll requires every listed permission. This is the default.
	ModeAll Mode = "all"
	// ModeAny requires at least one listed permission.
	ModeAny Mode = "any"
)

// Operator compares a resolved field against a condition value.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpIn  Operator = "in"
	OpNin Operator = "nin"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Condition is a single attribute comparison. Field is a dotted path
// rooted at "user", "resource", "params", "query", or "body". Value may be
// a variable reference of the form "${path}" resolved against the same
// roots before comparison.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// ConditionalPermission gates a base permission behind one or more
// AND-combined attribute conditions.
type ConditionalPermission struct {
	Permission principal.Permission `json:"permission"`
	Conditions []Condition          `json:"conditions"`
}

// Requirement is the declarative authorization metadata attached to an
// operation. It is defined at deploy time and read at request time;
// instances are immutable once registered.
type Requirement struct {
	RequiredPermissions []principal.Permission
	Mode                Mode
	OwnerOnly           bool
	AdminOnly           bool
	Public              bool

	// BypassTenantScope opts the operation out of tenant scope
	// enforcement. This is an explicit allow-list, never a default.
	BypassTenantScope bool

	Conditional *ConditionalPermission
}

// Require builds a requirement demanding every listed permission.
func Require(perms ...principal.Permission) Requirement {
	return Requirement{RequiredPermissions: perms, Mode: ModeAll}
}

// RequireAny builds a requirement demanding at least one listed
// permission.
func RequireAny(perms ...principal.Permission) Requirement {
	return Requirement{RequiredPermissions: perms, Mode: ModeAny}
}

// Public builds a requirement allowing unauthenticated access.
func Public() Requirement {
	return Requirement{Public: true}
}

// OwnerOnly builds a requirement restricted to team owners and platform
// admins.
func OwnerOnly() Requirement {
	return Requirement{OwnerOnly: true}
}

// AdminOnly builds a requirement restricted to platform admins.
func AdminOnly() Requirement {
	return Requirement{AdminOnly: true}
}

// When attaches a conditional permission to a copy of the requirement.
func (r Requirement) When(cp ConditionalPermission) Requirement {
	r.Conditional = &cp
	return r
}

// WithoutScopeCheck marks a copy of the requirement as exempt from tenant
// scope enforcement.
func (r Requirement) WithoutScopeCheck() Requirement {
	r.BypassTenantScope = true
	return r
}

// mode returns the effective combination mode, defaulting to ModeAll.
func (r Requirement) mode() Mode {
	if r.Mode == ModeAny {
		return ModeAny
	}
	return ModeAll
}
