package authz

import (
	"context"
	"fmt"

	"github.com/lnkday/authcore/pkg/observability"
	"github.com/lnkday/authcore/pkg/principal"
)

// PermissionSource computes a principal's effective permission set. The
// permissions resolver satisfies this.
type PermissionSource interface {
	Resolve(ctx context.Context, p *principal.Principal) (principal.Set, error)
}

// Enforcer evaluates declarative requirements against the resolved
// request state and allows or denies the operation.
type Enforcer struct {
	permissions PermissionSource
	logger      *observability.Logger
}

// NewEnforcer creates an enforcer backed by a permission source.
func NewEnforcer(permissions PermissionSource, logger *observability.Logger) *Enforcer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Enforcer{permissions: permissions, logger: logger}
}

// Authorize evaluates a requirement. It returns nil to allow and a
// structured *Error to deny. Evaluation short-circuits on the first
// applicable decision; a denial aborts the pipeline with no further side
// effects.
func (e *Enforcer) Authorize(ctx context.Context, p *principal.Principal, scope principal.TenantScope, req Requirement, rc *RequestContext) error {
	err := e.evaluate(ctx, p, scope, req, rc)
	e.record(ctx, p, err)
	return err
}

func (e *Enforcer) evaluate(ctx context.Context, p *principal.Principal, scope principal.TenantScope, req Requirement, rc *RequestContext) error {
	// Public operations are open to everyone, authenticated or not.
	if req.Public {
		return nil
	}

	if p == nil {
		return Unauthenticated("authentication required")
	}

	// Trusted internal calls are never blocked, checked ahead of
	// adminOnly and ownerOnly.
	if p.IsInternalService() {
		return nil
	}

	if req.AdminOnly && !p.IsPlatformAdmin() {
		return Forbidden(CodeAdminOnly, "platform administrator access required")
	}

	if req.OwnerOnly && !p.IsPlatformAdmin() && !p.IsTeamOwner() {
		return Forbidden(CodeOwnerOnly, "team owner access required")
	}

	if len(req.RequiredPermissions) == 0 && req.Conditional == nil {
		return nil
	}

	// baseHeld tracks whether the conditional permission's base grant is
	// already implied by the principal's tier.
	baseHeld := false

	switch {
	case p.IsSuperAdmin():
		// Full access; conditional permissions still apply below.
		baseHeld = true

	case p.IsPlatformAdmin():
		set, err := e.permissions.Resolve(ctx, p)
		if err != nil {
			return e.resolveFailure(err)
		}
		if denied := checkRequired(set, req); denied != nil {
			return denied
		}
		baseHeld = req.Conditional == nil || set.Has(req.Conditional.Permission)

	case p.IsTeamOwner():
		// A team owner holds every permission inside the tenant, but is
		// never implicitly a platform admin.
		if adminScoped := adminScopedOf(req.RequiredPermissions); len(adminScoped) > 0 {
			return PermissionDenied(req.RequiredPermissions, adminScoped)
		}
		baseHeld = req.Conditional == nil || !req.Conditional.Permission.IsAdminScoped()

	default:
		set, err := e.permissions.Resolve(ctx, p)
		if err != nil {
			return e.resolveFailure(err)
		}
		if denied := checkRequired(set, req); denied != nil {
			return denied
		}
		baseHeld = req.Conditional == nil || set.Has(req.Conditional.Permission)
	}

	if req.Conditional != nil {
		if !baseHeld {
			return PermissionDenied(
				[]principal.Permission{req.Conditional.Permission},
				[]principal.Permission{req.Conditional.Permission},
			)
		}
		if denied := EvaluateConditions(req.Conditional, rc); denied != nil {
			return denied
		}
	}

	return nil
}

// checkRequired verifies the requirement's permission list against a
// resolved set using the requirement's mode.
func checkRequired(set principal.Set, req Requirement) *Error {
	if len(req.RequiredPermissions) == 0 {
		return nil
	}
	switch req.mode() {
	case ModeAny:
		if set.HasAny(req.RequiredPermissions) {
			return nil
		}
		return PermissionDenied(req.RequiredPermissions, req.RequiredPermissions)
	default:
		missing := set.Missing(req.RequiredPermissions)
		if len(missing) == 0 {
			return nil
		}
		return PermissionDenied(req.RequiredPermissions, missing)
	}
}

// adminScopedOf returns the admin-namespaced permissions in a list.
func adminScopedOf(perms []principal.Permission) []principal.Permission {
	var out []principal.Permission
	for _, p := range perms {
		if p.IsAdminScoped() {
			out = append(out, p)
		}
	}
	return out
}

// resolveFailure converts a permission-source error into a denial.
// Collaborator failures never allow by default.
func (e *Enforcer) resolveFailure(err error) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("permission resolution failed: %v", err),
	}
}

// record emits the audit log for a denial. Decision metrics are counted
// by the caller, which also sees denials from earlier pipeline stages.
func (e *Enforcer) record(ctx context.Context, p *principal.Principal, err error) {
	if err == nil {
		return
	}

	denial := AsError(err)

	logger := e.logger
	if p != nil {
		logger = logger.WithFields(map[string]interface{}{
			"principal_id":   p.ID,
			"principal_type": string(p.Type),
		})
	}
	logger = logger.WithFields(map[string]interface{}{
		"code":     string(denial.Code),
		"required": denial.Required,
		"missing":  denial.Missing,
	})
	if denial.Code == CodePolicyMisconfigured {
		// A policy referencing state the deployment never provides is a
		// deployment bug; make it loud.
		logger.Error("authorization policy misconfigured: " + denial.Message)
		return
	}
	logger.Warn("authorization denied")
}
