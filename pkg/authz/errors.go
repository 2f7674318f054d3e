package authz

import (
	"fmt"
	"net/http"

	"github.com/lnkday/authcore/pkg/principal"
)

// Code is a machine-readable denial reason. Clients use it to drive
// progressive disclosure; audit logging records it verbatim.
type Code string

const (
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeConditionNotMet     Code = "CONDITION_NOT_MET"
	CodeTenantMismatch      Code = "TENANT_MISMATCH"
	CodeOwnerOnly           Code = "OWNER_ONLY"
	CodeAdminOnly           Code = "ADMIN_ONLY"
	CodePolicyMisconfigured Code = "POLICY_MISCONFIGURED"
)

// ConditionFailure names the condition that denied a request. It is kept
// for audit logging, not end-user display.
type ConditionFailure struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

// Error is the structured failure shape for every authorization denial.
// Required and Missing carry the permission lists clients need to render
// denial reasons.
type Error struct {
	Code      Code                   `json:"code"`
	Message   string                 `json:"message"`
	Required  []principal.Permission `json:"required,omitempty"`
	Missing   []principal.Permission `json:"missing,omitempty"`
	Condition *ConditionFailure      `json:"condition,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s (missing %v)", e.Code, e.Message, e.Missing)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the denial code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePolicyMisconfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

// Unauthenticated builds a credential failure. Clients should
// re-authenticate.
func Unauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

// Forbidden builds a generic entitlement failure with the given sub-code.
func Forbidden(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// PermissionDenied builds a denial carrying the required vs. missing
// permission lists.
func PermissionDenied(required, missing []principal.Permission) *Error {
	return &Error{
		Code:     CodePermissionDenied,
		Message:  "insufficient permissions",
		Required: required,
		Missing:  missing,
	}
}

// ConditionNotMet builds a denial for a failed attribute condition.
func ConditionNotMet(failure *ConditionFailure) *Error {
	return &Error{
		Code:      CodeConditionNotMet,
		Message:   "condition not met",
		Condition: failure,
	}
}

// Misconfigured builds a policy-bug failure. These indicate a deployment
// error, fail closed, and should be logged loudly.
func Misconfigured(message string) *Error {
	return &Error{Code: CodePolicyMisconfigured, Message: message}
}

// AsError extracts a structured *Error from err, or wraps err as an
// opaque denial so external-collaborator failures never fail open.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodePermissionDenied, Message: err.Error()}
}

// IsUnauthenticated reports whether err is a credential failure.
func IsUnauthenticated(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeUnauthenticated
}

// IsForbidden reports whether err is an entitlement failure (any
// Forbidden sub-code).
func IsForbidden(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code != CodeUnauthenticated && e.Code != CodePolicyMisconfigured
}
