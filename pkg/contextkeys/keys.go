// Package contextkeys provides the centralized context key definitions
// for the authorization pipeline. All context keys used across the
// library are defined here so usage stays discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions.
type Key string

const (
	// PrincipalKey contains *principal.Principal.
	// Set by: middleware.Pipeline after credential verification.
	// Required by: scope resolution, enforcement, business handlers.
	PrincipalKey Key = "auth_principal"

	// ScopeKey contains principal.TenantScope.
	// Set by: middleware.Pipeline after scope resolution.
	ScopeKey Key = "tenant_scope"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestID.
	// Used by: logging and audit trails.
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger.
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// WithScope adds the resolved tenant scope to the context.
func WithScope(ctx context.Context, scope interface{}) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
