package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/lnkday/authcore/pkg/authn"
	"github.com/lnkday/authcore/pkg/authz"
	"github.com/lnkday/authcore/pkg/contextkeys"
	"github.com/lnkday/authcore/pkg/httputil"
	"github.com/lnkday/authcore/pkg/observability"
	"github.com/lnkday/authcore/pkg/principal"
	"github.com/lnkday/authcore/pkg/tenant"
)

// Tenant hint sources, in priority order: header, query, body, path.
const (
	TeamHeader     = "X-Team-ID"
	teamQueryParam = "team_id"
	teamBodyField  = "teamId"
	teamPathParam  = "team_id"
)

// Propagated identity headers. Inbound copies are stripped before the
// resolved values are set; downstream consumers must never trust
// client-supplied values for these.
const (
	HeaderPrincipalID    = "X-Auth-Principal-ID"
	HeaderPrincipalEmail = "X-Auth-Principal-Email"
	HeaderPrincipalType  = "X-Auth-Principal-Type"
	HeaderTeamID         = "X-Auth-Team-ID"
)

// InternalTokenHeader carries the pre-shared internal-service secret.
const InternalTokenHeader = "X-Internal-Token"

const maxBodyPeek = 1 << 20 // 1 MiB

// ResourceTeamLookup fetches the owning tenant of the resource a request
// addresses. This is the seam where business-domain services plug in;
// the authorization core has no knowledge of resource schemas. An empty
// team ID means the resource was not found and ownership verification
// defers to the handler's 404.
type ResourceTeamLookup interface {
	ResourceTeamID(r *http.Request) (string, error)
}

// ResourceTeamLookupFunc adapts a function to ResourceTeamLookup.
type ResourceTeamLookupFunc func(r *http.Request) (string, error)

func (f ResourceTeamLookupFunc) ResourceTeamID(r *http.Request) (string, error) { return f(r) }

// ResourceLoader fetches the attributes of the addressed resource for
// conditional permission evaluation. nil attributes mean not found.
type ResourceLoader interface {
	Load(r *http.Request) (map[string]interface{}, error)
}

// ResourceLoaderFunc adapts a function to ResourceLoader.
type ResourceLoaderFunc func(r *http.Request) (map[string]interface{}, error)

func (f ResourceLoaderFunc) Load(r *http.Request) (map[string]interface{}, error) { return f(r) }

// Pipeline executes the authorization stages for each request, strictly
// in order: credential verification, tenant scope resolution, resource
// ownership verification, then requirement enforcement. Each request is
// an independent, stateless execution; the only shared mutable state is
// the external cache and version store.
type Pipeline struct {
	verifier *authn.Verifier
	scopes   *tenant.ScopeResolver
	enforcer *authz.Enforcer
	registry *authz.Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger attaches a logger.
func WithPipelineLogger(logger *observability.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPipelineMetrics attaches pipeline metrics.
func WithPipelineMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStageTimeout bounds the pipeline's external lookups per request. A
// stage timing out fails that stage's contract and denies.
func WithStageTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(verifier *authn.Verifier, scopes *tenant.ScopeResolver, enforcer *authz.Enforcer, registry *authz.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		verifier: verifier,
		scopes:   scopes,
		enforcer: enforcer,
		registry: registry,
		logger:   observability.NewNopLogger(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// protectConfig holds the per-route collaborators.
type protectConfig struct {
	ownership ResourceTeamLookup
	resource  ResourceLoader
}

// ProtectOption attaches a per-route collaborator.
type ProtectOption func(*protectConfig)

// WithOwnership attaches the owning-tenant lookup for resource-addressed
// routes.
func WithOwnership(lookup ResourceTeamLookup) ProtectOption {
	return func(c *protectConfig) { c.ownership = lookup }
}

// WithResource attaches the resource loader used by conditional
// permissions referencing the "resource" root.
func WithResource(loader ResourceLoader) ProtectOption {
	return func(c *protectConfig) { c.resource = loader }
}

// Middleware returns a router-wide guard without per-route
// collaborators. Routes needing ownership verification or resource
// attributes wrap their handlers with Protect instead.
func (p *Pipeline) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return p.Protect(next)
	}
}

// Protect guards a handler with the full pipeline.
func (p *Pipeline) Protect(next http.Handler, opts ...ProtectOption) http.Handler {
	cfg := &protectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		r = r.WithContext(ctx)

		req, _ := p.registry.Resolve(r.Method, routePath(r))

		prin, err := p.authenticate(r, req)
		if err != nil {
			p.deny(w, r, err)
			return
		}

		scope, err := p.resolveScope(r, req, prin)
		if err != nil {
			p.deny(w, r, err)
			return
		}

		r = p.propagate(r, prin, scope)

		if err := p.verifyOwnership(r, cfg, prin, scope); err != nil {
			p.deny(w, r, err)
			return
		}

		rc, err := p.requestContext(r, cfg, req, prin)
		if err != nil {
			p.deny(w, r, err)
			return
		}

		start := time.Now()
		err = p.enforcer.Authorize(r.Context(), prin, scope, req, rc)
		p.metrics.ObserveStage("enforce", start)
		if err != nil {
			p.deny(w, r, err)
			return
		}

		p.metrics.RecordDecision(true, "")
		next.ServeHTTP(w, r)
	})
}

// authenticate runs the credential verification stage. Public operations
// tolerate a missing or invalid credential and proceed unauthenticated.
func (p *Pipeline) authenticate(r *http.Request, req authz.Requirement) (*principal.Principal, error) {
	start := time.Now()
	defer p.metrics.ObserveStage("authenticate", start)

	raw := bearerCredential(r)
	if raw == "" {
		if req.Public {
			return nil, nil
		}
		return nil, authz.Unauthenticated("missing authorization header")
	}

	prin, err := p.verifier.Verify(r.Context(), raw)
	if err != nil {
		if req.Public {
			return nil, nil
		}
		return nil, err
	}
	return prin, nil
}

// resolveScope runs the tenant scope stage unless the operation is on
// the explicit bypass allow-list.
func (p *Pipeline) resolveScope(r *http.Request, req authz.Requirement, prin *principal.Principal) (principal.TenantScope, error) {
	if req.BypassTenantScope || prin == nil {
		return principal.TenantScope{}, nil
	}

	start := time.Now()
	defer p.metrics.ObserveStage("resolve_scope", start)

	return p.scopes.Resolve(r.Context(), prin, tenantHint(r))
}

// verifyOwnership compares the addressed resource's owning tenant to the
// resolved scope. Privileged principals bypass the check; a missing
// resource defers to the handler's 404.
func (p *Pipeline) verifyOwnership(r *http.Request, cfg *protectConfig, prin *principal.Principal, scope principal.TenantScope) error {
	if cfg.ownership == nil || prin == nil {
		return nil
	}
	if scope.IsAdminOverride || prin.IsPlatformLevel() || prin.IsPlatformAdmin() {
		return nil
	}

	start := time.Now()
	defer p.metrics.ObserveStage("verify_ownership", start)

	teamID, err := cfg.ownership.ResourceTeamID(r)
	if err != nil {
		// Lookup failures deny; they never allow by default.
		p.logger.WithError(err).Warn("resource ownership lookup failed")
		return authz.Forbidden(authz.CodeTenantMismatch, "access denied")
	}
	if teamID == "" {
		return nil
	}
	if teamID != scope.ResolvedTeamID {
		// The audit log knows the real reason; the response must not
		// reveal that the resource exists in another tenant.
		p.logger.WithFields(map[string]interface{}{
			"principal_id":  prin.ID,
			"resolved_team": scope.ResolvedTeamID,
			"owning_team":   teamID,
		}).Warn("resource ownership mismatch")
		return authz.Forbidden(authz.CodeTenantMismatch, "access denied")
	}
	return nil
}

// requestContext assembles the attribute roots for conditional
// permission evaluation. The resource root is only loaded when a
// conditional permission is declared.
func (p *Pipeline) requestContext(r *http.Request, cfg *protectConfig, req authz.Requirement, prin *principal.Principal) (*authz.RequestContext, error) {
	rc := &authz.RequestContext{
		User:   authz.UserAttributes(prin),
		Params: paramAttributes(mux.Vars(r)),
		Query:  queryAttributes(r),
		Body:   bodyAttributes(r),
	}

	if req.Conditional != nil && cfg.resource != nil {
		resource, err := cfg.resource.Load(r)
		if err != nil {
			p.logger.WithError(err).Warn("resource load for condition evaluation failed")
			return nil, authz.Forbidden(authz.CodePermissionDenied, "access denied")
		}
		rc.Resource = resource
	}

	return rc, nil
}

// propagate strips any client-supplied identity headers and sets the
// resolved ones, then attaches principal and scope to the request
// context. Header propagation is metadata for downstream consumers, not
// a security boundary.
func (p *Pipeline) propagate(r *http.Request, prin *principal.Principal, scope principal.TenantScope) *http.Request {
	r.Header.Del(HeaderPrincipalID)
	r.Header.Del(HeaderPrincipalEmail)
	r.Header.Del(HeaderPrincipalType)
	r.Header.Del(HeaderTeamID)

	ctx := r.Context()
	if prin != nil {
		r.Header.Set(HeaderPrincipalID, prin.ID)
		if prin.Email != "" {
			r.Header.Set(HeaderPrincipalEmail, prin.Email)
		}
		r.Header.Set(HeaderPrincipalType, string(prin.Type))
		ctx = contextkeys.WithPrincipal(ctx, prin)
	}
	if scope.ResolvedTeamID != "" {
		r.Header.Set(HeaderTeamID, scope.ResolvedTeamID)
	}
	ctx = contextkeys.WithScope(ctx, scope)
	return r.WithContext(ctx)
}

func (p *Pipeline) deny(w http.ResponseWriter, r *http.Request, err error) {
	denial := authz.AsError(err)
	p.metrics.RecordDecision(false, string(denial.Code))
	httputil.WriteDenial(w, denial)
}

// PrincipalFromRequest extracts the authenticated principal placed on the
// request context by the pipeline.
func PrincipalFromRequest(r *http.Request) *principal.Principal {
	p, _ := r.Context().Value(contextkeys.PrincipalKey).(*principal.Principal)
	return p
}

// ScopeFromRequest extracts the resolved tenant scope.
func ScopeFromRequest(r *http.Request) principal.TenantScope {
	scope, _ := r.Context().Value(contextkeys.ScopeKey).(principal.TenantScope)
	return scope
}

// bearerCredential extracts the raw credential: the internal-service
// header wins, then the Authorization bearer value.
func bearerCredential(r *http.Request) string {
	if token := r.Header.Get(InternalTokenHeader); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// tenantHint reads the requested-tenant hint: header, then query, then
// body field, then path parameter.
func tenantHint(r *http.Request) string {
	if hint := r.Header.Get(TeamHeader); hint != "" {
		return hint
	}
	if hint := r.URL.Query().Get(teamQueryParam); hint != "" {
		return hint
	}
	if body := bodyAttributes(r); body != nil {
		if hint, ok := body[teamBodyField].(string); ok && hint != "" {
			return hint
		}
	}
	vars := mux.Vars(r)
	if hint := vars[teamPathParam]; hint != "" {
		return hint
	}
	return vars["teamId"]
}

// bodyAttributes peeks at a JSON request body and restores it for the
// handler, unread remainder included. Non-JSON and oversized bodies
// resolve to nil without being consumed.
func bodyAttributes(r *http.Request) map[string]interface{} {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	if r.ContentLength > maxBodyPeek {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), r.Body))
	if err != nil {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil
	}
	return body
}

func paramAttributes(vars map[string]string) map[string]interface{} {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func queryAttributes(r *http.Request) map[string]interface{} {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

// routePath returns the mux route template when available so registry
// lookups match registration paths, falling back to the raw URL path.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
