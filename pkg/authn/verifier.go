// Package authn verifies bearer credentials and produces the
// authenticated principal for a request.
package authn

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lnkday/authcore/pkg/authz"
	"github.com/lnkday/authcore/pkg/observability"
	"github.com/lnkday/authcore/pkg/principal"
)

// InternalServicePrincipalID identifies the synthetic principal returned
// for pre-shared internal-service credentials.
const InternalServicePrincipalID = "internal-service"

// VersionReader returns the live permission version for a principal, 0
// if absent. The permissions version store satisfies this.
type VersionReader interface {
	Get(ctx context.Context, principalID string) (int64, error)
}

// Claims are the principal fields carried in a signed credential.
type Claims struct {
	jwt.RegisteredClaims

	Email             string               `json:"email,omitempty"`
	PrincipalType     principal.Type       `json:"type"`
	ScopeLevel        principal.ScopeLevel `json:"scopeLevel,omitempty"`
	TeamID            string               `json:"teamId,omitempty"`
	Role              principal.Role       `json:"role,omitempty"`
	CustomRoleID      string               `json:"customRoleId,omitempty"`
	PermissionVersion *int64               `json:"permissionVersion,omitempty"`
}

// Verifier validates bearer credentials. It accepts two forms: a
// pre-shared internal-service secret compared in constant time, and a
// signed token verified against the configured secret.
type Verifier struct {
	secret        []byte
	internalToken []byte
	versions      VersionReader // nil disables version revocation
	checkVersion  bool
	logger        *observability.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithInternalToken enables the internal-service credential.
func WithInternalToken(token string) VerifierOption {
	return func(v *Verifier) {
		if token != "" {
			v.internalToken = []byte(token)
		}
	}
}

// WithVersionCheck enables fast revocation: tokens carrying a stale
// embedded permission version fail authentication.
func WithVersionCheck(versions VersionReader) VerifierOption {
	return func(v *Verifier) {
		v.versions = versions
		v.checkVersion = versions != nil
	}
}

// WithVerifierLogger attaches a logger.
func WithVerifierLogger(logger *observability.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = logger }
}

// NewVerifier creates a credential verifier with the signed-token
// secret.
func NewVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret: secret,
		logger: observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates a raw credential and returns the authenticated
// principal. Missing, malformed, expired, revoked, or badly signed
// credentials fail with an UNAUTHENTICATED error.
func (v *Verifier) Verify(ctx context.Context, raw string) (*principal.Principal, error) {
	if raw == "" {
		return nil, authz.Unauthenticated("missing credential")
	}

	// Internal-service short circuit. The synthetic principal carries
	// unrestricted permissions but remains subject to tenant scope
	// resolution when a tenant hint is present.
	if len(v.internalToken) > 0 &&
		subtle.ConstantTimeCompare([]byte(raw), v.internalToken) == 1 {
		return &principal.Principal{
			ID:    InternalServicePrincipalID,
			Type:  principal.TypeInternalService,
			Scope: principal.Scope{Level: principal.ScopeLevelPlatform},
		}, nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authz.Unauthenticated("credential expired")
		}
		return nil, authz.Unauthenticated("invalid credential")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, authz.Unauthenticated("invalid credential")
	}

	p := principalFromClaims(claims)

	if v.checkVersion && claims.PermissionVersion != nil {
		live, err := v.versions.Get(ctx, p.ID)
		if err != nil {
			// The store is the only witness for revocation; if it cannot
			// answer, the credential is not provably valid.
			v.logger.WithError(err).Warn("permission version lookup failed")
			return nil, authz.Unauthenticated("credential verification unavailable")
		}
		if *claims.PermissionVersion < live {
			return nil, authz.Unauthenticated("credential revoked, re-authentication required")
		}
	}

	return p, nil
}

func principalFromClaims(claims *Claims) *principal.Principal {
	scopeLevel := claims.ScopeLevel
	if scopeLevel == "" {
		if claims.PrincipalType == principal.TypeAdmin {
			scopeLevel = principal.ScopeLevelPlatform
		} else {
			scopeLevel = principal.ScopeLevelTeam
		}
	}
	return &principal.Principal{
		ID:                claims.Subject,
		Email:             claims.Email,
		Type:              claims.PrincipalType,
		Scope:             principal.Scope{Level: scopeLevel, TeamID: claims.TeamID},
		Role:              claims.Role,
		CustomRoleID:      claims.CustomRoleID,
		PermissionVersion: claims.PermissionVersion,
	}
}
