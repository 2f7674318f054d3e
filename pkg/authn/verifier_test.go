package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnkday/authcore/pkg/authz"
	"github.com/lnkday/authcore/pkg/principal"
)

var testSecret = []byte("test-secret")

// signToken builds a signed credential for tests.
func signToken(t *testing.T, claims *Claims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func userClaims(sub string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "u@lnk.day",
		PrincipalType: principal.TypeUser,
		TeamID:        "team-1",
		Role:          principal.RoleMember,
	}
}

type fakeVersions struct {
	versions map[string]int64
	err      error
}

func (f *fakeVersions) Get(_ context.Context, principalID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.versions[principalID], nil
}

func TestVerifyMissingCredential(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)

	p, err := v.Verify(context.Background(), signToken(t, userClaims("user-1"), testSecret))
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, principal.TypeUser, p.Type)
	assert.Equal(t, "team-1", p.Scope.TeamID)
	assert.Equal(t, principal.ScopeLevelTeam, p.Scope.Level, "user scope defaults to team level")
	assert.Equal(t, principal.RoleMember, p.Role)
}

func TestVerifyAdminScopeDefaultsToPlatform(t *testing.T) {
	v := NewVerifier(testSecret)

	claims := userClaims("adm-1")
	claims.PrincipalType = principal.TypeAdmin
	claims.TeamID = ""
	claims.Role = principal.RoleOperator

	p, err := v.Verify(context.Background(), signToken(t, claims, testSecret))
	require.NoError(t, err)
	assert.Equal(t, principal.ScopeLevelPlatform, p.Scope.Level)
	assert.True(t, p.IsPlatformAdmin())
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)

	claims := userClaims("user-1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := v.Verify(context.Background(), signToken(t, claims, testSecret))
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyWrongSignature(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Verify(context.Background(), signToken(t, userClaims("user-1"), []byte("other-secret")))
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
}

func TestVerifyMalformedToken(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.Verify(context.Background(), "not.a.token")
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
}

func TestVerifyMissingSubject(t *testing.T) {
	v := NewVerifier(testSecret)

	claims := userClaims("")
	_, err := v.Verify(context.Background(), signToken(t, claims, testSecret))
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	v := NewVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, userClaims("user-1"))
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	require.Error(t, err)
	assert.True(t, authz.IsUnauthenticated(err))
}

func TestVerifyInternalToken(t *testing.T) {
	v := NewVerifier(testSecret, WithInternalToken("shared-internal-secret"))

	p, err := v.Verify(context.Background(), "shared-internal-secret")
	require.NoError(t, err)
	assert.Equal(t, InternalServicePrincipalID, p.ID)
	assert.True(t, p.IsInternalService())
	assert.Equal(t, principal.ScopeLevelPlatform, p.Scope.Level)

	_, err = v.Verify(context.Background(), "wrong-internal-secret")
	require.Error(t, err)
}

func TestVerifyVersionCheck(t *testing.T) {
	versions := &fakeVersions{versions: map[string]int64{"user-1": 3}}
	v := NewVerifier(testSecret, WithVersionCheck(versions))

	embed := func(n int64) *Claims {
		c := userClaims("user-1")
		c.PermissionVersion = &n
		return c
	}

	t.Run("current version passes", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signToken(t, embed(3), testSecret))
		assert.NoError(t, err)
	})

	t.Run("newer version passes", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signToken(t, embed(4), testSecret))
		assert.NoError(t, err)
	})

	t.Run("stale version is revoked", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signToken(t, embed(2), testSecret))
		require.Error(t, err)
		assert.True(t, authz.IsUnauthenticated(err))
		assert.Contains(t, err.Error(), "revoked")
	})

	t.Run("token without version skips the check", func(t *testing.T) {
		_, err := v.Verify(context.Background(), signToken(t, userClaims("user-1"), testSecret))
		assert.NoError(t, err)
	})

	t.Run("store failure fails closed", func(t *testing.T) {
		broken := NewVerifier(testSecret, WithVersionCheck(&fakeVersions{err: errors.New("redis down")}))
		_, err := broken.Verify(context.Background(), signToken(t, embed(3), testSecret))
		require.Error(t, err)
		assert.True(t, authz.IsUnauthenticated(err))
	})
}
