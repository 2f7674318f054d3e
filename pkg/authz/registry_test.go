package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnkday/authcore/pkg/principal"
)

func TestRegistryResolveUnregistered(t *testing.T) {
	reg := NewRegistry()

	req, found := reg.Resolve("GET", "/api/unknown")
	assert.False(t, found)
	assert.Equal(t, Requirement{}, req)
}

func TestRegistryGroupCoversOperations(t *testing.T) {
	reg := NewRegistry()
	reg.Group("/api/links", Require("links:view"))

	req, found := reg.Resolve("GET", "/api/links")
	require.True(t, found)
	assert.Equal(t, []principal.Permission{"links:view"}, req.RequiredPermissions)

	req, found = reg.Resolve("GET", "/api/links/{id}/stats")
	require.True(t, found)
	assert.Equal(t, []principal.Permission{"links:view"}, req.RequiredPermissions)

	_, found = reg.Resolve("GET", "/api/pages")
	assert.False(t, found)
}

func TestRegistryOperationOverridesGroup(t *testing.T) {
	reg := NewRegistry()
	reg.Group("/api/links", Require("links:view"))
	reg.Operation("DELETE", "/api/links/{id}", Require("links:delete"))

	req, found := reg.Resolve("DELETE", "/api/links/{id}")
	require.True(t, found)
	assert.Equal(t, []principal.Permission{"links:delete"}, req.RequiredPermissions)

	// Other operations still inherit the group requirement.
	req, _ = reg.Resolve("GET", "/api/links/{id}")
	assert.Equal(t, []principal.Permission{"links:view"}, req.RequiredPermissions)
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()
	reg.Group("/api", Require("links:view"))
	reg.Group("/api/admin", AdminOnly())

	req, found := reg.Resolve("GET", "/api/admin/stats")
	require.True(t, found)
	assert.True(t, req.AdminOnly)
	assert.Empty(t, req.RequiredPermissions)

	req, _ = reg.Resolve("GET", "/api/links")
	assert.False(t, req.AdminOnly)
}

func TestRegistryMergeFieldwise(t *testing.T) {
	reg := NewRegistry()
	reg.Group("/api/billing", Require("billing:view").WithoutScopeCheck())
	reg.Operation("POST", "/api/billing/charge", Requirement{OwnerOnly: true})

	req, found := reg.Resolve("POST", "/api/billing/charge")
	require.True(t, found)
	// The operation adds OwnerOnly but keeps the group's list and bypass.
	assert.Equal(t, []principal.Permission{"billing:view"}, req.RequiredPermissions)
	assert.True(t, req.OwnerOnly)
	assert.True(t, req.BypassTenantScope)
}

func TestRegistryPublicOperationDropsGroupDemands(t *testing.T) {
	reg := NewRegistry()
	reg.Group("/api/links", Require("links:view"))
	reg.Operation("GET", "/api/links/{id}/preview", Public())

	req, found := reg.Resolve("GET", "/api/links/{id}/preview")
	require.True(t, found)
	assert.True(t, req.Public)
	assert.Empty(t, req.RequiredPermissions)
	assert.False(t, req.OwnerOnly)
}

func TestRegistryMethodIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Operation("post", "/api/links", Require("links:create"))

	req, found := reg.Resolve("POST", "/api/links")
	require.True(t, found)
	assert.Equal(t, []principal.Permission{"links:create"}, req.RequiredPermissions)
}

func TestRegistryConditionalOverride(t *testing.T) {
	reg := NewRegistry()
	cp := ConditionalPermission{
		Permission: "links:delete",
		Conditions: []Condition{{Field: "resource.createdBy", Operator: OpEq, Value: "${user.id}"}},
	}
	reg.Group("/api/links", Require("links:view"))
	reg.Operation("DELETE", "/api/links/{id}", Require("links:delete").When(cp))

	req, _ := reg.Resolve("DELETE", "/api/links/{id}")
	require.NotNil(t, req.Conditional)
	assert.Equal(t, principal.Permission("links:delete"), req.Conditional.Permission)
}
