package principal

// Static role permission tables. Each tier is built structurally from the
// tier below it plus a fixed additional list, so a permission added to a
// lower tier propagates upward automatically.

// viewerPermissions is the base team tier. Every team member can at least
// see the tenant's resources.
var viewerPermissions = []Permission{
	"links:view",
	"pages:view",
	"qr:view",
	"campaigns:view",
	"analytics:view",
	"reports:view",
	"domains:view",
	"team:view",
}

// memberAdditional extends VIEWER with create/edit rights on content.
var memberAdditional = []Permission{
	"links:create",
	"links:edit",
	"pages:create",
	"pages:edit",
	"qr:create",
	"qr:edit",
	"campaigns:create",
	"campaigns:edit",
	"reports:create",
	"webhooks:view",
}

// adminAdditional extends MEMBER with destructive and team-management
// rights.
var adminAdditional = []Permission{
	"links:delete",
	"pages:delete",
	"qr:delete",
	"campaigns:delete",
	"reports:delete",
	"domains:create",
	"domains:delete",
	"webhooks:create",
	"webhooks:delete",
	"team:invite",
	"team:remove",
	"team:edit-role",
	"billing:view",
}

// ownerAdditional extends ADMIN with tenant-lifecycle rights.
var ownerAdditional = []Permission{
	"billing:manage",
	"settings:manage",
	"team:transfer",
	"team:delete",
	"roles:create",
	"roles:edit",
	"roles:delete",
}

// operatorPermissions is the base platform admin tier: read-only support
// access.
var operatorPermissions = []Permission{
	"admin:users:view",
	"admin:teams:view",
	"admin:links:view",
	"admin:billing:view",
	"admin:audit:view",
}

// platformAdminAdditional extends OPERATOR with mutation rights.
var platformAdminAdditional = []Permission{
	"admin:users:edit",
	"admin:users:suspend",
	"admin:teams:edit",
	"admin:teams:suspend",
	"admin:links:edit",
	"admin:billing:manage",
}

// superAdminAdditional completes the admin permission universe.
var superAdminAdditional = []Permission{
	"admin:users:delete",
	"admin:teams:delete",
	"admin:system:settings",
	"admin:roles:manage",
	"admin:announcements:manage",
}

var (
	teamRoleTable  map[Role]Set
	adminRoleTable map[Role]Set
	universe       Set
)

func init() {
	member := concat(viewerPermissions, memberAdditional)
	admin := concat(member, adminAdditional)
	owner := concat(admin, ownerAdditional)

	teamRoleTable = map[Role]Set{
		RoleViewer: NewSet(viewerPermissions...),
		RoleMember: NewSet(member...),
		RoleAdmin:  NewSet(admin...),
		RoleOwner:  NewSet(owner...),
	}

	platformAdmin := concat(operatorPermissions, platformAdminAdditional)
	superAdmin := concat(platformAdmin, superAdminAdditional)

	adminRoleTable = map[Role]Set{
		RoleOperator:   NewSet(operatorPermissions...),
		RoleAdmin:      NewSet(platformAdmin...),
		RoleSuperAdmin: NewSet(superAdmin...),
	}

	universe = NewSet(concat(owner, superAdmin)...)
}

func concat(base, additional []Permission) []Permission {
	out := make([]Permission, 0, len(base)+len(additional))
	out = append(out, base...)
	out = append(out, additional...)
	return out
}

// PermissionsForRole returns the static permission set for a role. The
// principal type selects which table applies, since the ADMIN name exists
// in both. Unknown roles resolve to an empty set, which is valid but
// maximally restrictive.
func PermissionsForRole(pt Type, r Role) Set {
	var s Set
	var ok bool
	if pt == TypeAdmin {
		s, ok = adminRoleTable[r]
	} else {
		s, ok = teamRoleTable[r]
	}
	if !ok {
		return Set{}
	}
	// Callers may mutate the returned set; hand out a copy.
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Universe returns every known permission, team and admin namespaces
// included. Internal services resolve to this set.
func Universe() Set {
	out := make(Set, len(universe))
	for p := range universe {
		out[p] = struct{}{}
	}
	return out
}

// TeamRoles lists the team role chain, lowest tier first.
func TeamRoles() []Role {
	return []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}
}

// AdminRoles lists the platform admin role chain, lowest tier first.
func AdminRoles() []Role {
	return []Role{RoleOperator, RoleAdmin, RoleSuperAdmin}
}
