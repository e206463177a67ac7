package users

// Built-in roles. These exist in every tenant, are never namespaced away, and
// can never be deleted.
const (
	// RoleAnonymous is the unauthenticated principal, shared across tenants.
	RoleAnonymous = "anonymous"
	// RoleReadOnly may read but never write.
	RoleReadOnly = "readonly"
	// RoleUser is the default role applied on public creation.
	RoleUser = "user"
	// RoleAdmin manages accounts, roles, grants, and policies.
	RoleAdmin = "admin"
)

// BuiltinRoles lists the protected roles in display order.
var BuiltinRoles = []string{RoleAnonymous, RoleReadOnly, RoleUser, RoleAdmin}

// IsBuiltinRole reports whether the role is one of the four protected roles.
func IsBuiltinRole(role string) bool {
	switch role {
	case RoleAnonymous, RoleReadOnly, RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// roleRank orders roles for IsAtLeast checks. Unknown custom roles rank
// between readonly and admin, same as user.
func roleRank(role string) int {
	switch role {
	case RoleAnonymous:
		return 0
	case RoleReadOnly:
		return 1
	case RoleAdmin:
		return 3
	default:
		return 2
	}
}

// RoleIsAtLeast reports whether role meets or exceeds minRole.
func RoleIsAtLeast(role, minRole string) bool {
	return roleRank(role) >= roleRank(minRole)
}
