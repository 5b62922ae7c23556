package rbac

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var roleRank = map[string]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// RoleRank returns the ordering rank of a workspace role. Unknown roles
// rank below member so they never pass a threshold check.
func RoleRank(role string) int {
	return roleRank[role]
}

func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// AtLeast reports whether role meets the minimum required role.
func AtLeast(role, minimum string) bool {
	return RoleRank(role) >= RoleRank(minimum)
}
