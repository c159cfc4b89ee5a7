package domain

// Role is an ordered capability level. A higher role can perform
// every action a lower role can.
type Role string

const (
	RoleAnonymous Role = "ANONYMOUS"
	RoleMember    Role = "MEMBER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
	RoleRootAdmin Role = "ROOT_ADMIN"
)

var roleRank = map[Role]int{
	RoleAnonymous: 0,
	RoleMember:    1,
	RoleModerator: 2,
	RoleAdmin:     3,
	RoleRootAdmin: 4,
}

// RoleFromString maps a stored role column to a Role, defaulting to
// ANONYMOUS for anything unknown.
func RoleFromString(s string) Role {
	r := Role(s)
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleAnonymous
}

// AtLeast reports whether r grants the capabilities of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}
