package domain

// User is an authenticated account. Anonymous visitors are represented
// by a nil *User, never by a zero-value struct.
type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`
}

// CapabilityRole resolves the stored role column to an ordered Role.
// Safe on a nil receiver so handlers can call it on unauthenticated
// requests.
func (u *User) CapabilityRole() Role {
	if u == nil {
		return RoleAnonymous
	}
	return RoleFromString(u.Role)
}
