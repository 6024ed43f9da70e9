package account

// RoleOf returns the role uid holds within the account, or RoleNone when the
// user is not a member. Member sets are household/team sized, so a linear
// scan is fine.
func RoleOf(a Account, uid string) Role {
	if uid == "" {
		return RoleNone
	}
	m, ok := a.Member(uid)
	if !ok {
		return RoleNone
	}
	return m.Role
}
