package account

import "krona.org/internal/identity"

// Guard answers manage/view authorization questions against one Graph
// snapshot. All checks are synchronous and side-effect free, so they are
// safe to call before any mutating operation.
type Guard struct {
	graph *Graph
}

// NewGuard wraps a snapshot.
func NewGuard(g *Graph) *Guard {
	return &Guard{graph: g}
}

// CanManage reports whether the user may mutate the account: system admins
// always may, otherwise the user must hold owner or admin directly.
func (g *Guard) CanManage(user identity.Identity, accountID string) bool {
	if user.IsZero() {
		return false
	}
	if user.SystemAdmin {
		return true
	}
	a, ok := g.graph.ByID(accountID)
	if !ok {
		return false
	}
	return RoleOf(a, user.UID).AtLeast(RoleAdmin)
}

// CanView reports whether the user may see the account. Direct membership of
// any role suffices. Otherwise an owner or admin role on any ancestor grants
// visibility downward; members of a child never gain visibility upward.
func (g *Guard) CanView(user identity.Identity, accountID string) bool {
	if user.IsZero() {
		return false
	}
	if user.SystemAdmin {
		return true
	}
	a, ok := g.graph.ByID(accountID)
	if !ok {
		return false
	}
	if RoleOf(a, user.UID) != RoleNone {
		return true
	}
	for _, ancestor := range g.graph.AncestorsOf(a) {
		if RoleOf(ancestor, user.UID).AtLeast(RoleAdmin) {
			return true
		}
	}
	return false
}
