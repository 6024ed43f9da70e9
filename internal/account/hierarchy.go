package account

import "krona.org/internal/identity"

// HierarchyEntry is one account in the display hierarchy. Depth is relative
// to the visible set: an account whose true parent is not visible to the
// user is rendered as a root at depth 0.
type HierarchyEntry struct {
	Account Account `json:"account"`
	Depth   int     `json:"depth"`
}

// VisibleHierarchy returns the active accounts the user may view, in
// pre-order depth-first order with children sorted alphabetically by name.
// This ordering is the contract the UI consumes for indentation rendering.
func (g *Guard) VisibleHierarchy(user identity.Identity) []HierarchyEntry {
	if user.IsZero() {
		return nil
	}

	visible := make(map[string]Account)
	for _, a := range g.graph.Accounts() {
		if !a.Active() {
			continue
		}
		if g.CanView(user, a.ID) {
			visible[a.ID] = a
		}
	}
	if len(visible) == 0 {
		return nil
	}

	// An account is a display root when it has no parent, or when its true
	// parent is hidden from this user.
	var roots []Account
	for _, a := range visible {
		if a.ParentID == "" {
			roots = append(roots, a)
			continue
		}
		if _, ok := visible[a.ParentID]; !ok {
			roots = append(roots, a)
		}
	}
	sortAccountsByName(newNameCollator(), roots)

	out := make([]HierarchyEntry, 0, len(visible))
	visited := make(map[string]struct{}, len(visible))
	var walk func(a Account, depth int)
	walk = func(a Account, depth int) {
		if depth > maxTreeDepth {
			return
		}
		if _, dup := visited[a.ID]; dup {
			return
		}
		visited[a.ID] = struct{}{}
		out = append(out, HierarchyEntry{Account: a, Depth: depth})
		for _, child := range g.graph.ChildrenOf(a.ID) {
			if _, ok := visible[child.ID]; !ok {
				continue
			}
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return out
}
