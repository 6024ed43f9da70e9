package account

// Scoped is implemented by domain records that carry account scoping
// metadata: the owning account id plus its denormalized ancestor chain.
// Records without an owning account are global and always visible.
type Scoped interface {
	ScopeAccountID() string
	ScopeAccountPath() []string
}

// FilterByAccount returns the subset of items visible under the current
// account selection. An empty currentAccountID means no scoping is active
// and the input is returned unchanged.
//
// An item is kept when it is unscoped, when it belongs to the current
// account directly, or when the current account appears in the item's
// account path (the item lives in a descendant and surfaces upward).
//
// This is a pure predicate filter with no permission checks: callers must
// already have restricted currentAccountID to one the user may view.
func FilterByAccount[T Scoped](items []T, currentAccountID string) []T {
	if currentAccountID == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if inScope(item, currentAccountID) {
			out = append(out, item)
		}
	}
	return out
}

func inScope(item Scoped, currentAccountID string) bool {
	id := item.ScopeAccountID()
	if id == "" {
		return true
	}
	if id == currentAccountID {
		return true
	}
	for _, ancestor := range item.ScopeAccountPath() {
		if ancestor == currentAccountID {
			return true
		}
	}
	return false
}
