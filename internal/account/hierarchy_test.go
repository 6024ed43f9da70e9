package account

import (
	"testing"

	"krona.org/internal/identity"
)

func hierarchyIDs(entries []HierarchyEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Account.ID)
	}
	return out
}

func TestVisibleHierarchyPreOrder(t *testing.T) {
	g := fixtureGuard()
	// u1 owns root, so every active descendant is visible. Children are
	// walked in case-insensitive name order under each parent.
	got := hierarchyIDs(g.VisibleHierarchy(user("u1")))
	want := []string{"root", "apps", "beta", "team", "proj"}
	if len(got) != len(want) {
		t.Fatalf("hierarchy %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hierarchy %v, want %v", got, want)
		}
	}
}

func TestVisibleHierarchyDepths(t *testing.T) {
	g := fixtureGuard()
	depths := make(map[string]int)
	for _, e := range g.VisibleHierarchy(user("u1")) {
		depths[e.Account.ID] = e.Depth
	}
	if depths["root"] != 0 || depths["team"] != 1 || depths["proj"] != 2 {
		t.Fatalf("unexpected depths: %v", depths)
	}
}

func TestVisibleHierarchyHiddenParentBecomesRoot(t *testing.T) {
	g := fixtureGuard()
	// u2 sees team (admin) and proj (owner) but not root. team must be
	// rendered as a root at depth 0 with proj nested under it.
	entries := g.VisibleHierarchy(user("u2"))
	if len(entries) != 2 {
		t.Fatalf("expected 2 visible accounts, got %v", hierarchyIDs(entries))
	}
	if entries[0].Account.ID != "team" || entries[0].Depth != 0 {
		t.Fatalf("expected team at depth 0, got %s depth %d", entries[0].Account.ID, entries[0].Depth)
	}
	if entries[1].Account.ID != "proj" || entries[1].Depth != 1 {
		t.Fatalf("expected proj at depth 1, got %s depth %d", entries[1].Account.ID, entries[1].Depth)
	}
}

func TestVisibleHierarchyExcludesArchived(t *testing.T) {
	g := fixtureGuard()
	for _, id := range hierarchyIDs(g.VisibleHierarchy(user("u1"))) {
		if id == "old" {
			t.Fatal("archived account present in hierarchy")
		}
	}
}

func TestVisibleHierarchyZeroIdentity(t *testing.T) {
	g := fixtureGuard()
	if got := g.VisibleHierarchy(identity.Identity{}); got != nil {
		t.Fatalf("expected nil hierarchy for anonymous caller, got %v", hierarchyIDs(got))
	}
}

func TestVisibleHierarchyBoundedOnCycle(t *testing.T) {
	// Two accounts that claim each other as parents have no display root.
	// The walk must terminate and drop the cycle instead of looping.
	accounts := []Account{
		{ID: "a", Name: "A", ParentID: "b", Path: []string{"b"}, Status: StatusActive,
			Members: []Member{member("u1", RoleOwner)}},
		{ID: "b", Name: "B", ParentID: "a", Path: []string{"a"}, Status: StatusActive,
			Members: []Member{member("u1", RoleOwner)}},
		{ID: "solo", Name: "Solo", Status: StatusActive,
			Members: []Member{member("u1", RoleOwner)}},
	}
	g := NewGuard(NewGraph(accounts))
	entries := g.VisibleHierarchy(user("u1"))
	if len(entries) != 1 || entries[0].Account.ID != "solo" {
		t.Fatalf("cycle walk produced %v", hierarchyIDs(entries))
	}
}
