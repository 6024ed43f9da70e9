package account

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// maxTreeDepth caps every ancestor/descendant walk. Corrupt data (a cyclic
// path or parent chain) must never turn a query into an infinite loop.
const maxTreeDepth = 64

// Graph is an immutable snapshot of all accounts with structural indexes
// computed once at construction. All read queries across the package operate
// on one Graph value and are deterministic for that snapshot.
type Graph struct {
	byID     map[string]Account
	children map[string][]Account
	all      []Account
}

// NewGraph indexes the given snapshot. Children lists hold only active
// accounts, ordered by name (case-insensitive, locale-aware).
func NewGraph(accounts []Account) *Graph {
	g := &Graph{
		byID:     make(map[string]Account, len(accounts)),
		children: make(map[string][]Account),
		all:      make([]Account, 0, len(accounts)),
	}
	for _, a := range accounts {
		if a.ID == "" {
			continue
		}
		g.byID[a.ID] = a
		g.all = append(g.all, a)
	}
	for _, a := range g.all {
		if !a.Active() || a.ParentID == "" {
			continue
		}
		g.children[a.ParentID] = append(g.children[a.ParentID], a)
	}
	c := newNameCollator()
	for parent := range g.children {
		sortAccountsByName(c, g.children[parent])
	}
	return g
}

// ByID resolves a single account.
func (g *Graph) ByID(id string) (Account, bool) {
	a, ok := g.byID[id]
	return a, ok
}

// Accounts returns every account in the snapshot, in input order.
func (g *Graph) Accounts() []Account {
	out := make([]Account, len(g.all))
	copy(out, g.all)
	return out
}

// Len reports the number of accounts in the snapshot.
func (g *Graph) Len() int { return len(g.all) }

// ChildrenOf returns the active accounts whose parent is id, ordered by name.
func (g *Graph) ChildrenOf(id string) []Account {
	kids := g.children[id]
	out := make([]Account, len(kids))
	copy(out, kids)
	return out
}

// AncestorsOf resolves each id in the account's path, root first. Ids that
// no longer resolve are skipped rather than failing the walk; the walk is
// bounded so a corrupted cyclic path cannot loop forever.
func (g *Graph) AncestorsOf(a Account) []Account {
	if len(a.Path) == 0 {
		return nil
	}
	out := make([]Account, 0, len(a.Path))
	seen := make(map[string]struct{}, len(a.Path))
	for i, id := range a.Path {
		if i >= maxTreeDepth {
			break
		}
		if id == "" || id == a.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ancestor, ok := g.byID[id]
		if !ok {
			continue
		}
		out = append(out, ancestor)
	}
	return out
}

func newNameCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

func sortAccountsByName(c *collate.Collator, accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		return c.CompareString(accounts[i].Name, accounts[j].Name) < 0
	})
}
