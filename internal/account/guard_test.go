package account

import (
	"testing"

	"krona.org/internal/identity"
)

func user(uid string) identity.Identity {
	return identity.Identity{UID: uid, DisplayName: uid}
}

func sysadmin() identity.Identity {
	return identity.Identity{UID: "ops", DisplayName: "ops", SystemAdmin: true}
}

func fixtureGuard() *Guard {
	return NewGuard(NewGraph(fixtureAccounts()))
}

func TestCanManage(t *testing.T) {
	g := fixtureGuard()

	cases := []struct {
		name      string
		user      identity.Identity
		accountID string
		want      bool
	}{
		{"owner manages", user("u1"), "root", true},
		{"admin manages", user("u2"), "team", true},
		{"viewer does not manage", user("u3"), "proj", false},
		{"non member does not manage", user("u9"), "root", false},
		{"zero identity rejected", identity.Identity{}, "root", false},
		{"unknown account rejected", user("u1"), "nope", false},
		{"sysadmin manages anything", sysadmin(), "proj", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.CanManage(tc.user, tc.accountID); got != tc.want {
				t.Fatalf("CanManage(%s, %s) = %v, want %v", tc.user.UID, tc.accountID, got, tc.want)
			}
		})
	}
}

func TestCanViewDirectMembership(t *testing.T) {
	g := fixtureGuard()
	if !g.CanView(user("u3"), "proj") {
		t.Fatal("viewer member should see own account")
	}
	if g.CanView(user("u9"), "proj") {
		t.Fatal("stranger should not see account")
	}
}

func TestCanViewAncestorEscalation(t *testing.T) {
	g := fixtureGuard()
	// u1 owns root, is not a member of proj, and still sees it.
	if !g.CanView(user("u1"), "proj") {
		t.Fatal("root owner should see descendant account")
	}
	// u3 is a viewer on proj only. Viewer role never escalates downward,
	// and membership of a child never grants visibility upward.
	if g.CanView(user("u3"), "team") {
		t.Fatal("child member should not see parent")
	}
	if g.CanView(user("u3"), "root") {
		t.Fatal("child member should not see grandparent")
	}
}

func TestCanViewSysadmin(t *testing.T) {
	g := fixtureGuard()
	if !g.CanView(sysadmin(), "proj") {
		t.Fatal("system admin should see every account")
	}
	if !g.CanView(sysadmin(), "old") {
		t.Fatal("system admin should see archived accounts too")
	}
}

func TestRoleOf(t *testing.T) {
	accounts := fixtureAccounts()
	var team Account
	for _, a := range accounts {
		if a.ID == "team" {
			team = a
		}
	}
	if got := RoleOf(team, "u2"); got != RoleAdmin {
		t.Fatalf("RoleOf u2 = %v, want admin", got)
	}
	if got := RoleOf(team, "u9"); got != RoleNone {
		t.Fatalf("RoleOf stranger = %v, want none", got)
	}
}
