package account

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// PersonalAccountID is the reserved identifier of a user's default
	// private workspace. It can never be deleted.
	PersonalAccountID = "personal"

	// PersonalAccountName is the display name given to auto-provisioned
	// personal workspaces.
	PersonalAccountName = "Personal"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Role is the privilege level a member holds within one account. The zero
// value means "not a member". Roles form a total order:
// owner > admin > member > viewer.
type Role int8

const (
	RoleNone Role = iota
	RoleViewer
	RoleMember
	RoleAdmin
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleMember: "member",
	RoleAdmin:  "admin",
	RoleOwner:  "owner",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "none"
}

// AtLeast reports whether r grants at least the privilege of other.
func (r Role) AtLeast(other Role) bool { return r >= other }

// Valid reports whether r is one of the four assignable roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a role name to its Role value.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// MarshalJSON encodes the role under its wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role from its wire name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Member is one user's membership in one account, unique by UID.
type Member struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Account is a workspace node in the tenant hierarchy.
//
// Path holds the ordered ancestor ids from root to the immediate parent;
// a root account carries an empty path. Path of a child always equals
// parent.Path + [parent.ID].
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_account_id,omitempty"`
	Path        []string  `json:"path"`
	Members     []Member  `json:"members"`
	Status      string    `json:"status"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// Active reports whether the account participates in hierarchy and
// visibility queries.
func (a Account) Active() bool { return a.Status == StatusActive }

// Member returns the membership record for uid, if any.
func (a Account) Member(uid string) (Member, bool) {
	for _, m := range a.Members {
		if m.UID == uid {
			return m, true
		}
	}
	return Member{}, false
}

func (a Account) ownerCount() int {
	n := 0
	for _, m := range a.Members {
		if m.Role == RoleOwner {
			n++
		}
	}
	return n
}

// Update carries a partial account mutation with merge semantics: only
// non-nil fields change. ParentID is present solely so the service can
// reject re-parenting attempts explicitly.
type Update struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	Status      *string
	ParentID    *string
}

// Change is the partial record handed to the store. Only non-nil fields
// are written.
type Change struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	Status      *string
	Members     *[]Member
	UpdatedAt   *time.Time
}
