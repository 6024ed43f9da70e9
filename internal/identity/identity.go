package identity

import (
	"context"
	"strings"
)

// Identity describes the currently authenticated user as reported by the
// identity provider. A zero UID means "no user": every permission check
// answers false and every mutating operation refuses to run.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	SystemAdmin bool   `json:"system_admin"`
}

// IsZero reports whether no user is present.
func (id Identity) IsZero() bool {
	return strings.TrimSpace(id.UID) == ""
}

type ctxKey string

const identityKey ctxKey = "identity"

// ContextWithIdentity stores the authenticated user in the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	id.UID = strings.TrimSpace(id.UID)
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the authenticated user from the context.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityKey).(Identity)
	if !ok || v.IsZero() {
		return Identity{}, false
	}
	return v, true
}
