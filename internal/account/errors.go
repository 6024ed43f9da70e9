package account

import "errors"

// Every sentinel below reflects a policy or invariant violation, not a
// transient fault; none of them is retryable. Store-layer faults are wrapped
// in ErrStore and passed through unchanged.
var (
	ErrUnauthenticated = errors.New("account: not authenticated")
	ErrUnauthorized    = errors.New("account: not authorized")
	ErrNotFound        = errors.New("account: not found")
	ErrInvalidInput    = errors.New("account: invalid input")

	ErrAlreadyMember  = errors.New("account: user is already a member")
	ErrMemberNotFound = errors.New("account: member not found")

	ErrOwnerGrantRestricted      = errors.New("account: only owners may grant the owner role")
	ErrOwnerRemovalRestricted    = errors.New("account: only owners may remove an owner")
	ErrOwnerRoleChangeRestricted = errors.New("account: only owners may change an owner's role")
	ErrLastOwner                 = errors.New("account: operation would leave the account without an owner")

	ErrHasChildren     = errors.New("account: account has active child accounts")
	ErrReservedAccount = errors.New("account: the personal account is reserved")

	ErrStore = errors.New("account: store failure")
)
