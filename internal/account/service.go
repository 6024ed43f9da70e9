package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"krona.org/internal/identity"
	"krona.org/internal/ids"
)

// Event describes an account lifecycle change for subscribers.
type Event struct {
	Type      string    `json:"type"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name,omitempty"`
	ActorUID  string    `json:"actor_uid,omitempty"`
	MemberUID string    `json:"member_uid,omitempty"`
	At        time.Time `json:"at"`
}

// Event types emitted by the service.
const (
	EventAccountCreated    = "account.created"
	EventAccountUpdated    = "account.updated"
	EventAccountDeleted    = "account.deleted"
	EventMemberAdded       = "member.added"
	EventMemberRemoved     = "member.removed"
	EventMemberRoleChanged = "member.role_changed"
)

// EventSink receives lifecycle events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// Session holds one caller's current account selection. It is explicit
// per-caller state, never process-global, so concurrent sessions cannot
// interfere with each other.
type Session struct {
	CurrentAccountID string
}

// Service orchestrates all state-changing account operations. Each operation
// authenticates the caller, consults the permission guard, validates domain
// invariants, and only then delegates to the store; a failed check performs
// no partial writes. The service rebuilds its snapshot after every
// successful mutation.
//
// The service does not serialize mutations from other clients of the same
// store: two clients concurrently removing the same last owner remain a
// known last-writer-wins race at the store.
type Service struct {
	store Store
	now   func() time.Time
	sink  EventSink

	mu    sync.RWMutex
	graph *Graph
}

// Option configures Service behavior.
type Option func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithEvents attaches a lifecycle event sink.
func WithEvents(sink EventSink) Option {
	return func(s *Service) error {
		s.sink = sink
		return nil
	}
}

// NewService constructs a Service over the given store. Call Refresh before
// issuing queries.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	svc := &Service{
		store: store,
		now:   time.Now,
		graph: NewGraph(nil),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Refresh rebuilds the snapshot from the store's current data.
func (s *Service) Refresh(ctx context.Context) error {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return storeFailure(err)
	}
	g := NewGraph(accounts)
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
	return nil
}

// Graph returns the current snapshot.
func (s *Service) Graph() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Guard returns a permission guard bound to the current snapshot.
func (s *Service) Guard() *Guard {
	return NewGuard(s.Graph())
}

// AccountByID resolves an account the caller may view.
func (s *Service) AccountByID(ctx context.Context, accountID string) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if !NewGuard(g).CanView(user, accountID) {
		return Account{}, ErrUnauthorized
	}
	return a, nil
}

// RoleOf reports the caller-independent role of uid within an account.
func (s *Service) RoleOf(accountID, uid string) Role {
	a, ok := s.Graph().ByID(accountID)
	if !ok {
		return RoleNone
	}
	return RoleOf(a, uid)
}

// CanManage answers the manage check for the context user.
func (s *Service) CanManage(ctx context.Context, accountID string) bool {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return false
	}
	return s.Guard().CanManage(user, accountID)
}

// CanView answers the view check for the context user.
func (s *Service) CanView(ctx context.Context, accountID string) bool {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return false
	}
	return s.Guard().CanView(user, accountID)
}

// VisibleHierarchy returns the display hierarchy for the context user.
func (s *Service) VisibleHierarchy(ctx context.Context) []HierarchyEntry {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return nil
	}
	return s.Guard().VisibleHierarchy(user)
}

// CreateAccountInput carries the caller-supplied fields of a new account.
type CreateAccountInput struct {
	Name        string
	Description string
	ParentID    string
	Color       string
	Icon        string
}

// CreateAccount persists a new account with the caller as sole owner. When a
// parent is supplied and resolves, the child inherits the parent's path; a
// dangling parent reference degrades to a root account instead of failing.
// On success the caller's session is switched to the new account.
func (s *Service) CreateAccount(ctx context.Context, sess *Session, in CreateAccountInput) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Account{}, fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}

	g := s.Graph()
	var path []string
	parentID := strings.TrimSpace(in.ParentID)
	if parentID != "" {
		if parent, found := g.ByID(parentID); found {
			path = append(append([]string{}, parent.Path...), parent.ID)
		} else {
			parentID = ""
		}
	}

	now := s.now().UTC()
	a := Account{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ParentID:    parentID,
		Path:        path,
		Members: []Member{{
			UID:         user.UID,
			DisplayName: user.DisplayName,
			Role:        RoleOwner,
			JoinedAt:    now,
		}},
		Status:    StatusActive,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: user.UID,
	}
	created, err := s.store.Create(ctx, a)
	if err != nil {
		return Account{}, storeFailure(err)
	}
	s.refreshAfterWrite(ctx)
	if sess != nil {
		sess.CurrentAccountID = created.ID
	}
	s.publish(Event{Type: EventAccountCreated, AccountID: created.ID, Name: created.Name, ActorUID: user.UID, At: now})
	return created, nil
}

// UpdateAccount merges the update onto the account and refreshes UpdatedAt.
// Re-parenting is rejected outright: this core performs no cycle validation
// for parent or path edits.
func (s *Service) UpdateAccount(ctx context.Context, accountID string, upd Update) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if upd.ParentID != nil {
		return Account{}, fmt.Errorf("%w: re-parenting is not supported", ErrInvalidInput)
	}
	if !NewGuard(g).CanManage(user, accountID) {
		return Account{}, ErrUnauthorized
	}

	chg := Change{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Account{}, fmt.Errorf("%w: account name is required", ErrInvalidInput)
		}
		chg.Name = &name
		a.Name = name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		chg.Description = &desc
		a.Description = desc
	}
	if upd.Color != nil {
		chg.Color = upd.Color
		a.Color = *upd.Color
	}
	if upd.Icon != nil {
		chg.Icon = upd.Icon
		a.Icon = *upd.Icon
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != StatusActive && status != StatusArchived {
			return Account{}, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
		}
		chg.Status = &status
		a.Status = status
	}
	now := s.now().UTC()
	chg.UpdatedAt = &now
	a.UpdatedAt = now

	if err := s.store.Update(ctx, accountID, chg); err != nil {
		return Account{}, storeFailure(err)
	}
	s.refreshAfterWrite(ctx)
	s.publish(Event{Type: EventAccountUpdated, AccountID: a.ID, Name: a.Name, ActorUID: user.UID, At: now})
	return a, nil
}

// DeleteAccount terminally removes an account. Only owners (or system
// admins) may delete; the reserved personal account and accounts with
// active children are refused. If the caller's session pointed at the
// deleted account the selection falls back to the personal account when the
// caller is a member of it, else to any remaining visible active account,
// else to none.
func (s *Service) DeleteAccount(ctx context.Context, sess *Session, accountID string) error {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if accountID == PersonalAccountID {
		return ErrReservedAccount
	}
	if !user.SystemAdmin && RoleOf(a, user.UID) != RoleOwner {
		return ErrUnauthorized
	}
	if len(g.ChildrenOf(accountID)) > 0 {
		return ErrHasChildren
	}

	if err := s.store.Delete(ctx, accountID); err != nil {
		return storeFailure(err)
	}
	s.refreshAfterWrite(ctx)
	if sess != nil && sess.CurrentAccountID == accountID {
		sess.CurrentAccountID = s.fallbackSelection(user)
	}
	s.publish(Event{Type: EventAccountDeleted, AccountID: accountID, Name: a.Name, ActorUID: user.UID, At: s.now().UTC()})
	return nil
}

// AddMember appends a new member to the account. Granting the owner role is
// restricted to existing owners and system admins.
func (s *Service) AddMember(ctx context.Context, accountID, uid, displayName string, role Role) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Account{}, fmt.Errorf("%w: member uid is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return Account{}, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if !NewGuard(g).CanManage(user, accountID) {
		return Account{}, ErrUnauthorized
	}
	if _, exists := a.Member(uid); exists {
		return Account{}, fmt.Errorf("%w: %s", ErrAlreadyMember, uid)
	}
	if role == RoleOwner && !s.callerOwns(a, user) {
		return Account{}, ErrOwnerGrantRestricted
	}

	now := s.now().UTC()
	members := append(append([]Member{}, a.Members...), Member{
		UID:         uid,
		DisplayName: strings.TrimSpace(displayName),
		Role:        role,
		JoinedAt:    now,
	})
	a, err := s.writeMembers(ctx, a, members, now)
	if err != nil {
		return Account{}, err
	}
	s.publish(Event{Type: EventMemberAdded, AccountID: a.ID, Name: a.Name, ActorUID: user.UID, MemberUID: uid, At: now})
	return a, nil
}

// RemoveMember removes a member. The sole owner can never be removed, and
// removing any owner is restricted to owners and system admins.
func (s *Service) RemoveMember(ctx context.Context, accountID, uid string) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if !NewGuard(g).CanManage(user, accountID) {
		return Account{}, ErrUnauthorized
	}
	target, exists := a.Member(uid)
	if !exists {
		return Account{}, fmt.Errorf("%w: %s", ErrMemberNotFound, uid)
	}
	if target.Role == RoleOwner {
		if a.ownerCount() == 1 {
			return Account{}, ErrLastOwner
		}
		if !s.callerOwns(a, user) {
			return Account{}, ErrOwnerRemovalRestricted
		}
	}

	now := s.now().UTC()
	members := make([]Member, 0, len(a.Members)-1)
	for _, m := range a.Members {
		if m.UID != uid {
			members = append(members, m)
		}
	}
	a, err := s.writeMembers(ctx, a, members, now)
	if err != nil {
		return Account{}, err
	}
	s.publish(Event{Type: EventMemberRemoved, AccountID: a.ID, Name: a.Name, ActorUID: user.UID, MemberUID: uid, At: now})
	return a, nil
}

// UpdateMemberRole changes a member's role in place. Demoting the sole owner
// is refused, and any role change into or out of owner is restricted to
// owners and system admins.
func (s *Service) UpdateMemberRole(ctx context.Context, accountID, uid string, newRole Role) (Account, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, ErrUnauthenticated
	}
	if !newRole.Valid() {
		return Account{}, fmt.Errorf("%w: invalid role", ErrInvalidInput)
	}
	g := s.Graph()
	a, found := g.ByID(accountID)
	if !found {
		return Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if !NewGuard(g).CanManage(user, accountID) {
		return Account{}, ErrUnauthorized
	}
	target, exists := a.Member(uid)
	if !exists {
		return Account{}, fmt.Errorf("%w: %s", ErrMemberNotFound, uid)
	}
	if target.Role == RoleOwner && newRole != RoleOwner && a.ownerCount() == 1 {
		return Account{}, ErrLastOwner
	}
	if (target.Role == RoleOwner || newRole == RoleOwner) && !s.callerOwns(a, user) {
		return Account{}, ErrOwnerRoleChangeRestricted
	}

	now := s.now().UTC()
	members := make([]Member, len(a.Members))
	copy(members, a.Members)
	for i := range members {
		if members[i].UID == uid {
			members[i].Role = newRole
		}
	}
	a, err := s.writeMembers(ctx, a, members, now)
	if err != nil {
		return Account{}, err
	}
	s.publish(Event{Type: EventMemberRoleChanged, AccountID: a.ID, Name: a.Name, ActorUID: user.UID, MemberUID: uid, At: now})
	return a, nil
}

// SetCurrentAccount switches the session's current account selection. An
// empty accountID clears the selection.
func (s *Service) SetCurrentAccount(ctx context.Context, sess *Session, accountID string) error {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if sess == nil {
		return fmt.Errorf("%w: session is required", ErrInvalidInput)
	}
	if accountID == "" {
		sess.CurrentAccountID = ""
		return nil
	}
	g := s.Graph()
	if _, found := g.ByID(accountID); !found {
		return fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	if !NewGuard(g).CanView(user, accountID) {
		return ErrUnauthorized
	}
	sess.CurrentAccountID = accountID
	return nil
}

// EnsurePersonalAccount provisions a personal workspace for a user who can
// see no active account at all while the store already holds data (a new
// user on an initialized store). An account literally named "Personal" that
// already lists the user as a member short-circuits provisioning, defending
// against duplicate creation races. The bool result reports whether a new
// account was created.
func (s *Service) EnsurePersonalAccount(ctx context.Context, sess *Session) (Account, bool, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return Account{}, false, ErrUnauthenticated
	}
	g := s.Graph()
	if g.Len() == 0 {
		// Store not initialized yet; nothing to provision against.
		return Account{}, false, nil
	}
	if entries := NewGuard(g).VisibleHierarchy(user); len(entries) > 0 {
		return entries[0].Account, false, nil
	}
	for _, a := range g.Accounts() {
		if a.Name != PersonalAccountName {
			continue
		}
		if _, member := a.Member(user.UID); member {
			if sess != nil && sess.CurrentAccountID == "" {
				sess.CurrentAccountID = a.ID
			}
			return a, false, nil
		}
	}

	now := s.now().UTC()
	id := PersonalAccountID
	if _, taken := g.ByID(id); taken {
		id = ids.New()
	}
	a := Account{
		ID:   id,
		Name: PersonalAccountName,
		Members: []Member{{
			UID:         user.UID,
			DisplayName: user.DisplayName,
			Role:        RoleOwner,
			JoinedAt:    now,
		}},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: user.UID,
	}
	created, err := s.store.Create(ctx, a)
	if err != nil {
		return Account{}, false, storeFailure(err)
	}
	s.refreshAfterWrite(ctx)
	if sess != nil {
		sess.CurrentAccountID = created.ID
	}
	s.publish(Event{Type: EventAccountCreated, AccountID: created.ID, Name: created.Name, ActorUID: user.UID, At: now})
	return created, true, nil
}

func (s *Service) writeMembers(ctx context.Context, a Account, members []Member, now time.Time) (Account, error) {
	chg := Change{Members: &members, UpdatedAt: &now}
	if err := s.store.Update(ctx, a.ID, chg); err != nil {
		return Account{}, storeFailure(err)
	}
	s.refreshAfterWrite(ctx)
	a.Members = members
	a.UpdatedAt = now
	return a, nil
}

func (s *Service) callerOwns(a Account, user identity.Identity) bool {
	return user.SystemAdmin || RoleOf(a, user.UID) == RoleOwner
}

func (s *Service) fallbackSelection(user identity.Identity) string {
	g := s.Graph()
	if personal, ok := g.ByID(PersonalAccountID); ok && personal.Active() {
		if _, member := personal.Member(user.UID); member {
			return personal.ID
		}
	}
	if entries := NewGuard(g).VisibleHierarchy(user); len(entries) > 0 {
		return entries[0].Account.ID
	}
	return ""
}

// refreshAfterWrite rebuilds the snapshot so the mutation is observed
// immediately. A failed rebuild is tolerated: the periodic refresh in the
// server loop converges the snapshot.
func (s *Service) refreshAfterWrite(ctx context.Context) {
	_ = s.Refresh(ctx)
}

func (s *Service) publish(evt Event) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(evt)
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}
