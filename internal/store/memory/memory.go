// Package memory provides an in-process account store used by tests and the
// development server.
package memory

import (
	"context"
	"fmt"
	"sync"

	"krona.org/internal/account"
	"krona.org/internal/ids"
)

var _ account.Store = (*Store)(nil)

// Store implements account.Store with in-process concurrency safety.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]account.Account
	order    []string
}

// New creates an empty store.
func New() *Store {
	return &Store{accounts: make(map[string]account.Account)}
}

// Seed inserts records directly, bypassing validation. Test helper.
func (s *Store) Seed(accounts ...account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		if _, exists := s.accounts[a.ID]; !exists {
			s.order = append(s.order, a.ID)
		}
		s.accounts[a.ID] = cloneAccount(a)
	}
}

func (s *Store) List(ctx context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]account.Account, 0, len(s.accounts))
	for _, id := range s.order {
		out = append(out, cloneAccount(s.accounts[id]))
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, a account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	if _, exists := s.accounts[a.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s already exists", a.ID)
	}
	s.accounts[a.ID] = cloneAccount(a)
	s.order = append(s.order, a.ID)
	return a, nil
}

func (s *Store) Update(ctx context.Context, id string, chg account.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s does not exist", id)
	}
	if chg.Name != nil {
		a.Name = *chg.Name
	}
	if chg.Description != nil {
		a.Description = *chg.Description
	}
	if chg.Color != nil {
		a.Color = *chg.Color
	}
	if chg.Icon != nil {
		a.Icon = *chg.Icon
	}
	if chg.Status != nil {
		a.Status = *chg.Status
	}
	if chg.Members != nil {
		a.Members = append([]account.Member{}, (*chg.Members)...)
	}
	if chg.UpdatedAt != nil {
		a.UpdatedAt = *chg.UpdatedAt
	}
	s.accounts[id] = a
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s does not exist", id)
	}
	delete(s.accounts, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneAccount(a account.Account) account.Account {
	out := a
	out.Path = append([]string{}, a.Path...)
	out.Members = append([]account.Member{}, a.Members...)
	return out
}
