package account

import "context"

// Store is the document persistence collaborator. Implementations must
// provide atomic single-record writes and a List returning the current
// snapshot; the service layers no retry or caching on top of it.
type Store interface {
	// List returns the current snapshot of all account records.
	List(ctx context.Context) ([]Account, error)

	// Create persists a new account record.
	Create(ctx context.Context, a Account) (Account, error)

	// Update applies a partial record with merge semantics: only non-nil
	// fields of the change are written.
	Update(ctx context.Context, id string, chg Change) error

	// Delete removes the account record terminally.
	Delete(ctx context.Context, id string) error
}
