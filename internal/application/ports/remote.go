package ports

import (
	"context"

	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// RemoteCollection is the capability interface for one per-user, per-kind
// cloud collection. Records are keyed by a server-assigned document ID; the
// local integer ID never crosses this boundary.
type RemoteCollection[T ledger.Syncable] interface {
	// Create uploads a new record and returns the server-assigned cloud ID.
	Create(ctx context.Context, userID string, rec T) (string, error)

	// Update overwrites the document addressed by the record's cloud ID.
	Update(ctx context.Context, userID string, rec T) error

	// Delete removes the document with the given cloud ID. Deleting a
	// document that is already gone is not an error.
	Delete(ctx context.Context, userID, cloudID string) error

	// ListAll fetches the complete collection for the user. Full list, not
	// incremental: acceptable at personal-ledger volumes.
	ListAll(ctx context.Context, userID string) ([]T, error)
}

// RemoteStorePort bundles the three syncable collections of one cloud store.
type RemoteStorePort interface {
	Categories() RemoteCollection[*ledger.Category]
	Transactions() RemoteCollection[*ledger.Transaction]
	Budgets() RemoteCollection[*ledger.Budget]
}

// ConnectivityPort answers the single question consulted before any sync
// attempt. Synchronous, non-blocking, best effort: a stale answer near a
// network transition is acceptable.
type ConnectivityPort interface {
	Connected() bool
}

// IdentityPort exposes the current authenticated principal.
type IdentityPort interface {
	// CurrentUserID returns the principal's identifier, or false when nobody
	// is signed in. Sync is a no-op without one.
	CurrentUserID() (string, bool)
}
