// Package ports defines the application layer port interfaces following hexagonal architecture.
// Ports are abstractions that allow the application core to interact with external systems
// (adapters) without knowing their implementation details.
package ports

import (
	"context"

	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// SyncStore is the sync-aware surface every syncable repository exposes.
// The orchestrator drives push and pull cycles exclusively through it; the
// user-facing CRUD surface lives on the kind-specific ports below.
//
// All reads are scoped by user ID so cross-user leakage is structurally
// impossible.
type SyncStore[T ledger.Syncable] interface {
	// PendingSync returns every record whose status is not SYNCED.
	PendingSync(ctx context.Context, userID string) ([]T, error)

	// FindByCloudID looks up the local record for a remote document.
	// Returns errors.ErrRecordNotFound when no local copy exists.
	FindByCloudID(ctx context.Context, userID, cloudID string) (T, error)

	// InsertFromRemote inserts a record pulled from the cloud as already
	// reconciled: status SYNCED, user ID forced to the current user.
	InsertFromRemote(ctx context.Context, rec T) (int64, error)

	// OverwriteFromRemote replaces the record's fields with the remote
	// values, preserving the local ID, and sets status SYNCED.
	OverwriteFromRemote(ctx context.Context, localID int64, rec T) error

	// UpdateSyncStatus moves a record to the given status and stamps
	// last_modified.
	UpdateSyncStatus(ctx context.Context, localID int64, status ledger.SyncStatus, timestamp int64) error

	// UpdateCloudID records the server-assigned document ID and marks the
	// record SYNCED. The cloud ID is immutable once set except through this
	// explicit re-link.
	UpdateCloudID(ctx context.Context, localID int64, cloudID string, timestamp int64) error

	// Purge hard-deletes the row. Called after a remote delete succeeds, or
	// directly for records that never reached the cloud.
	Purge(ctx context.Context, localID int64) error

	// AdoptUser re-owns every record belonging to fromUserID and marks it
	// PENDING_UPLOAD, so data created before sign-in reaches the cloud.
	AdoptUser(ctx context.Context, fromUserID, toUserID string, timestamp int64) error

	// CountPending returns the number of records awaiting sync.
	CountPending(ctx context.Context, userID string) (int, error)
}

// UploadMarker queues a detached flip to PENDING_UPLOAD for a record whose
// local write already committed. Repositories call it after every insert and
// update; the call never blocks and never reports failure to the write path.
// Until the flip is applied the record reads as SYNCED, which a later write
// or cycle corrects.
type UploadMarker interface {
	MarkForUpload(localID int64, kind ledger.EntityKind)
}

// CategoryStoragePort is the local store surface for categories.
type CategoryStoragePort interface {
	SyncStore[*ledger.Category]

	// Create inserts a user-authored category and returns its local ID. The
	// row lands as SYNCED; a detached mark queues the flip to PENDING_UPLOAD
	// after the insert has committed.
	Create(ctx context.Context, c *ledger.Category) (int64, error)

	// CreateSeeded inserts a locally seeded default as SYNCED.
	CreateSeeded(ctx context.Context, c *ledger.Category) (int64, error)

	Get(ctx context.Context, userID string, localID int64) (*ledger.Category, error)
	List(ctx context.Context, userID string) ([]*ledger.Category, error)
	Update(ctx context.Context, c *ledger.Category) error

	// Delete applies the two-phase rule: records with a cloud ID are marked
	// PENDING_DELETE and purged after the remote delete succeeds; records
	// without one are purged immediately. Referencing transactions get their
	// category nulled, referencing budgets are deleted.
	Delete(ctx context.Context, userID string, localID int64) error
}

// TransactionStoragePort is the local store surface for transactions.
type TransactionStoragePort interface {
	SyncStore[*ledger.Transaction]

	Create(ctx context.Context, tx *ledger.Transaction) (int64, error)
	Get(ctx context.Context, userID string, localID int64) (*ledger.Transaction, error)
	List(ctx context.Context, userID string) ([]*ledger.Transaction, error)
	ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*ledger.Transaction, error)
	Update(ctx context.Context, tx *ledger.Transaction) error
	Delete(ctx context.Context, userID string, localID int64) error
}

// BudgetStoragePort is the local store surface for budgets.
type BudgetStoragePort interface {
	SyncStore[*ledger.Budget]

	Create(ctx context.Context, b *ledger.Budget) (int64, error)
	Get(ctx context.Context, userID string, localID int64) (*ledger.Budget, error)
	ListForMonth(ctx context.Context, userID string, month, year int) ([]*ledger.Budget, error)
	List(ctx context.Context, userID string) ([]*ledger.Budget, error)
	Update(ctx context.Context, b *ledger.Budget) error
	Delete(ctx context.Context, userID string, localID int64) error
}

// ChatLogPort stores the local-only chat history. It has no sync surface.
type ChatLogPort interface {
	Append(ctx context.Context, msg *ledger.ChatMessage) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]*ledger.ChatMessage, error)
	Clear(ctx context.Context, userID string) error
}
