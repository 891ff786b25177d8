// Package ledger defines the domain model for the personal finance ledger:
// categories, transactions, budgets, the local-only chat log, and the sync
// envelope that tracks each record's reconciliation state against the cloud.
package ledger

import (
	"time"
)

// SyncStatus represents a record's position in the sync state machine.
type SyncStatus string

const (
	// StatusSynced means the record matches the cloud copy (or is a locally
	// seeded default that has nothing to reconcile yet).
	StatusSynced SyncStatus = "SYNCED"

	// StatusPendingUpload means a local create or update has not reached the
	// cloud yet.
	StatusPendingUpload SyncStatus = "PENDING_UPLOAD"

	// StatusPendingDelete means the record was deleted locally but the cloud
	// copy still exists. The row is purged only after the remote delete
	// succeeds.
	StatusPendingDelete SyncStatus = "PENDING_DELETE"

	// StatusConflict is declared for forward compatibility. The current
	// orchestration resolves every divergence with last-write-wins and never
	// assigns this value.
	StatusConflict SyncStatus = "CONFLICT"
)

// Valid reports whether s is a known sync status.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusPendingUpload, StatusPendingDelete, StatusConflict:
		return true
	}
	return false
}

// EntityKind identifies one of the syncable record kinds.
type EntityKind string

const (
	KindCategory    EntityKind = "category"
	KindTransaction EntityKind = "transaction"
	KindBudget      EntityKind = "budget"
)

// SyncableKinds lists every kind enrolled in sync cycles, in processing order.
// The chat log is deliberately absent: it never leaves the device.
func SyncableKinds() []EntityKind {
	return []EntityKind{KindCategory, KindTransaction, KindBudget}
}

// LocalUserID is the sentinel owner for records created before sign-in.
// Records under this owner are adopted by the real principal on sign-in.
const LocalUserID = "local_user"

// Envelope carries the sync bookkeeping fields embedded in every syncable
// record. LocalID is the primary identity within the local store and is never
// sent to the cloud as a key; CloudID is assigned by the remote store on first
// successful upload.
type Envelope struct {
	LocalID      int64      // Local store primary key, stable
	CloudID      string     // Remote document ID, empty until first upload
	SyncStatus   SyncStatus // Current state machine position
	LastModified int64      // Epoch millis of last mutation, the LWW tie-breaker
	UserID       string     // Owning principal, LocalUserID before sign-in
}

// SyncEnvelope returns the envelope itself. Embedding promotes this method
// onto every syncable record, which is what lets generic sync code reach the
// bookkeeping fields without per-kind accessors.
func (e *Envelope) SyncEnvelope() *Envelope {
	return e
}

// Syncable is satisfied by every record kind that carries an Envelope.
type Syncable interface {
	SyncEnvelope() *Envelope
}

// HasCloudID reports whether the record has completed at least one upload.
func (e Envelope) HasCloudID() bool {
	return e.CloudID != ""
}

// PendingSync reports whether a sync cycle should act on this record.
func (e Envelope) PendingSync() bool {
	return e.SyncStatus != StatusSynced
}

// SupersededBy reports whether a remote copy with the given modification
// timestamp should overwrite this record. Equal timestamps keep the local
// copy: a genuinely concurrent local edit silently wins.
func (e Envelope) SupersededBy(remoteLastModified int64) bool {
	return remoteLastModified > e.LastModified
}

// Touch stamps the envelope with the current time and marks it for upload.
func (e *Envelope) Touch(now time.Time) {
	e.SyncStatus = StatusPendingUpload
	e.LastModified = now.UnixMilli()
}

// NowMillis returns the current wall clock as epoch millis, the resolution
// stored in LastModified.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
