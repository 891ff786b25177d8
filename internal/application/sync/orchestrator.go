package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/logging"
	"github.com/monetalabs/moneta/internal/infrastructure/tracing"
)

const (
	directionPush = "push"
	directionPull = "pull"

	// DefaultMarkQueueSize bounds the fire-and-forget mark queue.
	DefaultMarkQueueSize = 256
)

// Orchestrator reconciles the local ledger against the cloud store for the
// signed-in user. Push and pull are independently invocable; the scheduler
// always runs push before pull.
type Orchestrator struct {
	categories   ports.CategoryStoragePort
	transactions ports.TransactionStoragePort
	budgets      ports.BudgetStoragePort
	remote       ports.RemoteStorePort
	network      ports.ConnectivityPort
	identity     ports.IdentityPort
	logger       *logging.Logger
	tracer       *tracing.Tracer

	now func() int64

	marks     chan markRequest
	drainOnce sync.Once
	done      chan struct{}
}

type markRequest struct {
	kind    ledger.EntityKind
	localID int64
}

// Compile-time check that the orchestrator serves the repositories' marker.
var _ ports.UploadMarker = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() int64) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMarkQueueSize sets the mark queue capacity.
func WithMarkQueueSize(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.marks = make(chan markRequest, size)
		}
	}
}

// NewOrchestrator creates an orchestrator over the given ports.
func NewOrchestrator(
	categories ports.CategoryStoragePort,
	transactions ports.TransactionStoragePort,
	budgets ports.BudgetStoragePort,
	remote ports.RemoteStorePort,
	network ports.ConnectivityPort,
	identity ports.IdentityPort,
	logger *logging.Logger,
	tracer *tracing.Tracer,
	opts ...Option,
) (*Orchestrator, error) {
	if categories == nil || transactions == nil || budgets == nil {
		return nil, fmt.Errorf("storage ports cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if network == nil || identity == nil {
		return nil, fmt.Errorf("connectivity and identity ports cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if tracer == nil {
		tracer = tracing.Default()
	}

	o := &Orchestrator{
		categories:   categories,
		transactions: transactions,
		budgets:      budgets,
		remote:       remote,
		network:      network,
		identity:     identity,
		logger:       logger,
		tracer:       tracer,
		now:          ledger.NowMillis,
		marks:        make(chan markRequest, DefaultMarkQueueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// SyncToCloud pushes every pending local change to the cloud store. Records
// fail individually; a failed record keeps its status and is retried next
// cycle. Only a fault in fetching the pending set aborts the cycle.
func (o *Orchestrator) SyncToCloud(ctx context.Context) Result {
	return o.runCycle(ctx, directionPush)
}

// SyncFromCloud pulls the complete remote set and merges it into the local
// store: unknown documents are inserted, known ones overwrite the local
// copy only when the remote timestamp is strictly newer.
func (o *Orchestrator) SyncFromCloud(ctx context.Context) Result {
	return o.runCycle(ctx, directionPull)
}

func (o *Orchestrator) runCycle(ctx context.Context, direction string) Result {
	if !o.network.Connected() {
		return NoNetwork()
	}
	userID, ok := o.identity.CurrentUserID()
	if !ok {
		return NotAuthenticated()
	}

	cycleID := uuid.New().String()
	ctx = logging.WithCycleID(ctx, cycleID)
	ctx = logging.WithUserID(ctx, userID)

	ctx, span := o.tracer.StartCycleSpan(ctx, cycleID, direction)
	span.SetUser(userID)

	logging.LogCycleStart(ctx, o.logger, direction)
	start := o.now()

	var run func(context.Context, string, ledger.EntityKind) (int, int, error)
	if direction == directionPush {
		run = o.pushKind
	} else {
		run = o.pullKind
	}

	total := Success(0)
	for _, kind := range ledger.SyncableKinds() {
		synced, failed, err := run(ctx, userID, kind)
		if err != nil {
			logging.LogCycleAborted(ctx, o.logger, direction, "kind fetch failed", err)
			span.EndWithError(err)
			return Errorf(err)
		}
		total = total.Merge(Result{Synced: synced, Failed: failed})
	}

	elapsed := millisToDuration(o.now() - start)
	logging.LogCycleComplete(ctx, o.logger, direction, total.Synced, total.Failed, elapsed)
	span.SetCounts(total.Synced, total.Failed)
	span.End()
	return total
}

func (o *Orchestrator) pushKind(ctx context.Context, userID string, kind ledger.EntityKind) (int, int, error) {
	switch kind {
	case ledger.KindCategory:
		return pushRecords(ctx, o, userID, kind, o.categories, o.remote.Categories())
	case ledger.KindTransaction:
		return pushRecords(ctx, o, userID, kind, o.transactions, o.remote.Transactions())
	case ledger.KindBudget:
		return pushRecords(ctx, o, userID, kind, o.budgets, o.remote.Budgets())
	}
	return 0, 0, fmt.Errorf("unknown entity kind %q", kind)
}

func (o *Orchestrator) pullKind(ctx context.Context, userID string, kind ledger.EntityKind) (int, int, error) {
	switch kind {
	case ledger.KindCategory:
		return pullRecords(ctx, o, userID, kind, o.categories, o.remote.Categories())
	case ledger.KindTransaction:
		return pullRecords(ctx, o, userID, kind, o.transactions, o.remote.Transactions())
	case ledger.KindBudget:
		return pullRecords(ctx, o, userID, kind, o.budgets, o.remote.Budgets())
	}
	return 0, 0, fmt.Errorf("unknown entity kind %q", kind)
}

// pushRecords uploads one kind's pending set. A fetch failure aborts the
// cycle; everything after is per-record.
func pushRecords[T ledger.Syncable](
	ctx context.Context,
	o *Orchestrator,
	userID string,
	kind ledger.EntityKind,
	store ports.SyncStore[T],
	coll ports.RemoteCollection[T],
) (int, int, error) {
	ctx, span := o.tracer.StartKindSpan(ctx, string(kind), directionPush)
	ctx = logging.WithEntityKind(ctx, string(kind))

	pending, err := store.PendingSync(ctx, userID)
	if err != nil {
		span.EndWithError(err)
		return 0, 0, fmt.Errorf("fetching pending %ss: %w", kind, err)
	}
	span.SetPending(len(pending))

	synced, failed := 0, 0
	for _, rec := range pending {
		env := rec.SyncEnvelope()
		switch env.SyncStatus {
		case ledger.StatusPendingUpload:
			if err := pushUpload(ctx, o, userID, store, coll, rec); err != nil {
				failed++
				logging.LogRecordSyncFailed(ctx, o.logger, string(kind), env.LocalID, "upload", err)
				continue
			}
			synced++

		case ledger.StatusPendingDelete:
			if err := pushDelete(ctx, o, userID, store, coll, rec); err != nil {
				failed++
				logging.LogRecordSyncFailed(ctx, o.logger, string(kind), env.LocalID, "delete", err)
				continue
			}
			synced++

		default:
			// CONFLICT rows are inert; stores do not return them, but a
			// record in an unexpected status is skipped rather than guessed at.
		}
	}

	span.SetCounts(synced, failed)
	span.End()
	return synced, failed, nil
}

// pushUpload creates or updates one record remotely and reconciles the
// local row on success.
func pushUpload[T ledger.Syncable](
	ctx context.Context,
	o *Orchestrator,
	userID string,
	store ports.SyncStore[T],
	coll ports.RemoteCollection[T],
	rec T,
) error {
	env := rec.SyncEnvelope()
	if !env.HasCloudID() {
		cloudID, err := coll.Create(ctx, userID, rec)
		if err != nil {
			return err
		}
		return store.UpdateCloudID(ctx, env.LocalID, cloudID, o.now())
	}

	if err := coll.Update(ctx, userID, rec); err != nil {
		return err
	}
	return store.UpdateSyncStatus(ctx, env.LocalID, ledger.StatusSynced, o.now())
}

// pushDelete completes the second phase of a delete: remove the cloud
// document, then purge the local tombstone.
func pushDelete[T ledger.Syncable](
	ctx context.Context,
	o *Orchestrator,
	userID string,
	store ports.SyncStore[T],
	coll ports.RemoteCollection[T],
	rec T,
) error {
	env := rec.SyncEnvelope()
	if env.HasCloudID() {
		if err := coll.Delete(ctx, userID, env.CloudID); err != nil {
			return err
		}
	}
	return store.Purge(ctx, env.LocalID)
}

// pullRecords merges one kind's complete remote set into the local store.
func pullRecords[T ledger.Syncable](
	ctx context.Context,
	o *Orchestrator,
	userID string,
	kind ledger.EntityKind,
	store ports.SyncStore[T],
	coll ports.RemoteCollection[T],
) (int, int, error) {
	ctx, span := o.tracer.StartKindSpan(ctx, string(kind), directionPull)
	ctx = logging.WithEntityKind(ctx, string(kind))

	remote, err := coll.ListAll(ctx, userID)
	if err != nil {
		span.EndWithError(err)
		return 0, 0, fmt.Errorf("listing remote %ss: %w", kind, err)
	}
	span.SetPending(len(remote))

	merged, failed := 0, 0
	for _, rec := range remote {
		env := rec.SyncEnvelope()

		local, err := store.FindByCloudID(ctx, userID, env.CloudID)
		if errors.Is(err, errors.ErrRecordNotFound) {
			if _, err := store.InsertFromRemote(ctx, rec); err != nil {
				failed++
				logging.LogRecordSyncFailed(ctx, o.logger, string(kind), 0, "insert", err)
				continue
			}
			merged++
			continue
		}
		if err != nil {
			failed++
			logging.LogRecordSyncFailed(ctx, o.logger, string(kind), 0, "lookup", err)
			continue
		}

		localEnv := local.SyncEnvelope()
		if !localEnv.SupersededBy(env.LastModified) {
			// Local copy is newer or equal; a concurrent local edit wins.
			continue
		}
		if err := store.OverwriteFromRemote(ctx, localEnv.LocalID, rec); err != nil {
			failed++
			logging.LogRecordSyncFailed(ctx, o.logger, string(kind), localEnv.LocalID, "overwrite", err)
			continue
		}
		merged++
	}

	span.SetCounts(merged, failed)
	span.End()
	return merged, failed, nil
}

// MarkForUpload queues a status flip to PENDING_UPLOAD for the given
// record. Non-blocking: when the queue is full the mark is dropped and
// logged, and the record is picked up by a later repository write or cycle.
func (o *Orchestrator) MarkForUpload(localID int64, kind ledger.EntityKind) {
	o.drainOnce.Do(func() { go o.drainMarks() })

	select {
	case o.marks <- markRequest{kind: kind, localID: localID}:
	default:
		logging.LogMarkDropped(o.logger, string(kind), localID)
	}
}

// drainMarks applies queued marks detached from the write path that
// enqueued them. Failures are logged only; the local write already
// succeeded and owns the user-visible result.
func (o *Orchestrator) drainMarks() {
	for {
		select {
		case req := <-o.marks:
			o.applyMark(req)
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) applyMark(req markRequest) {
	ctx := context.Background()

	var err error
	switch req.kind {
	case ledger.KindCategory:
		err = o.categories.UpdateSyncStatus(ctx, req.localID, ledger.StatusPendingUpload, o.now())
	case ledger.KindTransaction:
		err = o.transactions.UpdateSyncStatus(ctx, req.localID, ledger.StatusPendingUpload, o.now())
	case ledger.KindBudget:
		err = o.budgets.UpdateSyncStatus(ctx, req.localID, ledger.StatusPendingUpload, o.now())
	default:
		err = fmt.Errorf("unknown entity kind %q", req.kind)
	}
	if err != nil {
		logging.LogRecordSyncFailed(ctx, o.logger, string(req.kind), req.localID, "mark", err)
	}
}

// PendingCounts reports the number of records awaiting sync per kind, for
// the status surface.
func (o *Orchestrator) PendingCounts(ctx context.Context, userID string) (map[ledger.EntityKind]int, error) {
	counts := make(map[ledger.EntityKind]int, 3)

	c, err := o.categories.CountPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts[ledger.KindCategory] = c

	t, err := o.transactions.CountPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts[ledger.KindTransaction] = t

	b, err := o.budgets.CountPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts[ledger.KindBudget] = b

	return counts, nil
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Close stops the mark drain worker. Queued marks not yet applied are
// dropped; the next repository write re-stamps the status anyway.
func (o *Orchestrator) Close() {
	o.drainOnce.Do(func() {})
	select {
	case <-o.done:
	default:
		close(o.done)
	}
}
