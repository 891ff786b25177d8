package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

var (
	_ ports.CategoryStoragePort    = (*fakeCategoryStore)(nil)
	_ ports.TransactionStoragePort = (*fakeTransactionStore)(nil)
	_ ports.BudgetStoragePort      = (*fakeBudgetStore)(nil)
	_ ports.RemoteStorePort        = (*fakeRemoteStore)(nil)
	_ ports.ConnectivityPort       = (*fakeNetwork)(nil)
	_ ports.IdentityPort           = (*fakeIdentity)(nil)
)

// fakeStore is an in-memory SyncStore used by orchestrator tests.
type fakeStore[T ledger.Syncable] struct {
	mu         sync.Mutex
	records    map[int64]T
	nextID     int64
	pendingErr error
}

func newFakeStore[T ledger.Syncable]() *fakeStore[T] {
	return &fakeStore[T]{records: make(map[int64]T)}
}

// add seeds a record, assigning a local ID when it has none.
func (s *fakeStore[T]) add(rec T) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	env := rec.SyncEnvelope()
	if env.LocalID == 0 {
		s.nextID++
		env.LocalID = s.nextID
	} else if env.LocalID > s.nextID {
		s.nextID = env.LocalID
	}
	s.records[env.LocalID] = rec
	return env.LocalID
}

func (s *fakeStore[T]) get(localID int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	return rec, ok
}

func (s *fakeStore[T]) PendingSync(ctx context.Context, userID string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingErr != nil {
		return nil, s.pendingErr
	}
	var out []T
	for _, rec := range s.records {
		env := rec.SyncEnvelope()
		if env.UserID != userID {
			continue
		}
		if env.SyncStatus == ledger.StatusPendingUpload || env.SyncStatus == ledger.StatusPendingDelete {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SyncEnvelope().LocalID < out[j].SyncEnvelope().LocalID
	})
	return out, nil
}

func (s *fakeStore[T]) FindByCloudID(ctx context.Context, userID, cloudID string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		env := rec.SyncEnvelope()
		if env.UserID == userID && env.CloudID == cloudID {
			return rec, nil
		}
	}
	var zero T
	return zero, errors.ErrRecordNotFound
}

func (s *fakeStore[T]) InsertFromRemote(ctx context.Context, rec T) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	env := rec.SyncEnvelope()
	env.LocalID = s.nextID
	env.SyncStatus = ledger.StatusSynced
	s.records[env.LocalID] = rec
	return env.LocalID, nil
}

func (s *fakeStore[T]) OverwriteFromRemote(ctx context.Context, localID int64, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[localID]; !ok {
		return errors.ErrRecordNotFound
	}
	env := rec.SyncEnvelope()
	env.LocalID = localID
	env.SyncStatus = ledger.StatusSynced
	s.records[localID] = rec
	return nil
}

func (s *fakeStore[T]) UpdateSyncStatus(ctx context.Context, localID int64, status ledger.SyncStatus, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return errors.ErrRecordNotFound
	}
	env := rec.SyncEnvelope()
	env.SyncStatus = status
	env.LastModified = timestamp
	return nil
}

func (s *fakeStore[T]) UpdateCloudID(ctx context.Context, localID int64, cloudID string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localID]
	if !ok {
		return errors.ErrRecordNotFound
	}
	env := rec.SyncEnvelope()
	env.CloudID = cloudID
	env.SyncStatus = ledger.StatusSynced
	env.LastModified = timestamp
	return nil
}

func (s *fakeStore[T]) Purge(ctx context.Context, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[localID]; !ok {
		return errors.ErrRecordNotFound
	}
	delete(s.records, localID)
	return nil
}

func (s *fakeStore[T]) AdoptUser(ctx context.Context, fromUserID, toUserID string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		env := rec.SyncEnvelope()
		if env.UserID == fromUserID {
			env.UserID = toUserID
			env.SyncStatus = ledger.StatusPendingUpload
			env.LastModified = timestamp
		}
	}
	return nil
}

func (s *fakeStore[T]) CountPending(ctx context.Context, userID string) (int, error) {
	pending, err := s.PendingSync(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Kind-specific wrappers satisfying the full storage ports. The CRUD
// surface is what user-facing code calls; the orchestrator never does, so
// these stay minimal.

type fakeCategoryStore struct{ fakeStore[*ledger.Category] }

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{fakeStore[*ledger.Category]{records: make(map[int64]*ledger.Category)}}
}

func (s *fakeCategoryStore) Create(ctx context.Context, c *ledger.Category) (int64, error) {
	c.SyncStatus = ledger.StatusPendingUpload
	return s.add(c), nil
}

func (s *fakeCategoryStore) CreateSeeded(ctx context.Context, c *ledger.Category) (int64, error) {
	c.SyncStatus = ledger.StatusSynced
	return s.add(c), nil
}

func (s *fakeCategoryStore) Get(ctx context.Context, userID string, localID int64) (*ledger.Category, error) {
	rec, ok := s.get(localID)
	if !ok || rec.UserID != userID {
		return nil, errors.ErrRecordNotFound
	}
	return rec, nil
}

func (s *fakeCategoryStore) List(ctx context.Context, userID string) ([]*ledger.Category, error) {
	return nil, nil
}

func (s *fakeCategoryStore) Update(ctx context.Context, c *ledger.Category) error {
	c.SyncStatus = ledger.StatusPendingUpload
	s.add(c)
	return nil
}

func (s *fakeCategoryStore) Delete(ctx context.Context, userID string, localID int64) error {
	return s.Purge(ctx, localID)
}

type fakeTransactionStore struct{ fakeStore[*ledger.Transaction] }

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{fakeStore[*ledger.Transaction]{records: make(map[int64]*ledger.Transaction)}}
}

func (s *fakeTransactionStore) Create(ctx context.Context, tx *ledger.Transaction) (int64, error) {
	tx.SyncStatus = ledger.StatusPendingUpload
	return s.add(tx), nil
}

func (s *fakeTransactionStore) Get(ctx context.Context, userID string, localID int64) (*ledger.Transaction, error) {
	rec, ok := s.get(localID)
	if !ok || rec.UserID != userID {
		return nil, errors.ErrRecordNotFound
	}
	return rec, nil
}

func (s *fakeTransactionStore) List(ctx context.Context, userID string) ([]*ledger.Transaction, error) {
	return nil, nil
}

func (s *fakeTransactionStore) ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*ledger.Transaction, error) {
	return nil, nil
}

func (s *fakeTransactionStore) Update(ctx context.Context, tx *ledger.Transaction) error {
	tx.SyncStatus = ledger.StatusPendingUpload
	s.add(tx)
	return nil
}

func (s *fakeTransactionStore) Delete(ctx context.Context, userID string, localID int64) error {
	return s.Purge(ctx, localID)
}

type fakeBudgetStore struct{ fakeStore[*ledger.Budget] }

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{fakeStore[*ledger.Budget]{records: make(map[int64]*ledger.Budget)}}
}

func (s *fakeBudgetStore) Create(ctx context.Context, b *ledger.Budget) (int64, error) {
	b.SyncStatus = ledger.StatusPendingUpload
	return s.add(b), nil
}

func (s *fakeBudgetStore) Get(ctx context.Context, userID string, localID int64) (*ledger.Budget, error) {
	rec, ok := s.get(localID)
	if !ok || rec.UserID != userID {
		return nil, errors.ErrRecordNotFound
	}
	return rec, nil
}

func (s *fakeBudgetStore) List(ctx context.Context, userID string) ([]*ledger.Budget, error) {
	return nil, nil
}

func (s *fakeBudgetStore) ListForMonth(ctx context.Context, userID string, month, year int) ([]*ledger.Budget, error) {
	return nil, nil
}

func (s *fakeBudgetStore) Update(ctx context.Context, b *ledger.Budget) error {
	b.SyncStatus = ledger.StatusPendingUpload
	s.add(b)
	return nil
}

func (s *fakeBudgetStore) Delete(ctx context.Context, userID string, localID int64) error {
	return s.Purge(ctx, localID)
}

// fakeRemote is an in-memory RemoteCollection with call counters and
// per-record failure injection keyed by local ID.
type fakeRemote[T ledger.Syncable] struct {
	mu      sync.Mutex
	docs    map[string]T
	nextID  int
	listErr error

	failCreate map[int64]error
	failDelete map[string]error

	createCalls int
	updateCalls int
	deleteCalls int
	listCalls   int
}

func newFakeRemote[T ledger.Syncable]() *fakeRemote[T] {
	return &fakeRemote[T]{
		docs:       make(map[string]T),
		failCreate: make(map[int64]error),
		failDelete: make(map[string]error),
	}
}

func (r *fakeRemote[T]) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createCalls + r.updateCalls + r.deleteCalls + r.listCalls
}

func (r *fakeRemote[T]) Create(ctx context.Context, userID string, rec T) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if err := r.failCreate[rec.SyncEnvelope().LocalID]; err != nil {
		return "", err
	}
	r.nextID++
	cloudID := fmt.Sprintf("doc-%d", r.nextID)
	r.docs[cloudID] = rec
	return cloudID, nil
}

func (r *fakeRemote[T]) Update(ctx context.Context, userID string, rec T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	env := rec.SyncEnvelope()
	if env.CloudID == "" {
		return errors.ErrNoCloudID
	}
	r.docs[env.CloudID] = rec
	return nil
}

func (r *fakeRemote[T]) Delete(ctx context.Context, userID, cloudID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if err := r.failDelete[cloudID]; err != nil {
		return err
	}
	delete(r.docs, cloudID)
	return nil
}

func (r *fakeRemote[T]) ListAll(ctx context.Context, userID string) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]T, 0, len(r.docs))
	for _, rec := range r.docs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SyncEnvelope().CloudID < out[j].SyncEnvelope().CloudID
	})
	return out, nil
}

// fakeRemoteStore bundles the three collections.
type fakeRemoteStore struct {
	categories   *fakeRemote[*ledger.Category]
	transactions *fakeRemote[*ledger.Transaction]
	budgets      *fakeRemote[*ledger.Budget]
}

func newFakeRemoteStore() *fakeRemoteStore {
	return &fakeRemoteStore{
		categories:   newFakeRemote[*ledger.Category](),
		transactions: newFakeRemote[*ledger.Transaction](),
		budgets:      newFakeRemote[*ledger.Budget](),
	}
}

func (s *fakeRemoteStore) Categories() ports.RemoteCollection[*ledger.Category] {
	return s.categories
}

func (s *fakeRemoteStore) Transactions() ports.RemoteCollection[*ledger.Transaction] {
	return s.transactions
}

func (s *fakeRemoteStore) Budgets() ports.RemoteCollection[*ledger.Budget] {
	return s.budgets
}

func (s *fakeRemoteStore) totalCalls() int {
	return s.categories.calls() + s.transactions.calls() + s.budgets.calls()
}

type fakeNetwork struct{ connected bool }

func (n *fakeNetwork) Connected() bool { return n.connected }

type fakeIdentity struct {
	userID string
	signed bool
}

func (i *fakeIdentity) CurrentUserID() (string, bool) { return i.userID, i.signed }
