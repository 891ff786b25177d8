package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/testutil"
)

type harness struct {
	categories   *fakeCategoryStore
	transactions *fakeTransactionStore
	budgets      *fakeBudgetStore
	remote       *fakeRemoteStore
	network      *fakeNetwork
	identity     *fakeIdentity
	orch         *Orchestrator
	clock        int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		categories:   newFakeCategoryStore(),
		transactions: newFakeTransactionStore(),
		budgets:      newFakeBudgetStore(),
		remote:       newFakeRemoteStore(),
		network:      &fakeNetwork{connected: true},
		identity:     &fakeIdentity{userID: "user-42", signed: true},
		clock:        1000,
	}

	orch, err := NewOrchestrator(
		h.categories, h.transactions, h.budgets,
		h.remote, h.network, h.identity,
		nil, nil,
		WithClock(func() int64 { h.clock++; return h.clock }),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	h.orch = orch
	t.Cleanup(orch.Close)
	return h
}

func pendingCategory(name string) *ledger.Category {
	c := testutil.NewTestCategory(name)
	c.UserID = "user-42"
	c.LastModified = 500
	return c
}

func TestSyncToCloud_NoNetwork(t *testing.T) {
	h := newHarness(t)
	h.network.connected = false
	h.categories.add(pendingCategory("Food"))

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindNoNetwork {
		t.Errorf("result = %v, want NoNetwork", result)
	}
	if h.remote.totalCalls() != 0 {
		t.Errorf("remote saw %d calls, want 0", h.remote.totalCalls())
	}
}

func TestSyncToCloud_NotAuthenticated(t *testing.T) {
	h := newHarness(t)
	h.identity.signed = false

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindNotAuthenticated {
		t.Errorf("result = %v, want NotAuthenticated", result)
	}
	if h.remote.totalCalls() != 0 {
		t.Errorf("remote saw %d calls, want 0", h.remote.totalCalls())
	}
}

func TestSyncToCloud_NothingPending(t *testing.T) {
	h := newHarness(t)

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindSuccess || result.Synced != 0 {
		t.Errorf("result = %v, want success (0 synced)", result)
	}
}

func TestSyncToCloud_CreatesAndLinks(t *testing.T) {
	h := newHarness(t)
	localID := h.categories.add(pendingCategory("Food"))

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindSuccess || result.Synced != 1 {
		t.Fatalf("result = %v, want success (1 synced)", result)
	}

	c, _ := h.categories.get(localID)
	if c.CloudID == "" {
		t.Error("cloud ID not assigned after upload")
	}
	if c.SyncStatus != ledger.StatusSynced {
		t.Errorf("status = %q, want SYNCED", c.SyncStatus)
	}
	if c.LastModified <= 500 {
		t.Error("last modified not bumped on reconcile")
	}
}

func TestSyncToCloud_SecondCycleUpdatesNotCreates(t *testing.T) {
	h := newHarness(t)
	localID := h.categories.add(pendingCategory("Food"))

	if result := h.orch.SyncToCloud(context.Background()); result.Kind != KindSuccess {
		t.Fatalf("first cycle = %v", result)
	}

	// A later local edit re-queues the record, now carrying its cloud ID.
	c, _ := h.categories.get(localID)
	c.Name = "Groceries"
	c.SyncStatus = ledger.StatusPendingUpload

	if result := h.orch.SyncToCloud(context.Background()); result.Kind != KindSuccess {
		t.Fatalf("second cycle = %v", result)
	}

	if h.remote.categories.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", h.remote.categories.createCalls)
	}
	if h.remote.categories.updateCalls != 1 {
		t.Errorf("update calls = %d, want 1", h.remote.categories.updateCalls)
	}
}

func TestSyncToCloud_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	failedID := h.categories.add(pendingCategory("Food"))
	okID := h.categories.add(pendingCategory("Rent"))
	h.remote.categories.failCreate[failedID] = errors.New("server error")

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindPartialSuccess {
		t.Fatalf("result = %v, want partial success", result)
	}
	if result.Synced != 1 || result.Failed != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", result.Synced, result.Failed)
	}

	failed, _ := h.categories.get(failedID)
	if failed.SyncStatus != ledger.StatusPendingUpload {
		t.Errorf("failed record status = %q, want PENDING_UPLOAD", failed.SyncStatus)
	}
	ok, _ := h.categories.get(okID)
	if ok.SyncStatus != ledger.StatusSynced {
		t.Errorf("succeeded record status = %q, want SYNCED", ok.SyncStatus)
	}
}

func TestSyncToCloud_CompletesDelete(t *testing.T) {
	h := newHarness(t)
	c := pendingCategory("Food")
	c.CloudID = "doc-9"
	c.SyncStatus = ledger.StatusPendingDelete
	localID := h.categories.add(c)
	h.remote.categories.docs["doc-9"] = pendingCategory("Food")

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindSuccess || result.Synced != 1 {
		t.Fatalf("result = %v, want success (1 synced)", result)
	}
	if _, ok := h.categories.get(localID); ok {
		t.Error("tombstone not purged after remote delete")
	}
	if _, ok := h.remote.categories.docs["doc-9"]; ok {
		t.Error("remote document still present after delete")
	}
}

func TestSyncToCloud_FailedDeleteKeepsTombstone(t *testing.T) {
	h := newHarness(t)
	c := pendingCategory("Food")
	c.CloudID = "doc-9"
	c.SyncStatus = ledger.StatusPendingDelete
	localID := h.categories.add(c)
	h.remote.categories.failDelete["doc-9"] = errors.New("server error")

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindPartialSuccess || result.Failed != 1 {
		t.Fatalf("result = %v, want partial success with 1 failure", result)
	}
	kept, ok := h.categories.get(localID)
	if !ok {
		t.Fatal("tombstone purged despite failed remote delete")
	}
	if kept.SyncStatus != ledger.StatusPendingDelete {
		t.Errorf("status = %q, want PENDING_DELETE for retry", kept.SyncStatus)
	}
}

func TestSyncToCloud_FetchFaultAbortsCycle(t *testing.T) {
	h := newHarness(t)
	h.transactions.pendingErr = errors.New("database locked")

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindError {
		t.Errorf("result = %v, want error", result)
	}
	if result.Err == nil {
		t.Error("error result carries no cause")
	}
}

func TestSyncToCloud_MixedKinds(t *testing.T) {
	h := newHarness(t)
	h.categories.add(pendingCategory("Food"))

	tx := testutil.NewTestTransaction("12.50", nil)
	tx.UserID = "user-42"
	h.transactions.add(tx)

	b := testutil.NewTestBudget(1, "300", 6, 2026)
	b.UserID = "user-42"
	h.budgets.add(b)

	result := h.orch.SyncToCloud(context.Background())

	if result.Kind != KindSuccess || result.Synced != 3 {
		t.Errorf("result = %v, want success (3 synced)", result)
	}
}

func TestSyncFromCloud_InsertsUnknownDocuments(t *testing.T) {
	h := newHarness(t)
	remote := testutil.NewTestCategory("Salary")
	remote.Envelope = testutil.SyncedEnvelope("doc-1", "user-42", 9000)
	h.remote.categories.docs["doc-1"] = remote

	result := h.orch.SyncFromCloud(context.Background())

	if result.Kind != KindSuccess || result.Synced != 1 {
		t.Fatalf("result = %v, want success (1 synced)", result)
	}

	local, err := h.categories.FindByCloudID(context.Background(), "user-42", "doc-1")
	if err != nil {
		t.Fatalf("pulled record not found locally: %v", err)
	}
	if local.SyncStatus != ledger.StatusSynced {
		t.Errorf("status = %q, want SYNCED", local.SyncStatus)
	}
	if local.LocalID == 0 {
		t.Error("pulled record has no local ID")
	}
}

func TestSyncFromCloud_LastWriteWins(t *testing.T) {
	tests := []struct {
		name           string
		localModified  int64
		remoteModified int64
		wantRemoteName bool
	}{
		{"remote newer wins", 100, 200, true},
		{"local newer wins", 200, 100, false},
		{"equal keeps local", 150, 150, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			local := pendingCategory("Local Name")
			local.CloudID = "doc-1"
			local.SyncStatus = ledger.StatusSynced
			local.LastModified = tt.localModified
			localID := h.categories.add(local)

			remote := testutil.NewTestCategory("Remote Name")
			remote.Envelope = testutil.SyncedEnvelope("doc-1", "user-42", tt.remoteModified)
			h.remote.categories.docs["doc-1"] = remote

			result := h.orch.SyncFromCloud(context.Background())
			if !result.Completed() {
				t.Fatalf("result = %v", result)
			}

			got, _ := h.categories.get(localID)
			if tt.wantRemoteName && got.Name != "Remote Name" {
				t.Errorf("name = %q, want remote copy", got.Name)
			}
			if !tt.wantRemoteName && got.Name != "Local Name" {
				t.Errorf("name = %q, want local copy kept", got.Name)
			}
			if got.LocalID != localID {
				t.Errorf("local ID changed from %d to %d", localID, got.LocalID)
			}
		})
	}
}

func TestSyncFromCloud_ListFaultAbortsCycle(t *testing.T) {
	h := newHarness(t)
	h.remote.budgets.listErr = errors.New("gateway timeout")

	result := h.orch.SyncFromCloud(context.Background())

	if result.Kind != KindError {
		t.Errorf("result = %v, want error", result)
	}
}

func TestSyncFromCloud_NoNetwork(t *testing.T) {
	h := newHarness(t)
	h.network.connected = false

	if result := h.orch.SyncFromCloud(context.Background()); result.Kind != KindNoNetwork {
		t.Errorf("result = %v, want NoNetwork", result)
	}
}

func TestConvergenceAcrossDevices(t *testing.T) {
	// Two devices edit the same budget offline; the later write must end up
	// everywhere after both push and one pulls.
	h := newHarness(t)

	older := testutil.NewTestCategory("Budget X")
	older.Envelope = testutil.SyncedEnvelope("doc-1", "user-42", 100)
	localID := h.categories.add(older)

	newer := testutil.NewTestCategory("Budget Y")
	newer.Envelope = testutil.SyncedEnvelope("doc-1", "user-42", 200)
	h.remote.categories.docs["doc-1"] = newer

	if result := h.orch.SyncFromCloud(context.Background()); !result.Completed() {
		t.Fatalf("pull = %v", result)
	}

	got, _ := h.categories.get(localID)
	if got.Name != "Budget Y" || got.LastModified != 200 {
		t.Errorf("converged to (%q, %d), want the later write (Budget Y, 200)", got.Name, got.LastModified)
	}
}

func TestMarkForUpload(t *testing.T) {
	h := newHarness(t)

	c := pendingCategory("Food")
	c.SyncStatus = ledger.StatusSynced
	localID := h.categories.add(c)

	h.orch.MarkForUpload(localID, ledger.KindCategory)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := h.categories.get(localID)
		if got.SyncStatus == ledger.StatusPendingUpload {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("mark never applied")
}

func TestMarkForUpload_FullQueueDrops(t *testing.T) {
	h := newHarness(t)
	orch, err := NewOrchestrator(
		h.categories, h.transactions, h.budgets,
		h.remote, h.network, h.identity,
		nil, nil,
		WithMarkQueueSize(1),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	// Closing first keeps the drain worker from starting, so the queue
	// stays full and the overflow path is deterministic.
	orch.Close()

	orch.MarkForUpload(1, ledger.KindCategory)
	orch.MarkForUpload(2, ledger.KindCategory) // dropped, must not block
}

func TestPendingCounts(t *testing.T) {
	h := newHarness(t)
	h.categories.add(pendingCategory("Food"))
	h.categories.add(pendingCategory("Rent"))

	tx := testutil.NewTestTransaction("5", nil)
	tx.UserID = "user-42"
	h.transactions.add(tx)

	counts, err := h.orch.PendingCounts(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("PendingCounts() error = %v", err)
	}
	if counts[ledger.KindCategory] != 2 {
		t.Errorf("category count = %d, want 2", counts[ledger.KindCategory])
	}
	if counts[ledger.KindTransaction] != 1 {
		t.Errorf("transaction count = %d, want 1", counts[ledger.KindTransaction])
	}
	if counts[ledger.KindBudget] != 0 {
		t.Errorf("budget count = %d, want 0", counts[ledger.KindBudget])
	}
}
