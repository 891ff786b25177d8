package sqlite

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/testutil"
)

// markRecorder captures the detached upload marks a repository fires after
// its writes commit.
type markRecorder struct {
	kinds []ledger.EntityKind
	ids   []int64
}

func (m *markRecorder) MarkForUpload(localID int64, kind ledger.EntityKind) {
	m.kinds = append(m.kinds, kind)
	m.ids = append(m.ids, localID)
}

func TestCategoryRepository_Create(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	marks := &markRecorder{}
	repo.SetMarker(marks)
	ctx := context.Background()

	c := testutil.NewTestCategory("Food")
	id, err := repo.Create(ctx, c)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == 0 {
		t.Error("Create() returned zero id")
	}

	got, err := repo.Get(ctx, ledger.LocalUserID, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Food" {
		t.Errorf("Name = %q, want %q", got.Name, "Food")
	}
	// The insert itself lands SYNCED; the queued mark flips it later.
	if got.SyncStatus != ledger.StatusSynced {
		t.Errorf("SyncStatus = %q, want %q", got.SyncStatus, ledger.StatusSynced)
	}
	if got.CloudID != "" {
		t.Errorf("CloudID = %q, want empty", got.CloudID)
	}
	if len(marks.ids) != 1 || marks.ids[0] != id || marks.kinds[0] != ledger.KindCategory {
		t.Errorf("marks = (%v, %v), want one category mark for id %d", marks.kinds, marks.ids, id)
	}
}

func TestCategoryRepository_Create_Invalid(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)

	c := testutil.NewTestCategory("")
	if _, err := repo.Create(context.Background(), c); !errors.Is(err, domainErrors.ErrCategoryNameRequired) {
		t.Errorf("Create() error = %v, want ErrCategoryNameRequired", err)
	}
}

func TestCategoryRepository_CreateSeeded(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	c := testutil.NewTestCategory("Salary")
	c.Type = ledger.FlowIncome
	id, err := repo.CreateSeeded(ctx, c)
	if err != nil {
		t.Fatalf("CreateSeeded() error = %v", err)
	}

	got, err := repo.Get(ctx, ledger.LocalUserID, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// Seeded defaults must not enter the first push cycle.
	if got.SyncStatus != ledger.StatusSynced {
		t.Errorf("SyncStatus = %q, want %q", got.SyncStatus, ledger.StatusSynced)
	}
}

func TestCategoryRepository_Get_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)

	if _, err := repo.Get(context.Background(), ledger.LocalUserID, 99); !errors.Is(err, domainErrors.ErrRecordNotFound) {
		t.Errorf("Get() error = %v, want ErrRecordNotFound", err)
	}
}

func TestCategoryRepository_Get_ScopedByUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	c := testutil.NewTestCategory("Food")
	id, err := repo.Create(ctx, c)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.Get(ctx, "someone-else", id); !errors.Is(err, domainErrors.ErrRecordNotFound) {
		t.Errorf("Get() with wrong user error = %v, want ErrRecordNotFound", err)
	}
}

func TestCategoryRepository_List(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Transport", "Food", "Rent"} {
		if _, err := repo.Create(ctx, testutil.NewTestCategory(name)); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	categories, err := repo.List(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(categories) != 3 {
		t.Fatalf("List() returned %d categories, want 3", len(categories))
	}
	if categories[0].Name != "Food" {
		t.Errorf("first category = %q, want Food (sorted by name)", categories[0].Name)
	}
}

func TestCategoryRepository_List_HidesPendingDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	c := testutil.NewTestCategory("Food")
	id, _ := repo.Create(ctx, c)
	if err := repo.UpdateCloudID(ctx, id, "cloud-1", ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateCloudID() error = %v", err)
	}
	if err := repo.Delete(ctx, ledger.LocalUserID, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	categories, err := repo.List(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(categories) != 0 {
		t.Errorf("List() returned %d categories, want 0 after marking delete", len(categories))
	}
}

func TestCategoryRepository_Update(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	marks := &markRecorder{}
	repo.SetMarker(marks)
	ctx := context.Background()

	c := testutil.NewTestCategory("Food")
	id, _ := repo.Create(ctx, c)
	if err := repo.UpdateCloudID(ctx, id, "cloud-1", ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateCloudID() error = %v", err)
	}

	c.Name = "Groceries"
	if err := repo.Update(ctx, c); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.Get(ctx, ledger.LocalUserID, id)
	if got.Name != "Groceries" {
		t.Errorf("Name = %q, want Groceries", got.Name)
	}
	if got.CloudID != "cloud-1" {
		t.Errorf("CloudID = %q, want cloud-1 (preserved across edits)", got.CloudID)
	}
	// Editing a synced record fires a mark that queues it again.
	if len(marks.ids) != 2 || marks.ids[1] != id {
		t.Errorf("marks after update = %v, want a second mark for id %d", marks.ids, id)
	}
}

func TestCategoryRepository_Delete_Unsynced(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	id, _ := repo.Create(ctx, testutil.NewTestCategory("Food"))

	if err := repo.Delete(ctx, ledger.LocalUserID, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// Never uploaded, so the row is gone outright.
	if _, err := repo.Get(ctx, ledger.LocalUserID, id); !errors.Is(err, domainErrors.ErrRecordNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrRecordNotFound", err)
	}
}

func TestCategoryRepository_Delete_Synced(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	id, _ := repo.Create(ctx, testutil.NewTestCategory("Food"))
	if err := repo.UpdateCloudID(ctx, id, "cloud-1", ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateCloudID() error = %v", err)
	}

	if err := repo.Delete(ctx, ledger.LocalUserID, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The row survives as PENDING_DELETE until the remote delete succeeds.
	pending, err := repo.PendingSync(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("PendingSync() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("PendingSync() returned %d records, want 1", len(pending))
	}
	if pending[0].SyncStatus != ledger.StatusPendingDelete {
		t.Errorf("SyncStatus = %q, want %q", pending[0].SyncStatus, ledger.StatusPendingDelete)
	}
}

func TestCategoryRepository_Delete_CascadesToReferences(t *testing.T) {
	db := openTestDB(t)
	catRepo := NewCategoryRepository(db)
	txRepo := NewTransactionRepository(db)
	budgetRepo := NewBudgetRepository(db)
	ctx := context.Background()

	catID, _ := catRepo.Create(ctx, testutil.NewTestCategory("Food"))
	txID, err := txRepo.Create(ctx, testutil.NewTestTransaction("12.50", &catID))
	if err != nil {
		t.Fatalf("Create transaction error = %v", err)
	}

	syncedBudgetID, _ := budgetRepo.Create(ctx, testutil.NewTestBudget(catID, "300", 6, 2025))
	if err := budgetRepo.UpdateCloudID(ctx, syncedBudgetID, "cloud-b1", ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateCloudID() error = %v", err)
	}
	unsyncedBudgetID, _ := budgetRepo.Create(ctx, testutil.NewTestBudget(catID, "100", 7, 2025))

	if err := catRepo.Delete(ctx, ledger.LocalUserID, catID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The transaction survives uncategorized and queued for upload.
	tx, err := txRepo.Get(ctx, ledger.LocalUserID, txID)
	if err != nil {
		t.Fatalf("Get transaction error = %v", err)
	}
	if tx.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil after category delete", *tx.CategoryID)
	}
	if tx.SyncStatus != ledger.StatusPendingUpload {
		t.Errorf("transaction SyncStatus = %q, want %q", tx.SyncStatus, ledger.StatusPendingUpload)
	}

	// The synced budget waits for its remote delete; the unsynced one is gone.
	pending, err := budgetRepo.PendingSync(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("PendingSync() error = %v", err)
	}
	if len(pending) != 1 || pending[0].LocalID != syncedBudgetID {
		t.Fatalf("PendingSync() = %v, want only the synced budget", pending)
	}
	if pending[0].SyncStatus != ledger.StatusPendingDelete {
		t.Errorf("budget SyncStatus = %q, want %q", pending[0].SyncStatus, ledger.StatusPendingDelete)
	}
	if _, err := budgetRepo.Get(ctx, ledger.LocalUserID, unsyncedBudgetID); !errors.Is(err, domainErrors.ErrRecordNotFound) {
		t.Errorf("Get unsynced budget error = %v, want ErrRecordNotFound", err)
	}
}

func TestCategoryRepository_PendingSync_ExcludesConflict(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	id, _ := repo.Create(ctx, testutil.NewTestCategory("Food"))
	if err := repo.UpdateSyncStatus(ctx, id, ledger.StatusConflict, ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateSyncStatus() error = %v", err)
	}

	pending, err := repo.PendingSync(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("PendingSync() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("PendingSync() returned %d records, want 0 (CONFLICT is inert)", len(pending))
	}
}

func TestCategoryRepository_FindByCloudID(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	id, _ := repo.Create(ctx, testutil.NewTestCategory("Food"))
	if err := repo.UpdateCloudID(ctx, id, "cloud-1", ledger.NowMillis()); err != nil {
		t.Fatalf("UpdateCloudID() error = %v", err)
	}

	got, err := repo.FindByCloudID(ctx, ledger.LocalUserID, "cloud-1")
	if err != nil {
		t.Fatalf("FindByCloudID() error = %v", err)
	}
	if got.LocalID != id {
		t.Errorf("LocalID = %d, want %d", got.LocalID, id)
	}
	if got.SyncStatus != ledger.StatusSynced {
		t.Errorf("SyncStatus = %q, want %q after cloud id assignment", got.SyncStatus, ledger.StatusSynced)
	}

	if _, err := repo.FindByCloudID(ctx, ledger.LocalUserID, "missing"); !errors.Is(err, domainErrors.ErrRecordNotFound) {
		t.Errorf("FindByCloudID() error = %v, want ErrRecordNotFound", err)
	}
}

func TestCategoryRepository_InsertFromRemote(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	c := testutil.NewTestCategory("Remote")
	c.Envelope = testutil.SyncedEnvelope("cloud-9", "user-42", 1700000000000)

	id, err := repo.InsertFromRemote(ctx, c)
	if err != nil {
		t.Fatalf("InsertFromRemote() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-42", id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SyncStatus != ledger.StatusSynced {
		t.Errorf("SyncStatus = %q, want %q", got.SyncStatus, ledger.StatusSynced)
	}
	if got.CloudID != "cloud-9" {
		t.Errorf("CloudID = %q, want cloud-9", got.CloudID)
	}
	if got.LastModified != 1700000000000 {
		t.Errorf("LastModified = %d, want remote timestamp preserved", got.LastModified)
	}
}

func TestCategoryRepository_OverwriteFromRemote(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	c := testutil.NewTestCategory("Food")
	id, _ := repo.Create(ctx, c)

	remote := testutil.NewTestCategory("Groceries")
	remote.Envelope = testutil.SyncedEnvelope("cloud-1", ledger.LocalUserID, 1800000000000)

	if err := repo.OverwriteFromRemote(ctx, id, remote); err != nil {
		t.Fatalf("OverwriteFromRemote() error = %v", err)
	}

	got, _ := repo.Get(ctx, ledger.LocalUserID, id)
	if got.Name != "Groceries" {
		t.Errorf("Name = %q, want Groceries", got.Name)
	}
	if got.LocalID != id {
		t.Errorf("LocalID = %d, want %d (stable across overwrite)", got.LocalID, id)
	}
	if got.SyncStatus != ledger.StatusSynced {
		t.Errorf("SyncStatus = %q, want %q", got.SyncStatus, ledger.StatusSynced)
	}
}

func TestCategoryRepository_AdoptUser(t *testing.T) {
	db := openTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	id, _ := repo.CreateSeeded(ctx, testutil.NewTestCategory("Food"))

	if err := repo.AdoptUser(ctx, ledger.LocalUserID, "user-42", ledger.NowMillis()); err != nil {
		t.Fatalf("AdoptUser() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-42", id)
	if err != nil {
		t.Fatalf("Get() under new owner error = %v", err)
	}
	if got.SyncStatus != ledger.StatusPendingUpload {
		t.Errorf("SyncStatus = %q, want %q after adoption", got.SyncStatus, ledger.StatusPendingUpload)
	}

	count, err := repo.CountPending(ctx, "user-42")
	if err != nil {
		t.Fatalf("CountPending() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountPending() = %d, want 1", count)
	}
}
