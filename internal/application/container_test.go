package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/config"
	"github.com/monetalabs/moneta/internal/infrastructure/crypto"
	"github.com/monetalabs/moneta/internal/infrastructure/testutil"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	home := testutil.TempDir(t)
	t.Setenv("HOME", home)

	cfg := config.NewDefaultConfig()
	cfg.Database.Path = filepath.Join(home, "moneta.db")

	c, err := NewContainer(cfg, false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewContainer(t *testing.T) {
	c := newTestContainer(t)

	if c.Categories() == nil || c.Transactions() == nil || c.Budgets() == nil || c.ChatLog() == nil {
		t.Error("repositories not wired")
	}
	if c.Orchestrator() == nil {
		t.Error("orchestrator not wired")
	}
	if c.Scheduler() == nil {
		t.Error("scheduler not wired")
	}
	if c.Network() == nil || c.Identity() == nil {
		t.Error("adapters not wired")
	}
	// Chat providers ship disabled until the user adds API keys.
	if c.Chat() != nil {
		t.Error("chat service wired without any enabled provider")
	}
	if got := c.CurrentUserID(); got != ledger.LocalUserID {
		t.Errorf("CurrentUserID() = %q, want local sentinel before sign-in", got)
	}
}

func TestContainer_SeedDefaults(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	if err := c.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults() error = %v", err)
	}

	categories, err := c.Categories().List(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(categories) != 8 {
		t.Fatalf("seeded %d categories, want 8", len(categories))
	}
	for _, cat := range categories {
		if cat.SyncStatus != ledger.StatusSynced {
			t.Errorf("seeded category %q has status %q, want SYNCED", cat.Name, cat.SyncStatus)
		}
	}

	// Seeding again is a no-op.
	if err := c.SeedDefaults(ctx); err != nil {
		t.Fatalf("second SeedDefaults() error = %v", err)
	}
	categories, _ = c.Categories().List(ctx, ledger.LocalUserID)
	if len(categories) != 8 {
		t.Errorf("re-seeding duplicated categories: %d", len(categories))
	}
}

func TestContainer_EncryptedChatKey(t *testing.T) {
	home := testutil.TempDir(t)
	t.Setenv("HOME", home)

	enc, err := crypto.NewEncryptor()
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}
	ciphertext, err := enc.Encrypt("sk-gemini-test")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	cfg := config.NewDefaultConfig()
	cfg.Database.Path = filepath.Join(home, "moneta.db")
	cfg.Chat.Primary.APIKeyEncrypted = ciphertext

	c, err := NewContainer(cfg, false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	defer c.Close()

	if c.Chat() == nil {
		t.Error("chat service not wired from encrypted credential")
	}

	if got := resolveChatKey(cfg.Chat.Primary); got != "sk-gemini-test" {
		t.Errorf("resolveChatKey() = %q, want decrypted key", got)
	}

	// A plain key wins over ciphertext when both are present.
	cfg.Chat.Primary.APIKey = "sk-plain"
	if got := resolveChatKey(cfg.Chat.Primary); got != "sk-plain" {
		t.Errorf("resolveChatKey() = %q, want plain key", got)
	}
}

func TestContainer_SignInAdoptsLocalRecords(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	tx := testutil.NewTestTransaction("12.34", nil)
	localID, err := c.Transactions().Create(ctx, tx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := c.SignIn(ctx, "user-42", "ada@example.com", "sk-test"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if got := c.CurrentUserID(); got != "user-42" {
		t.Errorf("CurrentUserID() = %q, want user-42", got)
	}

	adopted, err := c.Transactions().Get(ctx, "user-42", localID)
	if err != nil {
		t.Fatalf("adopted transaction not found under new owner: %v", err)
	}
	if adopted.SyncStatus != ledger.StatusPendingUpload {
		t.Errorf("adopted status = %q, want PENDING_UPLOAD", adopted.SyncStatus)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if got := c.CurrentUserID(); got != ledger.LocalUserID {
		t.Errorf("CurrentUserID() after sign-out = %q, want local sentinel", got)
	}
}

func TestContainer_WritesFlipThroughMarkQueue(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	cat := testutil.NewTestCategory("Vacation")
	id, err := c.Categories().Create(ctx, cat)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The flip runs detached from the write path; poll until the drained
	// mark lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := c.Categories().Get(ctx, ledger.LocalUserID, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.SyncStatus == ledger.StatusPendingUpload {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %q, want PENDING_UPLOAD once the queued mark drains", got.SyncStatus)
		}
		time.Sleep(10 * time.Millisecond)
	}

	counts, err := c.Orchestrator().PendingCounts(ctx, ledger.LocalUserID)
	if err != nil {
		t.Fatalf("PendingCounts() error = %v", err)
	}
	if counts[ledger.KindCategory] != 1 {
		t.Errorf("pending categories = %d, want 1", counts[ledger.KindCategory])
	}
}
