package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewConnection(t *testing.T) {
	t.Run("creates connection with custom path", func(t *testing.T) {
		conn, err := NewConnection("/tmp/test.db", 0)
		if err != nil {
			t.Fatalf("NewConnection() error = %v", err)
		}
		if conn.Path() != "/tmp/test.db" {
			t.Errorf("Path() = %q, want %q", conn.Path(), "/tmp/test.db")
		}
	})

	t.Run("creates connection with default path", func(t *testing.T) {
		conn, err := NewConnection("", 0)
		if err != nil {
			t.Fatalf("NewConnection() error = %v", err)
		}
		homeDir, _ := os.UserHomeDir()
		expectedPath := filepath.Join(homeDir, ".moneta", "moneta.db")
		if conn.Path() != expectedPath {
			t.Errorf("Path() = %q, want %q", conn.Path(), expectedPath)
		}
	})
}

func TestConnection_OpenClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	conn, err := NewConnection(dbPath, 5*time.Second)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}

	t.Run("open creates database and runs migrations", func(t *testing.T) {
		if err := conn.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		// Verify database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Open() did not create database file")
		}

		// Verify DB() returns connection
		db, err := conn.DB()
		if err != nil {
			t.Fatalf("DB() error = %v", err)
		}
		if db == nil {
			t.Error("DB() returned nil")
		}
	})

	t.Run("open on already open connection returns error", func(t *testing.T) {
		err := conn.Open()
		if err == nil {
			t.Error("Open() on already open connection should return error")
		}
	})

	t.Run("IsClosed returns false when open", func(t *testing.T) {
		if conn.IsClosed() {
			t.Error("IsClosed() = true, want false")
		}
	})

	t.Run("ping succeeds when open", func(t *testing.T) {
		if err := conn.Ping(); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("close closes the connection", func(t *testing.T) {
		if err := conn.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !conn.IsClosed() {
			t.Error("IsClosed() = false after Close()")
		}
	})

	t.Run("DB returns error after close", func(t *testing.T) {
		if _, err := conn.DB(); err == nil {
			t.Error("DB() should return error after Close()")
		}
	})

	t.Run("close on closed connection is a no-op", func(t *testing.T) {
		if err := conn.Close(); err != nil {
			t.Errorf("Close() on closed connection error = %v", err)
		}
	})
}

func TestConnection_Reopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	conn, err := NewConnection(dbPath, time.Second)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}

	if err := conn.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening the same file must not re-run applied migrations.
	if err := conn.Open(); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer conn.Close()

	db, err := conn.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if count != 5 {
		t.Errorf("migrations count = %d after reopen, want 5", count)
	}
}
