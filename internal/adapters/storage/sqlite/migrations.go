package sqlite

import (
	"database/sql"
	"fmt"
)

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("could not enable foreign keys: %w", err)
	}

	// Create migrations table
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	// Apply each migration
	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_categories_table", createCategoriesTable},
		{2, "create_transactions_table", createTransactionsTable},
		{3, "create_budgets_table", createBudgetsTable},
		{4, "create_chat_messages_table", createChatMessagesTable},
		{5, "create_sync_indices", createSyncIndices},
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}

		if applied {
			continue
		}

		// Apply migration
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}

		// Record migration
		if err := recordMigration(db, m.version, m.name); err != nil {
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table.
func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// isMigrationApplied checks if a migration has been applied.
func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied.
func recordMigration(db *sql.DB, version int, name string) error {
	_, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// Migration SQL statements.
//
// Every syncable table carries the same envelope columns: cloud_id,
// sync_status, last_modified, user_id. Amounts are stored as TEXT to keep
// decimal values exact.

const createCategoriesTable = `
CREATE TABLE categories (
	local_id INTEGER PRIMARY KEY AUTOINCREMENT,
	cloud_id TEXT,
	sync_status TEXT NOT NULL DEFAULT 'SYNCED',
	last_modified INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	color INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL
);
`

const createTransactionsTable = `
CREATE TABLE transactions (
	local_id INTEGER PRIMARY KEY AUTOINCREMENT,
	cloud_id TEXT,
	sync_status TEXT NOT NULL DEFAULT 'SYNCED',
	last_modified INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	date INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category_id INTEGER,
	type TEXT NOT NULL
);
`

const createBudgetsTable = `
CREATE TABLE budgets (
	local_id INTEGER PRIMARY KEY AUTOINCREMENT,
	cloud_id TEXT,
	sync_status TEXT NOT NULL DEFAULT 'SYNCED',
	last_modified INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	category_id INTEGER NOT NULL,
	amount TEXT NOT NULL,
	month INTEGER NOT NULL,
	year INTEGER NOT NULL
);
`

const createChatMessagesTable = `
CREATE TABLE chat_messages (
	local_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	is_error INTEGER NOT NULL DEFAULT 0
);
`

const createSyncIndices = `
CREATE INDEX idx_categories_user_status ON categories(user_id, sync_status);
CREATE INDEX idx_categories_cloud_id ON categories(cloud_id);
CREATE INDEX idx_transactions_user_status ON transactions(user_id, sync_status);
CREATE INDEX idx_transactions_cloud_id ON transactions(cloud_id);
CREATE INDEX idx_transactions_category ON transactions(category_id);
CREATE INDEX idx_transactions_date ON transactions(user_id, date);
CREATE INDEX idx_budgets_user_status ON budgets(user_id, sync_status);
CREATE INDEX idx_budgets_cloud_id ON budgets(cloud_id);
CREATE INDEX idx_budgets_month ON budgets(user_id, year, month);
CREATE INDEX idx_chat_messages_user ON chat_messages(user_id, timestamp);
`
