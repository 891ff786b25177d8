package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/monetalabs/moneta/internal/application/ports"
	domainErrors "github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Compile-time check that TransactionRepository implements TransactionStoragePort.
var _ ports.TransactionStoragePort = (*TransactionRepository)(nil)

// TransactionRepository implements TransactionStoragePort using SQLite.
type TransactionRepository struct {
	db     *sql.DB
	marker ports.UploadMarker
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// SetMarker binds the detached upload marker invoked after every insert and
// update.
func (r *TransactionRepository) SetMarker(m ports.UploadMarker) {
	r.marker = m
}

func (r *TransactionRepository) markForUpload(localID int64) {
	if r.marker != nil {
		r.marker.MarkForUpload(localID, ledger.KindTransaction)
	}
}

const transactionColumns = "local_id, cloud_id, sync_status, last_modified, user_id, amount, date, description, category_id, type"

// Create persists a new transaction. The row is written SYNCED and a
// detached mark flips it to PENDING_UPLOAD once the insert has committed.
func (r *TransactionRepository) Create(ctx context.Context, t *ledger.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	if t.LastModified == 0 {
		t.LastModified = ledger.NowMillis()
	}
	if t.Date == 0 {
		t.Date = t.LastModified
	}
	if t.UserID == "" {
		t.UserID = ledger.LocalUserID
	}
	t.SyncStatus = ledger.StatusSynced

	query := `
		INSERT INTO transactions (cloud_id, sync_status, last_modified, user_id, amount, date, description, category_id, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(t.CloudID),
		string(t.SyncStatus),
		t.LastModified,
		t.UserID,
		t.Amount.String(),
		t.Date,
		t.Description,
		t.CategoryID,
		string(t.Type),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}

	t.LocalID = id
	r.markForUpload(id)
	return id, nil
}

// Get retrieves a transaction by its local ID.
func (r *TransactionRepository) Get(ctx context.Context, userID string, localID int64) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE local_id = ? AND user_id = ?`

	t, err := r.scanTransactionRow(r.db.QueryRowContext(ctx, query, localID, userID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return t, nil
}

// List retrieves all of a user's transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context, userID string) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND sync_status != ? ORDER BY date DESC`
	return r.list(ctx, query, userID, string(ledger.StatusPendingDelete))
}

// ListByCategory retrieves a user's transactions for one category, newest first.
func (r *TransactionRepository) ListByCategory(ctx context.Context, userID string, categoryID int64) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND category_id = ? AND sync_status != ? ORDER BY date DESC`
	return r.list(ctx, query, userID, categoryID, string(ledger.StatusPendingDelete))
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*ledger.Transaction
	for rows.Next() {
		t, err := r.scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

// Update overwrites a transaction's fields. The sync status is left to the
// detached mark queued after the write commits.
func (r *TransactionRepository) Update(ctx context.Context, t *ledger.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	t.LastModified = ledger.NowMillis()

	query := `
		UPDATE transactions
		SET amount = ?, date = ?, description = ?, category_id = ?, type = ?, last_modified = ?
		WHERE local_id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Amount.String(), t.Date, t.Description, t.CategoryID, string(t.Type),
		t.LastModified,
		t.LocalID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := requireRowAffected(result); err != nil {
		return err
	}
	r.markForUpload(t.LocalID)
	return nil
}

// Delete removes a transaction using the two-phase rule: rows the cloud knows
// about are marked PENDING_DELETE, rows it never saw are purged immediately.
func (r *TransactionRepository) Delete(ctx context.Context, userID string, localID int64) error {
	return twoPhaseDelete(ctx, r.db, "transactions", userID, localID)
}

// --- SyncStore surface ---

// PendingSync returns transactions queued for upload or remote delete.
func (r *TransactionRepository) PendingSync(ctx context.Context, userID string) ([]*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND sync_status IN (?, ?) ORDER BY local_id`
	return r.list(ctx, query, userID,
		string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete))
}

// FindByCloudID looks up the local copy of a remote document.
func (r *TransactionRepository) FindByCloudID(ctx context.Context, userID, cloudID string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? AND cloud_id = ?`

	t, err := r.scanTransactionRow(r.db.QueryRowContext(ctx, query, userID, cloudID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by cloud id: %w", err)
	}

	return t, nil
}

// InsertFromRemote inserts a pulled transaction as already reconciled.
// The category reference is local-scoped and cannot be resolved from remote
// data, so pulled transactions arrive uncategorized.
func (r *TransactionRepository) InsertFromRemote(ctx context.Context, t *ledger.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (cloud_id, sync_status, last_modified, user_id, amount, date, description, category_id, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(t.CloudID),
		string(ledger.StatusSynced),
		t.LastModified,
		t.UserID,
		t.Amount.String(),
		t.Date,
		t.Description,
		t.CategoryID,
		string(t.Type),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert remote transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}

	t.LocalID = id
	t.SyncStatus = ledger.StatusSynced
	return id, nil
}

// OverwriteFromRemote replaces local fields with the remote copy.
func (r *TransactionRepository) OverwriteFromRemote(ctx context.Context, localID int64, t *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET cloud_id = ?, sync_status = ?, last_modified = ?, user_id = ?, amount = ?, date = ?, description = ?, type = ?
		WHERE local_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(t.CloudID),
		string(ledger.StatusSynced),
		t.LastModified,
		t.UserID,
		t.Amount.String(),
		t.Date,
		t.Description,
		string(t.Type),
		localID,
	)
	if err != nil {
		return fmt.Errorf("failed to overwrite transaction: %w", err)
	}

	return requireRowAffected(result)
}

// UpdateSyncStatus moves a transaction to the given status.
func (r *TransactionRepository) UpdateSyncStatus(ctx context.Context, localID int64, status ledger.SyncStatus, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, last_modified = ? WHERE local_id = ?`,
		string(status), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction sync status: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateCloudID records the server-assigned document ID and marks the row SYNCED.
func (r *TransactionRepository) UpdateCloudID(ctx context.Context, localID int64, cloudID string, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET cloud_id = ?, sync_status = ?, last_modified = ? WHERE local_id = ?`,
		cloudID, string(ledger.StatusSynced), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction cloud id: %w", err)
	}
	return requireRowAffected(result)
}

// Purge hard-deletes the row.
func (r *TransactionRepository) Purge(ctx context.Context, localID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to purge transaction: %w", err)
	}
	return nil
}

// AdoptUser re-owns every transaction of fromUserID and queues it for upload.
func (r *TransactionRepository) AdoptUser(ctx context.Context, fromUserID, toUserID string, timestamp int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET user_id = ?, sync_status = ?, last_modified = ? WHERE user_id = ?`,
		toUserID, string(ledger.StatusPendingUpload), timestamp, fromUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to adopt transactions: %w", err)
	}
	return nil
}

// CountPending returns the number of transactions awaiting sync.
func (r *TransactionRepository) CountPending(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ? AND sync_status IN (?, ?)`,
		userID, string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	return count, nil
}

// scanTransactionRow scans a single row into a transaction.
func (r *TransactionRepository) scanTransactionRow(row *sql.Row) (*ledger.Transaction, error) {
	var (
		t          ledger.Transaction
		cloudID    sql.NullString
		status     string
		amount     string
		categoryID sql.NullInt64
		ttype      string
	)

	err := row.Scan(&t.LocalID, &cloudID, &status, &t.LastModified, &t.UserID,
		&amount, &t.Date, &t.Description, &categoryID, &ttype)
	if err != nil {
		return nil, err
	}

	return buildTransaction(&t, cloudID, status, amount, categoryID, ttype)
}

// scanTransactionRows scans rows into a transaction.
func (r *TransactionRepository) scanTransactionRows(rows *sql.Rows) (*ledger.Transaction, error) {
	var (
		t          ledger.Transaction
		cloudID    sql.NullString
		status     string
		amount     string
		categoryID sql.NullInt64
		ttype      string
	)

	err := rows.Scan(&t.LocalID, &cloudID, &status, &t.LastModified, &t.UserID,
		&amount, &t.Date, &t.Description, &categoryID, &ttype)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	return buildTransaction(&t, cloudID, status, amount, categoryID, ttype)
}

func buildTransaction(t *ledger.Transaction, cloudID sql.NullString, status, amount string, categoryID sql.NullInt64, ttype string) (*ledger.Transaction, error) {
	t.CloudID = cloudIDString(cloudID)
	t.SyncStatus = ledger.SyncStatus(status)
	t.Type = ledger.FlowType(ttype)

	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction amount: %w", err)
	}
	t.Amount = parsed

	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}

	return t, nil
}

// twoPhaseDelete marks a synced row for remote deletion or purges an unsynced
// row outright. Shared by the transaction and budget repositories.
func twoPhaseDelete(ctx context.Context, db *sql.DB, table, userID string, localID int64) error {
	var cloudID sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cloud_id FROM `+table+` WHERE local_id = ? AND user_id = ?`,
		localID, userID,
	).Scan(&cloudID)
	if err == sql.ErrNoRows {
		return domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	if cloudID.Valid {
		_, err = db.ExecContext(ctx,
			`UPDATE `+table+` SET sync_status = ?, last_modified = ? WHERE local_id = ?`,
			string(ledger.StatusPendingDelete), ledger.NowMillis(), localID,
		)
	} else {
		_, err = db.ExecContext(ctx, `DELETE FROM `+table+` WHERE local_id = ?`, localID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}
