package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/monetalabs/moneta/internal/application/ports"
	domainErrors "github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Compile-time check that BudgetRepository implements BudgetStoragePort.
var _ ports.BudgetStoragePort = (*BudgetRepository)(nil)

// BudgetRepository implements BudgetStoragePort using SQLite.
type BudgetRepository struct {
	db     *sql.DB
	marker ports.UploadMarker
}

// NewBudgetRepository creates a new budget repository.
func NewBudgetRepository(db *sql.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// SetMarker binds the detached upload marker invoked after every insert and
// update.
func (r *BudgetRepository) SetMarker(m ports.UploadMarker) {
	r.marker = m
}

func (r *BudgetRepository) markForUpload(localID int64) {
	if r.marker != nil {
		r.marker.MarkForUpload(localID, ledger.KindBudget)
	}
}

const budgetColumns = "local_id, cloud_id, sync_status, last_modified, user_id, category_id, amount, month, year"

// Create persists a new budget. The row is written SYNCED and a detached
// mark flips it to PENDING_UPLOAD once the insert has committed.
func (r *BudgetRepository) Create(ctx context.Context, b *ledger.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	if b.LastModified == 0 {
		b.LastModified = ledger.NowMillis()
	}
	if b.UserID == "" {
		b.UserID = ledger.LocalUserID
	}
	b.SyncStatus = ledger.StatusSynced

	query := `
		INSERT INTO budgets (cloud_id, sync_status, last_modified, user_id, category_id, amount, month, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(b.CloudID),
		string(b.SyncStatus),
		b.LastModified,
		b.UserID,
		b.CategoryID,
		b.Amount.String(),
		b.Month,
		b.Year,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create budget: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read budget id: %w", err)
	}

	b.LocalID = id
	r.markForUpload(id)
	return id, nil
}

// Get retrieves a budget by its local ID.
func (r *BudgetRepository) Get(ctx context.Context, userID string, localID int64) (*ledger.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE local_id = ? AND user_id = ?`

	b, err := r.scanBudgetRow(r.db.QueryRowContext(ctx, query, localID, userID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	return b, nil
}

// List retrieves all of a user's budgets ordered by period.
func (r *BudgetRepository) List(ctx context.Context, userID string) ([]*ledger.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ? AND sync_status != ? ORDER BY year DESC, month DESC`
	return r.list(ctx, query, userID, string(ledger.StatusPendingDelete))
}

// ListForMonth retrieves a user's budgets for one calendar month.
func (r *BudgetRepository) ListForMonth(ctx context.Context, userID string, month, year int) ([]*ledger.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ? AND month = ? AND year = ? AND sync_status != ? ORDER BY category_id`
	return r.list(ctx, query, userID, month, year, string(ledger.StatusPendingDelete))
}

func (r *BudgetRepository) list(ctx context.Context, query string, args ...any) ([]*ledger.Budget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*ledger.Budget
	for rows.Next() {
		b, err := r.scanBudgetRows(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}

	return budgets, rows.Err()
}

// Update overwrites a budget's fields. The sync status is left to the
// detached mark queued after the write commits.
func (r *BudgetRepository) Update(ctx context.Context, b *ledger.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}

	b.LastModified = ledger.NowMillis()

	query := `
		UPDATE budgets
		SET category_id = ?, amount = ?, month = ?, year = ?, last_modified = ?
		WHERE local_id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		b.CategoryID, b.Amount.String(), b.Month, b.Year,
		b.LastModified,
		b.LocalID, b.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}

	if err := requireRowAffected(result); err != nil {
		return err
	}
	r.markForUpload(b.LocalID)
	return nil
}

// Delete removes a budget using the two-phase rule.
func (r *BudgetRepository) Delete(ctx context.Context, userID string, localID int64) error {
	return twoPhaseDelete(ctx, r.db, "budgets", userID, localID)
}

// --- SyncStore surface ---

// PendingSync returns budgets queued for upload or remote delete.
func (r *BudgetRepository) PendingSync(ctx context.Context, userID string) ([]*ledger.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ? AND sync_status IN (?, ?) ORDER BY local_id`
	return r.list(ctx, query, userID,
		string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete))
}

// FindByCloudID looks up the local copy of a remote document.
func (r *BudgetRepository) FindByCloudID(ctx context.Context, userID, cloudID string) (*ledger.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ? AND cloud_id = ?`

	b, err := r.scanBudgetRow(r.db.QueryRowContext(ctx, query, userID, cloudID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find budget by cloud id: %w", err)
	}

	return b, nil
}

// InsertFromRemote inserts a pulled budget as already reconciled.
func (r *BudgetRepository) InsertFromRemote(ctx context.Context, b *ledger.Budget) (int64, error) {
	query := `
		INSERT INTO budgets (cloud_id, sync_status, last_modified, user_id, category_id, amount, month, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(b.CloudID),
		string(ledger.StatusSynced),
		b.LastModified,
		b.UserID,
		b.CategoryID,
		b.Amount.String(),
		b.Month,
		b.Year,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert remote budget: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read budget id: %w", err)
	}

	b.LocalID = id
	b.SyncStatus = ledger.StatusSynced
	return id, nil
}

// OverwriteFromRemote replaces local fields with the remote copy.
func (r *BudgetRepository) OverwriteFromRemote(ctx context.Context, localID int64, b *ledger.Budget) error {
	query := `
		UPDATE budgets
		SET cloud_id = ?, sync_status = ?, last_modified = ?, user_id = ?, amount = ?, month = ?, year = ?
		WHERE local_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(b.CloudID),
		string(ledger.StatusSynced),
		b.LastModified,
		b.UserID,
		b.Amount.String(),
		b.Month,
		b.Year,
		localID,
	)
	if err != nil {
		return fmt.Errorf("failed to overwrite budget: %w", err)
	}

	return requireRowAffected(result)
}

// UpdateSyncStatus moves a budget to the given status.
func (r *BudgetRepository) UpdateSyncStatus(ctx context.Context, localID int64, status ledger.SyncStatus, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET sync_status = ?, last_modified = ? WHERE local_id = ?`,
		string(status), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget sync status: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateCloudID records the server-assigned document ID and marks the row SYNCED.
func (r *BudgetRepository) UpdateCloudID(ctx context.Context, localID int64, cloudID string, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET cloud_id = ?, sync_status = ?, last_modified = ? WHERE local_id = ?`,
		cloudID, string(ledger.StatusSynced), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget cloud id: %w", err)
	}
	return requireRowAffected(result)
}

// Purge hard-deletes the row.
func (r *BudgetRepository) Purge(ctx context.Context, localID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to purge budget: %w", err)
	}
	return nil
}

// AdoptUser re-owns every budget of fromUserID and queues it for upload.
func (r *BudgetRepository) AdoptUser(ctx context.Context, fromUserID, toUserID string, timestamp int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET user_id = ?, sync_status = ?, last_modified = ? WHERE user_id = ?`,
		toUserID, string(ledger.StatusPendingUpload), timestamp, fromUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to adopt budgets: %w", err)
	}
	return nil
}

// CountPending returns the number of budgets awaiting sync.
func (r *BudgetRepository) CountPending(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budgets WHERE user_id = ? AND sync_status IN (?, ?)`,
		userID, string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending budgets: %w", err)
	}
	return count, nil
}

// scanBudgetRow scans a single row into a budget.
func (r *BudgetRepository) scanBudgetRow(row *sql.Row) (*ledger.Budget, error) {
	var (
		b       ledger.Budget
		cloudID sql.NullString
		status  string
		amount  string
	)

	err := row.Scan(&b.LocalID, &cloudID, &status, &b.LastModified, &b.UserID,
		&b.CategoryID, &amount, &b.Month, &b.Year)
	if err != nil {
		return nil, err
	}

	return buildBudget(&b, cloudID, status, amount)
}

// scanBudgetRows scans rows into a budget.
func (r *BudgetRepository) scanBudgetRows(rows *sql.Rows) (*ledger.Budget, error) {
	var (
		b       ledger.Budget
		cloudID sql.NullString
		status  string
		amount  string
	)

	err := rows.Scan(&b.LocalID, &cloudID, &status, &b.LastModified, &b.UserID,
		&b.CategoryID, &amount, &b.Month, &b.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget: %w", err)
	}

	return buildBudget(&b, cloudID, status, amount)
}

func buildBudget(b *ledger.Budget, cloudID sql.NullString, status, amount string) (*ledger.Budget, error) {
	b.CloudID = cloudIDString(cloudID)
	b.SyncStatus = ledger.SyncStatus(status)

	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse budget amount: %w", err)
	}
	b.Amount = parsed

	return b, nil
}
