package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/monetalabs/moneta/internal/application/ports"
	domainErrors "github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Compile-time check that CategoryRepository implements CategoryStoragePort.
var _ ports.CategoryStoragePort = (*CategoryRepository)(nil)

// CategoryRepository implements CategoryStoragePort using SQLite.
type CategoryRepository struct {
	db     *sql.DB
	marker ports.UploadMarker
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// SetMarker binds the detached upload marker invoked after every insert and
// update. A nil marker leaves writes unmarked until the next sync trigger.
func (r *CategoryRepository) SetMarker(m ports.UploadMarker) {
	r.marker = m
}

func (r *CategoryRepository) markForUpload(localID int64) {
	if r.marker != nil {
		r.marker.MarkForUpload(localID, ledger.KindCategory)
	}
}

const categoryColumns = "local_id, cloud_id, sync_status, last_modified, user_id, name, icon, color, type"

// Create persists a user-authored category. The row is written SYNCED and a
// detached mark flips it to PENDING_UPLOAD once the insert has committed, so
// the caller never waits on sync bookkeeping.
func (r *CategoryRepository) Create(ctx context.Context, c *ledger.Category) (int64, error) {
	id, err := r.insert(ctx, c, ledger.StatusSynced)
	if err != nil {
		return 0, err
	}
	r.markForUpload(id)
	return id, nil
}

// CreateSeeded persists a locally seeded default category as SYNCED, so the
// first sync cycle does not push defaults the server already knows how to
// regenerate.
func (r *CategoryRepository) CreateSeeded(ctx context.Context, c *ledger.Category) (int64, error) {
	return r.insert(ctx, c, ledger.StatusSynced)
}

func (r *CategoryRepository) insert(ctx context.Context, c *ledger.Category, status ledger.SyncStatus) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	if c.LastModified == 0 {
		c.LastModified = ledger.NowMillis()
	}
	if c.UserID == "" {
		c.UserID = ledger.LocalUserID
	}
	c.SyncStatus = status

	query := `
		INSERT INTO categories (cloud_id, sync_status, last_modified, user_id, name, icon, color, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(c.CloudID),
		string(c.SyncStatus),
		c.LastModified,
		c.UserID,
		c.Name,
		c.Icon,
		c.Color,
		string(c.Type),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read category id: %w", err)
	}

	c.LocalID = id
	return id, nil
}

// Get retrieves a category by its local ID.
func (r *CategoryRepository) Get(ctx context.Context, userID string, localID int64) (*ledger.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE local_id = ? AND user_id = ?`

	c, err := r.scanCategoryRow(r.db.QueryRowContext(ctx, query, localID, userID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return c, nil
}

// List retrieves all of a user's categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, userID string) ([]*ledger.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? AND sync_status != ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, userID, string(ledger.StatusPendingDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*ledger.Category
	for rows.Next() {
		c, err := r.scanCategoryRows(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// Update overwrites a category's fields. The sync status is left to the
// detached mark queued after the write commits.
func (r *CategoryRepository) Update(ctx context.Context, c *ledger.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.LastModified = ledger.NowMillis()

	query := `
		UPDATE categories
		SET name = ?, icon = ?, color = ?, type = ?, last_modified = ?
		WHERE local_id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Icon, c.Color, string(c.Type),
		c.LastModified,
		c.LocalID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	if err := requireRowAffected(result); err != nil {
		return err
	}
	r.markForUpload(c.LocalID)
	return nil
}

// Delete removes a category. Records known to the cloud are marked
// PENDING_DELETE and purged after the remote delete succeeds; records the
// cloud never saw are purged immediately. Referencing transactions get their
// category nulled, referencing budgets follow the same two-phase rule.
func (r *CategoryRepository) Delete(ctx context.Context, userID string, localID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	var cloudID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT cloud_id FROM categories WHERE local_id = ? AND user_id = ?`,
		localID, userID,
	).Scan(&cloudID)
	if err == sql.ErrNoRows {
		return domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load category: %w", err)
	}

	now := ledger.NowMillis()

	// Detached transactions are local edits that still need to reach the cloud.
	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL, sync_status = ?, last_modified = ?
		 WHERE category_id = ? AND user_id = ? AND sync_status != ?`,
		string(ledger.StatusPendingUpload), now, localID, userID, string(ledger.StatusPendingDelete),
	)
	if err != nil {
		return fmt.Errorf("failed to detach transactions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE budgets SET sync_status = ?, last_modified = ?
		 WHERE category_id = ? AND user_id = ? AND cloud_id IS NOT NULL`,
		string(ledger.StatusPendingDelete), now, localID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark budgets for delete: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM budgets WHERE category_id = ? AND user_id = ? AND cloud_id IS NULL`,
		localID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to purge unsynced budgets: %w", err)
	}

	if cloudID.Valid {
		_, err = tx.ExecContext(ctx,
			`UPDATE categories SET sync_status = ?, last_modified = ? WHERE local_id = ?`,
			string(ledger.StatusPendingDelete), now, localID,
		)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE local_id = ?`, localID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return tx.Commit()
}

// --- SyncStore surface ---

// PendingSync returns categories queued for upload or remote delete.
// CONFLICT rows are excluded: they stay inert until a future resolution flow.
func (r *CategoryRepository) PendingSync(ctx context.Context, userID string) ([]*ledger.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? AND sync_status IN (?, ?) ORDER BY local_id`

	rows, err := r.db.QueryContext(ctx, query, userID,
		string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending categories: %w", err)
	}
	defer rows.Close()

	var categories []*ledger.Category
	for rows.Next() {
		c, err := r.scanCategoryRows(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// FindByCloudID looks up the local copy of a remote document.
func (r *CategoryRepository) FindByCloudID(ctx context.Context, userID, cloudID string) (*ledger.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ? AND cloud_id = ?`

	c, err := r.scanCategoryRow(r.db.QueryRowContext(ctx, query, userID, cloudID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category by cloud id: %w", err)
	}

	return c, nil
}

// InsertFromRemote inserts a pulled category as already reconciled.
func (r *CategoryRepository) InsertFromRemote(ctx context.Context, c *ledger.Category) (int64, error) {
	query := `
		INSERT INTO categories (cloud_id, sync_status, last_modified, user_id, name, icon, color, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(c.CloudID),
		string(ledger.StatusSynced),
		c.LastModified,
		c.UserID,
		c.Name,
		c.Icon,
		c.Color,
		string(c.Type),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert remote category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read category id: %w", err)
	}

	c.LocalID = id
	c.SyncStatus = ledger.StatusSynced
	return id, nil
}

// OverwriteFromRemote replaces local fields with the remote copy, keeping the
// local ID stable so references from transactions and budgets survive.
func (r *CategoryRepository) OverwriteFromRemote(ctx context.Context, localID int64, c *ledger.Category) error {
	query := `
		UPDATE categories
		SET cloud_id = ?, sync_status = ?, last_modified = ?, user_id = ?, name = ?, icon = ?, color = ?, type = ?
		WHERE local_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableCloudID(c.CloudID),
		string(ledger.StatusSynced),
		c.LastModified,
		c.UserID,
		c.Name,
		c.Icon,
		c.Color,
		string(c.Type),
		localID,
	)
	if err != nil {
		return fmt.Errorf("failed to overwrite category: %w", err)
	}

	return requireRowAffected(result)
}

// UpdateSyncStatus moves a category to the given status.
func (r *CategoryRepository) UpdateSyncStatus(ctx context.Context, localID int64, status ledger.SyncStatus, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET sync_status = ?, last_modified = ? WHERE local_id = ?`,
		string(status), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category sync status: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateCloudID records the server-assigned document ID and marks the row SYNCED.
func (r *CategoryRepository) UpdateCloudID(ctx context.Context, localID int64, cloudID string, timestamp int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET cloud_id = ?, sync_status = ?, last_modified = ? WHERE local_id = ?`,
		cloudID, string(ledger.StatusSynced), timestamp, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category cloud id: %w", err)
	}
	return requireRowAffected(result)
}

// Purge hard-deletes the row.
func (r *CategoryRepository) Purge(ctx context.Context, localID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to purge category: %w", err)
	}
	return nil
}

// AdoptUser re-owns every category of fromUserID and queues it for upload.
func (r *CategoryRepository) AdoptUser(ctx context.Context, fromUserID, toUserID string, timestamp int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET user_id = ?, sync_status = ?, last_modified = ? WHERE user_id = ?`,
		toUserID, string(ledger.StatusPendingUpload), timestamp, fromUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to adopt categories: %w", err)
	}
	return nil
}

// CountPending returns the number of categories awaiting sync.
func (r *CategoryRepository) CountPending(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE user_id = ? AND sync_status IN (?, ?)`,
		userID, string(ledger.StatusPendingUpload), string(ledger.StatusPendingDelete),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending categories: %w", err)
	}
	return count, nil
}

// scanCategoryRow scans a single row into a category.
func (r *CategoryRepository) scanCategoryRow(row *sql.Row) (*ledger.Category, error) {
	var (
		c       ledger.Category
		cloudID sql.NullString
		status  string
		ctype   string
	)

	err := row.Scan(&c.LocalID, &cloudID, &status, &c.LastModified, &c.UserID,
		&c.Name, &c.Icon, &c.Color, &ctype)
	if err != nil {
		return nil, err
	}

	c.CloudID = cloudIDString(cloudID)
	c.SyncStatus = ledger.SyncStatus(status)
	c.Type = ledger.FlowType(ctype)
	return &c, nil
}

// scanCategoryRows scans rows into a category.
func (r *CategoryRepository) scanCategoryRows(rows *sql.Rows) (*ledger.Category, error) {
	var (
		c       ledger.Category
		cloudID sql.NullString
		status  string
		ctype   string
	)

	err := rows.Scan(&c.LocalID, &cloudID, &status, &c.LastModified, &c.UserID,
		&c.Name, &c.Icon, &c.Color, &ctype)
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	c.CloudID = cloudIDString(cloudID)
	c.SyncStatus = ledger.SyncStatus(status)
	c.Type = ledger.FlowType(ctype)
	return &c, nil
}

// requireRowAffected converts a zero-row update into a not-found error.
func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domainErrors.ErrRecordNotFound
	}
	return nil
}
