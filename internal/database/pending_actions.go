package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PendingActionDB stores deferred, sponsorable actions waiting behind a
// user-sent ERC-20 approval. Entries are consumed at most once.
type PendingActionDB struct {
	db     *sql.DB
	logger Logger

	storeStmt   *sql.Stmt
	getStmt     *sql.Stmt
	deleteStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
	countStmt   *sql.Stmt
}

// PendingActionRow is a stored deferred action
type PendingActionRow struct {
	ID          string
	Kind        string // "transfer", "swap" or "batch"
	PayloadJSON string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewPendingActionDB creates the pending_actions table manager
func NewPendingActionDB(db *sql.DB, logger Logger) (*PendingActionDB, error) {
	pa := &PendingActionDB{
		db:     db,
		logger: logger,
	}

	if err := pa.createTable(); err != nil {
		return nil, err
	}

	if err := pa.prepareStatements(); err != nil {
		return nil, err
	}

	return pa, nil
}

func (pa *PendingActionDB) createTable() error {
	createTableSQL := `
-- Deferred sponsorable actions keyed by the approval request that gates them
CREATE TABLE IF NOT EXISTS pending_actions (
	"id" TEXT PRIMARY KEY,
	"kind" TEXT NOT NULL,          -- 'transfer', 'swap' or 'batch'
	"payload_json" TEXT NOT NULL,
	"created_at" INTEGER NOT NULL,
	"expires_at" INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_actions_expires_at ON pending_actions(expires_at);
`

	_, err := pa.db.ExecContext(context.Background(), createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create pending_actions table: %v", err)
	}

	pa.logger.Debug("Created pending_actions table successfully", "database")
	return nil
}

func (pa *PendingActionDB) prepareStatements() error {
	var err error

	pa.storeStmt, err = pa.db.Prepare(`
		INSERT OR REPLACE INTO pending_actions (id, kind, payload_json, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare store statement: %v", err)
	}

	pa.getStmt, err = pa.db.Prepare(`
		SELECT id, kind, payload_json, created_at, expires_at
		FROM pending_actions
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %v", err)
	}

	pa.deleteStmt, err = pa.db.Prepare(`
		DELETE FROM pending_actions
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %v", err)
	}

	pa.cleanupStmt, err = pa.db.Prepare(`
		DELETE FROM pending_actions
		WHERE expires_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %v", err)
	}

	pa.countStmt, err = pa.db.Prepare(`
		SELECT COUNT(*) FROM pending_actions
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %v", err)
	}

	pa.logger.Debug("Prepared pending_actions statements successfully", "database")
	return nil
}

// Store saves a deferred action
func (pa *PendingActionDB) Store(id string, kind string, payloadJSON string, createdAt time.Time, expiresAt time.Time) error {
	_, err := pa.storeStmt.Exec(id, kind, payloadJSON, createdAt.Unix(), expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store pending action: %v", err)
	}

	pa.logger.Debug(fmt.Sprintf("Stored pending %s action %s", kind, id), "database")
	return nil
}

// Get retrieves a deferred action without consuming it.
// Returns (nil, false, nil) when not found or already expired.
func (pa *PendingActionDB) Get(id string) (*PendingActionRow, bool, error) {
	var row PendingActionRow
	var createdAtUnix, expiresAtUnix int64

	err := pa.getStmt.QueryRow(id).Scan(
		&row.ID,
		&row.Kind,
		&row.PayloadJSON,
		&createdAtUnix,
		&expiresAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get pending action: %v", err)
	}

	row.CreatedAt = time.Unix(createdAtUnix, 0)
	row.ExpiresAt = time.Unix(expiresAtUnix, 0)

	if time.Now().After(row.ExpiresAt) {
		if err := pa.Delete(id); err != nil {
			pa.logger.Error(fmt.Sprintf("Failed to delete expired pending action %s: %v", id, err), "database")
		}
		return nil, false, nil
	}

	return &row, true, nil
}

// Delete removes a deferred action
func (pa *PendingActionDB) Delete(id string) error {
	_, err := pa.deleteStmt.Exec(id)
	if err != nil {
		return fmt.Errorf("failed to delete pending action: %v", err)
	}
	return nil
}

// Consume retrieves and deletes a deferred action in one transaction.
// A second call for the same id reports not found.
func (pa *PendingActionDB) Consume(id string) (*PendingActionRow, bool, error) {
	tx, err := pa.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin consume transaction: %v", err)
	}
	defer tx.Rollback()

	var row PendingActionRow
	var createdAtUnix, expiresAtUnix int64

	err = tx.QueryRow(`
		SELECT id, kind, payload_json, created_at, expires_at
		FROM pending_actions
		WHERE id = ?
	`, id).Scan(&row.ID, &row.Kind, &row.PayloadJSON, &createdAtUnix, &expiresAtUnix)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pending action: %v", err)
	}

	if _, err := tx.Exec(`DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to consume pending action: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit consume transaction: %v", err)
	}

	row.CreatedAt = time.Unix(createdAtUnix, 0)
	row.ExpiresAt = time.Unix(expiresAtUnix, 0)

	if time.Now().After(row.ExpiresAt) {
		return nil, false, nil
	}

	pa.logger.Debug(fmt.Sprintf("Consumed pending %s action %s", row.Kind, id), "database")
	return &row, true, nil
}

// CleanupExpired removes expired deferred actions
func (pa *PendingActionDB) CleanupExpired(now time.Time) (int, error) {
	result, err := pa.cleanupStmt.Exec(now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired pending actions: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()

	if rowsAffected > 0 {
		pa.logger.Debug(fmt.Sprintf("Cleaned up %d expired pending actions", rowsAffected), "database")
	}

	return int(rowsAffected), nil
}

// Count returns the number of stored deferred actions
func (pa *PendingActionDB) Count() (int, error) {
	var count int
	err := pa.countStmt.QueryRow().Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %v", err)
	}
	return count, nil
}

// Close closes prepared statements
func (pa *PendingActionDB) Close() error {
	statements := []*sql.Stmt{
		pa.storeStmt,
		pa.getStmt,
		pa.deleteStmt,
		pa.cleanupStmt,
		pa.countStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			stmt.Close()
		}
	}

	pa.logger.Debug("Closed pending_actions prepared statements", "database")
	return nil
}
