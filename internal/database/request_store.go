package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RequestStore persists in-flight payment and batch requests with a TTL.
// Rows past expires_at are rejected on read and purged by the periodic sweep.
type RequestStore struct {
	db     *sql.DB
	logger Logger

	// Prepared statements
	insertStmt      *sql.Stmt
	getStmt         *sql.Stmt
	bindWitnessStmt *sql.Stmt
	setStatusStmt   *sql.Stmt
	deleteStmt      *sql.Stmt
	sweepStmt       *sql.Stmt
	countStmt       *sql.Stmt
}

// Logger is the minimal logging surface the table managers need
type Logger interface {
	Debug(message string, category string)
	Info(message string, category string)
	Warn(message string, category string)
	Error(message string, category string)
}

// RequestRow is a stored payment or batch request
type RequestRow struct {
	ID          string
	Kind        string // "payment" or "batch"
	RequestJSON string
	WitnessJSON *string // nil until the witness is bound
	Status      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewRequestStore creates the payment_requests table manager
func NewRequestStore(db *sql.DB, logger Logger) (*RequestStore, error) {
	rs := &RequestStore{
		db:     db,
		logger: logger,
	}

	if err := rs.createTable(); err != nil {
		return nil, err
	}

	if err := rs.prepareStatements(); err != nil {
		return nil, err
	}

	return rs, nil
}

func (rs *RequestStore) createTable() error {
	createTableSQL := `
-- In-flight payment/batch requests with TTL
CREATE TABLE IF NOT EXISTS payment_requests (
	"id" TEXT PRIMARY KEY,
	"kind" TEXT NOT NULL,            -- 'payment' or 'batch'
	"request_json" TEXT NOT NULL,    -- JSON-encoded request
	"witness_json" TEXT,             -- set exactly once on first typed-data build
	"status" TEXT NOT NULL DEFAULT 'pending',
	"created_at" INTEGER NOT NULL,   -- Unix timestamp
	"expires_at" INTEGER NOT NULL    -- Unix timestamp
);

-- Index for sweep queries
CREATE INDEX IF NOT EXISTS idx_payment_requests_expires_at ON payment_requests(expires_at);
`

	_, err := rs.db.ExecContext(context.Background(), createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create payment_requests table: %v", err)
	}

	rs.logger.Debug("Created payment_requests table successfully", "database")
	return nil
}

func (rs *RequestStore) prepareStatements() error {
	var err error

	rs.insertStmt, err = rs.db.Prepare(`
		INSERT INTO payment_requests (id, kind, request_json, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %v", err)
	}

	rs.getStmt, err = rs.db.Prepare(`
		SELECT id, kind, request_json, witness_json, status, created_at, expires_at
		FROM payment_requests
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %v", err)
	}

	// Guard on witness_json IS NULL makes binding at-most-once
	rs.bindWitnessStmt, err = rs.db.Prepare(`
		UPDATE payment_requests
		SET witness_json = ?, request_json = ?, status = ?
		WHERE id = ? AND witness_json IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare bind witness statement: %v", err)
	}

	rs.setStatusStmt, err = rs.db.Prepare(`
		UPDATE payment_requests
		SET status = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set status statement: %v", err)
	}

	rs.deleteStmt, err = rs.db.Prepare(`
		DELETE FROM payment_requests
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %v", err)
	}

	// Sweep only removes rows already expired at sweep time. Settled rows stay
	// for accounting; executing rows stay because their settlement outcome is
	// still unknown and must land somewhere.
	rs.sweepStmt, err = rs.db.Prepare(`
		DELETE FROM payment_requests
		WHERE expires_at < ? AND status NOT IN ('completed', 'failed', 'executing')
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sweep statement: %v", err)
	}

	rs.countStmt, err = rs.db.Prepare(`
		SELECT COUNT(*) FROM payment_requests
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %v", err)
	}

	rs.logger.Debug("Prepared payment_requests statements successfully", "database")
	return nil
}

// Insert stores a new request
func (rs *RequestStore) Insert(id string, kind string, requestJSON string, status string, createdAt time.Time, expiresAt time.Time) error {
	_, err := rs.insertStmt.Exec(id, kind, requestJSON, status, createdAt.Unix(), expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert request: %v", err)
	}

	rs.logger.Debug(fmt.Sprintf("Stored %s request %s (expires %s)", kind, id, expiresAt.UTC().Format(time.RFC3339)), "database")
	return nil
}

// Get retrieves a stored request. Returns (nil, false, nil) when not found.
func (rs *RequestStore) Get(id string) (*RequestRow, bool, error) {
	var row RequestRow
	var witnessJSON sql.NullString
	var createdAtUnix, expiresAtUnix int64

	err := rs.getStmt.QueryRow(id).Scan(
		&row.ID,
		&row.Kind,
		&row.RequestJSON,
		&witnessJSON,
		&row.Status,
		&createdAtUnix,
		&expiresAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get request: %v", err)
	}

	if witnessJSON.Valid {
		row.WitnessJSON = &witnessJSON.String
	}
	row.CreatedAt = time.Unix(createdAtUnix, 0)
	row.ExpiresAt = time.Unix(expiresAtUnix, 0)

	return &row, true, nil
}

// BindWitness sets the witness exactly once. Returns false if a witness was
// already bound (the caller must then reuse the stored one).
func (rs *RequestStore) BindWitness(id string, witnessJSON string, requestJSON string, status string) (bool, error) {
	result, err := rs.bindWitnessStmt.Exec(witnessJSON, requestJSON, status, id)
	if err != nil {
		return false, fmt.Errorf("failed to bind witness: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// SetStatus updates the lifecycle status of a request
func (rs *RequestStore) SetStatus(id string, status string) error {
	_, err := rs.setStatusStmt.Exec(status, id)
	if err != nil {
		return fmt.Errorf("failed to set request status: %v", err)
	}

	rs.logger.Debug(fmt.Sprintf("Request %s -> %s", id, status), "database")
	return nil
}

// Delete removes a request
func (rs *RequestStore) Delete(id string) error {
	_, err := rs.deleteStmt.Exec(id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %v", err)
	}
	return nil
}

// SweepExpired removes requests whose expires_at has passed at sweep time
func (rs *RequestStore) SweepExpired(now time.Time) (int, error) {
	result, err := rs.sweepStmt.Exec(now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired requests: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()

	if rowsAffected > 0 {
		rs.logger.Debug(fmt.Sprintf("Swept %d expired requests", rowsAffected), "database")
	}

	return int(rowsAffected), nil
}

// Count returns the number of stored requests
func (rs *RequestStore) Count() (int, error) {
	var count int
	err := rs.countStmt.QueryRow().Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %v", err)
	}
	return count, nil
}

// Close closes prepared statements
func (rs *RequestStore) Close() error {
	statements := []*sql.Stmt{
		rs.insertStmt,
		rs.getStmt,
		rs.bindWitnessStmt,
		rs.setStatusStmt,
		rs.deleteStmt,
		rs.sweepStmt,
		rs.countStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			stmt.Close()
		}
	}

	rs.logger.Debug("Closed payment_requests prepared statements", "database")
	return nil
}
