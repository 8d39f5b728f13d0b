package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"
)

// SpendLedger tracks per-owner daily USD spend (for policy caps) and
// per-sponsor-wallet daily gas spend (for sponsor budgets). Days are UTC.
type SpendLedger struct {
	db     *sql.DB
	logger Logger

	addUsdStmt  *sql.Stmt
	getUsdStmt  *sql.Stmt
	getGasStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// NewSpendLedger creates the spend_ledger table manager
func NewSpendLedger(db *sql.DB, logger Logger) (*SpendLedger, error) {
	sl := &SpendLedger{
		db:     db,
		logger: logger,
	}

	if err := sl.createTable(); err != nil {
		return nil, err
	}

	if err := sl.prepareStatements(); err != nil {
		return nil, err
	}

	return sl, nil
}

func (sl *SpendLedger) createTable() error {
	createTableSQL := `
-- Rolling daily spend per owner address, UTC day buckets
CREATE TABLE IF NOT EXISTS spend_ledger (
	"account" TEXT NOT NULL,        -- owner or sponsor wallet address (lowercased)
	"day" TEXT NOT NULL,            -- YYYY-MM-DD (UTC)
	"spent_usd" REAL NOT NULL DEFAULT 0,
	"gas_spent_wei" TEXT NOT NULL DEFAULT '0',  -- uint256 as decimal string
	PRIMARY KEY (account, day)
);
`

	_, err := sl.db.ExecContext(context.Background(), createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create spend_ledger table: %v", err)
	}

	sl.logger.Debug("Created spend_ledger table successfully", "database")
	return nil
}

func (sl *SpendLedger) prepareStatements() error {
	var err error

	sl.addUsdStmt, err = sl.db.Prepare(`
		INSERT INTO spend_ledger (account, day, spent_usd)
		VALUES (?, ?, ?)
		ON CONFLICT(account, day) DO UPDATE SET spent_usd = spent_usd + excluded.spent_usd
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare add usd statement: %v", err)
	}

	sl.getUsdStmt, err = sl.db.Prepare(`
		SELECT spent_usd FROM spend_ledger
		WHERE account = ? AND day = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get usd statement: %v", err)
	}

	sl.getGasStmt, err = sl.db.Prepare(`
		SELECT gas_spent_wei FROM spend_ledger
		WHERE account = ? AND day = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get gas statement: %v", err)
	}

	sl.cleanupStmt, err = sl.db.Prepare(`
		DELETE FROM spend_ledger
		WHERE day < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %v", err)
	}

	sl.logger.Debug("Prepared spend_ledger statements successfully", "database")
	return nil
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AddSpendUSD records a settled USD amount against an owner's daily total
func (sl *SpendLedger) AddSpendUSD(account string, amountUsd float64, at time.Time) error {
	_, err := sl.addUsdStmt.Exec(account, dayBucket(at), amountUsd)
	if err != nil {
		return fmt.Errorf("failed to record usd spend: %v", err)
	}
	return nil
}

// DailySpentUSD returns the USD amount spent by an account today (UTC)
func (sl *SpendLedger) DailySpentUSD(account string, at time.Time) (float64, error) {
	var spent float64
	err := sl.getUsdStmt.QueryRow(account, dayBucket(at)).Scan(&spent)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usd spend: %v", err)
	}
	return spent, nil
}

// AddGasSpend records sponsored gas (wei) against a sponsor wallet's daily total.
// Read-modify-write in a transaction since SQLite has no uint256 arithmetic.
func (sl *SpendLedger) AddGasSpend(account string, wei *big.Int, at time.Time) error {
	tx, err := sl.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin gas spend transaction: %v", err)
	}
	defer tx.Rollback()

	day := dayBucket(at)

	var currentStr string
	err = tx.QueryRow(`SELECT gas_spent_wei FROM spend_ledger WHERE account = ? AND day = ?`, account, day).Scan(&currentStr)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO spend_ledger (account, day, gas_spent_wei) VALUES (?, ?, ?)`,
			account, day, wei.String()); err != nil {
			return fmt.Errorf("failed to insert gas spend: %v", err)
		}
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to read gas spend: %v", err)
	}

	current, ok := new(big.Int).SetString(currentStr, 10)
	if !ok {
		current = big.NewInt(0)
	}
	current.Add(current, wei)

	if _, err := tx.Exec(`UPDATE spend_ledger SET gas_spent_wei = ? WHERE account = ? AND day = ?`,
		current.String(), account, day); err != nil {
		return fmt.Errorf("failed to update gas spend: %v", err)
	}

	return tx.Commit()
}

// DailyGasSpent returns the gas (wei) sponsored by a wallet today (UTC)
func (sl *SpendLedger) DailyGasSpent(account string, at time.Time) (*big.Int, error) {
	var spentStr string
	err := sl.getGasStmt.QueryRow(account, dayBucket(at)).Scan(&spentStr)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gas spend: %v", err)
	}

	spent, ok := new(big.Int).SetString(spentStr, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt gas spend value %q for account %s", spentStr, account)
	}
	return spent, nil
}

// CleanupBefore drops day buckets older than the given day (UTC)
func (sl *SpendLedger) CleanupBefore(day time.Time) (int, error) {
	result, err := sl.cleanupStmt.Exec(dayBucket(day))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup spend ledger: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// Close closes prepared statements
func (sl *SpendLedger) Close() error {
	statements := []*sql.Stmt{
		sl.addUsdStmt,
		sl.getUsdStmt,
		sl.getGasStmt,
		sl.cleanupStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			stmt.Close()
		}
	}

	sl.logger.Debug("Closed spend_ledger prepared statements", "database")
	return nil
}
