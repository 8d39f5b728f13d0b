package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles all database operations
type SQLiteManager struct {
	dir    string
	cm     *utils.ConfigManager
	db     *sql.DB
	logger *utils.LogsManager

	// Specialized managers
	Requests *RequestStore
	Pending  *PendingActionDB
	Ledger   *SpendLedger
}

// NewSQLiteManager creates a new SQLite manager with the request, pending-action
// and spend-ledger stores initialized
func NewSQLiteManager(cm *utils.ConfigManager, logger *utils.LogsManager) (*SQLiteManager, error) {
	paths := utils.GetAppPaths("")
	sqlm := &SQLiteManager{
		dir:    paths.DataDir,
		cm:     cm,
		logger: logger,
	}

	db, err := sqlm.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %v", err)
	}
	sqlm.db = db

	if err := sqlm.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize database managers: %v", err)
	}

	return sqlm, nil
}

// CreateConnection creates and configures the database connection
func (sqlm *SQLiteManager) CreateConnection() (*sql.DB, error) {
	// Make sure we have os specific path separator since we are adding this path to host's path
	dbFileName := sqlm.cm.GetConfigWithDefault("database_file", "./sponsorgate.db")
	switch runtime.GOOS {
	case "linux", "darwin":
		dbFileName = filepath.ToSlash(dbFileName)
	case "windows":
		dbFileName = filepath.FromSlash(dbFileName)
	default:
		return nil, fmt.Errorf("unsupported OS type `%s`", runtime.GOOS)
	}

	path := filepath.Join(sqlm.dir, dbFileName)

	// Init db connection with settings for concurrent access
	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_synchronous=NORMAL", path))
	if err != nil {
		sqlm.logger.Error(fmt.Sprintf("Can not create database connection. (%s)", err.Error()), "database")
		return nil, err
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to enable WAL mode: %s", err.Error()), "database")
	}

	return db, nil
}

// initializeManagers sets up specialized database managers
func (sqlm *SQLiteManager) initializeManagers() error {
	var err error

	sqlm.Requests, err = NewRequestStore(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize request store: %v", err)
	}

	sqlm.Pending, err = NewPendingActionDB(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pending action store: %v", err)
	}

	sqlm.Ledger, err = NewSpendLedger(sqlm.db, sqlm.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize spend ledger: %v", err)
	}

	sqlm.logger.Info("Database managers initialized successfully", "database")
	return nil
}

// GetDB returns the database connection for direct access if needed
func (sqlm *SQLiteManager) GetDB() *sql.DB {
	return sqlm.db
}

// Close closes all database connections and managers
func (sqlm *SQLiteManager) Close() error {
	if sqlm.Requests != nil {
		sqlm.Requests.Close()
	}
	if sqlm.Pending != nil {
		sqlm.Pending.Close()
	}
	if sqlm.Ledger != nil {
		sqlm.Ledger.Close()
	}

	if sqlm.db != nil {
		return sqlm.db.Close()
	}

	return nil
}

// PerformMaintenance runs database maintenance tasks
func (sqlm *SQLiteManager) PerformMaintenance() error {
	if _, err := sqlm.db.Exec("PRAGMA optimize;"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to optimize database: %v", err), "database")
	}

	if _, err := sqlm.db.Exec("PRAGMA incremental_vacuum(100);"); err != nil {
		sqlm.logger.Warn(fmt.Sprintf("Failed to vacuum database: %v", err), "database")
	}

	return nil
}
