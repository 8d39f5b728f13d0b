package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
	_ "modernc.org/sqlite"
)

func setupTestPendingActions(t *testing.T) (*PendingActionDB, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	pa, err := NewPendingActionDB(db, logger)
	if err != nil {
		t.Fatalf("Failed to create pending action store: %v", err)
	}

	return pa, db
}

func TestPendingActionStoreAndGet(t *testing.T) {
	pa, db := setupTestPendingActions(t)
	defer db.Close()

	now := time.Now()
	err := pa.Store("approval-1", "transfer", `{"token":"0xabc"}`, now, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Failed to store pending action: %v", err)
	}

	row, found, err := pa.Get("approval-1")
	if err != nil {
		t.Fatalf("Failed to get pending action: %v", err)
	}
	if !found {
		t.Fatal("Pending action should exist")
	}
	if row.Kind != "transfer" {
		t.Errorf("Expected kind 'transfer', got '%s'", row.Kind)
	}
}

func TestPendingActionConsumedExactlyOnce(t *testing.T) {
	pa, db := setupTestPendingActions(t)
	defer db.Close()

	now := time.Now()
	if err := pa.Store("approval-2", "swap", `{"tokenIn":"0xabc"}`, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to store pending action: %v", err)
	}

	row, found, err := pa.Consume("approval-2")
	if err != nil {
		t.Fatalf("First consume failed: %v", err)
	}
	if !found {
		t.Fatal("First consume should find the action")
	}
	if row.Kind != "swap" {
		t.Errorf("Expected kind 'swap', got '%s'", row.Kind)
	}

	// A second consume must report not found, never execute twice
	_, found, err = pa.Consume("approval-2")
	if err != nil {
		t.Fatalf("Second consume should not error: %v", err)
	}
	if found {
		t.Error("Second consume should not find the action")
	}
}

func TestPendingActionExpiredNotReturned(t *testing.T) {
	pa, db := setupTestPendingActions(t)
	defer db.Close()

	now := time.Now()
	if err := pa.Store("approval-3", "batch", `{}`, now.Add(-time.Hour), now.Add(-time.Minute)); err != nil {
		t.Fatalf("Failed to store pending action: %v", err)
	}

	_, found, err := pa.Get("approval-3")
	if err != nil {
		t.Fatalf("Get should not error on expired action: %v", err)
	}
	if found {
		t.Error("Expired action should not be returned")
	}

	_, found, err = pa.Consume("approval-3")
	if err != nil {
		t.Fatalf("Consume should not error on expired action: %v", err)
	}
	if found {
		t.Error("Expired action should not be consumable")
	}
}

func TestPendingActionCleanup(t *testing.T) {
	pa, db := setupTestPendingActions(t)
	defer db.Close()

	now := time.Now()
	if err := pa.Store("old", "transfer", `{}`, now.Add(-2*time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}
	if err := pa.Store("fresh", "transfer", `{}`, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	removed, err := pa.CleanupExpired(now)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed action, got %d", removed)
	}

	count, err := pa.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 remaining action, got %d", count)
	}
}
