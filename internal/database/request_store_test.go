package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
	_ "modernc.org/sqlite"
)

func setupTestRequestStore(t *testing.T) (*RequestStore, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	rs, err := NewRequestStore(db, logger)
	if err != nil {
		t.Fatalf("Failed to create request store: %v", err)
	}

	return rs, db
}

func TestRequestStoreInsertAndGet(t *testing.T) {
	rs, db := setupTestRequestStore(t)
	defer db.Close()

	now := time.Now()
	err := rs.Insert("req-1", "payment", `{"id":"req-1"}`, "pending", now, now.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("Failed to insert request: %v", err)
	}

	row, found, err := rs.Get("req-1")
	if err != nil {
		t.Fatalf("Failed to get request: %v", err)
	}
	if !found {
		t.Fatal("Request should exist")
	}
	if row.Kind != "payment" {
		t.Errorf("Expected kind 'payment', got '%s'", row.Kind)
	}
	if row.Status != "pending" {
		t.Errorf("Expected status 'pending', got '%s'", row.Status)
	}
	if row.WitnessJSON != nil {
		t.Error("Witness should not be set on a new request")
	}
}

func TestRequestStoreGetMiss(t *testing.T) {
	rs, db := setupTestRequestStore(t)
	defer db.Close()

	row, found, err := rs.Get("nonexistent")
	if err != nil {
		t.Fatalf("Get should not error on miss: %v", err)
	}
	if found {
		t.Error("Request should not exist")
	}
	if row != nil {
		t.Error("Row should be nil on miss")
	}
}

func TestBindWitnessAtMostOnce(t *testing.T) {
	rs, db := setupTestRequestStore(t)
	defer db.Close()

	now := time.Now()
	if err := rs.Insert("req-2", "payment", `{"id":"req-2"}`, "pending", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to insert request: %v", err)
	}

	bound, err := rs.BindWitness("req-2", `{"nonce":7}`, `{"id":"req-2","witness":{"nonce":7}}`, "witness_bound")
	if err != nil {
		t.Fatalf("Failed to bind witness: %v", err)
	}
	if !bound {
		t.Fatal("First bind should succeed")
	}

	// Second bind must be refused, the stored witness is immutable
	bound, err = rs.BindWitness("req-2", `{"nonce":8}`, `{"id":"req-2","witness":{"nonce":8}}`, "witness_bound")
	if err != nil {
		t.Fatalf("Second bind should not error: %v", err)
	}
	if bound {
		t.Error("Second bind should be refused")
	}

	row, _, err := rs.Get("req-2")
	if err != nil {
		t.Fatalf("Failed to get request: %v", err)
	}
	if row.WitnessJSON == nil || *row.WitnessJSON != `{"nonce":7}` {
		t.Errorf("Stored witness was overwritten: %v", row.WitnessJSON)
	}
}

func TestSweepExpiredSkipsSettled(t *testing.T) {
	rs, db := setupTestRequestStore(t)
	defer db.Close()

	past := time.Now().Add(-time.Hour)

	// All four expired an hour ago, only the pending one may be swept
	if err := rs.Insert("expired-pending", "payment", `{}`, "pending", past.Add(-time.Minute), past); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := rs.Insert("expired-completed", "payment", `{}`, "completed", past.Add(-time.Minute), past); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := rs.Insert("expired-failed", "payment", `{}`, "failed", past.Add(-time.Minute), past); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := rs.Insert("expired-executing", "payment", `{}`, "executing", past.Add(-time.Minute), past); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	swept, err := rs.SweepExpired(time.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("Expected 1 swept row, got %d", swept)
	}

	if _, found, _ := rs.Get("expired-pending"); found {
		t.Error("Expired pending request should be swept")
	}
	if _, found, _ := rs.Get("expired-completed"); !found {
		t.Error("Completed request must survive the sweep")
	}
	if _, found, _ := rs.Get("expired-failed"); !found {
		t.Error("Failed request must survive the sweep")
	}
	// An in-flight settlement has an unknown outcome; its terminal status must
	// still have a row to land on after the TTL
	if _, found, _ := rs.Get("expired-executing"); !found {
		t.Error("Executing request must survive the sweep")
	}
}

func TestSetStatus(t *testing.T) {
	rs, db := setupTestRequestStore(t)
	defer db.Close()

	now := time.Now()
	if err := rs.Insert("req-3", "batch", `{}`, "pending", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	if err := rs.SetStatus("req-3", "executing"); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	row, _, err := rs.Get("req-3")
	if err != nil {
		t.Fatalf("Failed to get request: %v", err)
	}
	if row.Status != "executing" {
		t.Errorf("Expected status 'executing', got '%s'", row.Status)
	}
}
