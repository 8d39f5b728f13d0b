package database

import (
	"database/sql"
	"math/big"
	"testing"
	"time"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
	_ "modernc.org/sqlite"
)

func setupTestSpendLedger(t *testing.T) (*SpendLedger, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	sl, err := NewSpendLedger(db, logger)
	if err != nil {
		t.Fatalf("Failed to create spend ledger: %v", err)
	}

	return sl, db
}

func TestSpendLedgerUSDAccumulation(t *testing.T) {
	sl, db := setupTestSpendLedger(t)
	defer db.Close()

	now := time.Now()
	account := "0xowner"

	if err := sl.AddSpendUSD(account, 12.50, now); err != nil {
		t.Fatalf("Failed to add usd spend: %v", err)
	}
	if err := sl.AddSpendUSD(account, 7.25, now); err != nil {
		t.Fatalf("Failed to add usd spend: %v", err)
	}

	spent, err := sl.DailySpentUSD(account, now)
	if err != nil {
		t.Fatalf("Failed to read usd spend: %v", err)
	}
	if spent != 19.75 {
		t.Errorf("Expected 19.75 spent, got %v", spent)
	}

	// An account with no spend reads as zero
	spent, err = sl.DailySpentUSD("0xother", now)
	if err != nil {
		t.Fatalf("Failed to read usd spend: %v", err)
	}
	if spent != 0 {
		t.Errorf("Expected 0 spent for unknown account, got %v", spent)
	}
}

func TestSpendLedgerGasAccumulation(t *testing.T) {
	sl, db := setupTestSpendLedger(t)
	defer db.Close()

	now := time.Now()
	wallet := "0xsponsor"

	// Values past int64 range must survive the round trip
	first, _ := new(big.Int).SetString("10000000000000000000", 10)
	second, _ := new(big.Int).SetString("5000000000000000000", 10)

	if err := sl.AddGasSpend(wallet, first, now); err != nil {
		t.Fatalf("Failed to add gas spend: %v", err)
	}
	if err := sl.AddGasSpend(wallet, second, now); err != nil {
		t.Fatalf("Failed to add gas spend: %v", err)
	}

	spent, err := sl.DailyGasSpent(wallet, now)
	if err != nil {
		t.Fatalf("Failed to read gas spend: %v", err)
	}

	expected, _ := new(big.Int).SetString("15000000000000000000", 10)
	if spent.Cmp(expected) != 0 {
		t.Errorf("Expected %s wei, got %s", expected, spent)
	}
}

func TestSpendLedgerDayBuckets(t *testing.T) {
	sl, db := setupTestSpendLedger(t)
	defer db.Close()

	account := "0xowner"
	today := time.Now()
	yesterday := today.Add(-24 * time.Hour)

	if err := sl.AddSpendUSD(account, 100, yesterday); err != nil {
		t.Fatalf("Failed to add usd spend: %v", err)
	}
	if err := sl.AddSpendUSD(account, 5, today); err != nil {
		t.Fatalf("Failed to add usd spend: %v", err)
	}

	spent, err := sl.DailySpentUSD(account, today)
	if err != nil {
		t.Fatalf("Failed to read usd spend: %v", err)
	}
	if spent != 5 {
		t.Errorf("Yesterday's spend leaked into today: got %v", spent)
	}

	removed, err := sl.CleanupBefore(today)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed bucket, got %d", removed)
	}
}
