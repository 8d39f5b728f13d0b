package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

func testSettlementRequest() *SettlementRequest {
	return &SettlementRequest{
		NetworkID: testNetworkID,
		Witness: &Witness{
			Owner:     testOwner,
			Token:     testToken,
			Amount:    "1000000",
			To:        testTo,
			Deadline:  1800000000,
			PaymentID: "0x1234",
		},
		Signature: "0xdeadbeef",
		Signer:    testOwner,
	}
}

func facilitatorWithServer(t *testing.T, handler http.HandlerFunc) (*FacilitatorBackend, *httptest.Server) {
	server := httptest.NewServer(handler)

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	registry := &NetworkRegistry{
		networks: map[string]*NetworkConfig{
			testNetworkID: {
				Name:            "test",
				ChainID:         84532,
				PaymentVerifier: testToken,
				BatchExecutor:   testTo,
				FacilitatorURL:  server.URL,
			},
		},
		logger: logger,
	}

	return NewFacilitatorBackend(cm, registry, logger), server
}

func TestFacilitatorSettleSuccess(t *testing.T) {
	fb, server := facilitatorWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("Expected /settle, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"txHash":"0xabc","gasUsed":42000}`))
	})
	defer server.Close()

	resp, err := fb.Settle(context.Background(), testSettlementRequest())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if resp.TxHash != "0xabc" {
		t.Errorf("Expected tx hash 0xabc, got %s", resp.TxHash)
	}
	if resp.GasUsed != 42000 {
		t.Errorf("Expected gas used 42000, got %d", resp.GasUsed)
	}
}

func TestFacilitatorServerErrorIsUnknownOutcome(t *testing.T) {
	fb, server := facilitatorWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := fb.Settle(context.Background(), testSettlementRequest())
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("HTTP 5xx must map to ErrExternalService, got %v", err)
	}
}

func TestFacilitatorRejectionIsDefinitive(t *testing.T) {
	fb, server := facilitatorWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"deadline passed"}`))
	})
	defer server.Close()

	_, err := fb.Settle(context.Background(), testSettlementRequest())
	if !errors.Is(err, ErrSettlementFailed) {
		t.Errorf("HTTP 4xx must map to ErrSettlementFailed, got %v", err)
	}
}

func TestFacilitatorUnreachableIsUnknownOutcome(t *testing.T) {
	fb, server := facilitatorWithServer(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close() // shut down before the call

	err := fb.Verify(context.Background(), testSettlementRequest())
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("Transport failure must map to ErrExternalService, got %v", err)
	}
}

func TestSimulatedBackendRequiresExplicitEnable(t *testing.T) {
	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	if _, err := NewSimulatedBackend(cm, logger); !errors.Is(err, ErrSimulationDisabled) {
		t.Errorf("Expected ErrSimulationDisabled, got %v", err)
	}

	cm.SetConfig("simulated_settlement_enabled", true)
	backend, err := NewSimulatedBackend(cm, logger)
	if err != nil {
		t.Fatalf("Enabled simulated backend should construct: %v", err)
	}

	resp, err := backend.Settle(context.Background(), testSettlementRequest())
	if err != nil {
		t.Fatalf("Simulated settle failed: %v", err)
	}
	if !resp.Success || resp.TxHash == "" {
		t.Error("Simulated settlement should succeed with a fabricated tx hash")
	}
}

func TestSimulatedBackendRejectsUnsignedRequest(t *testing.T) {
	cm := utils.NewConfigManager("")
	cm.SetConfig("simulated_settlement_enabled", true)
	cm.SetConfig("simulated_settlement_delay_ms", 0)
	logger := utils.NewLogsManager(cm)

	backend, err := NewSimulatedBackend(cm, logger)
	if err != nil {
		t.Fatalf("Failed to create simulated backend: %v", err)
	}

	req := testSettlementRequest()
	req.Signature = ""

	if err := backend.Verify(context.Background(), req); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing signature, got %v", err)
	}
}
