package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

// SettlementRequest is the settlement payload handed to a backend. Exactly one
// of Witness or BatchWitness is set, matching the request kind.
type SettlementRequest struct {
	NetworkID    string              `json:"networkId"`
	Witness      *Witness            `json:"witness,omitempty"`
	Operations   []BatchOperation    `json:"operations,omitempty"`
	BatchWitness *BatchWitness       `json:"batchWitness,omitempty"`
	Signature    string              `json:"signature"`
	Signer       string              `json:"signer"`
	Transaction  PreparedTransaction `json:"transaction"`
}

// SettlementResponse reports the settlement outcome
type SettlementResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	GasUsed uint64 `json:"gasUsed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SettlementBackend executes a signed request against a network. Verify checks
// the request without spending gas; Settle broadcasts it.
type SettlementBackend interface {
	Verify(ctx context.Context, req *SettlementRequest) error
	Settle(ctx context.Context, req *SettlementRequest) (*SettlementResponse, error)
	Name() string
}

// NewSettlementBackend constructs the backend selected by the
// settlement_backend config key
func NewSettlementBackend(cm *utils.ConfigManager, networks *NetworkRegistry, logger *utils.LogsManager) (SettlementBackend, error) {
	backend := cm.GetConfigWithDefault("settlement_backend", "facilitator")
	switch backend {
	case "facilitator":
		return NewFacilitatorBackend(cm, networks, logger), nil
	case "simulated":
		return NewSimulatedBackend(cm, logger)
	default:
		return nil, fmt.Errorf("%w: unknown settlement backend %q", ErrValidation, backend)
	}
}

// FacilitatorBackend settles through an external facilitator service over
// HTTP. Each call is a single round trip; retry and recovery decisions belong
// to the caller, which knows the request's lifecycle state.
type FacilitatorBackend struct {
	networks   *NetworkRegistry
	httpClient *http.Client
	logger     *utils.LogsManager
}

// NewFacilitatorBackend creates a facilitator-backed settlement client
func NewFacilitatorBackend(cm *utils.ConfigManager, networks *NetworkRegistry, logger *utils.LogsManager) *FacilitatorBackend {
	timeout := time.Duration(cm.GetConfigInt("facilitator_timeout_seconds", 30, 1, 300)) * time.Second

	return &FacilitatorBackend{
		networks: networks,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (fb *FacilitatorBackend) Name() string {
	return "facilitator"
}

// Verify asks the facilitator to validate the signed request without settling
func (fb *FacilitatorBackend) Verify(ctx context.Context, req *SettlementRequest) error {
	network, err := fb.networks.Get(req.NetworkID)
	if err != nil {
		return err
	}

	resp, err := fb.post(ctx, network.FacilitatorURL+"/verify", req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrSettlementFailed, resp.Error)
	}
	return nil
}

// Settle submits the signed request for on-chain execution
func (fb *FacilitatorBackend) Settle(ctx context.Context, req *SettlementRequest) (*SettlementResponse, error) {
	network, err := fb.networks.Get(req.NetworkID)
	if err != nil {
		return nil, err
	}

	resp, err := fb.post(ctx, network.FacilitatorURL+"/settle", req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, resp.Error)
	}

	fb.logger.Info(fmt.Sprintf("Settlement successful: tx=%s, network=%s", resp.TxHash, req.NetworkID), "facilitator")
	return resp, nil
}

// post sends one settlement request. HTTP 5xx and transport failures map to
// ErrExternalService (outcome unknown, caller may retry later); 4xx maps to
// ErrSettlementFailed (definitive rejection).
func (fb *FacilitatorBackend) post(ctx context.Context, url string, body interface{}) (*SettlementResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "sponsorgate-node/1.0")

	fb.logger.Debug(fmt.Sprintf("Facilitator request: POST %s", url), "facilitator")

	httpResp, err := fb.httpClient.Do(req)
	if err != nil {
		fb.logger.Error(fmt.Sprintf("Facilitator HTTP request failed: %v (ctx.Err=%v)", err, ctx.Err()), "facilitator")
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrExternalService, err)
	}

	fb.logger.Debug(fmt.Sprintf("Facilitator response: HTTP %d, Body: %s", httpResp.StatusCode, string(respBody)), "facilitator")

	if httpResp.StatusCode >= 500 {
		fb.logger.Warn(fmt.Sprintf("Facilitator server error (HTTP %d)", httpResp.StatusCode), "facilitator")
		return nil, fmt.Errorf("%w: HTTP %d", ErrExternalService, httpResp.StatusCode)
	}

	if httpResp.StatusCode >= 400 {
		fb.logger.Warn(fmt.Sprintf("Facilitator rejected request (HTTP %d): %s", httpResp.StatusCode, string(respBody)), "facilitator")
		var resp SettlementResponse
		if err := json.Unmarshal(respBody, &resp); err == nil && resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, resp.Error)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrSettlementFailed, httpResp.StatusCode)
	}

	var resp SettlementResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	return &resp, nil
}

// SimulatedBackend settles locally without touching any chain. It exists for
// development and integration tests and must be enabled explicitly; mistaking
// a simulated settlement for a real one would corrupt accounting.
type SimulatedBackend struct {
	delay  time.Duration
	logger *utils.LogsManager
}

// NewSimulatedBackend creates a simulated settlement backend. Returns
// ErrSimulationDisabled unless simulated_settlement_enabled is set.
func NewSimulatedBackend(cm *utils.ConfigManager, logger *utils.LogsManager) (*SimulatedBackend, error) {
	if !cm.GetConfigBool("simulated_settlement_enabled", false) {
		return nil, ErrSimulationDisabled
	}

	delay := time.Duration(cm.GetConfigInt("simulated_settlement_delay_ms", 500, 0, 60000)) * time.Millisecond

	return &SimulatedBackend{
		delay:  delay,
		logger: logger,
	}, nil
}

func (sb *SimulatedBackend) Name() string {
	return "simulated"
}

func (sb *SimulatedBackend) Verify(ctx context.Context, req *SettlementRequest) error {
	if req.Witness == nil && req.BatchWitness == nil {
		return fmt.Errorf("%w: settlement request has no witness", ErrValidation)
	}
	if req.Signature == "" {
		return fmt.Errorf("%w: settlement request has no signature", ErrValidation)
	}
	return nil
}

func (sb *SimulatedBackend) Settle(ctx context.Context, req *SettlementRequest) (*SettlementResponse, error) {
	if err := sb.Verify(ctx, req); err != nil {
		return nil, err
	}

	if sb.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrExternalService, ctx.Err())
		case <-time.After(sb.delay):
		}
	}

	// Fabricate a deterministic-looking tx hash from the request payload
	payload, _ := json.Marshal(req)
	txHash := crypto.Keccak256Hash(payload).Hex()

	gasUsed := uint64(21000 + rand.Intn(80000))

	sb.logger.Info(fmt.Sprintf("Simulated settlement: tx=%s, network=%s", txHash, req.NetworkID), "facilitator")

	return &SettlementResponse{
		Success: true,
		TxHash:  txHash,
		GasUsed: gasUsed,
	}, nil
}
