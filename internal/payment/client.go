package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/database"
	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

const (
	kindPayment = "payment"
	kindBatch   = "batch"
)

// FacilitatorClient owns the request lifecycle from creation through witness
// binding, signature verification and settlement. It never holds user keys;
// signing happens outside and only the signature comes back in.
type FacilitatorClient struct {
	cm       *utils.ConfigManager
	logger   *utils.LogsManager
	dbm      *database.SQLiteManager
	networks *NetworkRegistry
	witness  *WitnessBuilder
	nonces   *NonceOracle
	backend  SettlementBackend
	policy   *PolicyEngine
	Pending  *PendingActionStore

	stopSweep chan struct{}
}

// NewFacilitatorClient wires the client together from its parts
func NewFacilitatorClient(cm *utils.ConfigManager, logger *utils.LogsManager, dbm *database.SQLiteManager, networks *NetworkRegistry, backend SettlementBackend) *FacilitatorClient {
	return &FacilitatorClient{
		cm:       cm,
		logger:   logger,
		dbm:      dbm,
		networks: networks,
		witness:  NewWitnessBuilder(cm, logger),
		nonces:   NewNonceOracle(networks, cm, logger),
		backend:  backend,
		policy:   NewPolicyEngine(logger),
		Pending:  NewPendingActionStore(dbm.Pending, cm, logger),
	}
}

// CreatePaymentRequest registers a new single-payment request in PENDING state
func (fc *FacilitatorClient) CreatePaymentRequest(networkID string, tx PreparedTransaction, details PaymentDetails, metadata PaymentMetadata, policy PaymentPolicy) (*PaymentRequest, error) {
	network, err := fc.networks.Get(networkID)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(details.Token) || !common.IsHexAddress(details.To) {
		return nil, fmt.Errorf("%w: invalid token or recipient address", ErrValidation)
	}
	if details.Currency != "" {
		normalized, err := ToSmallestUnit(details.Amount, details.Currency)
		if err != nil {
			return nil, err
		}
		details.Amount = normalized
	}
	if _, ok := new(big.Int).SetString(details.Amount, 10); !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrValidation, details.Amount)
	}

	now := time.Now()
	ttl := fc.cm.GetConfigDuration("request_ttl", 20*time.Minute)

	request := &PaymentRequest{
		ID:             uuid.New().String(),
		NetworkID:      networkID,
		ChainID:        network.ChainID,
		Transaction:    tx,
		Metadata:       metadata,
		Policy:         policy,
		PaymentDetails: details,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}

	if err := fc.storePaymentRequest(request); err != nil {
		return nil, err
	}

	fc.logger.Info(fmt.Sprintf("Created payment request %s on %s (%s %s -> %s)",
		request.ID, networkID, details.Amount, details.Token, details.To), "payment")

	return request, nil
}

// CreateBatchRequest registers a new batch request in PENDING state
func (fc *FacilitatorClient) CreateBatchRequest(networkID string, operations []BatchOperation, metadata PaymentMetadata, policy PaymentPolicy) (*BatchPaymentRequest, error) {
	network, err := fc.networks.Get(networkID)
	if err != nil {
		return nil, err
	}

	if err := ValidateOperations(operations); err != nil {
		return nil, err
	}

	now := time.Now()
	ttl := fc.cm.GetConfigDuration("request_ttl", 20*time.Minute)

	request := &BatchPaymentRequest{
		ID:         uuid.New().String(),
		NetworkID:  networkID,
		ChainID:    network.ChainID,
		Operations: operations,
		Metadata:   metadata,
		Policy:     policy,
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := fc.storeBatchRequest(request); err != nil {
		return nil, err
	}

	fc.logger.Info(fmt.Sprintf("Created batch request %s on %s (%d operations)",
		request.ID, networkID, len(operations)), "payment")

	return request, nil
}

// CreateTransferRequest gates a sponsorable ERC-20 transfer on the owner's
// allowance for the payment verifier. With sufficient allowance the payment
// request is created directly. Otherwise the transfer is deferred as a pending
// action keyed by a fresh approval request id; the owner sends the approval
// transaction themselves and the action resumes through ResumeTransfer once
// it lands. Exactly one of the two return values is non-nil on success.
func (fc *FacilitatorClient) CreateTransferRequest(ctx context.Context, networkID string, owner string, tx PreparedTransaction, details PaymentDetails, metadata PaymentMetadata, policy PaymentPolicy) (*PaymentRequest, *PendingActionInfo, error) {
	network, err := fc.networks.Get(networkID)
	if err != nil {
		return nil, nil, err
	}
	if !common.IsHexAddress(owner) {
		return nil, nil, fmt.Errorf("%w: invalid owner address %q", ErrValidation, owner)
	}

	if details.Currency != "" {
		normalized, err := ToSmallestUnit(details.Amount, details.Currency)
		if err != nil {
			return nil, nil, err
		}
		details.Amount = normalized
		details.Currency = ""
	}
	amount, ok := new(big.Int).SetString(details.Amount, 10)
	if !ok {
		return nil, nil, fmt.Errorf("%w: invalid amount %q", ErrValidation, details.Amount)
	}

	allowance, err := fc.nonces.Allowance(ctx, networkID, details.Token, owner, network.PaymentVerifier)
	if err != nil {
		return nil, nil, err
	}

	if allowance.Cmp(amount) >= 0 {
		request, err := fc.CreatePaymentRequest(networkID, tx, details, metadata, policy)
		return request, nil, err
	}

	info := &PendingActionInfo{
		ApprovalRequestID: uuid.New().String(),
		NetworkID:         networkID,
		WalletAddress:     owner,
		Kind:              PendingTransfer,
		Transfer: &PendingTransferAction{
			Token:     details.Token,
			Amount:    details.Amount,
			Recipient: details.To,
		},
	}
	if err := fc.Pending.Store(info); err != nil {
		return nil, nil, err
	}

	fc.logger.Info(fmt.Sprintf("Deferred transfer for %s behind approval %s (allowance %s < amount %s)",
		owner, info.ApprovalRequestID, allowance, amount), "payment")

	return nil, info, nil
}

// ResumeTransfer consumes a deferred transfer after its approval confirmed and
// creates the payment request it was waiting for. The consume is exactly-once,
// so an approval can never release the same transfer twice.
func (fc *FacilitatorClient) ResumeTransfer(approvalRequestID string, tx PreparedTransaction, metadata PaymentMetadata, policy PaymentPolicy) (*PaymentRequest, error) {
	info, err := fc.Pending.Consume(approvalRequestID)
	if err != nil {
		return nil, err
	}
	if info.Kind != PendingTransfer || info.Transfer == nil {
		return nil, fmt.Errorf("%w: pending action %s is not a transfer", ErrInvalidState, approvalRequestID)
	}

	return fc.CreatePaymentRequest(info.NetworkID, tx, PaymentDetails{
		Token:  info.Transfer.Token,
		Amount: info.Transfer.Amount,
		To:     info.Transfer.Recipient,
	}, metadata, policy)
}

// CreateTypedDataForSigning builds the EIP-712 payload the owner must sign.
// The witness binds exactly once; repeated calls for the same request return
// typed data for the already-bound witness, regardless of nonce drift.
func (fc *FacilitatorClient) CreateTypedDataForSigning(ctx context.Context, requestID string, owner string) (apitypes.TypedData, *PaymentRequest, error) {
	request, err := fc.GetPaymentRequest(requestID)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	if time.Now().After(request.ExpiresAt) {
		fc.expireRequest(requestID)
		return apitypes.TypedData{}, nil, fmt.Errorf("%w: request %s", ErrExpired, requestID)
	}

	network, err := fc.networks.Get(request.NetworkID)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	if request.Witness == nil {
		nonce := fc.nonces.PaymentNonce(ctx, request.NetworkID, owner)

		witness, err := fc.witness.BuildWitness(request, owner, nonce)
		if err != nil {
			return apitypes.TypedData{}, nil, err
		}

		bound, err := fc.bindPaymentWitness(request, witness)
		if err != nil {
			return apitypes.TypedData{}, nil, err
		}
		if !bound {
			// Lost a bind race, reread and use the stored witness
			request, err = fc.GetPaymentRequest(requestID)
			if err != nil {
				return apitypes.TypedData{}, nil, err
			}
		}
	}

	typedData, err := fc.witness.TypedData(request.Witness, network)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	return typedData, request, nil
}

// CreateBatchTypedDataForSigning is the batch counterpart of
// CreateTypedDataForSigning, using the batch executor's nonce namespace
func (fc *FacilitatorClient) CreateBatchTypedDataForSigning(ctx context.Context, requestID string, owner string) (apitypes.TypedData, *BatchPaymentRequest, error) {
	request, err := fc.GetBatchRequest(requestID)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	if time.Now().After(request.ExpiresAt) {
		fc.expireRequest(requestID)
		return apitypes.TypedData{}, nil, fmt.Errorf("%w: request %s", ErrExpired, requestID)
	}

	network, err := fc.networks.Get(request.NetworkID)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	if request.Witness == nil {
		nonce := fc.nonces.BatchNonce(ctx, request.NetworkID, owner)

		witness, err := fc.witness.BuildBatchWitness(request, owner, nonce)
		if err != nil {
			return apitypes.TypedData{}, nil, err
		}

		bound, err := fc.bindBatchWitness(request, witness)
		if err != nil {
			return apitypes.TypedData{}, nil, err
		}
		if !bound {
			request, err = fc.GetBatchRequest(requestID)
			if err != nil {
				return apitypes.TypedData{}, nil, err
			}
		}
	}

	typedData, err := fc.witness.BatchTypedData(request.Witness, network)
	if err != nil {
		return apitypes.TypedData{}, nil, err
	}

	return typedData, request, nil
}

// ExecuteRequest verifies the owner's signature against the bound witness and
// settles the payment. On an unknown-outcome backend failure the request drops
// back to SIGNED so execution can be retried; definitive failures are final.
func (fc *FacilitatorClient) ExecuteRequest(ctx context.Context, requestID string, signature string) (*ExecutionResult, error) {
	request, err := fc.GetPaymentRequest(requestID)
	if err != nil {
		return nil, err
	}

	if request.Witness == nil {
		return nil, fmt.Errorf("%w: request %s has no bound witness", ErrInvalidState, requestID)
	}
	if request.Status == StatusCompleted || request.Status == StatusFailed || request.Status == StatusExecuting {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, requestID, request.Status)
	}

	if time.Now().After(request.ExpiresAt) || time.Now().Unix() > request.Witness.Deadline {
		fc.expireRequest(requestID)
		return nil, fmt.Errorf("%w: request %s", ErrExpired, requestID)
	}

	network, err := fc.networks.Get(request.NetworkID)
	if err != nil {
		return nil, err
	}

	// Verify the signature locally before involving any external service
	typedData, err := fc.witness.TypedData(request.Witness, network)
	if err != nil {
		return nil, err
	}
	signer, err := RecoverSigner(typedData, signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Hex(), request.Witness.Owner) {
		return nil, fmt.Errorf("%w: recovered %s, witness owner %s", ErrInvalidSignature, signer.Hex(), request.Witness.Owner)
	}

	if err := fc.checkGasLimits(network, &request.Transaction); err != nil {
		return nil, err
	}

	if err := fc.dbm.Requests.SetStatus(requestID, string(StatusSigned)); err != nil {
		return nil, err
	}

	settlement := &SettlementRequest{
		NetworkID:   request.NetworkID,
		Witness:     request.Witness,
		Signature:   signature,
		Signer:      signer.Hex(),
		Transaction: request.Transaction,
	}

	return fc.settle(ctx, requestID, settlement, network, request.Witness.Owner, request.Metadata.ValueUSD)
}

// ExecuteBatchRequest verifies and settles a signed batch request
func (fc *FacilitatorClient) ExecuteBatchRequest(ctx context.Context, requestID string, signature string) (*ExecutionResult, error) {
	request, err := fc.GetBatchRequest(requestID)
	if err != nil {
		return nil, err
	}

	if request.Witness == nil {
		return nil, fmt.Errorf("%w: request %s has no bound witness", ErrInvalidState, requestID)
	}
	if request.Status == StatusCompleted || request.Status == StatusFailed || request.Status == StatusExecuting {
		return nil, fmt.Errorf("%w: request %s is %s", ErrInvalidState, requestID, request.Status)
	}

	if time.Now().After(request.ExpiresAt) || time.Now().Unix() > request.Witness.Deadline {
		fc.expireRequest(requestID)
		return nil, fmt.Errorf("%w: request %s", ErrExpired, requestID)
	}

	network, err := fc.networks.Get(request.NetworkID)
	if err != nil {
		return nil, err
	}

	// The witness commits to the operations hash; recompute it from the stored
	// operations so a tampered list can never ride on a valid signature
	operationsHash, err := ComputeOperationsHash(request.Operations)
	if err != nil {
		return nil, err
	}
	if operationsHash != request.Witness.OperationsHash {
		return nil, fmt.Errorf("%w: operations do not match witness", ErrInvalidSignature)
	}

	typedData, err := fc.witness.BatchTypedData(request.Witness, network)
	if err != nil {
		return nil, err
	}
	signer, err := RecoverSigner(typedData, signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Hex(), request.Witness.Owner) {
		return nil, fmt.Errorf("%w: recovered %s, witness owner %s", ErrInvalidSignature, signer.Hex(), request.Witness.Owner)
	}

	if err := fc.dbm.Requests.SetStatus(requestID, string(StatusSigned)); err != nil {
		return nil, err
	}

	settlement := &SettlementRequest{
		NetworkID:    request.NetworkID,
		Operations:   request.Operations,
		BatchWitness: request.Witness,
		Signature:    signature,
		Signer:       signer.Hex(),
	}

	return fc.settle(ctx, requestID, settlement, network, request.Witness.Owner, request.Metadata.ValueUSD)
}

// settle runs the EXECUTING leg of the state machine against the backend
func (fc *FacilitatorClient) settle(ctx context.Context, requestID string, settlement *SettlementRequest, network *NetworkConfig, owner string, valueUsd float64) (*ExecutionResult, error) {
	if err := fc.dbm.Requests.SetStatus(requestID, string(StatusExecuting)); err != nil {
		return nil, err
	}

	if err := fc.backend.Verify(ctx, settlement); err != nil {
		return nil, fc.settlementFailure(requestID, err)
	}

	response, err := fc.backend.Settle(ctx, settlement)
	if err != nil {
		return nil, fc.settlementFailure(requestID, err)
	}

	if err := fc.dbm.Requests.SetStatus(requestID, string(StatusCompleted)); err != nil {
		return nil, err
	}

	fc.recordSpend(network, owner, valueUsd, response, &settlement.Transaction)

	fc.logger.Info(fmt.Sprintf("Request %s completed: tx=%s", requestID, response.TxHash), "payment")

	return &ExecutionResult{
		RequestID: requestID,
		Status:    StatusCompleted,
		TxHash:    response.TxHash,
		GasUsed:   response.GasUsed,
	}, nil
}

// settlementFailure maps a backend error onto the state machine. Unknown
// outcomes (service unreachable) keep the request retryable; definitive
// rejections are terminal.
func (fc *FacilitatorClient) settlementFailure(requestID string, err error) error {
	if isUnknownOutcome(err) {
		if dbErr := fc.dbm.Requests.SetStatus(requestID, string(StatusSigned)); dbErr != nil {
			fc.logger.Error(fmt.Sprintf("Failed to revert request %s to signed: %v", requestID, dbErr), "payment")
		}
		fc.logger.Warn(fmt.Sprintf("Request %s settlement outcome unknown, left retryable: %v", requestID, err), "payment")
		return err
	}

	if dbErr := fc.dbm.Requests.SetStatus(requestID, string(StatusFailed)); dbErr != nil {
		fc.logger.Error(fmt.Sprintf("Failed to mark request %s failed: %v", requestID, dbErr), "payment")
	}
	fc.logger.Error(fmt.Sprintf("Request %s settlement failed: %v", requestID, err), "payment")
	return err
}

func isUnknownOutcome(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// CancelRequest abandons a request that has not started executing
func (fc *FacilitatorClient) CancelRequest(requestID string) error {
	row, found, err := fc.dbm.Requests.Get(requestID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	switch RequestStatus(row.Status) {
	case StatusPending, StatusWitnessBound, StatusSigned:
		if err := fc.dbm.Requests.Delete(requestID); err != nil {
			return err
		}
		fc.logger.Info(fmt.Sprintf("Cancelled request %s (was %s)", requestID, row.Status), "payment")
		return nil
	default:
		return fmt.Errorf("%w: request %s is %s", ErrRequestNotCancellable, requestID, row.Status)
	}
}

// GetPaymentRequest loads a single-payment request by id
func (fc *FacilitatorClient) GetPaymentRequest(requestID string) (*PaymentRequest, error) {
	row, found, err := fc.dbm.Requests.Get(requestID)
	if err != nil {
		return nil, err
	}
	if !found || row.Kind != kindPayment {
		return nil, fmt.Errorf("%w: payment request %s", ErrNotFound, requestID)
	}

	var request PaymentRequest
	if err := json.Unmarshal([]byte(row.RequestJSON), &request); err != nil {
		return nil, fmt.Errorf("corrupt payment request %s: %v", requestID, err)
	}
	request.Status = RequestStatus(row.Status)

	if row.WitnessJSON != nil {
		var witness Witness
		if err := json.Unmarshal([]byte(*row.WitnessJSON), &witness); err != nil {
			return nil, fmt.Errorf("corrupt witness for request %s: %v", requestID, err)
		}
		request.Witness = &witness
	}

	return &request, nil
}

// GetBatchRequest loads a batch request by id
func (fc *FacilitatorClient) GetBatchRequest(requestID string) (*BatchPaymentRequest, error) {
	row, found, err := fc.dbm.Requests.Get(requestID)
	if err != nil {
		return nil, err
	}
	if !found || row.Kind != kindBatch {
		return nil, fmt.Errorf("%w: batch request %s", ErrNotFound, requestID)
	}

	var request BatchPaymentRequest
	if err := json.Unmarshal([]byte(row.RequestJSON), &request); err != nil {
		return nil, fmt.Errorf("corrupt batch request %s: %v", requestID, err)
	}
	request.Status = RequestStatus(row.Status)

	if row.WitnessJSON != nil {
		var witness BatchWitness
		if err := json.Unmarshal([]byte(*row.WitnessJSON), &witness); err != nil {
			return nil, fmt.Errorf("corrupt witness for request %s: %v", requestID, err)
		}
		request.Witness = &witness
	}

	return &request, nil
}

// EvaluatePolicy vets a transaction preview against the owner's security
// policy, folding in today's settled spend from the ledger
func (fc *FacilitatorClient) EvaluatePolicy(preview *TransactionPreview, policy *Policy, owner string) (*PolicyDecision, error) {
	dailySpent, err := fc.dbm.Ledger.DailySpentUSD(strings.ToLower(owner), time.Now())
	if err != nil {
		return nil, err
	}
	return fc.policy.Evaluate(preview, policy, dailySpent), nil
}

// Allowance exposes the nonce oracle's allowance read for approval-gating
// decisions
func (fc *FacilitatorClient) Allowance(ctx context.Context, networkID string, token string, owner string, spender string) (*big.Int, error) {
	return fc.nonces.Allowance(ctx, networkID, token, owner, spender)
}

// StartExpirySweep runs the periodic cleanup of expired requests and pending
// actions until the context is cancelled or Stop is called
func (fc *FacilitatorClient) StartExpirySweep(ctx context.Context) {
	interval := fc.cm.GetConfigDuration("expiry_sweep_interval", time.Minute)
	fc.stopSweep = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-fc.stopSweep:
				return
			case now := <-ticker.C:
				if _, err := fc.dbm.Requests.SweepExpired(now); err != nil {
					fc.logger.Error(fmt.Sprintf("Request sweep failed: %v", err), "payment")
				}
				if _, err := fc.dbm.Pending.CleanupExpired(now); err != nil {
					fc.logger.Error(fmt.Sprintf("Pending action sweep failed: %v", err), "payment")
				}
			}
		}
	}()
}

// Stop halts the expiry sweep
func (fc *FacilitatorClient) Stop() {
	if fc.stopSweep != nil {
		close(fc.stopSweep)
		fc.stopSweep = nil
	}
}

// checkGasLimits enforces the sponsor's gas price ceiling and per-tx/daily
// gas budgets before anything reaches the backend
func (fc *FacilitatorClient) checkGasLimits(network *NetworkConfig, tx *PreparedTransaction) error {
	if tx.GasPrice == "" {
		return nil
	}

	gasPrice, ok := new(big.Int).SetString(tx.GasPrice, 10)
	if !ok {
		return fmt.Errorf("%w: invalid gas price %q", ErrValidation, tx.GasPrice)
	}

	if ceiling := network.MaxGasPrice(); ceiling != nil && gasPrice.Cmp(ceiling) > 0 {
		return fmt.Errorf("%w: %s > %s wei", ErrGasPriceTooHigh, gasPrice, ceiling)
	}

	if tx.GasLimit == 0 {
		return nil
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(tx.GasLimit))

	if perTx := network.GasBudgetPerTx(); perTx != nil && cost.Cmp(perTx) > 0 {
		return fmt.Errorf("%w: tx cost %s wei exceeds per-tx budget %s", ErrBudgetExceeded, cost, perTx)
	}

	if daily := network.GasBudgetDaily(); daily != nil {
		spent, err := fc.dbm.Ledger.DailyGasSpent(strings.ToLower(network.FacilitatorWallet), time.Now())
		if err != nil {
			return err
		}
		if new(big.Int).Add(spent, cost).Cmp(daily) > 0 {
			return fmt.Errorf("%w: daily gas budget %s wei would be exceeded", ErrBudgetExceeded, daily)
		}
	}

	return nil
}

// recordSpend books the settled amounts into the ledger. Accounting failures
// are logged, not returned; the settlement already happened.
func (fc *FacilitatorClient) recordSpend(network *NetworkConfig, owner string, valueUsd float64, response *SettlementResponse, tx *PreparedTransaction) {
	now := time.Now()

	if valueUsd > 0 {
		if err := fc.dbm.Ledger.AddSpendUSD(strings.ToLower(owner), valueUsd, now); err != nil {
			fc.logger.Error(fmt.Sprintf("Failed to record usd spend for %s: %v", owner, err), "payment")
		}
	}

	if response.GasUsed > 0 && tx.GasPrice != "" {
		if gasPrice, ok := new(big.Int).SetString(tx.GasPrice, 10); ok {
			gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(response.GasUsed))
			if err := fc.dbm.Ledger.AddGasSpend(strings.ToLower(network.FacilitatorWallet), gasCost, now); err != nil {
				fc.logger.Error(fmt.Sprintf("Failed to record gas spend: %v", err), "payment")
			}
		}
	}
}

func (fc *FacilitatorClient) storePaymentRequest(request *PaymentRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal payment request: %v", err)
	}
	return fc.dbm.Requests.Insert(request.ID, kindPayment, string(payload), string(request.Status), request.CreatedAt, request.ExpiresAt)
}

func (fc *FacilitatorClient) storeBatchRequest(request *BatchPaymentRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal batch request: %v", err)
	}
	return fc.dbm.Requests.Insert(request.ID, kindBatch, string(payload), string(request.Status), request.CreatedAt, request.ExpiresAt)
}

// bindPaymentWitness persists the witness atomically. Returns false when
// another caller already bound one.
func (fc *FacilitatorClient) bindPaymentWitness(request *PaymentRequest, witness *Witness) (bool, error) {
	request.Witness = witness
	request.Status = StatusWitnessBound

	witnessJSON, err := json.Marshal(witness)
	if err != nil {
		return false, fmt.Errorf("failed to marshal witness: %v", err)
	}
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payment request: %v", err)
	}

	return fc.dbm.Requests.BindWitness(request.ID, string(witnessJSON), string(requestJSON), string(StatusWitnessBound))
}

func (fc *FacilitatorClient) bindBatchWitness(request *BatchPaymentRequest, witness *BatchWitness) (bool, error) {
	request.Witness = witness
	request.Status = StatusWitnessBound

	witnessJSON, err := json.Marshal(witness)
	if err != nil {
		return false, fmt.Errorf("failed to marshal witness: %v", err)
	}
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return false, fmt.Errorf("failed to marshal batch request: %v", err)
	}

	return fc.dbm.Requests.BindWitness(request.ID, string(witnessJSON), string(requestJSON), string(StatusWitnessBound))
}

// expireRequest marks a request expired and leaves the row for the sweep
func (fc *FacilitatorClient) expireRequest(requestID string) {
	if err := fc.dbm.Requests.SetStatus(requestID, string(StatusExpired)); err != nil {
		fc.logger.Error(fmt.Sprintf("Failed to mark request %s expired: %v", requestID, err), "payment")
	}
}
