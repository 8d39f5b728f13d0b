package payment

import (
	"time"
)

// RequestStatus is the lifecycle state of a payment or batch request
type RequestStatus string

const (
	StatusPending      RequestStatus = "pending"
	StatusWitnessBound RequestStatus = "witness_bound"
	StatusSigned       RequestStatus = "signed"
	StatusExecuting    RequestStatus = "executing"
	StatusCompleted    RequestStatus = "completed"
	StatusFailed       RequestStatus = "failed"
	StatusExpired      RequestStatus = "expired"
)

// PreparedTransaction is an immutable call description supplied by the
// intent-resolution layer. Amounts are decimal strings in wei.
type PreparedTransaction struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	ChainID  int64  `json:"chainId,omitempty"`
}

// PaymentMetadata is display/accounting metadata attached to a request
type PaymentMetadata struct {
	Action      string  `json:"action"`
	Description string  `json:"description"`
	ValueUSD    float64 `json:"valueUsd,omitempty"`
}

// PaymentPolicy carries per-request execution constraints
type PaymentPolicy struct {
	MaxGasPrice string `json:"maxGasPrice,omitempty"` // wei, decimal string
	Deadline    int64  `json:"deadline"`              // unix seconds
}

// PaymentDetails describes the transfer the witness authorizes.
// Amount is in the token's smallest unit, decimal string. When Currency is
// set, Amount may instead be a human-readable decimal; request creation
// normalizes it into the smallest unit.
type PaymentDetails struct {
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
	To       string `json:"to"`
}

// Witness is the exact EIP-712 payload the user signs to authorize one
// specific payment. Immutable once bound to a request.
type Witness struct {
	Owner     string `json:"owner"`
	Token     string `json:"token"`
	Amount    string `json:"amount"` // smallest unit, decimal string
	To        string `json:"to"`
	Deadline  int64  `json:"deadline"`  // unix seconds
	PaymentID string `json:"paymentId"` // bytes32 hex, matches the on-chain verifier
	Nonce     uint64 `json:"nonce"`
}

// PaymentRequest is an in-flight single-payment request owned by the registry
type PaymentRequest struct {
	ID             string              `json:"id"`
	NetworkID      string              `json:"networkId"` // CAIP-2, e.g. "eip155:84532"
	ChainID        int64               `json:"chainId"`
	Transaction    PreparedTransaction `json:"transaction"`
	Metadata       PaymentMetadata     `json:"metadata"`
	Policy         PaymentPolicy       `json:"policy"`
	PaymentDetails PaymentDetails      `json:"paymentDetails"`
	Witness        *Witness            `json:"witness,omitempty"` // set exactly once, never overwritten
	Status         RequestStatus       `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	ExpiresAt      time.Time           `json:"expiresAt"`
}

// OpType discriminates batch operation kinds
type OpType string

const (
	OpTransfer OpType = "transfer"
	OpSwap     OpType = "swap"
	OpCall     OpType = "call"
)

// BatchOperation is one step of an atomic batch. Order is significant.
// Amount fields are decimal strings in the token's smallest unit.
type BatchOperation struct {
	Type         OpType `json:"type"`
	TokenIn      string `json:"tokenIn"`
	AmountIn     string `json:"amountIn"`
	TokenOut     string `json:"tokenOut,omitempty"`
	MinAmountOut string `json:"minAmountOut,omitempty"`
	Target       string `json:"target"`
	Data         string `json:"data,omitempty"` // 0x-prefixed calldata

	// Display metadata, not part of the signed encoding
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// BatchWitness authorizes an ordered operation list with a single signature
type BatchWitness struct {
	Owner          string `json:"owner"`
	OperationsHash string `json:"operationsHash"` // bytes32 hex
	Deadline       int64  `json:"deadline"`
	BatchID        string `json:"batchId"` // bytes32 hex
	Nonce          uint64 `json:"nonce"`   // batch executor namespace
}

// BatchPaymentRequest is the batched counterpart of PaymentRequest
type BatchPaymentRequest struct {
	ID         string           `json:"id"`
	NetworkID  string           `json:"networkId"`
	ChainID    int64            `json:"chainId"`
	Operations []BatchOperation `json:"operations"`
	Metadata   PaymentMetadata  `json:"metadata"`
	Policy     PaymentPolicy    `json:"policy"`
	Witness    *BatchWitness    `json:"witness,omitempty"`
	Status     RequestStatus    `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

// PendingActionKind discriminates deferred action payloads
type PendingActionKind string

const (
	PendingTransfer PendingActionKind = "transfer"
	PendingSwap     PendingActionKind = "swap"
	PendingBatch    PendingActionKind = "batch"
)

// PendingTransferAction is a deferred sponsorable transfer
type PendingTransferAction struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

// PendingSwapAction is a deferred sponsorable swap
type PendingSwapAction struct {
	TokenIn      string `json:"tokenIn"`
	AmountIn     string `json:"amountIn"`
	TokenOut     string `json:"tokenOut"`
	MinAmountOut string `json:"minAmountOut"`
}

// PendingBatchAction is a deferred sponsorable batch
type PendingBatchAction struct {
	Operations []BatchOperation `json:"operations"`
}

// PendingActionInfo links a non-sponsorable approval step to the sponsorable
// action that must follow it. Consumed exactly once.
type PendingActionInfo struct {
	ApprovalRequestID string            `json:"approvalRequestId"`
	SessionID         string            `json:"sessionId"`
	NetworkID         string            `json:"networkId"`
	WalletAddress     string            `json:"walletAddress"`
	Kind              PendingActionKind `json:"kind"`

	Transfer *PendingTransferAction `json:"transfer,omitempty"`
	Swap     *PendingSwapAction     `json:"swap,omitempty"`
	Batch    *PendingBatchAction    `json:"batch,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SecurityLevel is a named policy bundle
type SecurityLevel string

const (
	SecurityStrict     SecurityLevel = "STRICT"
	SecurityNormal     SecurityLevel = "NORMAL"
	SecurityPermissive SecurityLevel = "PERMISSIVE"
)

// RiskLevel grades a policy decision
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskBlocked RiskLevel = "BLOCKED"
)

// Policy is the security policy a transaction preview is vetted against.
// Zero-valued caps mean unlimited.
type Policy struct {
	SecurityLevel                SecurityLevel `json:"securityLevel"`
	MaxPerTxUSD                  float64       `json:"maxPerTxUsd,omitempty"`
	MaxDailyUSD                  float64       `json:"maxDailyUsd,omitempty"`
	RequireVerifiedContracts     bool          `json:"requireVerifiedContracts"`
	LargeTransactionThresholdPct float64       `json:"largeTransactionThresholdPct,omitempty"`
	MaxSlippageBps               int64         `json:"maxSlippageBps,omitempty"`
	AllowedTokens                []string      `json:"allowedTokens,omitempty"`
	DeniedTokens                 []string      `json:"deniedTokens,omitempty"`
	AllowedContracts             []string      `json:"allowedContracts,omitempty"`
	DeniedContracts              []string      `json:"deniedContracts,omitempty"`
}

// PolicyDecision is the outcome of a policy evaluation. A denial is a normal
// result, never an error.
type PolicyDecision struct {
	Allowed   bool      `json:"allowed"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Reasons   []string  `json:"reasons"`
	Warnings  []string  `json:"warnings"`
}

// TransactionPreview is the policy engine's view of a prepared transaction
type TransactionPreview struct {
	Token            string  `json:"token"`  // token contract address
	Target           string  `json:"target"` // call target contract
	AmountUSD        float64 `json:"amountUsd"`
	SlippageBps      int64   `json:"slippageBps,omitempty"`
	ContractVerified bool    `json:"contractVerified"`
	HoldingsUSD      float64 `json:"holdingsUsd,omitempty"` // owner's holdings of the token
}

// ExecutionResult reports the outcome of executing a request
type ExecutionResult struct {
	RequestID string        `json:"requestId"`
	Status    RequestStatus `json:"status"`
	TxHash    string        `json:"txHash,omitempty"`
	GasUsed   uint64        `json:"gasUsed,omitempty"`
}
