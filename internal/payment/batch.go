package payment

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// operationTypeHash is the EIP-712 type hash the batch executor contract uses
// for a single operation
var operationTypeHash = crypto.Keccak256Hash([]byte(
	"Operation(uint8 opType,address tokenIn,uint256 amountIn,address tokenOut,uint256 minAmountOut,address target,bytes data)"))

// OpTypeCode maps an operation kind to its on-chain uint8 discriminant
func OpTypeCode(opType OpType) (uint8, error) {
	switch opType {
	case OpTransfer:
		return 0, nil
	case OpSwap:
		return 1, nil
	case OpCall:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation type %q", ErrValidation, opType)
	}
}

// hashOperation computes the EIP-712 struct hash of one batch operation.
// Dynamic calldata is folded in as keccak256(data) per the encoding rules.
func hashOperation(op *BatchOperation) (common.Hash, error) {
	code, err := OpTypeCode(op.Type)
	if err != nil {
		return common.Hash{}, err
	}

	amountIn := big.NewInt(0)
	if op.AmountIn != "" {
		var ok bool
		amountIn, ok = new(big.Int).SetString(op.AmountIn, 10)
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: invalid amountIn %q", ErrValidation, op.AmountIn)
		}
	}

	minAmountOut := big.NewInt(0)
	if op.MinAmountOut != "" {
		var ok bool
		minAmountOut, ok = new(big.Int).SetString(op.MinAmountOut, 10)
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: invalid minAmountOut %q", ErrValidation, op.MinAmountOut)
		}
	}

	encoded := make([]byte, 0, 8*32)
	encoded = append(encoded, operationTypeHash.Bytes()...)
	encoded = append(encoded, common.LeftPadBytes([]byte{code}, 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(op.TokenIn).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(amountIn.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(op.TokenOut).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(minAmountOut.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(op.Target).Bytes(), 32)...)
	encoded = append(encoded, crypto.Keccak256(common.FromHex(op.Data))...)

	return crypto.Keccak256Hash(encoded), nil
}

// ComputeOperationsHash hashes an ordered operation list into the single
// bytes32 the batch witness commits to. Reordering operations changes the hash.
func ComputeOperationsHash(operations []BatchOperation) (string, error) {
	if len(operations) == 0 {
		return "", fmt.Errorf("%w: batch has no operations", ErrValidation)
	}

	encoded := make([]byte, 0, len(operations)*32)
	for i := range operations {
		structHash, err := hashOperation(&operations[i])
		if err != nil {
			return "", fmt.Errorf("operation %d: %w", i, err)
		}
		encoded = append(encoded, structHash.Bytes()...)
	}

	return crypto.Keccak256Hash(encoded).Hex(), nil
}

// ComputeBatchID derives the unique batch identifier the executor contract
// recomputes on chain: keccak256 of (owner, operationsHash, nonce, deadline)
func ComputeBatchID(owner, operationsHash string, nonce uint64, deadline int64) string {
	encoded := make([]byte, 0, 4*32)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	encoded = append(encoded, common.HexToHash(operationsHash).Bytes()...)
	encoded = append(encoded, common.LeftPadBytes(new(big.Int).SetUint64(nonce).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(big.NewInt(deadline).Bytes(), 32)...)
	return crypto.Keccak256Hash(encoded).Hex()
}

// BuildBatchWitness assembles the immutable witness for a batch request. The
// nonce comes from the batch executor's own nonce namespace.
func (wb *WitnessBuilder) BuildBatchWitness(request *BatchPaymentRequest, owner string, nonce uint64) (*BatchWitness, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: invalid owner address %q", ErrValidation, owner)
	}

	operationsHash, err := ComputeOperationsHash(request.Operations)
	if err != nil {
		return nil, err
	}

	deadline := request.Policy.Deadline
	if deadline == 0 {
		deadline = request.ExpiresAt.Unix()
	}

	return &BatchWitness{
		Owner:          common.HexToAddress(owner).Hex(),
		OperationsHash: operationsHash,
		Deadline:       deadline,
		BatchID:        ComputeBatchID(owner, operationsHash, nonce, deadline),
		Nonce:          nonce,
	}, nil
}

// BatchTypedData builds the EIP-712 typed data envelope for a batch witness.
// The verifying contract is the batch executor, not the payment verifier.
func (wb *WitnessBuilder) BatchTypedData(witness *BatchWitness, network *NetworkConfig) (apitypes.TypedData, error) {
	types := apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"BatchWitness": []apitypes.Type{
			{Name: "owner", Type: "address"},
			{Name: "operationsHash", Type: "bytes32"},
			{Name: "deadline", Type: "uint256"},
			{Name: "batchId", Type: "bytes32"},
			{Name: "nonce", Type: "uint256"},
		},
	}

	message := apitypes.TypedDataMessage{
		"owner":          witness.Owner,
		"operationsHash": witness.OperationsHash,
		"deadline":       fmt.Sprintf("%d", witness.Deadline),
		"batchId":        witness.BatchID,
		"nonce":          fmt.Sprintf("%d", witness.Nonce),
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: "BatchWitness",
		Domain:      wb.domain(network.ChainID, network.BatchExecutor),
		Message:     message,
	}, nil
}

// ValidateOperations checks a batch's shape before any hashing or storage
func ValidateOperations(operations []BatchOperation) error {
	if len(operations) == 0 {
		return fmt.Errorf("%w: batch has no operations", ErrValidation)
	}

	for i := range operations {
		op := &operations[i]
		if _, err := OpTypeCode(op.Type); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if !common.IsHexAddress(op.Target) {
			return fmt.Errorf("%w: operation %d has invalid target %q", ErrValidation, i, op.Target)
		}
		if op.TokenIn != "" && !common.IsHexAddress(op.TokenIn) {
			return fmt.Errorf("%w: operation %d has invalid tokenIn %q", ErrValidation, i, op.TokenIn)
		}
		switch op.Type {
		case OpTransfer:
			if op.AmountIn == "" {
				return fmt.Errorf("%w: operation %d transfer requires amountIn", ErrValidation, i)
			}
		case OpSwap:
			if op.TokenOut == "" || op.MinAmountOut == "" {
				return fmt.Errorf("%w: operation %d swap requires tokenOut and minAmountOut", ErrValidation, i)
			}
		case OpCall:
			if op.Data == "" {
				return fmt.Errorf("%w: operation %d call requires calldata", ErrValidation, i)
			}
		}
	}

	return nil
}
