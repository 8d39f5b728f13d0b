package payment

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

// WitnessBuilder constructs the EIP-712 payloads users sign to authorize
// payments. All hashing here must match the on-chain verifier byte for byte.
type WitnessBuilder struct {
	cm     *utils.ConfigManager
	logger *utils.LogsManager
}

// NewWitnessBuilder creates a new witness builder
func NewWitnessBuilder(cm *utils.ConfigManager, logger *utils.LogsManager) *WitnessBuilder {
	return &WitnessBuilder{cm: cm, logger: logger}
}

// ComputePaymentID derives the unique payment identifier the verifier contract
// recomputes on chain: keccak256 of the ABI-encoded tuple
// (owner, token, to, amount, nonce, deadline), each value as a 32-byte word.
func ComputePaymentID(owner, token, to, amount string, nonce uint64, deadline int64) (string, error) {
	amountInt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid amount %q", ErrValidation, amount)
	}

	encoded := make([]byte, 0, 6*32)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(token).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(amountInt.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(new(big.Int).SetUint64(nonce).Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(big.NewInt(deadline).Bytes(), 32)...)

	return crypto.Keccak256Hash(encoded).Hex(), nil
}

// BuildWitness assembles the immutable witness for a payment request. The
// nonce comes from the verifier contract, the deadline from the request policy.
func (wb *WitnessBuilder) BuildWitness(request *PaymentRequest, owner string, nonce uint64) (*Witness, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("%w: invalid owner address %q", ErrValidation, owner)
	}

	details := request.PaymentDetails
	if !common.IsHexAddress(details.Token) || !common.IsHexAddress(details.To) {
		return nil, fmt.Errorf("%w: invalid token or recipient address", ErrValidation)
	}

	deadline := request.Policy.Deadline
	if deadline == 0 {
		deadline = request.ExpiresAt.Unix()
	}

	paymentID, err := ComputePaymentID(owner, details.Token, details.To, details.Amount, nonce, deadline)
	if err != nil {
		return nil, err
	}

	return &Witness{
		Owner:     common.HexToAddress(owner).Hex(),
		Token:     common.HexToAddress(details.Token).Hex(),
		Amount:    details.Amount,
		To:        common.HexToAddress(details.To).Hex(),
		Deadline:  deadline,
		PaymentID: paymentID,
		Nonce:     nonce,
	}, nil
}

// TypedData builds the EIP-712 typed data envelope for a witness. The domain
// binds the signature to one chain and one verifier contract.
func (wb *WitnessBuilder) TypedData(witness *Witness, network *NetworkConfig) (apitypes.TypedData, error) {
	amountInt, ok := new(big.Int).SetString(witness.Amount, 10)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("%w: invalid witness amount %q", ErrValidation, witness.Amount)
	}

	types := apitypes.Types{
		"EIP712Domain": []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Witness": []apitypes.Type{
			{Name: "owner", Type: "address"},
			{Name: "token", Type: "address"},
			{Name: "amount", Type: "uint256"},
			{Name: "to", Type: "address"},
			{Name: "deadline", Type: "uint256"},
			{Name: "paymentId", Type: "bytes32"},
			{Name: "nonce", Type: "uint256"},
		},
	}

	message := apitypes.TypedDataMessage{
		"owner":     witness.Owner,
		"token":     witness.Token,
		"amount":    fmt.Sprintf("%d", amountInt),
		"to":        witness.To,
		"deadline":  fmt.Sprintf("%d", witness.Deadline),
		"paymentId": witness.PaymentID,
		"nonce":     fmt.Sprintf("%d", witness.Nonce),
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: "Witness",
		Domain:      wb.domain(network.ChainID, network.PaymentVerifier),
		Message:     message,
	}, nil
}

func (wb *WitnessBuilder) domain(chainID int64, verifyingContract string) apitypes.TypedDataDomain {
	name := "SponsorGate"
	version := "1"
	if wb.cm != nil {
		name = wb.cm.GetConfigWithDefault("eip712_domain_name", name)
		version = wb.cm.GetConfigWithDefault("eip712_domain_version", version)
	}
	return apitypes.TypedDataDomain{
		Name:              name,
		Version:           version,
		ChainId:           math.NewHexOrDecimal256(chainID),
		VerifyingContract: verifyingContract,
	}
}

// HashTypedData computes the final EIP-712 digest:
// keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(message))
func HashTypedData(typedData apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %v", err)
	}

	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %v", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256Hash(rawData), nil
}

// RecoverSigner recovers the signing address from a 65-byte hex signature over
// the given typed data. Accepts v values in both 0/1 and 27/28 form.
func RecoverSigner(typedData apitypes.TypedData, signature string) (common.Address, error) {
	digest, err := HashTypedData(typedData)
	if err != nil {
		return common.Address{}, err
	}

	sigBytes := common.FromHex(signature)
	if len(sigBytes) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrValidation, len(sigBytes))
	}

	// crypto.SigToPub expects the recovery id as 0/1
	recovered := make([]byte, 65)
	copy(recovered, sigBytes)
	if recovered[64] >= 27 {
		recovered[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), recovered)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// GetChainIDFromNetwork extracts the chain id from a CAIP-2 network
// identifier, e.g. "eip155:84532"
func GetChainIDFromNetwork(networkID string) (int64, error) {
	if !strings.HasPrefix(networkID, "eip155:") {
		return 0, fmt.Errorf("%w: invalid network format %s", ErrUnknownNetwork, networkID)
	}

	chainID, ok := new(big.Int).SetString(networkID[len("eip155:"):], 10)
	if !ok {
		return 0, fmt.Errorf("%w: invalid chain id in %s", ErrUnknownNetwork, networkID)
	}

	return chainID.Int64(), nil
}
