package payment

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

// NonceOracle reads witness nonces and token allowances from the chain via
// read-only eth_call. Payment and batch nonces live in separate contract
// namespaces and must never be mixed.
type NonceOracle struct {
	networks *NetworkRegistry
	cm       *utils.ConfigManager
	logger   *utils.LogsManager
}

// NewNonceOracle creates a new nonce oracle
func NewNonceOracle(networks *NetworkRegistry, cm *utils.ConfigManager, logger *utils.LogsManager) *NonceOracle {
	return &NonceOracle{
		networks: networks,
		cm:       cm,
		logger:   logger,
	}
}

// PaymentNonce reads the owner's current nonce from the payment verifier
// contract. RPC failures degrade to nonce 0 with a logged warning so that
// witness construction can proceed; a stale nonce surfaces later as an
// on-chain rejection, never as a double spend.
func (no *NonceOracle) PaymentNonce(ctx context.Context, networkID string, owner string) uint64 {
	network, err := no.networks.Get(networkID)
	if err != nil {
		no.warn(fmt.Sprintf("Nonce lookup failed for %s on %s: %v, defaulting to 0", owner, networkID, err))
		return 0
	}
	return no.readNonce(ctx, network, network.PaymentVerifier, owner)
}

// BatchNonce reads the owner's current nonce from the batch executor contract
func (no *NonceOracle) BatchNonce(ctx context.Context, networkID string, owner string) uint64 {
	network, err := no.networks.Get(networkID)
	if err != nil {
		no.warn(fmt.Sprintf("Batch nonce lookup failed for %s on %s: %v, defaulting to 0", owner, networkID, err))
		return 0
	}
	return no.readNonce(ctx, network, network.BatchExecutor, owner)
}

func (no *NonceOracle) readNonce(ctx context.Context, network *NetworkConfig, contract string, owner string) uint64 {
	result, err := no.call(ctx, network, contract, nonceCallData(owner))
	if err != nil {
		no.warn(fmt.Sprintf("Nonce lookup failed for %s at %s: %v, defaulting to 0", owner, contract, err))
		return 0
	}
	if len(result) < 32 {
		no.warn(fmt.Sprintf("Nonce lookup for %s at %s returned short result, defaulting to 0", owner, contract))
		return 0
	}
	return new(big.Int).SetBytes(result[:32]).Uint64()
}

// Allowance reads the ERC-20 allowance the owner has granted to spender.
// Unlike nonce reads this returns an error, since callers use it to decide
// whether an approval step is required.
func (no *NonceOracle) Allowance(ctx context.Context, networkID string, token string, owner string, spender string) (*big.Int, error) {
	network, err := no.networks.Get(networkID)
	if err != nil {
		return nil, err
	}

	// allowance(address,address)
	selector := crypto.Keccak256([]byte("allowance(address,address)"))[:4]
	data := make([]byte, 0, 4+2*32)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(spender).Bytes(), 32)...)

	result, err := no.call(ctx, network, token, data)
	if err != nil {
		return nil, fmt.Errorf("%w: allowance lookup: %v", ErrExternalService, err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("%w: allowance lookup returned short result", ErrExternalService)
	}

	return new(big.Int).SetBytes(result[:32]), nil
}

func (no *NonceOracle) call(ctx context.Context, network *NetworkConfig, contract string, data []byte) ([]byte, error) {
	timeout := 10 * time.Second
	if no.cm != nil {
		timeout = time.Duration(no.cm.GetConfigInt("rpc_timeout_seconds", 10, 1, 120)) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", network.RPCURL, err)
	}
	defer client.Close()

	contractAddr := common.HexToAddress(contract)
	msg := ethereum.CallMsg{
		To:   &contractAddr,
		Data: data,
	}

	return client.CallContract(ctx, msg, nil)
}

// nonceCallData encodes a nonces(address) call
func nonceCallData(owner string) []byte {
	selector := crypto.Keccak256([]byte("nonces(address)"))[:4]
	data := make([]byte, 0, 4+32)
	data = append(data, selector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32)...)
	return data
}

func (no *NonceOracle) warn(message string) {
	if no.logger != nil {
		no.logger.Warn(message, "nonce")
	}
}
