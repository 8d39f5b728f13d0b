package payment

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

const (
	testOwner = "0x1111111111111111111111111111111111111111"
	testToken = "0x2222222222222222222222222222222222222222"
	testTo    = "0x3333333333333333333333333333333333333333"
)

func testNetwork() *NetworkConfig {
	return &NetworkConfig{
		Name:              "base-sepolia",
		ChainID:           84532,
		PaymentVerifier:   "0x7bA5F3e857C0eE1B4bBd0b4E5bF04E9B2a66AeC2",
		BatchExecutor:     "0x91C2d6f6F1d5dB8E4aD2A58bF8B0Ce3E6B98A441",
		FacilitatorWallet: "0x4C1d9e0A8f2B7C63D5a9E8F0b1C2D3E4F5a6B7C8",
	}
}

func testWitnessBuilder() *WitnessBuilder {
	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)
	return NewWitnessBuilder(cm, logger)
}

func TestComputePaymentIDDeterministic(t *testing.T) {
	first, err := ComputePaymentID(testOwner, testToken, testTo, "1000000", 5, 1700000000)
	if err != nil {
		t.Fatalf("Failed to compute payment id: %v", err)
	}

	second, err := ComputePaymentID(testOwner, testToken, testTo, "1000000", 5, 1700000000)
	if err != nil {
		t.Fatalf("Failed to compute payment id: %v", err)
	}

	if first != second {
		t.Errorf("Same inputs must produce the same payment id: %s vs %s", first, second)
	}

	if !strings.HasPrefix(first, "0x") || len(first) != 66 {
		t.Errorf("Payment id should be a bytes32 hex string, got %s", first)
	}
}

// The verifier contract recomputes the payment id on chain, so the encoding
// must match this fixed vector exactly. Any change to the word order or
// padding is a consensus break, not a refactor.
func TestComputePaymentIDKnownVector(t *testing.T) {
	id, err := ComputePaymentID(testOwner, testToken, testTo, "1000000", 7, 1800000000)
	if err != nil {
		t.Fatalf("Failed to compute payment id: %v", err)
	}

	expected := "0x32b5cbc96dedc7f5b8bcb1a3d382ab2afe22fe360a81810bcaea4f2285339517"
	if id != expected {
		t.Errorf("Payment id encoding drifted from the on-chain layout:\n got %s\nwant %s", id, expected)
	}
}

func TestComputePaymentIDSensitivity(t *testing.T) {
	base, err := ComputePaymentID(testOwner, testToken, testTo, "1000000", 5, 1700000000)
	if err != nil {
		t.Fatalf("Failed to compute payment id: %v", err)
	}

	variants := []struct {
		name   string
		owner  string
		token  string
		to     string
		amount string
		nonce  uint64
		dl     int64
	}{
		{"different owner", testTo, testToken, testTo, "1000000", 5, 1700000000},
		{"different amount", testOwner, testToken, testTo, "1000001", 5, 1700000000},
		{"different nonce", testOwner, testToken, testTo, "1000000", 6, 1700000000},
		{"different deadline", testOwner, testToken, testTo, "1000000", 5, 1700000001},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			id, err := ComputePaymentID(v.owner, v.token, v.to, v.amount, v.nonce, v.dl)
			if err != nil {
				t.Fatalf("Failed to compute payment id: %v", err)
			}
			if id == base {
				t.Error("Changed input must change the payment id")
			}
		})
	}
}

func TestComputePaymentIDInvalidAmount(t *testing.T) {
	_, err := ComputePaymentID(testOwner, testToken, testTo, "not-a-number", 0, 1700000000)
	if err == nil {
		t.Fatal("Expected error for non-numeric amount")
	}
}

func TestBuildWitnessUsesPolicyDeadline(t *testing.T) {
	wb := testWitnessBuilder()

	request := &PaymentRequest{
		ID:        "req-1",
		NetworkID: "eip155:84532",
		Policy:    PaymentPolicy{Deadline: 1800000000},
		PaymentDetails: PaymentDetails{
			Token:  testToken,
			Amount: "250000",
			To:     testTo,
		},
		ExpiresAt: time.Now().Add(20 * time.Minute),
	}

	witness, err := wb.BuildWitness(request, testOwner, 3)
	if err != nil {
		t.Fatalf("Failed to build witness: %v", err)
	}

	if witness.Deadline != 1800000000 {
		t.Errorf("Expected policy deadline, got %d", witness.Deadline)
	}
	if witness.Nonce != 3 {
		t.Errorf("Expected nonce 3, got %d", witness.Nonce)
	}

	expected, _ := ComputePaymentID(testOwner, testToken, testTo, "250000", 3, 1800000000)
	if witness.PaymentID != expected {
		t.Errorf("Witness payment id does not match recomputation: %s vs %s", witness.PaymentID, expected)
	}
}

func TestTypedDataHashStable(t *testing.T) {
	wb := testWitnessBuilder()
	network := testNetwork()

	witness := &Witness{
		Owner:     testOwner,
		Token:     testToken,
		Amount:    "1000000",
		To:        testTo,
		Deadline:  1800000000,
		PaymentID: "0x" + strings.Repeat("ab", 32),
		Nonce:     1,
	}

	typedData, err := wb.TypedData(witness, network)
	if err != nil {
		t.Fatalf("Failed to build typed data: %v", err)
	}

	first, err := HashTypedData(typedData)
	if err != nil {
		t.Fatalf("Failed to hash typed data: %v", err)
	}

	second, err := HashTypedData(typedData)
	if err != nil {
		t.Fatalf("Failed to hash typed data: %v", err)
	}

	if first != second {
		t.Error("Typed data hash must be deterministic")
	}
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	wb := testWitnessBuilder()
	network := testNetwork()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	paymentID, _ := ComputePaymentID(owner.Hex(), testToken, testTo, "1000000", 0, 1800000000)
	witness := &Witness{
		Owner:     owner.Hex(),
		Token:     testToken,
		Amount:    "1000000",
		To:        testTo,
		Deadline:  1800000000,
		PaymentID: paymentID,
		Nonce:     0,
	}

	typedData, err := wb.TypedData(witness, network)
	if err != nil {
		t.Fatalf("Failed to build typed data: %v", err)
	}

	digest, err := HashTypedData(typedData)
	if err != nil {
		t.Fatalf("Failed to hash typed data: %v", err)
	}

	signature, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	// Recovery must accept both v encodings
	recovered, err := RecoverSigner(typedData, "0x"+common.Bytes2Hex(signature))
	if err != nil {
		t.Fatalf("Failed to recover signer: %v", err)
	}
	if recovered != owner {
		t.Errorf("Recovered %s, expected %s", recovered.Hex(), owner.Hex())
	}

	adjusted := make([]byte, 65)
	copy(adjusted, signature)
	adjusted[64] += 27

	recovered, err = RecoverSigner(typedData, "0x"+common.Bytes2Hex(adjusted))
	if err != nil {
		t.Fatalf("Failed to recover signer with 27/28 v: %v", err)
	}
	if recovered != owner {
		t.Errorf("Recovered %s with adjusted v, expected %s", recovered.Hex(), owner.Hex())
	}
}

func TestGetChainIDFromNetwork(t *testing.T) {
	chainID, err := GetChainIDFromNetwork("eip155:84532")
	if err != nil {
		t.Fatalf("Failed to parse network: %v", err)
	}
	if chainID != 84532 {
		t.Errorf("Expected 84532, got %d", chainID)
	}

	if _, err := GetChainIDFromNetwork("solana:mainnet-beta"); err == nil {
		t.Error("Non-eip155 network should be rejected")
	}
	if _, err := GetChainIDFromNetwork("eip155:abc"); err == nil {
		t.Error("Non-numeric chain id should be rejected")
	}
}
