package payment

import (
	"strings"
	"testing"
)

func testOperations() []BatchOperation {
	return []BatchOperation{
		{
			Type:     OpTransfer,
			TokenIn:  testToken,
			AmountIn: "1000000",
			Target:   testTo,
		},
		{
			Type:         OpSwap,
			TokenIn:      testToken,
			AmountIn:     "500000",
			TokenOut:     "0x4444444444444444444444444444444444444444",
			MinAmountOut: "490000",
			Target:       "0x5555555555555555555555555555555555555555",
		},
	}
}

func TestComputeOperationsHashDeterministic(t *testing.T) {
	first, err := ComputeOperationsHash(testOperations())
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	second, err := ComputeOperationsHash(testOperations())
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	if first != second {
		t.Errorf("Same operations must produce the same hash: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "0x") || len(first) != 66 {
		t.Errorf("Operations hash should be a bytes32 hex string, got %s", first)
	}
}

// Fixed vectors for the executor-side encoding. A drift here means signed
// batches stop matching what the contract recomputes.
func TestComputeOperationsHashKnownVector(t *testing.T) {
	hash, err := ComputeOperationsHash(testOperations())
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	expected := "0xca1f6abbcf713e690b0d6f118f665f53aa2d9b4ebba1fd0b21899eba4f24372e"
	if hash != expected {
		t.Errorf("Operations hash encoding drifted from the on-chain layout:\n got %s\nwant %s", hash, expected)
	}

	batchID := ComputeBatchID(testOwner, hash, 4, 1800000000)
	expectedID := "0x298c0d9407653ec2e87ea3bfa359dace158ede88fbde4a68d0af00fa983aeaac"
	if batchID != expectedID {
		t.Errorf("Batch id encoding drifted from the on-chain layout:\n got %s\nwant %s", batchID, expectedID)
	}
}

func TestComputeOperationsHashOrderSensitive(t *testing.T) {
	ops := testOperations()
	forward, err := ComputeOperationsHash(ops)
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	reversed := []BatchOperation{ops[1], ops[0]}
	backward, err := ComputeOperationsHash(reversed)
	if err != nil {
		t.Fatalf("Failed to hash reversed operations: %v", err)
	}

	if forward == backward {
		t.Error("Reordered operations must produce a different hash")
	}
}

func TestComputeOperationsHashIgnoresDisplayMetadata(t *testing.T) {
	ops := testOperations()
	base, err := ComputeOperationsHash(ops)
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	ops[0].Label = "send lunch money"
	ops[0].Description = "weekly transfer"

	relabeled, err := ComputeOperationsHash(ops)
	if err != nil {
		t.Fatalf("Failed to hash relabeled operations: %v", err)
	}

	if base != relabeled {
		t.Error("Display metadata must not affect the signed encoding")
	}
}

func TestComputeOperationsHashEmpty(t *testing.T) {
	if _, err := ComputeOperationsHash(nil); err == nil {
		t.Error("Empty batch should be rejected")
	}
}

func TestOpTypeCode(t *testing.T) {
	cases := []struct {
		opType OpType
		code   uint8
	}{
		{OpTransfer, 0},
		{OpSwap, 1},
		{OpCall, 2},
	}

	for _, c := range cases {
		code, err := OpTypeCode(c.opType)
		if err != nil {
			t.Fatalf("OpTypeCode(%s) failed: %v", c.opType, err)
		}
		if code != c.code {
			t.Errorf("OpTypeCode(%s) = %d, expected %d", c.opType, code, c.code)
		}
	}

	if _, err := OpTypeCode("stake"); err == nil {
		t.Error("Unknown operation type should be rejected")
	}
}

func TestComputeBatchIDSensitivity(t *testing.T) {
	operationsHash, err := ComputeOperationsHash(testOperations())
	if err != nil {
		t.Fatalf("Failed to hash operations: %v", err)
	}

	base := ComputeBatchID(testOwner, operationsHash, 1, 1800000000)
	if base == ComputeBatchID(testOwner, operationsHash, 2, 1800000000) {
		t.Error("Different nonce must change the batch id")
	}
	if base == ComputeBatchID(testTo, operationsHash, 1, 1800000000) {
		t.Error("Different owner must change the batch id")
	}
	if base != ComputeBatchID(testOwner, operationsHash, 1, 1800000000) {
		t.Error("Same inputs must produce the same batch id")
	}
}

func TestBuildBatchWitness(t *testing.T) {
	wb := testWitnessBuilder()

	request := &BatchPaymentRequest{
		ID:         "batch-1",
		NetworkID:  "eip155:84532",
		Operations: testOperations(),
		Policy:     PaymentPolicy{Deadline: 1800000000},
	}

	witness, err := wb.BuildBatchWitness(request, testOwner, 4)
	if err != nil {
		t.Fatalf("Failed to build batch witness: %v", err)
	}

	operationsHash, _ := ComputeOperationsHash(request.Operations)
	if witness.OperationsHash != operationsHash {
		t.Errorf("Witness operations hash mismatch: %s vs %s", witness.OperationsHash, operationsHash)
	}
	if witness.BatchID != ComputeBatchID(testOwner, operationsHash, 4, 1800000000) {
		t.Error("Batch id does not match recomputation")
	}
}

func TestValidateOperations(t *testing.T) {
	cases := []struct {
		name    string
		ops     []BatchOperation
		wantErr bool
	}{
		{"valid batch", testOperations(), false},
		{"empty batch", nil, true},
		{"unknown type", []BatchOperation{{Type: "stake", Target: testTo}}, true},
		{"bad target", []BatchOperation{{Type: OpTransfer, Target: "not-an-address", AmountIn: "1"}}, true},
		{"transfer without amount", []BatchOperation{{Type: OpTransfer, Target: testTo}}, true},
		{"swap without tokenOut", []BatchOperation{{Type: OpSwap, Target: testTo, TokenIn: testToken, AmountIn: "1", MinAmountOut: "1"}}, true},
		{"call without data", []BatchOperation{{Type: OpCall, Target: testTo}}, true},
		{"call with data", []BatchOperation{{Type: OpCall, Target: testTo, Data: "0xdeadbeef"}}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateOperations(c.ops)
			if c.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !c.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
