package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
)

// fakeFacilitator counts Verify and Settle calls and returns canned
// results.
type fakeFacilitator struct {
	mu            sync.Mutex
	verifyCalls   int
	settleCalls   int
	settleAmounts []int64

	verifyResult *VerificationResult
	verifyErr    error
	settleResult *SettlementResult
	settleErr    error
}

func (f *fakeFacilitator) Verify(_ context.Context, _ PaymentRequirement, _ string, _ int64) (*VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verifyResult != nil {
		return f.verifyResult, nil
	}
	return &VerificationResult{IsValid: true, AgentRequestID: "agent-req-1"}, nil
}

func (f *fakeFacilitator) Settle(_ context.Context, _ PaymentRequirement, _ string, amount int64, _ string) (*SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++
	f.settleAmounts = append(f.settleAmounts, amount)
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	if f.settleResult != nil {
		return f.settleResult, nil
	}
	return &SettlementResult{Success: true, Transaction: "tx-1", CreditsRedeemed: amount}, nil
}

func (f *fakeFacilitator) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls, f.settleCalls
}

func (f *fakeFacilitator) amounts() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.settleAmounts))
	copy(out, f.settleAmounts)
	return out
}

// unsignedJWT builds a JWT-shaped token with the given claims and an
// empty signature. Decoding never checks the signature, so this is
// enough for hint extraction.
func unsignedJWT(claims map[string]interface{}) string {
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	body, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(body) + "."
}

func testConfig() RequirementConfig {
	return RequirementConfig{
		Network: "base-sepolia",
		PlanIDs: []string{"plan-default"},
		AgentID: "agent-1",
	}
}

func intPtr(n int64) *int64 {
	return &n
}
