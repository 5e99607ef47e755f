package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaymentContext(credits int64) PaymentContext {
	return PaymentContext{
		Token:           "tok",
		Requirement:     PaymentRequirement{Scheme: "credits", PlanIDs: []string{"plan-default"}},
		CreditsToSettle: credits,
		AgentRequestID:  "agent-req-1",
	}
}

func TestSettlerSkipsZeroCredits(t *testing.T) {
	facilitator := &fakeFacilitator{}
	s := NewSettler(facilitator, SettlementPolicyIgnore)

	result, err := s.Settle(context.Background(), testPaymentContext(0))
	require.NoError(t, err)
	assert.Nil(t, result)

	_, settles := facilitator.counts()
	assert.Equal(t, 0, settles)
}

func TestSettlerSuccess(t *testing.T) {
	facilitator := &fakeFacilitator{}
	s := NewSettler(facilitator, SettlementPolicyIgnore)

	result, err := s.Settle(context.Background(), testPaymentContext(5))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(5), result.CreditsRedeemed)
}

func TestSettlerIgnorePolicySwallowsErrors(t *testing.T) {
	facilitator := &fakeFacilitator{settleErr: errors.New("refused")}
	s := NewSettler(facilitator, SettlementPolicyIgnore)

	result, err := s.Settle(context.Background(), testPaymentContext(1))
	require.NoError(t, err, "ignore policy must not return an error")
	assert.False(t, result.Success)
	assert.Equal(t, "refused", result.ErrorReason)
}

func TestSettlerPropagatePolicyReturnsError(t *testing.T) {
	facilitator := &fakeFacilitator{settleErr: errors.New("refused")}
	s := NewSettler(facilitator, SettlementPolicyPropagate)

	_, err := s.Settle(context.Background(), testPaymentContext(1))
	assert.Equal(t, ErrCodeSettlementFailed, ErrorCode(err))
}

func TestSettlerPropagatePolicyRejectedResult(t *testing.T) {
	facilitator := &fakeFacilitator{
		settleResult: &SettlementResult{Success: false, ErrorReason: "insufficient balance"},
	}
	s := NewSettler(facilitator, SettlementPolicyPropagate)

	_, err := s.Settle(context.Background(), testPaymentContext(1))
	assert.Equal(t, ErrCodeSettlementFailed, ErrorCode(err))
}
