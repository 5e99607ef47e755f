package payments

import (
	"context"
	"log"
)

// SettlementPolicy decides what a settle failure does to the caller's
// already-delivered result.
type SettlementPolicy string

const (
	// SettlementPolicyIgnore logs the failure and leaves the caller's
	// result unchanged. This is the default: a failed charge must never
	// retroactively invalidate work already delivered.
	SettlementPolicyIgnore SettlementPolicy = "ignore"

	// SettlementPolicyPropagate surfaces the failure as a distinct
	// billing-configuration error, separate from business-logic errors.
	SettlementPolicyPropagate SettlementPolicy = "propagate"
)

// Settler burns credits with the facilitator after work completes.
// Callers must gate every Settle with the ledger's TryMarkSettled so
// each work id is charged at most once.
type Settler struct {
	facilitator FacilitatorClient
	policy      SettlementPolicy
}

// NewSettler creates a settler with the given failure policy. An empty
// policy defaults to ignore.
func NewSettler(facilitator FacilitatorClient, policy SettlementPolicy) *Settler {
	if policy == "" {
		policy = SettlementPolicyIgnore
	}
	return &Settler{facilitator: facilitator, policy: policy}
}

// Settle charges the context's credits. A zero amount means "skip
// settlement": no facilitator call is made and a nil result with nil
// error is returned. Under the ignore policy a failed settle returns
// the (failed) result with a nil error; under propagate it returns a
// settlement error.
func (s *Settler) Settle(ctx context.Context, pc PaymentContext) (*SettlementResult, error) {
	if pc.CreditsToSettle == 0 {
		return nil, nil
	}

	result, err := s.facilitator.Settle(ctx, pc.Requirement, pc.Token, pc.CreditsToSettle, pc.AgentRequestID)
	if err != nil {
		if s.policy == SettlementPolicyPropagate {
			return nil, NewSettlementError(err.Error(), nil)
		}
		log.Printf("payments: settlement failed for agent request %q: %v", pc.AgentRequestID, err)
		return &SettlementResult{Success: false, ErrorReason: err.Error()}, nil
	}

	if !result.Success {
		if s.policy == SettlementPolicyPropagate {
			return nil, NewSettlementError(result.ErrorReason, result)
		}
		log.Printf("payments: settlement rejected for agent request %q: %s", pc.AgentRequestID, result.ErrorReason)
	}

	return result, nil
}
