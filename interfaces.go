package payments

import (
	"context"
	"encoding/json"
)

// FacilitatorClient talks to the remote facilitator that owns plan
// balances. Verify is non-mutating; Settle burns credits. Neither call
// carries an idempotency key: at-most-once per work id is enforced
// locally by the request ledger, not by the remote side.
type FacilitatorClient interface {
	// Verify checks that the token holds enough entitlement for the
	// requirement. maxAmount is the upper bound of credits this request
	// may burn.
	Verify(ctx context.Context, requirement PaymentRequirement, token string, maxAmount int64) (*VerificationResult, error)

	// Settle deducts credits after work completes. agentRequestID is
	// the correlation reported by Verify, when the facilitator assigned
	// one.
	Settle(ctx context.Context, requirement PaymentRequirement, token string, amount int64, agentRequestID string) (*SettlementResult, error)
}

// EventSink receives lifecycle events from a push-style executor.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// Executor is a task-executing collaborator in push shape: it emits
// ordered events to the sink as it progresses and must emit exactly one
// terminal event per work id. Cancel requests early termination; if
// cancellation races with natural completion the executor must not
// emit a second terminal event.
type Executor interface {
	Execute(ctx context.Context, workID string, input json.RawMessage, sink EventSink) error
	Cancel(ctx context.Context, workID string) error
}

// HandlerFunc is a call/return-style collaborator: it returns a single
// result synchronously. The execution adapter synthesizes the terminal
// event from the return value or error.
type HandlerFunc func(ctx context.Context, input json.RawMessage) (*HandlerResult, error)

// HandlerResult is what a call/return handler produces. CreditsUsed,
// when set, overrides the request's credits policy at settlement time.
type HandlerResult struct {
	Output      json.RawMessage
	CreditsUsed *int64
}
