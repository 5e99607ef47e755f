package payments

import (
	"context"
	"encoding/json"
)

// Network identifies the payments network an entitlement plan lives on
// (e.g. "base", "base-sepolia", "arbitrum").
type Network string

// PaymentRequirement describes what must be paid for a resource.
// Built once per request from static configuration plus request
// overrides; immutable after construction.
type PaymentRequirement struct {
	Scheme      string   `json:"scheme"`
	Network     Network  `json:"network"`
	PlanIDs     []string `json:"planIds"`
	ResourceURL string   `json:"resourceUrl,omitempty"`
	AgentID     string   `json:"agentId,omitempty"`
	HTTPVerb    string   `json:"httpVerb,omitempty"`
}

// VerificationResult is the outcome of a single entitlement check.
// It is never cached or reused across requests.
type VerificationResult struct {
	IsValid        bool   `json:"isValid"`
	InvalidReason  string `json:"invalidReason,omitempty"`
	Payer          string `json:"payer,omitempty"`
	AgentRequestID string `json:"agentRequestId,omitempty"`
}

// PaymentContext carries everything needed to settle a verified
// request. It is created only after a positive VerificationResult and
// is owned by exactly one ledger entry until settlement is attempted.
type PaymentContext struct {
	Token           string
	Requirement     PaymentRequirement
	CreditsToSettle int64
	AgentRequestID  string
}

// TerminalState is the final lifecycle state of a unit of work.
type TerminalState string

const (
	StateCompleted TerminalState = "completed"
	StateFailed    TerminalState = "failed"
	StateCanceled  TerminalState = "canceled"
)

// Terminal reports whether s ends the work lifecycle.
func (s TerminalState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Event is a single lifecycle event emitted by an executor.
// Exactly one event per work id has a terminal State; that event is
// the unique settlement trigger.
type Event struct {
	WorkID      string          `json:"workId"`
	State       TerminalState   `json:"state,omitempty"`
	CreditsUsed *int64          `json:"creditsUsed,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Err         string          `json:"error,omitempty"`
}

// Terminal reports whether this event ends the work lifecycle.
func (e Event) Terminal() bool {
	return e.State.Terminal()
}

// SettlementResult is the outcome of a settle call against the
// facilitator.
type SettlementResult struct {
	Success          bool   `json:"success"`
	Transaction      string `json:"transaction,omitempty"`
	CreditsRedeemed  int64  `json:"creditsRedeemed,omitempty"`
	RemainingBalance int64  `json:"remainingBalance,omitempty"`
	ErrorReason      string `json:"errorReason,omitempty"`
}

// CreditsFunc computes the credits to charge for a request. It is
// resolved once per request, before verification.
type CreditsFunc func(ctx context.Context, input json.RawMessage) (int64, error)

// CreditsPolicy is either a fixed amount or a per-request function.
// A resolved value of zero means "skip settlement", not "settle zero".
type CreditsPolicy struct {
	Fixed    int64
	Computed CreditsFunc
}

// FixedCredits returns a policy that always charges n credits.
func FixedCredits(n int64) CreditsPolicy {
	return CreditsPolicy{Fixed: n}
}

// ComputedCredits returns a policy that derives the charge from the
// request input.
func ComputedCredits(fn CreditsFunc) CreditsPolicy {
	return CreditsPolicy{Computed: fn}
}

// Resolve returns the credits to charge before execution starts.
// Precedence against the terminal event's reported value is applied
// later, at settlement time.
func (p CreditsPolicy) Resolve(ctx context.Context, input json.RawMessage) (int64, error) {
	if p.Computed != nil {
		return p.Computed(ctx, input)
	}
	return p.Fixed, nil
}

// WebhookAuth selects how webhook deliveries authenticate.
type WebhookAuth string

const (
	WebhookAuthNone   WebhookAuth = "none"
	WebhookAuthBearer WebhookAuth = "bearer"
	WebhookAuthBasic  WebhookAuth = "basic"
	WebhookAuthCustom WebhookAuth = "custom"
)

// WebhookConfig describes where and how to deliver terminal-state
// notifications.
type WebhookConfig struct {
	URL      string            `json:"url"`
	Auth     WebhookAuth       `json:"auth,omitempty"`
	Token    string            `json:"token,omitempty"`    // bearer
	Username string            `json:"username,omitempty"` // basic
	Password string            `json:"password,omitempty"` // basic
	Headers  map[string]string `json:"headers,omitempty"`  // custom
}

// TaskResult is returned to blocking callers after settlement has been
// attempted.
type TaskResult struct {
	WorkID     string            `json:"workId"`
	State      TerminalState     `json:"state"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Error      string            `json:"error,omitempty"`
	Settlement *SettlementResult `json:"settlement,omitempty"`
}

// TaskAck acknowledges a non-blocking submission. The caller polls or
// receives a webhook for the outcome.
type TaskAck struct {
	WorkID        string `json:"workId"`
	CorrelationID string `json:"correlationId"`
	State         string `json:"state"` // always "submitted"
}

// TokenHints are routing hints decoded from a payment token. Decoding
// never authenticates the token; hints are discarded if verification
// fails.
type TokenHints struct {
	PlanID       string
	PayerAddress string
}
