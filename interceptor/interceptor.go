package interceptor

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	payments "github.com/nevermined-io/payments-go"
)

// Interceptor drives the two-phase lifecycle over one orchestrator.
// HandleRequest and HandleResponse are separate invocations correlated
// by the gateway request id.
type Interceptor struct {
	orchestrator *payments.Orchestrator
}

// New creates an interceptor around the orchestrator.
func New(orchestrator *payments.Orchestrator) *Interceptor {
	return &Interceptor{orchestrator: orchestrator}
}

// HandleRequest runs the request phase: extract the token, verify, and
// either forward the unmodified request or short-circuit with a
// payment-required response. The wrapped handler is never touched on
// the short-circuit path.
func (i *Interceptor) HandleRequest(ctx context.Context, event RequestEvent) (RequestOutcome, error) {
	// A missing token flows through Authorize so the short-circuit
	// body carries the requirement the client would need.
	token, _ := payments.ExtractToken(func(name string) string {
		if v, ok := event.Headers[name]; ok {
			return v
		}
		// Gateway header maps are commonly lower-cased.
		return event.Headers[strings.ToLower(name)]
	})

	_, err := i.orchestrator.Authorize(ctx, payments.Request{
		CorrelationID: event.RequestID,
		Token:         token,
		Input:         event.Body,
		Overrides: payments.RequirementOverrides{
			ResourceURL: event.Path,
			HTTPVerb:    event.Method,
		},
	})
	if err != nil {
		switch payments.ErrorCode(err) {
		case payments.ErrCodeUnauthenticated:
			return shortCircuit(http.StatusUnauthorized, err), nil
		case payments.ErrCodePaymentRequired:
			return shortCircuit(http.StatusPaymentRequired, err), nil
		}
		return RequestOutcome{}, err
	}

	return RequestOutcome{Forward: true}, nil
}

// HandleResponse runs the response phase: settle exactly once for the
// correlation, charging the credits-used value reported in the
// already-produced response body. A response that never passed the
// request phase settles nothing.
func (i *Interceptor) HandleResponse(ctx context.Context, event ResponseEvent) (*payments.SettlementResult, error) {
	state := payments.StateCompleted
	if event.StatusCode >= 400 {
		state = payments.StateFailed
	}

	terminal := payments.Event{
		WorkID:      event.RequestID,
		State:       state,
		Payload:     event.Body,
		CreditsUsed: creditsFromBody(event.Body),
	}

	result, err := i.orchestrator.SettleTerminal(ctx, event.RequestID, terminal)
	if err != nil {
		return nil, err
	}
	return result.Settlement, nil
}

// creditsFromBody reads the credits-used value the handler reported in
// its response body: `creditsUsed` at the top level, with the
// `_meta.creditsToCharge` container as fallback.
func creditsFromBody(body json.RawMessage) *int64 {
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		CreditsUsed *int64 `json:"creditsUsed"`
		Meta        struct {
			CreditsToCharge *int64 `json:"creditsToCharge"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if envelope.CreditsUsed != nil {
		return envelope.CreditsUsed
	}
	return envelope.Meta.CreditsToCharge
}

func shortCircuit(status int, err error) RequestOutcome {
	body := map[string]interface{}{"error": err.Error()}
	if pe, ok := err.(*payments.PaymentError); ok {
		body["code"] = pe.Code
		if pe.Details != nil {
			body["details"] = pe.Details
		}
	}
	raw, _ := json.Marshal(body)

	return RequestOutcome{
		ShortCircuit: &Response{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       raw,
		},
	}
}
