package payments

import (
	"context"
	"encoding/json"
)

// PaidToolFunc is the shape of an in-process tool call.
type PaidToolFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// PaidTool wraps an in-process function with the full
// verify/execute/settle lifecycle, using the blocking drive mode. The
// returned function has the same shape as the wrapped one; payment
// errors come back as PaymentError values so callers can distinguish
// them from the tool's own failures.
//
// The token is taken from the context via WithPaymentToken, matching
// how in-process callers thread credentials.
func PaidTool(
	config RequirementConfig,
	facilitator FacilitatorClient,
	fn HandlerFunc,
	opts ...OrchestratorOption,
) (PaidToolFunc, error) {
	orchestrator, err := NewOrchestrator(config, facilitator, NewCallReturnExecutor(fn), SettlementPolicyIgnore, opts...)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		token, _ := PaymentTokenFromContext(ctx)
		result, err := orchestrator.Run(ctx, Request{Token: token, Input: input})
		if err != nil {
			return nil, err
		}
		if result.State == StateFailed {
			return nil, &PaymentError{Code: ErrCodeHandlerError, Message: result.Error}
		}
		return result.Payload, nil
	}, nil
}

type tokenContextKey struct{}

// WithPaymentToken attaches the caller's bearer token to the context
// for in-process paid tool calls.
func WithPaymentToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// PaymentTokenFromContext extracts a token attached by
// WithPaymentToken.
func PaymentTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}
