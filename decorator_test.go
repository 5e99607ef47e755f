package payments

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPaidToolSuccess(t *testing.T) {
	facilitator := &fakeFacilitator{}
	tool, err := PaidTool(testConfig(), facilitator, func(_ context.Context, input json.RawMessage) (*HandlerResult, error) {
		return &HandlerResult{Output: input, CreditsUsed: intPtr(2)}, nil
	})
	if err != nil {
		t.Fatalf("PaidTool: %v", err)
	}

	ctx := WithPaymentToken(context.Background(), "tok")
	out, err := tool(ctx, json.RawMessage(`{"q":"hi"}`))
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	if string(out) != `{"q":"hi"}` {
		t.Errorf("unexpected output %s", out)
	}

	verifies, settles := facilitator.counts()
	if verifies != 1 || settles != 1 {
		t.Errorf("expected verify=1 settle=1, got %d/%d", verifies, settles)
	}
	if amounts := facilitator.amounts(); amounts[0] != 2 {
		t.Errorf("expected settle with 2, got %v", amounts)
	}
}

func TestPaidToolWithoutTokenFailsBeforeHandler(t *testing.T) {
	facilitator := &fakeFacilitator{}
	handlerCalled := false
	tool, err := PaidTool(testConfig(), facilitator, func(context.Context, json.RawMessage) (*HandlerResult, error) {
		handlerCalled = true
		return &HandlerResult{}, nil
	})
	if err != nil {
		t.Fatalf("PaidTool: %v", err)
	}

	_, err = tool(context.Background(), nil)
	if ErrorCode(err) != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if handlerCalled {
		t.Error("handler must not run without a token")
	}

	verifies, settles := facilitator.counts()
	if verifies != 0 || settles != 0 {
		t.Errorf("expected no facilitator calls, got %d/%d", verifies, settles)
	}
}

func TestPaidToolHandlerErrorIsHandlerError(t *testing.T) {
	facilitator := &fakeFacilitator{}
	tool, err := PaidTool(testConfig(), facilitator, func(context.Context, json.RawMessage) (*HandlerResult, error) {
		return nil, &PaymentError{Code: ErrCodeHandlerError, Message: "tool exploded"}
	})
	if err != nil {
		t.Fatalf("PaidTool: %v", err)
	}

	ctx := WithPaymentToken(context.Background(), "tok")
	_, err = tool(ctx, nil)
	if ErrorCode(err) != ErrCodeHandlerError {
		t.Fatalf("expected handler_error, got %v", err)
	}

	// Failed work defaults to zero credits.
	if _, settles := facilitator.counts(); settles != 0 {
		t.Errorf("expected no settlement for failed tool, got %d", settles)
	}
}
