package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	payments "github.com/nevermined-io/payments-go"
)

// ToolHandler is the signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, args map[string]interface{}, toolContext ToolContext) (ToolResult, error)

// PaymentWrapper returns a function that wraps tool handlers with
// payment logic. Each wrapped handler verifies the token from _meta
// before executing and settles exactly once on the terminal outcome; a
// tool error means no charge unless the result explicitly reports
// credits used.
func PaymentWrapper(
	config WrapperConfig,
	facilitator payments.FacilitatorClient,
) (func(handler ToolHandler) ToolHandler, error) {
	opts := []payments.OrchestratorOption{}
	if config.Credits != nil {
		opts = append(opts, payments.WithDefaultCredits(*config.Credits))
	}

	// The wrapper executes the handler itself; the orchestrator only
	// drives Authorize and SettleTerminal.
	orchestrator, err := payments.NewOrchestrator(config.Requirement, facilitator, nil, config.SettlementPolicy, opts...)
	if err != nil {
		return nil, err
	}

	return func(handler ToolHandler) ToolHandler {
		return func(ctx context.Context, args map[string]interface{}, toolContext ToolContext) (ToolResult, error) {
			toolName := toolContext.ToolName
			if toolName == "" {
				toolName = "paid_tool"
			}

			token, _ := toolContext.Meta[PaymentTokenMetaKey].(string)

			input, _ := json.Marshal(args)
			correlationID, err := orchestrator.Authorize(ctx, payments.Request{
				Token: token,
				Input: input,
				Overrides: payments.RequirementOverrides{
					ResourceURL: toolResourceURL(toolName),
				},
			})
			if err != nil {
				return paymentRequiredResult(err), nil
			}

			result, err := handler(ctx, args, toolContext)
			if err != nil || result.IsError {
				// A failed tool call still terminates the lifecycle so
				// the ledger entry is released; nothing is charged
				// unless the result reported usage.
				terminal := payments.Event{State: payments.StateFailed, CreditsUsed: creditsFromResult(result)}
				_, _ = orchestrator.SettleTerminal(ctx, correlationID, terminal)
				return result, err
			}

			terminal := payments.Event{State: payments.StateCompleted, CreditsUsed: creditsFromResult(result)}
			settled, err := orchestrator.SettleTerminal(ctx, correlationID, terminal)
			if err != nil {
				return settlementFailedResult(err), nil
			}

			if settled.Settlement != nil {
				if result.Meta == nil {
					result.Meta = make(map[string]interface{})
				}
				result.Meta[PaymentReceiptMetaKey] = *settled.Settlement
			}

			return result, nil
		}
	}, nil
}

// creditsFromResult reads the credits-used value the tool reported in
// its result meta.
func creditsFromResult(result ToolResult) *int64 {
	raw, ok := result.Meta[CreditsUsedMetaKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case float64:
		n := int64(v)
		return &n
	}
	return nil
}

func toolResourceURL(toolName string) string {
	return "mcp://tool/" + toolName
}

// paymentRequiredResult converts a payment error into an error tool
// result carrying the machine-readable requirement.
func paymentRequiredResult(err error) ToolResult {
	structured := map[string]interface{}{"error": err.Error()}
	if pe, ok := err.(*payments.PaymentError); ok {
		structured["code"] = pe.Code
		for k, v := range pe.Details {
			structured[k] = v
		}
	}

	text, marshalErr := json.Marshal(structured)
	if marshalErr != nil {
		text = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}

	return ToolResult{
		StructuredContent: structured,
		Content:           []ContentItem{{Type: "text", Text: string(text)}},
		IsError:           true,
	}
}

func settlementFailedResult(err error) ToolResult {
	structured := map[string]interface{}{
		"error": fmt.Sprintf("payment settlement failed: %v", err),
		"code":  payments.ErrCodeSettlementFailed,
	}
	text, _ := json.Marshal(structured)

	return ToolResult{
		StructuredContent: structured,
		Content:           []ContentItem{{Type: "text", Text: string(text)}},
		IsError:           true,
	}
}
