// Package mcp is the MCP tool paywall binding. PaymentWrapper wraps a
// tool handler with the verify/execute/settle lifecycle; the token
// rides the call's _meta, and the settlement receipt is reflected back
// into the result's _meta. SDKToolHandler adapts a wrapped handler to
// the official MCP Go SDK.
package mcp

import (
	payments "github.com/nevermined-io/payments-go"
)

// Protocol constants for MCP payment integration.
const (
	// PaymentTokenMetaKey is the _meta key carrying the bearer token
	// (client to server).
	PaymentTokenMetaKey = "payments/token"

	// PaymentReceiptMetaKey is the _meta key carrying the settlement
	// result (server to client).
	PaymentReceiptMetaKey = "payments/receipt"

	// CreditsUsedMetaKey is the _meta key a tool result may use to
	// report its actual credits consumption.
	CreditsUsedMetaKey = "payments/creditsUsed"
)

// ToolContext provides call context during tool execution.
type ToolContext struct {
	ToolName string
	Meta     map[string]interface{}
}

// ContentItem is one piece of tool result content.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the transport-neutral shape of a tool call outcome.
type ToolResult struct {
	Content           []ContentItem          `json:"content,omitempty"`
	StructuredContent map[string]interface{} `json:"structuredContent,omitempty"`
	Meta              map[string]interface{} `json:"_meta,omitempty"`
	IsError           bool                   `json:"isError,omitempty"`
}

// WrapperConfig configures a payment wrapper.
type WrapperConfig struct {
	// Requirement is the static payment configuration for the wrapped
	// tools.
	Requirement payments.RequirementConfig

	// Credits is the per-call charge policy. Defaults to one credit.
	Credits *payments.CreditsPolicy

	// SettlementPolicy selects what a settle failure does to the tool
	// result. Defaults to ignore.
	SettlementPolicy payments.SettlementPolicy
}
