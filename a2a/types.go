// Package a2a is the synchronous HTTP/JSON-RPC task protocol binding.
// It translates JSON-RPC requests into orchestrator drive modes:
// message/send runs blocking or non-blocking per request
// configuration, message/stream forwards lifecycle events over SSE,
// and tasks/get and tasks/cancel poll and cancel in-flight work.
package a2a

import (
	"encoding/json"

	payments "github.com/nevermined-io/payments-go"
)

// JSON-RPC methods handled by the server.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksCancel   = "tasks/cancel"
)

// JSON-RPC error codes.
const (
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeUnauthenticated = 401
	CodePaymentRequired = 402
)

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MessageSendParams are the params of message/send and message/stream.
type MessageSendParams struct {
	Message       Message            `json:"message"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
}

// Message is the work input plus its transient correlation id.
type Message struct {
	MessageID string          `json:"messageId"`
	PlanID    string          `json:"planId,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// SendConfiguration tunes one send request.
type SendConfiguration struct {
	// Blocking selects the blocking drive mode. Defaults to true for
	// message/send.
	Blocking *bool `json:"blocking,omitempty"`

	// Webhook receives the terminal state, mainly useful with
	// non-blocking sends.
	Webhook *payments.WebhookConfig `json:"webhook,omitempty"`
}

// TaskIDParams are the params of tasks/get and tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// TaskStatus is the wire shape of a task outcome.
type TaskStatus struct {
	ID         string                     `json:"id"`
	State      string                     `json:"state"`
	Payload    json.RawMessage            `json:"payload,omitempty"`
	Error      string                     `json:"error,omitempty"`
	Settlement *payments.SettlementResult `json:"settlement,omitempty"`
}
