// Package interceptor is the two-phase gateway binding: verification
// happens in a request-phase invocation that forwards or
// short-circuits, and settlement happens in a separate response-phase
// invocation that receives the already-computed result. The two phases
// share one orchestrator (and thus one ledger) in the same process;
// the gateway's request id is the correlation bridging them.
package interceptor

import "encoding/json"

// RequestEvent is the gateway's request-phase invocation payload. Only
// the fields the protocol needs to read are modeled; everything else
// passes through untouched.
type RequestEvent struct {
	RequestID string            `json:"requestId"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
}

// RequestOutcome is what the request phase hands back to the gateway:
// either the unmodified pass-through or a short-circuit response.
type RequestOutcome struct {
	// Forward means the gateway should invoke the wrapped handler with
	// the original, unmodified event.
	Forward bool `json:"forward"`

	// ShortCircuit is the response to return without touching the
	// wrapped handler. Set only when Forward is false.
	ShortCircuit *Response `json:"shortCircuit,omitempty"`
}

// ResponseEvent is the gateway's response-phase invocation payload: the
// already-computed handler result for a previously verified request.
type ResponseEvent struct {
	RequestID  string          `json:"requestId"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Response is a minimal HTTP-shaped response for short-circuits.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
}
