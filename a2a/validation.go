package a2a

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// rpcRequestSchema validates the JSON-RPC envelope before any method
// dispatch. Params are validated per method after dispatch.
const rpcRequestSchema = `{
	"type": "object",
	"required": ["jsonrpc", "method"],
	"properties": {
		"jsonrpc": {"const": "2.0"},
		"method": {"type": "string", "minLength": 1},
		"id": {"type": ["string", "number", "null"]},
		"params": {"type": "object"}
	}
}`

var compiledRequestSchema = gojsonschema.NewStringLoader(rpcRequestSchema)

// validateRequest checks the raw body against the envelope schema and
// returns a human-readable reason on failure.
func validateRequest(body []byte) error {
	result, err := gojsonschema.Validate(compiledRequestSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("invalid request: %s", desc.String())
		}
	}
	return nil
}
