package mcp

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SDKToolHandler adapts a wrapped ToolHandler to the official Go MCP
// SDK (github.com/modelcontextprotocol/go-sdk/mcp) server handler
// shape, for registration with Server.AddTool.
//
// Example:
//
//	wrap, _ := mcp.PaymentWrapper(config, facilitator)
//	server.AddTool(&mcpsdk.Tool{Name: "weather"}, mcp.SDKToolHandler("weather", wrap(weatherHandler)))
func SDKToolHandler(toolName string, handler ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		// Arguments arrive as raw bytes from the wire.
		args := map[string]interface{}{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, err
			}
		}

		meta := map[string]interface{}{}
		if req.Params != nil && req.Params.Meta != nil {
			for k, v := range req.Params.Meta {
				meta[k] = v
			}
		}

		result, err := handler(ctx, args, ToolContext{ToolName: toolName, Meta: meta})
		if err != nil {
			return nil, err
		}

		return toSDKResult(result), nil
	}
}

func toSDKResult(result ToolResult) *mcpsdk.CallToolResult {
	out := &mcpsdk.CallToolResult{
		IsError: result.IsError,
	}

	for _, item := range result.Content {
		out.Content = append(out.Content, &mcpsdk.TextContent{Text: item.Text})
	}

	if result.StructuredContent != nil {
		out.StructuredContent = result.StructuredContent
	}

	// Meta carries the settlement receipt back to the client.
	if len(result.Meta) > 0 {
		out.Meta = mcpsdk.Meta(result.Meta)
	}

	return out
}
