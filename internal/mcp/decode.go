package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode maps a tool call's loosely-typed argument map onto the request
// struct of one snipsense tool. Round-tripping through JSON applies the
// struct's field tags and type checks without manual assertions; a wrong
// argument type surfaces as a decode error, not a panic.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("encode tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode tool arguments: %w", err)
	}
	return out, nil
}
