package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"snipsense/internal/errors"
	"snipsense/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// LogRequest represents the arguments for snip_log.
type LogRequest struct {
	Text        string `json:"text"`
	WindowTitle string `json:"window_title,omitempty"`
}

// SuggestionsRequest represents the arguments for snip_suggestions.
type SuggestionsRequest struct {
	RunID string `json:"run_id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// RunsRequest represents the arguments for snip_runs.
type RunsRequest struct {
	ID    string `json:"id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Handler implementations

// HandleStatus handles the snip_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(h.env, ops.StatusInput{})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLog handles the snip_log tool call.
func (h *Handlers) HandleLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Log(h.env, ops.LogInput{
		Text:        input.Text,
		WindowTitle: input.WindowTitle,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAnalyze handles the snip_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Analyze(ctx, h.env, ops.AnalyzeInput{})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSuggestions handles the snip_suggestions tool call.
func (h *Handlers) HandleSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Suggestions(h.env, ops.SuggestionsInput{
		RunID: input.RunID,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRuns handles the snip_runs tool call. With an id it fetches one run
// and its suggestions; otherwise it lists runs.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.ID != "" {
		result, err := ops.Run(h.env, ops.RunInput{ID: input.ID})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.Runs(h.env, ops.RunsInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if agentErr, ok := err.(*errors.AgentError); ok {
		errorObj := map[string]any{
			"code":    agentErr.Code,
			"message": agentErr.Message,
			"status":  agentErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if agentErr.Code != errors.ErrInternal && agentErr.Details != nil {
			errorObj["details"] = agentErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
