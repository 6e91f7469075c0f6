package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"snipsense/internal/config"
	"snipsense/internal/ops"
)

// Tool definitions.

var statusToolDef = mcp.NewTool("snip_status",
	mcp.WithDescription("Report the agent's state: credential, prompt log size, archives, and the most recent analysis run."),
)

var logToolDef = mcp.NewTool("snip_log",
	mcp.WithDescription("Inject a prompt into the log by hand. Manual entries flow through the same analysis pipeline as captured ones."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The prompt text to log."),
	),
	mcp.WithString("window_title",
		mcp.Description("Optional window title to record as capture context."),
	),
)

var analyzeToolDef = mcp.NewTool("snip_analyze",
	mcp.WithDescription("Run the analysis pipeline now: embed the logged prompts, cluster them, and synthesize shortcut suggestions."),
)

var suggestionsToolDef = mcp.NewTool("snip_suggestions",
	mcp.WithDescription("List synthesized shortcut suggestions, newest first."),
	mcp.WithString("run_id",
		mcp.Description("Restrict to one analysis run."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum suggestions to return."),
	),
)

var runsToolDef = mcp.NewTool("snip_runs",
	mcp.WithDescription("List recorded analysis runs, or fetch one run with its suggestions."),
	mcp.WithString("id",
		mcp.Description("Fetch this run instead of listing."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum runs to return when listing."),
	),
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"snip_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"snip_log": {
		def:     logToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLog },
	},
	"snip_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"snip_suggestions": {
		def:     suggestionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestions },
	},
	"snip_runs": {
		def:     runsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuns },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the snip tools registered. Tools
// listed in cfg.DisabledTools are excluded from registration.
func NewServer(env *ops.Env, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"snipsense",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, cfg *config.Config, version string) error {
	s := NewServer(env, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
