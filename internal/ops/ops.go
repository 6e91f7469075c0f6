// Package ops implements the operations behind every control surface. The
// CLI, the MCP tools, and the web dashboard all route through this package:
// each operation takes the shared Env plus a typed input struct and returns
// a typed output struct, so a surface only marshals and unmarshals.
package ops

import (
	"context"

	"snipsense/internal/agent"
	"snipsense/internal/analysis"
	"snipsense/internal/config"
	"snipsense/internal/promptlog"
	"snipsense/internal/secret"
	"snipsense/internal/stats"
)

// Listing limits.
const (
	DefaultEntriesLimit     = 50
	MaxEntriesLimit         = 500
	DefaultRunsLimit        = 20
	MaxRunsLimit            = 100
	DefaultSuggestionsLimit = 50
	MaxSuggestionsLimit     = 200

	// MaxManualPromptRunes bounds a manually injected prompt.
	MaxManualPromptRunes = 10000
)

// RunnerFunc executes one analysis pipeline run.
type RunnerFunc func(ctx context.Context) (*analysis.Result, error)

// AgentStatus exposes the live controller state to the Status operation.
// One-shot CLI invocations have no live agent and leave Env.Agent nil.
type AgentStatus interface {
	Snapshot() agent.Snapshot
}

// Env carries the dependencies an operation may need. Log, Secrets, and Cfg
// are always set; Stats may be nil when the stats database has not been
// created yet, Run may be nil when no credential is configured.
type Env struct {
	Cfg     *config.Config
	DataDir string
	Log     *promptlog.Store
	Stats   *stats.Store
	Secrets secret.Store

	// Run executes the analysis pipeline. Wired by the caller so the ops
	// layer stays free of client construction.
	Run RunnerFunc

	// Agent, when the process hosts a live controller, contributes its
	// state to Status output.
	Agent AgentStatus
}

// clampLimit applies the default-and-cap rule every listing operation uses.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
