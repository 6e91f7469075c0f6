package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// TargetProcess is the display name of the application whose prompts are
	// captured. Matching is case-insensitive against running process names.
	TargetProcess string `json:"target_process"`

	// ProcessPollSeconds is the interval of the slow poll that checks whether
	// the target process is running at all.
	ProcessPollSeconds int `json:"process_poll_seconds"`

	// WindowPollSeconds is the interval of the fast poll that checks whether
	// the target window is focused. Only active while the process is running.
	WindowPollSeconds int `json:"window_poll_seconds"`

	// IdleFlushSeconds is how long typing must pause before the text buffer
	// is flushed and evaluated as a candidate prompt.
	IdleFlushSeconds int `json:"idle_flush_seconds"`

	// MinPromptChars is the minimum character count for a flushed buffer to
	// be considered a prompt at all.
	MinPromptChars int `json:"min_prompt_chars"`

	// MinDistinctRunes is the minimum number of distinct characters required,
	// which filters out key-repeat noise like "aaaaaaaaaa".
	MinDistinctRunes int `json:"min_distinct_runes"`

	// MinEntriesForAnalysis gates scheduled analysis: runs are skipped until
	// the prompt log holds at least this many entries.
	MinEntriesForAnalysis int `json:"min_entries_for_analysis"`

	// AnalysisIntervalMinutes is the period of the recurring analysis timer.
	AnalysisIntervalMinutes int `json:"analysis_interval_minutes"`

	// ErrorRetrySeconds is how long the controller waits in the error state
	// before attempting recovery.
	ErrorRetrySeconds int `json:"error_retry_seconds"`

	// PermissionPollSeconds is the interval at which the controller re-checks
	// OS input-monitoring permission while it is missing.
	PermissionPollSeconds int `json:"permission_poll_seconds"`

	// Provider selects the model backend: "openai" or "gemini".
	Provider string `json:"provider"`

	// EmbedModel overrides the provider's default embedding model.
	EmbedModel string `json:"embed_model,omitempty"`

	// CompleteModel overrides the provider's default completion model.
	CompleteModel string `json:"complete_model,omitempty"`

	// RequestsPerSecond caps outbound model API calls.
	RequestsPerSecond int `json:"requests_per_second,omitempty"`

	// EmbedBatchSize is how many texts are embedded per API request.
	EmbedBatchSize int `json:"embed_batch_size"`

	// BatchDelayMillis is the pause between consecutive embedding batches.
	BatchDelayMillis int `json:"batch_delay_millis"`

	// SimilarityThreshold is the minimum cosine similarity for an entry to
	// join an existing cluster.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// MinClusterSize is the minimum member count for a cluster to be
	// forwarded to synthesis.
	MinClusterSize int `json:"min_cluster_size"`

	// MaxClusters caps how many clusters are synthesized per run, largest
	// first.
	MaxClusters int `json:"max_clusters"`

	// TriggerPrefix is the symbol prepended to every generated trigger,
	// e.g. "-" yields triggers like "-explaincode".
	TriggerPrefix string `json:"trigger_prefix"`

	// ArchiveKeep is how many prompt-log archives are retained by pruning.
	ArchiveKeep int `json:"archive_keep"`

	// WindowProbeCommand is the argv of an external command that reports
	// whether the target window is focused: first output line "1" or "0",
	// optional second line the window title. The target process name is
	// appended as the final argument. Empty means focus follows process
	// presence (degraded).
	WindowProbeCommand []string `json:"window_probe_command,omitempty"`

	// PermissionProbeCommand is the argv of an external command whose exit
	// status reports whether input-monitoring permission is granted (exit 0
	// means granted). Empty means permission is assumed granted.
	PermissionProbeCommand []string `json:"permission_probe_command,omitempty"`

	// PermissionRequestCommand is the argv run to open the OS settings pane
	// when permission is missing. Optional.
	PermissionRequestCommand []string `json:"permission_request_command,omitempty"`

	// CaptureSocket is the unix socket the native input-capture shim writes
	// key events to. Empty, or a socket nobody listens on, selects the
	// sampler fallback.
	CaptureSocket string `json:"capture_socket,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TargetProcess:           "Claude",
		ProcessPollSeconds:      10,
		WindowPollSeconds:       1,
		IdleFlushSeconds:        3,
		MinPromptChars:          10,
		MinDistinctRunes:        4,
		MinEntriesForAnalysis:   5,
		AnalysisIntervalMinutes: 60,
		ErrorRetrySeconds:       30,
		PermissionPollSeconds:   2,
		Provider:                "openai",
		RequestsPerSecond:       2,
		EmbedBatchSize:          100,
		BatchDelayMillis:        1000,
		SimilarityThreshold:     0.7,
		MinClusterSize:          2,
		MaxClusters:             10,
		TriggerPrefix:           "-",
		ArchiveKeep:             10,
	}
}

// Load loads configuration from baseDir/config.json, after sourcing
// baseDir/.env into the environment. Environment variables override file
// values; file values override defaults. Returns defaults if neither exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.snipsense.
func Load(baseDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(baseDir, ".env"))

	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(cfg, envOverlay()), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// envOverlay builds a config overlay from SNIPSENSE_* environment variables.
// Only string settings can be overridden this way; numeric tuning lives in
// config.json.
func envOverlay() *Config {
	return &Config{
		TargetProcess: os.Getenv("SNIPSENSE_TARGET_PROCESS"),
		Provider:      os.Getenv("SNIPSENSE_PROVIDER"),
		EmbedModel:    os.Getenv("SNIPSENSE_EMBED_MODEL"),
		CompleteModel: os.Getenv("SNIPSENSE_COMPLETE_MODEL"),
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.TargetProcess = overlay.TargetProcess
	if result.TargetProcess == "" {
		result.TargetProcess = base.TargetProcess
	}

	result.ProcessPollSeconds = overlay.ProcessPollSeconds
	if result.ProcessPollSeconds == 0 {
		result.ProcessPollSeconds = base.ProcessPollSeconds
	}

	result.WindowPollSeconds = overlay.WindowPollSeconds
	if result.WindowPollSeconds == 0 {
		result.WindowPollSeconds = base.WindowPollSeconds
	}

	result.IdleFlushSeconds = overlay.IdleFlushSeconds
	if result.IdleFlushSeconds == 0 {
		result.IdleFlushSeconds = base.IdleFlushSeconds
	}

	result.MinPromptChars = overlay.MinPromptChars
	if result.MinPromptChars == 0 {
		result.MinPromptChars = base.MinPromptChars
	}

	result.MinDistinctRunes = overlay.MinDistinctRunes
	if result.MinDistinctRunes == 0 {
		result.MinDistinctRunes = base.MinDistinctRunes
	}

	result.MinEntriesForAnalysis = overlay.MinEntriesForAnalysis
	if result.MinEntriesForAnalysis == 0 {
		result.MinEntriesForAnalysis = base.MinEntriesForAnalysis
	}

	result.AnalysisIntervalMinutes = overlay.AnalysisIntervalMinutes
	if result.AnalysisIntervalMinutes == 0 {
		result.AnalysisIntervalMinutes = base.AnalysisIntervalMinutes
	}

	result.ErrorRetrySeconds = overlay.ErrorRetrySeconds
	if result.ErrorRetrySeconds == 0 {
		result.ErrorRetrySeconds = base.ErrorRetrySeconds
	}

	result.PermissionPollSeconds = overlay.PermissionPollSeconds
	if result.PermissionPollSeconds == 0 {
		result.PermissionPollSeconds = base.PermissionPollSeconds
	}

	result.Provider = overlay.Provider
	if result.Provider == "" {
		result.Provider = base.Provider
	}

	result.EmbedModel = overlay.EmbedModel
	if result.EmbedModel == "" {
		result.EmbedModel = base.EmbedModel
	}

	result.CompleteModel = overlay.CompleteModel
	if result.CompleteModel == "" {
		result.CompleteModel = base.CompleteModel
	}

	result.RequestsPerSecond = overlay.RequestsPerSecond
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = base.RequestsPerSecond
	}

	result.EmbedBatchSize = overlay.EmbedBatchSize
	if result.EmbedBatchSize == 0 {
		result.EmbedBatchSize = base.EmbedBatchSize
	}

	result.BatchDelayMillis = overlay.BatchDelayMillis
	if result.BatchDelayMillis == 0 {
		result.BatchDelayMillis = base.BatchDelayMillis
	}

	result.SimilarityThreshold = overlay.SimilarityThreshold
	if result.SimilarityThreshold == 0 {
		result.SimilarityThreshold = base.SimilarityThreshold
	}

	result.MinClusterSize = overlay.MinClusterSize
	if result.MinClusterSize == 0 {
		result.MinClusterSize = base.MinClusterSize
	}

	result.MaxClusters = overlay.MaxClusters
	if result.MaxClusters == 0 {
		result.MaxClusters = base.MaxClusters
	}

	result.TriggerPrefix = overlay.TriggerPrefix
	if result.TriggerPrefix == "" {
		result.TriggerPrefix = base.TriggerPrefix
	}

	result.ArchiveKeep = overlay.ArchiveKeep
	if result.ArchiveKeep == 0 {
		result.ArchiveKeep = base.ArchiveKeep
	}

	// Argv-style settings: overlay replaces wholesale, no merging
	result.WindowProbeCommand = overlay.WindowProbeCommand
	if len(result.WindowProbeCommand) == 0 {
		result.WindowProbeCommand = base.WindowProbeCommand
	}

	result.PermissionProbeCommand = overlay.PermissionProbeCommand
	if len(result.PermissionProbeCommand) == 0 {
		result.PermissionProbeCommand = base.PermissionProbeCommand
	}

	result.PermissionRequestCommand = overlay.PermissionRequestCommand
	if len(result.PermissionRequestCommand) == 0 {
		result.PermissionRequestCommand = base.PermissionRequestCommand
	}

	result.CaptureSocket = overlay.CaptureSocket
	if result.CaptureSocket == "" {
		result.CaptureSocket = base.CaptureSocket
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
