package ops

import (
	"strings"

	"snipsense/internal/stats"
)

// SuggestionsInput contains parameters for the Suggestions operation.
type SuggestionsInput struct {
	RunID string // optional: restrict to one run
	Limit int    // default DefaultSuggestionsLimit, capped at MaxSuggestionsLimit
}

// SuggestionsOutput contains the result of the Suggestions operation.
type SuggestionsOutput struct {
	Suggestions []stats.Suggestion `json:"suggestions"`
}

// Suggestions lists persisted suggestions, newest first, across all runs or
// for one run. No runs yet is an empty list, not an error.
func Suggestions(env *Env, input SuggestionsInput) (*SuggestionsOutput, error) {
	if env.Stats == nil {
		return &SuggestionsOutput{}, nil
	}

	limit := clampLimit(input.Limit, DefaultSuggestionsLimit, MaxSuggestionsLimit)
	suggestions, err := env.Stats.ListSuggestions(strings.TrimSpace(input.RunID), limit)
	if err != nil {
		return nil, err
	}
	return &SuggestionsOutput{Suggestions: suggestions}, nil
}
