package ops

import (
	"strings"

	"snipsense/internal/errors"
	"snipsense/internal/stats"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Limit int // default DefaultRunsLimit, capped at MaxRunsLimit
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Runs  []stats.Run `json:"runs"`
	Total int         `json:"total"`
}

// Runs lists recorded analysis runs, newest first.
func Runs(env *Env, input RunsInput) (*RunsOutput, error) {
	if env.Stats == nil {
		return &RunsOutput{}, nil
	}

	limit := clampLimit(input.Limit, DefaultRunsLimit, MaxRunsLimit)
	runs, err := env.Stats.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	total, err := env.Stats.CountRuns()
	if err != nil {
		return nil, err
	}
	return &RunsOutput{Runs: runs, Total: total}, nil
}

// RunInput contains parameters for the Run operation.
type RunInput struct {
	ID string // required
}

// RunOutput contains one run and its suggestions.
type RunOutput struct {
	Run         stats.Run          `json:"run"`
	Suggestions []stats.Suggestion `json:"suggestions"`
}

// Run fetches one analysis run with its suggestions.
func Run(env *Env, input RunInput) (*RunOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id must not be empty")
	}
	if env.Stats == nil {
		return nil, errors.NewNotFound("run", id)
	}

	run, err := env.Stats.GetRun(id)
	if err != nil {
		return nil, err
	}

	suggestions, err := env.Stats.ListSuggestions(id, MaxSuggestionsLimit)
	if err != nil {
		return nil, err
	}
	return &RunOutput{Run: *run, Suggestions: suggestions}, nil
}
