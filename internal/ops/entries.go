package ops

import (
	"snipsense/internal/promptlog"
)

// EntriesInput contains parameters for the Entries operation.
type EntriesInput struct {
	Limit  int    // default DefaultEntriesLimit, capped at MaxEntriesLimit
	Source string // optional filter: capture, manual, or sample
}

// EntriesOutput contains the result of the Entries operation.
type EntriesOutput struct {
	Entries []promptlog.Entry `json:"entries"`
	Total   int               `json:"total"`
}

// Entries lists the live prompt log, newest last. Total counts the whole
// log after the source filter, before the limit.
func Entries(env *Env, input EntriesInput) (*EntriesOutput, error) {
	all, err := env.Log.Entries()
	if err != nil {
		return nil, err
	}

	if input.Source != "" {
		filtered := all[:0:0]
		for _, e := range all {
			if e.Source == input.Source {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}

	limit := clampLimit(input.Limit, DefaultEntriesLimit, MaxEntriesLimit)
	total := len(all)
	if total > limit {
		all = all[total-limit:]
	}

	return &EntriesOutput{Entries: all, Total: total}, nil
}
