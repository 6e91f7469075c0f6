package ops

import (
	"snipsense/internal/errors"
)

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	// Confirm must be set: clearing discards unanalyzed prompts.
	Confirm bool
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Cleared int    `json:"cleared"`
	Message string `json:"message"`
}

// Clear deletes the live prompt log. Archives and recorded runs survive.
func Clear(env *Env, input ClearInput) (*ClearOutput, error) {
	if !input.Confirm {
		return nil, errors.NewInvalidRequest("clearing the prompt log requires confirmation")
	}

	count, err := env.Log.Count()
	if err != nil {
		return nil, err
	}
	if err := env.Log.Clear(); err != nil {
		return nil, err
	}

	message := "Prompt log was already empty"
	if count > 0 {
		message = "Prompt log cleared"
	}
	return &ClearOutput{Cleared: count, Message: message}, nil
}
