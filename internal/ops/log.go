package ops

import (
	"strings"
	"time"
	"unicode/utf8"

	"snipsense/internal/errors"
	"snipsense/internal/promptlog"
)

// LogInput contains parameters for the Log operation.
type LogInput struct {
	Text        string // required
	WindowTitle string // optional context annotation
}

// LogOutput contains the result of the Log operation.
type LogOutput struct {
	EntryCount int    `json:"entry_count"`
	Message    string `json:"message"`
}

// Log injects a prompt into the log by hand, bypassing capture. Manual
// entries flow through the same analysis pipeline as captured ones.
func Log(env *Env, input LogInput) (*LogOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewInvalidRequest("text must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxManualPromptRunes {
		return nil, errors.NewInvalidRequest("text exceeds the maximum prompt length")
	}

	err := env.Log.Append(promptlog.Entry{
		Timestamp:   time.Now().UTC(),
		Text:        text,
		Source:      promptlog.SourceManual,
		WindowTitle: strings.TrimSpace(input.WindowTitle),
	})
	if err != nil {
		return nil, err
	}

	count, err := env.Log.Count()
	if err != nil {
		return nil, err
	}
	return &LogOutput{
		EntryCount: count,
		Message:    "Prompt logged",
	}, nil
}
