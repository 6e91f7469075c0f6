// Package llmclient talks to the model providers. It exposes batch
// embeddings and single-turn completions behind one interface, with typed
// errors so callers can tell a bad credential from a transient throttle.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the provider answers 2xx but the payload
// carries no usable content.
var ErrEmptyResponse = errors.New("empty response from model")

// Client is a model-provider backend.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Complete sends a single-turn prompt and returns the model's text.
	Complete(ctx context.Context, prompt string) (string, error)

	Name() string

	// EmbedModel is the embedding model identifier, used to key the
	// embedding cache: different models embed into different spaces.
	EmbedModel() string

	Close() error
}

// New creates a client for the named provider ("openai" or "gemini").
// Empty model names fall back to per-provider defaults.
func New(ctx context.Context, provider, apiKey, embedModel, completeModel string, rps int) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai":
		return NewOpenAIClient(apiKey, embedModel, completeModel, rps), nil
	case "gemini":
		return NewGeminiClient(ctx, apiKey, embedModel, completeModel, rps)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
