package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli           *genai.Client
	embedModel    string
	completeModel string
	limiter       *rpsLimiter
}

// NewGeminiClient creates a Gemini client. Empty model names fall back to
// gemini-embedding-001 and gemini-2.5-flash.
func NewGeminiClient(ctx context.Context, apiKey, embedModel, completeModel string, rps int) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if embedModel == "" {
		embedModel = "gemini-embedding-001"
	}
	if completeModel == "" {
		completeModel = "gemini-2.5-flash"
	}
	return &GeminiClient{
		cli:           cli,
		embedModel:    embedModel,
		completeModel: completeModel,
		limiter:       newRPSLimiter(rps),
	}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.completeModel }

func (g *GeminiClient) EmbedModel() string { return g.embedModel }

func (g *GeminiClient) Close() error {
	g.limiter.Stop()
	return nil
}

// Embed embeds the whole batch in one request and returns vectors in input
// order.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := g.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: t}}})
	}

	resp, err := g.cli.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, classifyGemini(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini: empty embedding at index %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Complete sends a single-turn prompt and returns the model's text.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.completeModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}, nil)
	if err != nil {
		return "", classifyGemini(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// classifyGemini maps genai SDK errors to the typed error classes. Gemini
// reports both throttling and exhausted quota as 429; the message is the only
// way to tell them apart.
func classifyGemini(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == 401 || apiErr.Code == 403:
		return &AuthError{Err: err}
	case apiErr.Code == 429 && strings.Contains(strings.ToLower(apiErr.Message), "quota"):
		return &QuotaError{Err: err}
	case apiErr.Code == 429:
		return &RateLimitError{Err: err}
	default:
		return &APIError{StatusCode: apiErr.Code, Err: err}
	}
}
