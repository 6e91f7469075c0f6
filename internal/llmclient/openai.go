package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIClient calls the OpenAI embeddings and chat completions APIs.
// See: https://platform.openai.com/docs/api-reference
type OpenAIClient struct {
	http          *http.Client
	apiKey        string
	embedModel    string
	completeModel string
	baseURL       string
	limiter       *rpsLimiter
}

// NewOpenAIClient creates an OpenAI client. Empty model names fall back to
// text-embedding-3-small and gpt-4o-mini.
func NewOpenAIClient(apiKey, embedModel, completeModel string, rps int) *OpenAIClient {
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	if completeModel == "" {
		completeModel = "gpt-4o-mini"
	}
	return &OpenAIClient{
		http:          &http.Client{Timeout: 60 * time.Second},
		apiKey:        apiKey,
		embedModel:    embedModel,
		completeModel: completeModel,
		baseURL:       "https://api.openai.com/v1",
		limiter:       newRPSLimiter(rps),
	}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.completeModel }

func (c *OpenAIClient) EmbedModel() string { return c.embedModel }

func (c *OpenAIClient) Close() error {
	c.limiter.Stop()
	return nil
}

type openaiEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}
type openaiEmbedResp struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds the whole batch in one request and returns vectors in input
// order, placing each by the index the API reports.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "/embeddings", openaiEmbedReq{Model: c.embedModel, Input: texts})
	if err != nil {
		return nil, err
	}

	var out openaiEmbedResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("openai: decode embeddings: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d texts", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai: empty embedding at index %d", i)
		}
	}
	return vectors, nil
}

type openaiChatReq struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
}
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type openaiChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a single user message and returns the model's text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	reqBody := openaiChatReq{
		Model:       c.completeModel,
		Messages:    []openaiMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}
	body, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var out openaiChatResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openai: decode completion: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

// post sends a JSON request and returns the raw response body, mapping any
// non-2xx status to a typed error.
func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTP("openai", resp, body)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}
