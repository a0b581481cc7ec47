package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SocialPoster/internal/ports"
)

// DefaultOpenAIEndpoint is the chat completions URL used when none is configured.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// OpenAIClient implements ports.CompletionClient over an OpenAI-compatible API.
type OpenAIClient struct {
	endpoint    string
	apiKey      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

var _ ports.CompletionClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAIClient{
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system + user exchange to model and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if c.apiKey == "" {
		return "", &ports.CompletionError{Kind: ports.KindAuth, Model: model, Err: errors.New("api key not configured")}
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ports.CompletionError{Kind: ports.KindTransport, Model: model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &ports.CompletionError{
			Kind:   ports.KindForStatus(resp.StatusCode),
			Model:  model,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &ports.CompletionError{Kind: ports.KindTransport, Model: model, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 {
		return "", &ports.CompletionError{Kind: ports.KindServer, Model: model, Status: resp.StatusCode, Err: errors.New("no choices in response")}
	}
	return decoded.Choices[0].Message.Content, nil
}
