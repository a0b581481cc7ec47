package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"SocialPoster/internal/ports"
)

// AnthropicConfig configures the llmkit-backed Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	MaxTokens   int
	Temperature float64
}

type promptFunc func(systemPrompt, userPrompt, schema, apiKey string, settings types.RequestSettings) (string, error)

// AnthropicClient implements ports.CompletionClient with llmkit.
type AnthropicClient struct {
	apiKey      string
	maxTokens   int
	temperature float64
	prompt      promptFunc
}

var _ ports.CompletionClient = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		prompt:      llmkitPrompt,
	}
}

func llmkitPrompt(systemPrompt, userPrompt, schema, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return response.Content[0].Text, nil
}

type promptResult struct {
	text string
	err  error
}

// Complete runs the prompt on model. llmkit calls are not cancellable, so
// ctx only bounds how long the caller waits.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt, model string) (string, error) {
	if c.apiKey == "" {
		return "", &ports.CompletionError{Kind: ports.KindAuth, Model: model, Err: errors.New("api key not configured")}
	}

	settings := types.RequestSettings{
		Model:       model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	done := make(chan promptResult, 1)
	go func() {
		text, err := c.prompt(systemPrompt, userPrompt, "", c.apiKey, settings)
		done <- promptResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &ports.CompletionError{Kind: ports.KindTransport, Model: model, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return "", &ports.CompletionError{Kind: classifyMessage(res.err.Error()), Model: model, Err: fmt.Errorf("anthropic prompt: %w", res.err)}
		}
		return res.text, nil
	}
}

// classifyMessage maps llmkit error text to a completion error kind.
func classifyMessage(msg string) ports.CompletionErrorKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit"):
		return ports.KindRateLimit
	case strings.Contains(msg, "404") || strings.Contains(msg, "not_found"):
		return ports.KindNotFound
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "authentication") || strings.Contains(msg, "permission"):
		return ports.KindAuth
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid_request"):
		return ports.KindBadRequest
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "529") || strings.Contains(msg, "500") || strings.Contains(msg, "api_error"):
		return ports.KindServer
	default:
		return ports.KindTransport
	}
}
