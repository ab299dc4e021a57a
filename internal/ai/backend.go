package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Backend generates text for a single instruction prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for compatible gateways
	Timeout time.Duration

	HTTPClient *http.Client
}

// OpenAIBackend calls the chat completions endpoint with a single user message.
// SDK retries are disabled; callers decide whether to retry.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBackend{client: openai.NewClient(opts...), model: cfg.Model}
}

func (b *OpenAIBackend) Model() string { return b.model }

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", upstreamError(err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("backend returned no choices")
	}
	return res.Choices[0].Message.Content, nil
}

// HealthPing implements health.HealthPinger by looking up the configured model.
func (b *OpenAIBackend) HealthPing(ctx context.Context) error {
	if _, err := b.client.Models.Get(ctx, b.model); err != nil {
		return upstreamError(err)
	}
	return nil
}

// upstreamError keeps the backend's own message, which callers surface verbatim.
func upstreamError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("ai backend error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("ai backend error (status %d)", apiErr.StatusCode)
	}
	return err
}
