package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 30 * time.Second

	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024
)

// Config holds settings for the OpenAI-compatible client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // optional override for compatible endpoints
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient implements Client against an OpenAI-compatible chat
// completion endpoint using a bearer credential.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	max     int
	temp    float32
	timeout time.Duration
}

// NewOpenAIClient creates a client. Fails with ErrNoCredential when no
// API key is configured so a misconfigured deployment fails loudly at
// startup instead of degrading per request.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoCredential
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	max := cfg.MaxTokens
	if max <= 0 {
		max = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		max:     max,
		temp:    float32(cfg.Temperature),
		timeout: timeout,
	}, nil
}

// Send performs one generation request: system instruction, then
// history, then the user message.
func (c *OpenAIClient) Send(ctx context.Context, system, user string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.max,
		Temperature: c.temp,
	})
	if err != nil {
		return "", mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &EmptyResponseError{}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &EmptyResponseError{}
	}

	return content, nil
}

// mapError translates SDK and transport failures into the package's
// typed errors. Response bodies are logged without the credential.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		slog.Warn("llm endpoint rejected request",
			"status", apiErr.HTTPStatusCode,
			"type", apiErr.Type,
			"message", apiErr.Message,
		)
		return &UpstreamError{Status: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		slog.Warn("llm endpoint returned non-success status", "status", reqErr.HTTPStatusCode)
		return &UpstreamError{Status: reqErr.HTTPStatusCode, Err: err}
	}

	// Timeouts are treated identically to network failures.
	return &TransportError{Err: err}
}
