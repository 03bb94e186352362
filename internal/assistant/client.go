// Package assistant talks to the Anthropic Messages API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultBaseURL         = "https://api.anthropic.com"
	DefaultModel           = "claude-sonnet-4-20250514"
	DefaultTimeout         = 60 * time.Second
	DefaultChatMaxTokens   = 1024
	DefaultSearchMaxTokens = 2048
)

const (
	chatSystemPrompt = "You are a helpful assistant integrated into a task planning and productivity application. " +
		"Help users manage their tasks, calendar, reminders, and knowledge base effectively."
	searchSystemPrompt = "You are a search assistant. Analyze the provided data and return relevant results based on the user's query. " +
		"Be concise and highlight the most relevant information."
)

// ErrNoAPIKey is returned when the client has no API key.
var ErrNoAPIKey = errors.New("assistant: api key not configured")

// Config holds client settings. Zero values select the defaults.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	ChatMaxTokens   int
	SearchMaxTokens int
}

// Client is the assistant client
type Client struct {
	cfg    Config
	api    anthropic.Client
	logger *slog.Logger
}

// New creates a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChatMaxTokens <= 0 {
		cfg.ChatMaxTokens = DefaultChatMaxTokens
	}
	if cfg.SearchMaxTokens <= 0 {
		cfg.SearchMaxTokens = DefaultSearchMaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Failed calls surface to the caller as a dependency failure, so the
	// client does not retry on its own.
	api := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return &Client{cfg: cfg, api: api, logger: logger}
}

// Ask answers a chat message. A non-empty context is appended to the system prompt.
func (c *Client) Ask(ctx context.Context, prompt, chatContext string) (string, error) {
	system := chatSystemPrompt
	if chatContext != "" {
		system += "\n\nContext: " + chatContext
	}
	return c.send(ctx, "chat", system, prompt, c.cfg.ChatMaxTokens)
}

// Search asks the model to analyse data for query.
func (c *Client) Search(ctx context.Context, query, data string) (string, error) {
	content := fmt.Sprintf("Query: %s\n\nData to search:\n%s", query, data)
	return c.send(ctx, "search", searchSystemPrompt, content, c.cfg.SearchMaxTokens)
}

func (c *Client) send(ctx context.Context, persona, system, content string, maxTokens int) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})

	var status int
	var apiErr *anthropic.Error
	switch {
	case err == nil:
		status = http.StatusOK
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
	}
	c.logger.DebugContext(ctx, "assistant call finished",
		"persona", persona,
		"status", status,
		"duration", time.Since(start),
	)

	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", persona, err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%s response had no text content", persona)
}
