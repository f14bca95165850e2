// Package genai provides GenAI-enhanced operations using OpenAI API.

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ostlive/bookingpipe/internal/models"
)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model used for extraction.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK service to chatService.
type openAIChatService struct {
	svc openai.ChatCompletionService
}

func (s *openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI chat completion service for contact extraction.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a new GenAI client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client created", "model", cfg.Model)
	return &Client{chat: &openAIChatService{svc: cli.Chat.Completions}, model: cfg.Model}, nil
}

const extractSystemPrompt = `You extract contact details from a chat message.
Respond with ONLY a JSON object with the keys firstName, lastName, email and
phoneNumber. Use an empty string for any field the message does not contain.
Normalize phone numbers to digits only. Do not invent values.`

// ExtractContactInfo asks the model to pull contact fields out of one user
// message and merges the result into existing. Fields already present in
// existing are never overwritten.
func (c *Client) ExtractContactInfo(ctx context.Context, input string, existing models.ClientInfo) (models.ClientInfo, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractSystemPrompt),
			openai.UserMessage(input),
		},
	})
	if err != nil {
		return existing, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return existing, fmt.Errorf("no choices returned")
	}

	var found models.ClientInfo
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &found); err != nil {
		return existing, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	// Never let the model replace what the user already gave us.
	merged := found.Merge(existing)
	slog.Debug("GenAI ExtractContactInfo completed", "foundEmail", found.Email != "", "foundPhone", found.PhoneNumber != "")
	return merged, nil
}
