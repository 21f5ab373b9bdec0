// Package genai generates free chat replies through the OpenAI API. Replies
// are written in easy Japanese for foreign job seekers, grounded in the FAQ
// knowledge base and the site link for the user's language.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yolo-japan/lineassist/internal/models"
)

// ErrNoChoicesReturned indicates the API answered without any completion.
var ErrNoChoicesReturned = errors.New("no choices returned")

const (
	defaultModel       = openai.ChatModelGPT4oMini
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// chatService is the minimal completion surface, for test doubles.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

type sdkChat struct {
	client openai.Client
}

func (s sdkChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds client configuration.
type Opts struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the API key explicitly instead of reading OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient builds a client. The API key comes from the options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:       defaultModel,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:        sdkChat{client: cli},
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// GeneratePrompt runs a single system/user completion.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

// ReplyWithHistory answers the latest user turn given the stored conversation
// history. The system prompt carries the FAQ knowledge base and the job search
// link for the user's language.
func (c *Client) ReplyWithHistory(ctx context.Context, lang string, history []models.ChatTurn) (string, error) {
	parts := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	parts = append(parts, openai.SystemMessage(systemPrompt(lang)))
	for _, turn := range history {
		switch turn.Role {
		case "assistant":
			parts = append(parts, openai.AssistantMessage(turn.Content))
		default:
			parts = append(parts, openai.UserMessage(turn.Content))
		}
	}
	return c.complete(ctx, parts)
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("genai completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("genai completion", "model", c.model, "turns", len(messages), "reply_len", len(content))
	return content, nil
}

// FallbackMessage is sent when the completion fails.
func FallbackMessage(lang string) string {
	return errorMessages.Resolve(lang)
}

var errorMessages = models.LocalizedText{
	"ja": "エラーが発生しました。もう一度お試しください。",
	"en": "An error occurred. Please try again.",
	"ko": "오류가 발생했습니다. 다시 시도해주세요.",
	"zh": "发生错误。请重试。",
	"vi": "Đã xảy ra lỗi. Vui lòng thử lại.",
}
