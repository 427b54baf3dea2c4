// Package openai provides a decision.Completer backed by the OpenAI Chat
// Completions API or any compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/aretw0/agentgraph/pkg/decision"
)

// ChatClient captures the subset of the OpenAI client used by the completer.
// It is satisfied by *openai.ChatCompletionService.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the completer.
type Options struct {
	// Model is the chat model identifier. Required.
	Model       string
	MaxTokens   int64
	Temperature float64
	// JSONMode requests a JSON object response format.
	JSONMode bool
}

// Completer implements decision.Completer via Chat Completions.
type Completer struct {
	chat ChatClient
	opts Options
}

var _ decision.Completer = (*Completer)(nil)

// New builds a completer from the provided chat client.
func New(chat ChatClient, opts Options) (*Completer, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	return &Completer{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs a completer using the default OpenAI HTTP client.
// baseURL may point at a compatible server; empty uses the public API.
func NewFromAPIKey(apiKey, baseURL string, opts Options) (*Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	client := openai.NewClient(reqOpts...)
	return New(&client.Chat.Completions, opts)
}

// Complete renders a chat completion and returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, p decision.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.opts.Model),
		Messages: messages,
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.opts.MaxTokens)
	}
	if c.opts.Temperature > 0 {
		params.Temperature = openai.Float(c.opts.Temperature)
	}
	if c.opts.JSONMode {
		obj := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion (%s): %w", p.Kind, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai: empty content (finish reason %q)", resp.Choices[0].FinishReason)
	}
	return content, nil
}
