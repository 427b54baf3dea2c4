// Package anthropic provides a decision.Completer backed by the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aretw0/agentgraph/pkg/decision"
)

// DefaultMaxTokens caps a completion when Options.MaxTokens is not set.
const DefaultMaxTokens = 2048

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by
	// the completer. It is satisfied by *sdk.MessageService.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the completer.
	Options struct {
		// Model is the Claude model identifier. Required.
		Model       string
		MaxTokens   int64
		Temperature float64
	}

	// Completer implements decision.Completer on top of Claude Messages.
	Completer struct {
		msg  MessagesClient
		opts Options
	}
)

var _ decision.Completer = (*Completer)(nil)

// New builds a completer from an Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Completer, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Completer{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a completer using the default Anthropic HTTP
// client. Extra request options (base URL, retries) are passed through.
func NewFromAPIKey(apiKey string, opts Options, reqOpts ...option.RequestOption) (*Completer, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client := sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)
	return New(&client.Messages, opts)
}

// Complete sends the prompt as one user turn and returns the concatenated
// text blocks of the reply.
func (c *Completer) Complete(ctx context.Context, p decision.Prompt) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.Model),
		MaxTokens: c.opts.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []sdk.TextBlockParam{{Text: p.System}}
	}
	if c.opts.Temperature > 0 {
		params.Temperature = sdk.Float(c.opts.Temperature)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new (%s): %w", p.Kind, err)
	}
	if msg == nil {
		return "", errors.New("anthropic: response message is nil")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: no text in response (stop reason %q)", msg.StopReason)
	}
	return b.String(), nil
}
