package decision

import "context"

// Kind identifies a decision type.
type Kind string

const (
	KindPlan       Kind = "plan"
	KindToolCall   Kind = "tool_call"
	KindCorrection Kind = "correction"
	KindValidation Kind = "validation"
)

// Prompt is one request to a language model.
type Prompt struct {
	Kind   Kind
	System string
	User   string
}

// Completer turns a prompt into raw model text. Implementations must be safe
// for concurrent use.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}
