package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultMaxRepairAttempts is the number of extra completions spent on
// repairing a defective answer.
const DefaultMaxRepairAttempts = 2

// Service implements every decision port over a Completer.
//
// Each decision is extracted from the model text, validated against its JSON
// Schema and its own semantic rules, and repaired a bounded number of times.
// A Service never returns a decision that violates its contract.
type Service struct {
	completer  Completer
	maxRepairs int
	logger     *slog.Logger
	schemas    map[Kind]*jsonschema.Schema
}

var (
	_ ports.Planner    = (*Service)(nil)
	_ ports.ToolCaller = (*Service)(nil)
	_ ports.Corrector  = (*Service)(nil)
	_ ports.Validator  = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxRepairAttempts sets the number of repair completions. Negative
// values are treated as zero.
func WithMaxRepairAttempts(n int) Option {
	return func(s *Service) {
		s.maxRepairs = max(n, 0)
	}
}

// New creates a Service.
func New(completer Completer, opts ...Option) (*Service, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to compile decision schemas: %w", err)
	}
	s := &Service{
		completer:  completer,
		maxRepairs: DefaultMaxRepairAttempts,
		logger:     logging.NewNop(),
		schemas:    schemas,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Plan(ctx context.Context, in ports.PlanInput) (domain.PlanDecision, error) {
	return decide[domain.PlanDecision](ctx, s, KindPlan, in)
}

func (s *Service) GenerateToolCall(ctx context.Context, in ports.ToolCallInput) (domain.ToolCallDecision, error) {
	return decide[domain.ToolCallDecision](ctx, s, KindToolCall, in)
}

func (s *Service) Correct(ctx context.Context, in ports.CorrectionInput) (domain.CorrectionDecision, error) {
	return decide[domain.CorrectionDecision](ctx, s, KindCorrection, in)
}

func (s *Service) Validate(ctx context.Context, in ports.ValidationInput) (domain.ValidationDecision, error) {
	return decide[domain.ValidationDecision](ctx, s, KindValidation, in)
}

type contract interface {
	Validate() error
}

// decide runs the completion and repair loop for one decision.
func decide[T contract](ctx context.Context, s *Service, kind Kind, input any) (T, error) {
	var zero T

	prompt, err := render(kind, input)
	if err != nil {
		return zero, err
	}

	var (
		defect   error
		attempts int
	)
	current := prompt
	for attempts < s.maxRepairs+1 {
		attempts++
		raw, err := s.completer.Complete(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			defect = fmt.Errorf("completion failed: %w", err)
			current = prompt
			s.logger.Debug("completion failed", "kind", kind, "attempt", attempts, "error", err)
			continue
		}

		v, err := parse[T](s.schemas[kind], raw)
		if err == nil {
			err = v.Validate()
		}
		if err == nil {
			return v, nil
		}

		defect = err
		current = prompt
		current.User += repairNote(raw, err)
		s.logger.Debug("defective decision", "kind", kind, "attempt", attempts, "error", err)
	}

	return zero, &domain.DecisionError{Kind: string(kind), Attempts: attempts, Err: defect}
}
