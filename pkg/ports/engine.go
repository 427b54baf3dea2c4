package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// GraphRunner drives a RunState through the agent graph until it completes.
// This is the primary interface used by adapters (e.g., HTTP, MCP) that own
// the state and persistence around a turn.
type GraphRunner interface {
	// Run executes steps until the state is completed or a fatal error occurs.
	// The returned state is always non-nil when the input state was non-nil.
	Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error)

	// Step executes exactly one node and applies its patch.
	Step(ctx context.Context, state *domain.RunState) (*domain.RunState, error)
}
