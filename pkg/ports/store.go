package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// StateStore defines the interface for persisting run state between turns
// and across process restarts.
type StateStore interface {
	// Save persists the state for a given chat ID.
	Save(ctx context.Context, chatID string, state *domain.RunState) error

	// Load retrieves the state for a given chat ID.
	// Returns domain.ErrSessionNotFound if the chat does not exist.
	Load(ctx context.Context, chatID string) (*domain.RunState, error)

	// Delete removes the state for a given chat ID.
	Delete(ctx context.Context, chatID string) error

	// List returns the chat IDs currently stored.
	List(ctx context.Context) ([]string, error)
}
