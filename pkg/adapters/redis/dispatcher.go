package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Dispatcher implements ports.EventDispatcher by publishing each phase event
// as JSON on the channel <prefix><event type>.
type Dispatcher struct {
	client *backend.Client
	prefix string
}

// NewDispatcher creates a dispatcher. An empty prefix defaults to
// "agentgraph:events:".
func NewDispatcher(client *backend.Client, prefix string) *Dispatcher {
	if prefix == "" {
		prefix = DefaultPrefix + "events:"
	}
	return &Dispatcher{client: client, prefix: prefix}
}

// Channel returns the channel an event type is published on.
func (d *Dispatcher) Channel(t domain.EventType) string {
	return d.prefix + string(t)
}

func (d *Dispatcher) Publish(ctx context.Context, t domain.EventType, ev domain.PhaseEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", t, err)
	}
	if err := d.client.Publish(ctx, d.Channel(t), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", t, err)
	}
	return nil
}
