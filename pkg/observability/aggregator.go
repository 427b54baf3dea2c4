package observability

import (
	"context"
	"errors"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// MultiDispatcher fans events out to several dispatchers.
// Every dispatcher receives every event; errors are joined.
type MultiDispatcher struct {
	dispatchers []ports.EventDispatcher
}

// NewMultiDispatcher creates a new fan-out dispatcher.
func NewMultiDispatcher(ds ...ports.EventDispatcher) *MultiDispatcher {
	m := &MultiDispatcher{}
	for _, d := range ds {
		m.Add(d)
	}
	return m
}

// Add registers a dispatcher. Nil dispatchers are ignored.
func (m *MultiDispatcher) Add(d ports.EventDispatcher) {
	if d != nil {
		m.dispatchers = append(m.dispatchers, d)
	}
}

// Publish implements ports.EventDispatcher.
func (m *MultiDispatcher) Publish(ctx context.Context, eventType domain.EventType, payload domain.PhaseEvent) error {
	var errs []error
	for _, d := range m.dispatchers {
		if err := d.Publish(ctx, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
