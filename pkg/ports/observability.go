package ports

import (
	"context"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// EventDispatcher publishes observability events. Failures are reported to
// the caller, who must not let them influence control flow.
type EventDispatcher interface {
	Publish(ctx context.Context, eventType domain.EventType, payload domain.PhaseEvent) error
}

// PerformanceCollector records phase execution durations.
type PerformanceCollector interface {
	RecordDuration(phase domain.Phase, d time.Duration, errored bool)
}
