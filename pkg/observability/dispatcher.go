package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// LogDispatcher writes every event as a structured log record.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Publish(ctx context.Context, eventType domain.EventType, e domain.PhaseEvent) error {
	attrs := []any{
		"chat_id", e.ChatID,
		"phase", e.Phase,
		"iteration", e.Iteration,
	}
	level := slog.LevelDebug
	switch eventType {
	case domain.EventPhaseCompleted:
		attrs = append(attrs, "duration", e.Duration)
	case domain.EventPhaseError:
		attrs = append(attrs, "error", e.Error)
		level = slog.LevelWarn
	}
	d.logger.Log(ctx, level, string(eventType), attrs...)
	return nil
}

// NopDispatcher discards events.
type NopDispatcher struct{}

func (NopDispatcher) Publish(context.Context, domain.EventType, domain.PhaseEvent) error { return nil }

// NopCollector discards durations.
type NopCollector struct{}

func (NopCollector) RecordDuration(domain.Phase, time.Duration, bool) {}
