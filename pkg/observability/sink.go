package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// Sink records phase start/completion/error events and durations.
//
// It never influences control flow: dispatcher failures are logged and
// swallowed. The dispatcher and collector are owned by the caller.
type Sink struct {
	dispatcher ports.EventDispatcher
	collector  ports.PerformanceCollector
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	timers map[string]time.Time
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

func WithDispatcher(d ports.EventDispatcher) SinkOption {
	return func(s *Sink) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

func WithCollector(c ports.PerformanceCollector) SinkOption {
	return func(s *Sink) {
		if c != nil {
			s.collector = c
		}
	}
}

func WithLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		s.now = now
	}
}

// NewSink creates a sink. Without options it discards everything.
func NewSink(opts ...SinkOption) *Sink {
	s := &Sink{
		dispatcher: NopDispatcher{},
		collector:  NopCollector{},
		logger:     logging.NewNop(),
		now:        time.Now,
		timers:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func timerKey(chatID string, phase domain.Phase, iteration int) string {
	return fmt.Sprintf("%s:%s:%d", chatID, phase, iteration)
}

// LogPhaseStart starts the timer for one execution and emits phase.started.
func (s *Sink) LogPhaseStart(ctx context.Context, chatID string, phase domain.Phase, iteration int) {
	now := s.now()
	s.mu.Lock()
	s.timers[timerKey(chatID, phase, iteration)] = now
	s.mu.Unlock()

	s.publish(ctx, domain.PhaseEvent{
		Type:      domain.EventPhaseStarted,
		Timestamp: now,
		ChatID:    chatID,
		Phase:     phase,
		Iteration: iteration,
	})
}

// LogPhaseComplete stops the timer, records the duration and emits
// phase.completed. err is the node error, if any.
func (s *Sink) LogPhaseComplete(ctx context.Context, chatID string, phase domain.Phase, iteration int, err error) {
	now := s.now()
	key := timerKey(chatID, phase, iteration)

	s.mu.Lock()
	started, ok := s.timers[key]
	delete(s.timers, key)
	s.mu.Unlock()

	var d time.Duration
	if ok {
		d = now.Sub(started)
	}
	s.collector.RecordDuration(phase, d, err != nil)

	e := domain.PhaseEvent{
		Type:      domain.EventPhaseCompleted,
		Timestamp: now,
		ChatID:    chatID,
		Phase:     phase,
		Iteration: iteration,
		Duration:  d,
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.publish(ctx, e)
}

// TrackError emits phase.error.
func (s *Sink) TrackError(ctx context.Context, chatID string, phase domain.Phase, iteration int, err error) {
	if err == nil {
		return
	}
	s.publish(ctx, domain.PhaseEvent{
		Type:      domain.EventPhaseError,
		Timestamp: s.now(),
		ChatID:    chatID,
		Phase:     phase,
		Iteration: iteration,
		Error:     err.Error(),
	})
}

// Pending returns the number of running timers.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close clears the timers. It does not close the dispatcher or collector.
func (s *Sink) Close() {
	s.mu.Lock()
	s.timers = make(map[string]time.Time)
	s.mu.Unlock()
}

func (s *Sink) publish(ctx context.Context, e domain.PhaseEvent) {
	// Events are published even after cancellation so the final phase is visible.
	ctx = context.WithoutCancel(ctx)
	if err := s.dispatcher.Publish(ctx, e.Type, e); err != nil {
		s.logger.Debug("event publish failed", "event", e.Type, "chat_id", e.ChatID, "error", err)
	}
}
