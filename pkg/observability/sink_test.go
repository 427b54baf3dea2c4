package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.PhaseEvent
	err    error
}

func (r *recordingDispatcher) Publish(_ context.Context, _ domain.EventType, e domain.PhaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

type recordingCollector struct {
	phase   domain.Phase
	d       time.Duration
	errored bool
	calls   int
}

func (r *recordingCollector) RecordDuration(phase domain.Phase, d time.Duration, errored bool) {
	r.phase, r.d, r.errored = phase, d, errored
	r.calls++
}

func TestSink_StartComplete(t *testing.T) {
	ctx := context.Background()
	disp := &recordingDispatcher{}
	coll := &recordingCollector{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSink(WithDispatcher(disp), WithCollector(coll), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	s.LogPhaseStart(ctx, "chat-1", domain.PhasePlanner, 0)
	assert.Equal(t, 1, s.Pending())
	s.LogPhaseComplete(ctx, "chat-1", domain.PhasePlanner, 0, nil)
	assert.Equal(t, 0, s.Pending())

	require.Len(t, disp.events, 2)
	assert.Equal(t, domain.EventPhaseStarted, disp.events[0].Type)
	assert.Equal(t, domain.EventPhaseCompleted, disp.events[1].Type)
	assert.Equal(t, time.Second, disp.events[1].Duration)
	assert.Equal(t, 1, coll.calls)
	assert.Equal(t, domain.PhasePlanner, coll.phase)
	assert.False(t, coll.errored)
}

func TestSink_TrackError(t *testing.T) {
	ctx := context.Background()
	disp := &recordingDispatcher{}
	coll := &recordingCollector{}
	s := NewSink(WithDispatcher(disp), WithCollector(coll))

	boom := errors.New("boom")
	s.LogPhaseStart(ctx, "chat-1", domain.PhaseExecutor, 3)
	s.TrackError(ctx, "chat-1", domain.PhaseExecutor, 3, boom)
	s.LogPhaseComplete(ctx, "chat-1", domain.PhaseExecutor, 3, boom)

	require.Len(t, disp.events, 3)
	assert.Equal(t, domain.EventPhaseError, disp.events[1].Type)
	assert.Equal(t, "boom", disp.events[1].Error)
	assert.True(t, coll.errored)
}

func TestSink_DispatcherFailureIsSwallowed(t *testing.T) {
	disp := &recordingDispatcher{err: errors.New("unreachable")}
	s := NewSink(WithDispatcher(disp))
	assert.NotPanics(t, func() {
		s.LogPhaseStart(context.Background(), "chat-1", domain.PhasePlanner, 0)
		s.LogPhaseComplete(context.Background(), "chat-1", domain.PhasePlanner, 0, nil)
	})
}

func TestSink_ConcurrentChats(t *testing.T) {
	s := NewSink()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat := "chat-" + string(rune('a'+i))
			s.LogPhaseStart(context.Background(), chat, domain.PhasePlanner, i)
			s.LogPhaseComplete(context.Background(), chat, domain.PhasePlanner, i, nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Pending())
}

func TestSink_Close(t *testing.T) {
	s := NewSink()
	s.LogPhaseStart(context.Background(), "chat-1", domain.PhasePlanner, 0)
	s.Close()
	assert.Equal(t, 0, s.Pending())
}

func TestMultiDispatcher(t *testing.T) {
	a := &recordingDispatcher{}
	b := &recordingDispatcher{err: errors.New("down")}
	m := NewMultiDispatcher(a, nil, b)

	err := m.Publish(context.Background(), domain.EventPhaseStarted, domain.PhaseEvent{Phase: domain.PhasePlanner})
	assert.Error(t, err)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordDuration(domain.PhaseToolRunner, 10*time.Millisecond, true)
	c.RecordDuration(domain.PhaseToolRunner, 10*time.Millisecond, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("tool_runner")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.durations))
}
