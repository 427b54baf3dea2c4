package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// StreamManager fans state diffs out to SSE subscribers by chat ID.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe(chatID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 32)
	if _, ok := sm.subscribers[chatID]; !ok {
		sm.subscribers[chatID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[chatID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[chatID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, chatID)
			}
		}
	}
}

// Broadcast never blocks; slow subscribers miss messages.
func (sm *StreamManager) Broadcast(chatID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[chatID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "chat_id", chatID)
		}
	}
}

// streamingRunner drives a run one step at a time and broadcasts the diff
// produced by each step.
type streamingRunner struct {
	ports.GraphRunner
	streams *StreamManager
}

func (r *streamingRunner) Run(ctx context.Context, state *domain.RunState) (*domain.RunState, error) {
	for !state.Finished() {
		prev := state.Snapshot()
		_, err := r.Step(ctx, state)
		if diff := domain.Diff(prev, state); diff != nil {
			if raw, mErr := json.Marshal(diff); mErr == nil {
				r.streams.Broadcast(state.ChatID, string(raw))
			}
		}
		if err != nil {
			return state, err
		}
	}
	return state, nil
}
