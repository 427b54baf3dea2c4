package middleware_test

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.RunState
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.RunState),
	}
}

func (s *MockStore) Save(ctx context.Context, chatID string, state *domain.RunState) error {
	s.data[chatID] = state
	return nil
}

func (s *MockStore) Load(ctx context.Context, chatID string) (*domain.RunState, error) {
	state, ok := s.data[chatID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state, nil
}

func (s *MockStore) Delete(ctx context.Context, chatID string) error {
	delete(s.data, chatID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.StateStore = (*MockStore)(nil)
