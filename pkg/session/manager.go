package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed chat lock survives a crashed
// holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to each chat and persists its run state around
// every turn. Local locks are reference counted and dropped once unused.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	logger   *slog.Logger
	onResume ResumeFunc
}

// ResumeFunc is told when a turn resumes an unfinished run instead of
// starting one. dropped is the input of the run that was not started.
type ResumeFunc func(chatID string, resumed *domain.RunState, dropped string)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithResumeNotice registers fn to be called whenever a stored unfinished
// run is resumed in place of a new one.
func WithResumeNotice(fn ResumeFunc) Option {
	return func(m *Manager) {
		m.onResume = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu, and call release(chatID) after unlocking.
func (m *Manager) acquire(chatID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chatID]
	if !exists {
		entry = &lockEntry{}
		m.locks[chatID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chatID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, chatID)
	}
}

// Load retrieves a stored run.
func (m *Manager) Load(ctx context.Context, chatID string) (*domain.RunState, error) {
	var state *domain.RunState
	err := m.WithLock(ctx, chatID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, chatID)
		return err
	})
	return state, err
}

// LoadOrStart returns the chat's unfinished run if one is stored, otherwise
// the state built by start, persisted immediately.
func (m *Manager) LoadOrStart(ctx context.Context, chatID string, start func() *domain.RunState) (*domain.RunState, error) {
	var state *domain.RunState
	err := m.WithLock(ctx, chatID, func(ctx context.Context) error {
		var err error
		state, err = m.loadOrStart(ctx, chatID, start)
		return err
	})
	return state, err
}

func (m *Manager) loadOrStart(ctx context.Context, chatID string, start func() *domain.RunState) (*domain.RunState, error) {
	state, err := m.store.Load(ctx, chatID)
	switch {
	case err == nil && !state.Finished():
		m.resumed(chatID, state, start)
		return state, nil
	case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
		return nil, fmt.Errorf("failed to check chat existence: %w", err)
	}

	state = start()
	if err := m.store.Save(ctx, chatID, state); err != nil {
		return nil, fmt.Errorf("failed to initialize chat: %w", err)
	}
	return state, nil
}

// resumed reports that the new turn's input is not used.
func (m *Manager) resumed(chatID string, state *domain.RunState, start func() *domain.RunState) {
	var dropped string
	if fresh := start(); fresh != nil {
		dropped = fresh.UserInput
	}
	if dropped != "" && dropped != state.UserInput {
		m.logger.Warn("resuming unfinished run, new input ignored",
			"chat_id", chatID, "phase", state.CurrentPhase, "resumed_input", state.UserInput, "ignored_input", dropped)
	} else {
		m.logger.Debug("resuming unfinished run", "chat_id", chatID, "phase", state.CurrentPhase)
	}
	if m.onResume != nil {
		m.onResume(chatID, state, dropped)
	}
}

// Turn runs one conversation turn under the chat's lock: it resumes the
// unfinished run or starts a new one, drives it with runner and saves the
// result. The state is saved even when the run fails.
func (m *Manager) Turn(ctx context.Context, chatID string, start func() *domain.RunState, runner ports.GraphRunner) (*domain.RunState, error) {
	var (
		state  *domain.RunState
		runErr error
	)
	err := m.WithLock(ctx, chatID, func(ctx context.Context) error {
		var err error
		state, err = m.loadOrStart(ctx, chatID, start)
		if err != nil {
			return err
		}
		state, runErr = runner.Run(ctx, state)
		if state == nil {
			return runErr
		}
		if err := m.store.Save(context.WithoutCancel(ctx), chatID, state); err != nil {
			return fmt.Errorf("failed to save chat: %w", err)
		}
		return nil
	})
	if err != nil {
		return state, err
	}
	return state, runErr
}

// Save persists the run state.
func (m *Manager) Save(ctx context.Context, chatID string, state *domain.RunState) error {
	return m.WithLock(ctx, chatID, func(ctx context.Context) error {
		return m.store.Save(ctx, chatID, state)
	})
}

// Delete removes the chat from the store.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	return m.WithLock(ctx, chatID, func(ctx context.Context) error {
		return m.store.Delete(ctx, chatID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes fn while holding the chat's local lock and, when a
// locker is configured, its distributed lock.
func (m *Manager) WithLock(ctx context.Context, chatID string, fn func(context.Context) error) error {
	entry := m.acquire(chatID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(chatID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, chatID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"chat_id", chatID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
