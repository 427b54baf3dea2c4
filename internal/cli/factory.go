package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/config"
	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/adapters/anthropic"
	"github.com/aretw0/agentgraph/pkg/adapters/file"
	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/adapters/openai"
	"github.com/aretw0/agentgraph/pkg/adapters/process"
	redisadapter "github.com/aretw0/agentgraph/pkg/adapters/redis"
	"github.com/aretw0/agentgraph/pkg/decision"
	"github.com/aretw0/agentgraph/pkg/observability"
	"github.com/aretw0/agentgraph/pkg/persistence/middleware"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/aretw0/agentgraph/pkg/session"
)

// Stack is everything a command needs, built from one configuration.
type Stack struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *agentgraph.Engine
	Sessions *session.Manager
	// Metrics gathers the engine's Prometheus metrics.
	Metrics *prometheus.Registry

	closers []func() error
}

// LoadConfig reads path and applies the process environment.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the logger described by cfg. Debug forces the debug level.
func NewLogger(cfg config.LogConfig, debug bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWriter(os.Stderr, level, cfg.Format == "json"), nil
}

// NewCompleter builds the language model client selected by p.
func NewCompleter(p config.ProviderConfig) (decision.Completer, error) {
	var (
		c   decision.Completer
		err error
	)
	switch p.Kind {
	case config.ProviderAnthropic:
		c, err = anthropic.NewFromAPIKey(p.APIKey, anthropic.Options{
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
	case config.ProviderOpenAI:
		c, err = openai.NewFromAPIKey(p.APIKey, p.BaseURL, openai.Options{
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			JSONMode:    true,
		})
	case config.ProviderScripted:
		c, err = decision.LoadScript(p.Script)
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", p.Kind, err)
	}
	if p.RateLimitRPS > 0 {
		c = decision.RateLimited(c, p.RateLimitRPS, p.RateLimitBurst)
	}
	return c, nil
}

// NewToolRegistry registers the process tools listed in cfg.File.
// A missing file yields an empty registry.
func NewToolRegistry(cfg config.ToolsConfig, logger *slog.Logger) (*registry.Registry, error) {
	tools, err := process.LoadTools(cfg.File)
	if err != nil {
		return nil, err
	}
	runner := process.NewRunner(
		process.WithRegistry(tools),
		process.WithBaseDir(cfg.Dir),
		process.WithLogger(logger),
	)
	reg := registry.NewRegistry(registry.WithLogger(logger))
	if err := runner.RegisterAll(reg); err != nil {
		return nil, err
	}
	logger.Debug("tools registered", "file", cfg.File, "tools", reg.Names())
	return reg, nil
}

// StoreMiddlewares builds the redaction and encryption chain of cfg.
// Redaction runs before encryption.
func StoreMiddlewares(cfg config.PersistenceConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.RedactKeys) > 0 || len(cfg.RedactContent) > 0 {
		pii, err := middleware.NewPIIMiddleware(middleware.PIIConfig{
			KeyPatterns:     cfg.RedactKeys,
			ContentPatterns: cfg.RedactContent,
		})
		if err != nil {
			return nil, fmt.Errorf("persistence redaction: %w", err)
		}
		mws = append(mws, pii)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("persistence.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("persistence.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		sealed, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, sealed)
	}
	return mws, nil
}

// Persistence is the session side of a Stack.
type Persistence struct {
	Sessions *session.Manager
	// Events is set for backends that broadcast phase events.
	Events ports.EventDispatcher
	Close  func() error
}

// OpenPersistence opens the store selected by cfg, wrapped in the configured
// middlewares. The redis kind also provides a distributed locker and an
// event dispatcher. extra options are applied to the session manager.
func OpenPersistence(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...session.Option) (*Persistence, error) {
	p := &Persistence{Close: func() error { return nil }}
	var (
		store       ports.StateStore
		sessionOpts = []session.Option{session.WithLogger(logger)}
	)
	switch cfg.Store.Kind {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		p.Close = client.Close
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redisadapter.DefaultPrefix
		}
		store = redisadapter.NewFromClient(client,
			redisadapter.WithPrefix(prefix+"run:"),
			redisadapter.WithTTL(cfg.Redis.TTL),
		)
		sessionOpts = append(sessionOpts, session.WithLocker(redisadapter.NewLocker(client, prefix)))
		p.Events = redisadapter.NewDispatcher(client, prefix+"events:")
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	mws, err := StoreMiddlewares(cfg.Persistence)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.Sessions = session.NewManager(middleware.Chain(store, mws...), append(sessionOpts, extra...)...)
	return p, nil
}

// NewStack wires the engine, the tool registry, the store and the session
// manager described by cfg.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, sessionOpts ...session.Option) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Stack{Config: cfg, Logger: logger, Metrics: prometheus.NewRegistry()}
	s.Metrics.MustRegister(collectors.NewGoCollector())

	completer, err := NewCompleter(cfg.Provider)
	if err != nil {
		return nil, err
	}
	tools, err := NewToolRegistry(cfg.Tools, logger)
	if err != nil {
		return nil, err
	}

	opts := []agentgraph.Option{
		agentgraph.WithLogger(logger),
		agentgraph.WithCompleter(completer),
		agentgraph.WithRegistry(tools),
		agentgraph.WithLimits(cfg.Limits),
		agentgraph.WithValidation(cfg.Validation.Enabled),
		agentgraph.WithRepairAttempts(cfg.Provider.RepairAttempts),
		agentgraph.WithToolFailurePromotion(cfg.ToolFailures.Promote),
		agentgraph.WithCollector(observability.NewPrometheusCollector(s.Metrics)),
		agentgraph.WithEventDispatcher(observability.NewLogDispatcher(logger)),
	}

	p, err := OpenPersistence(ctx, cfg, logger, sessionOpts...)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, p.Close)
	s.Sessions = p.Sessions
	if p.Events != nil {
		opts = append(opts, agentgraph.WithEventDispatcher(p.Events))
	}

	s.Engine, err = agentgraph.New(opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() error { s.Engine.Close(); return nil })
	return s, nil
}

// Close releases the stack's connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
