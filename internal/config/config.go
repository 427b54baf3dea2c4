// Package config loads the agentgraph configuration file and applies
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Provider kinds.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderScripted  = "scripted"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENTGRAPH_"

type Config struct {
	Limits       domain.Limits      `yaml:"limits"`
	Provider     ProviderConfig     `yaml:"provider"`
	Tools        ToolsConfig        `yaml:"tools"`
	Store        StoreConfig        `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Validation   ValidationConfig   `yaml:"validation"`
	ToolFailures ToolFailuresConfig `yaml:"tool_failures"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
}

type ProviderConfig struct {
	Kind  string `yaml:"kind"`
	Model string `yaml:"model"`
	// APIKey is usually left empty and read from APIKeyEnv.
	APIKey         string  `yaml:"api_key"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int64   `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	RepairAttempts int     `yaml:"repair_attempts"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	// Script is the YAML answer script used by the scripted provider.
	Script string `yaml:"script"`
}

type ToolsConfig struct {
	File string `yaml:"file"`
	// Dir is the working directory of process tools.
	Dir string `yaml:"dir"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	// Dir is the directory of the file store.
	Dir string `yaml:"dir"`
}

// RedisConfig configures the Redis store, locker and event dispatcher used
// by the redis store kind.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ValidationConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ToolFailuresConfig struct {
	// Promote turns failed tool results into run errors.
	Promote bool `yaml:"promote"`
}

// PersistenceConfig configures the store middleware chain.
type PersistenceConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	// RedactKeys and RedactContent are regular expressions.
	RedactKeys    []string `yaml:"redact_keys"`
	RedactContent []string `yaml:"redact_content"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Limits: domain.DefaultLimits(),
		Provider: ProviderConfig{
			Kind:           ProviderAnthropic,
			Model:          "claude-sonnet-4-5",
			MaxTokens:      2048,
			RepairAttempts: 2,
		},
		Tools: ToolsConfig{File: "tools.yaml"},
		Store: StoreConfig{Kind: StoreFile, Dir: filepath.Join(".agentgraph", "runs")},
		Redis: RedisConfig{Prefix: "agentgraph:"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := decodeYAMLStrict(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

// ApplyEnv overrides fields from AGENTGRAPH_* variables read through getenv,
// then resolves the provider API key.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	str("PROVIDER", &c.Provider.Kind)
	str("MODEL", &c.Provider.Model)
	str("BASE_URL", &c.Provider.BaseURL)
	str("SCRIPT", &c.Provider.Script)
	str("TOOLS_FILE", &c.Tools.File)
	str("STORE", &c.Store.Kind)
	str("STORE_DIR", &c.Store.Dir)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ENCRYPTION_KEY", &c.Persistence.EncryptionKey)

	if v := strings.TrimSpace(getenv(EnvPrefix + "MAX_ITERATIONS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_ITERATIONS: %w", EnvPrefix, err)
		}
		c.Limits.MaxGraphIterations = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "VALIDATION")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVALIDATION: %w", EnvPrefix, err)
		}
		c.Validation.Enabled = b
	}

	if c.Provider.APIKey == "" {
		if env := c.Provider.KeyEnv(); env != "" {
			c.Provider.APIKey = strings.TrimSpace(getenv(env))
		}
	}
	return nil
}

// KeyEnv names the environment variable holding the provider API key.
func (p ProviderConfig) KeyEnv() string {
	if p.APIKeyEnv != "" {
		return p.APIKeyEnv
	}
	switch p.Kind {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	}
	return ""
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderAnthropic, ProviderOpenAI:
		if strings.TrimSpace(c.Provider.Model) == "" {
			return errors.New("provider.model is required")
		}
	case ProviderScripted:
		if strings.TrimSpace(c.Provider.Script) == "" {
			return errors.New("provider.script is required for the scripted provider")
		}
	default:
		return fmt.Errorf("unknown provider.kind %q", c.Provider.Kind)
	}
	if c.Provider.RepairAttempts < 0 {
		return errors.New("provider.repair_attempts must not be negative")
	}
	if c.Limits.MaxGraphIterations <= 0 {
		return errors.New("limits.max_graph_iterations must be positive")
	}
	for phase, n := range c.Limits.MaxNodeIterations {
		if !phase.IsNode() {
			return fmt.Errorf("limits.max_node_iterations: unknown phase %q", phase)
		}
		if n < 0 {
			return fmt.Errorf("limits.max_node_iterations.%s must not be negative", phase)
		}
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if strings.TrimSpace(c.Store.Dir) == "" {
			return errors.New("store.dir is required for the file store")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}
