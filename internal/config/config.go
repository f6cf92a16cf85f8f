// Package config manages SmartSpec configuration loading and validation.
//
// Configuration is loaded with the following precedence (highest first):
//  1. Environment variables (SMARTSPEC_* prefix)
//  2. Project config (.spec/config.yaml)
//  3. Global config (~/.smartspec/config.yaml)
//  4. Built-in defaults
package config

import (
	"time"

	"github.com/mrz1836/smartspec/internal/constants"
)

// Config is the root configuration structure for SmartSpec.
// All fields have sensible defaults and can be overridden via YAML config
// files or environment variables.
type Config struct {
	// Engine configures execution behavior: fan-out, timeouts, grace periods.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Verify configures the evidence verifier.
	Verify VerifyConfig `yaml:"verify" mapstructure:"verify"`

	// Gateway configures the LLM gateway: rate limits, markup, providers.
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Store configures the relational store location and tuning.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Logging configures log level and output format.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// FanOut caps how many steps of one execution run concurrently when
	// their dependencies are satisfied. Descriptors may declare a lower cap.
	FanOut int `yaml:"fan_out" mapstructure:"fan_out"`

	// MaxConcurrentExecutions caps steps in flight across all executions.
	MaxConcurrentExecutions int `yaml:"max_concurrent_executions" mapstructure:"max_concurrent_executions"`

	// WorkflowTimeout bounds an execution when its descriptor declares none.
	WorkflowTimeout time.Duration `yaml:"workflow_timeout" mapstructure:"workflow_timeout"`

	// CancelGrace is how long a cancelled step may keep running before the
	// engine hard-stops it and records the execution as stopped.
	CancelGrace time.Duration `yaml:"cancel_grace" mapstructure:"cancel_grace"`

	// InterruptTimeout is how long a human-in-the-loop pause waits for a
	// response before failing the execution.
	InterruptTimeout time.Duration `yaml:"interrupt_timeout" mapstructure:"interrupt_timeout"`

	// CheckpointRetention keeps the newest N checkpoints per execution for
	// audit; zero retains all of them.
	CheckpointRetention int `yaml:"checkpoint_retention" mapstructure:"checkpoint_retention"`
}

// VerifyConfig holds evidence verifier settings.
type VerifyConfig struct {
	// FuzzyThreshold is the minimum normalized similarity (0..1) for a
	// missing path to produce a naming suggestion.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`

	// MaxSuggestions caps how many similar files are suggested per hook.
	MaxSuggestions int `yaml:"max_suggestions" mapstructure:"max_suggestions"`
}

// GatewayConfig holds LLM gateway settings.
type GatewayConfig struct {
	// RateLimitPerMinute is the per-user request budget enforced before any
	// cost estimation happens.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`

	// MarkupRate is the top-up markup: a user paying P USD receives
	// floor(P × 1000 / (1 + markup)) credits. Never applied to deductions.
	MarkupRate float64 `yaml:"markup_rate" mapstructure:"markup_rate"`

	// ExpectedOutputTokens is the conservative completion size used in the
	// pre-flight estimate when the caller does not declare one.
	ExpectedOutputTokens int64 `yaml:"expected_output_tokens" mapstructure:"expected_output_tokens"`

	// MaxTokens bounds provider completions when a request does not set one.
	MaxTokens int64 `yaml:"max_tokens" mapstructure:"max_tokens"`

	// APIKeyEnvVars maps provider name to the environment variable holding
	// its API key.
	APIKeyEnvVars map[string]string `yaml:"api_key_env_vars" mapstructure:"api_key_env_vars"`

	// Redis configures the distributed rate limiter backend. When disabled,
	// an in-process fixed-window limiter is used.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// APIKeyEnvVar returns the environment variable name that holds the API key
// for the given provider, or empty when no mapping exists.
func (c *GatewayConfig) APIKeyEnvVar(provider string) string {
	if c.APIKeyEnvVars == nil {
		return ""
	}
	return c.APIKeyEnvVars[provider]
}

// RedisConfig holds the optional Redis rate limiter backend settings.
type RedisConfig struct {
	// Enabled switches the rate limiter to Redis.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// Password authenticates the connection; empty for none.
	Password string `yaml:"password" mapstructure:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db" mapstructure:"db"`
}

// StoreConfig holds relational store settings.
type StoreConfig struct {
	// Path locates the sqlite database file. Relative paths resolve against
	// the repository root; default is .spec/smartspec.db.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long sqlite waits on a locked database before
	// returning SQLITE_BUSY.
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn, or error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format selects console or json output; auto picks by TTY detection.
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns a Config populated with built-in defaults.
// These values are used when no config file or environment override exists.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			FanOut:                  constants.DefaultFanOut,
			MaxConcurrentExecutions: constants.DefaultFanOut * 4,
			WorkflowTimeout:         constants.DefaultWorkflowTimeout,
			CancelGrace:             constants.DefaultCancelGrace,
			InterruptTimeout:        constants.DefaultInterruptTimeout,
			CheckpointRetention:     0,
		},
		Verify: VerifyConfig{
			FuzzyThreshold: constants.DefaultFuzzyThreshold,
			MaxSuggestions: constants.MaxFuzzySuggestions,
		},
		Gateway: GatewayConfig{
			RateLimitPerMinute:   constants.DefaultRateLimitPerMinute,
			MarkupRate:           constants.DefaultMarkupRate,
			ExpectedOutputTokens: constants.DefaultExpectedOutputTokens,
			MaxTokens:            constants.DefaultMaxTokens,
			APIKeyEnvVars: map[string]string{
				"anthropic": "ANTHROPIC_API_KEY",
				"openai":    "OPENAI_API_KEY",
			},
			Redis: RedisConfig{
				Enabled: false,
				Addr:    "localhost:6379",
			},
		},
		Store: StoreConfig{
			Path:        "",
			BusyTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
