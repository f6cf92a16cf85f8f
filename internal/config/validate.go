package config

import (
	"github.com/mrz1836/smartspec/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - Engine fan-out must be between 1 and 64
//   - Engine timeouts and grace periods must be positive
//   - Verify fuzzy threshold must be within [0,1]
//   - Gateway rate limit must be positive; markup must be non-negative
//   - Store busy timeout must be positive
//   - Logging level and format must be recognized values
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateEngineConfig(&cfg.Engine); err != nil {
		return err
	}
	if err := validateVerifyConfig(&cfg.Verify); err != nil {
		return err
	}
	if err := validateGatewayConfig(&cfg.Gateway); err != nil {
		return err
	}
	if err := validateStoreConfig(&cfg.Store); err != nil {
		return err
	}
	return validateLoggingConfig(&cfg.Logging)
}

// validateEngineConfig checks engine-specific configuration values.
func validateEngineConfig(cfg *EngineConfig) error {
	if cfg.FanOut < 1 || cfg.FanOut > 64 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.fan_out must be between 1 and 64, got %d", cfg.FanOut)
	}
	if cfg.MaxConcurrentExecutions < cfg.FanOut {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.max_concurrent_executions must be at least fan_out (%d), got %d",
			cfg.FanOut, cfg.MaxConcurrentExecutions)
	}
	if cfg.WorkflowTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.workflow_timeout must be positive, got %s", cfg.WorkflowTimeout)
	}
	if cfg.CancelGrace <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.cancel_grace must be positive, got %s", cfg.CancelGrace)
	}
	if cfg.InterruptTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.interrupt_timeout must be positive, got %s", cfg.InterruptTimeout)
	}
	if cfg.CheckpointRetention < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidEngine,
			"engine.checkpoint_retention must not be negative, got %d", cfg.CheckpointRetention)
	}
	return nil
}

// validateVerifyConfig checks verifier-specific configuration values.
func validateVerifyConfig(cfg *VerifyConfig) error {
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return errors.Wrapf(errors.ErrConfigInvalidVerify,
			"verify.fuzzy_threshold must be within [0,1], got %g", cfg.FuzzyThreshold)
	}
	if cfg.MaxSuggestions < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidVerify,
			"verify.max_suggestions must be at least 1, got %d", cfg.MaxSuggestions)
	}
	return nil
}

// validateGatewayConfig checks gateway-specific configuration values.
func validateGatewayConfig(cfg *GatewayConfig) error {
	if cfg.RateLimitPerMinute < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidGateway,
			"gateway.rate_limit_per_minute must be at least 1, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.MarkupRate < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidGateway,
			"gateway.markup_rate must not be negative, got %g", cfg.MarkupRate)
	}
	if cfg.ExpectedOutputTokens < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidGateway,
			"gateway.expected_output_tokens must not be negative, got %d", cfg.ExpectedOutputTokens)
	}
	if cfg.MaxTokens < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidGateway,
			"gateway.max_tokens must be at least 1, got %d", cfg.MaxTokens)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.Wrap(errors.ErrConfigInvalidGateway,
			"gateway.redis.addr must be set when redis is enabled")
	}
	return nil
}

// validateStoreConfig checks store-specific configuration values.
func validateStoreConfig(cfg *StoreConfig) error {
	if cfg.BusyTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidStore,
			"store.busy_timeout must be positive, got %s", cfg.BusyTimeout)
	}
	return nil
}

// validateLoggingConfig checks logging-specific configuration values.
func validateLoggingConfig(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(errors.ErrConfigInvalidLogging,
			"logging.level must be one of debug|info|warn|error, got %q", cfg.Level)
	}
	switch cfg.Format {
	case "auto", "json", "console":
	default:
		return errors.Wrapf(errors.ErrConfigInvalidLogging,
			"logging.format must be one of auto|json|console, got %q", cfg.Format)
	}
	return nil
}
