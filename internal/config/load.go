package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/errors"
)

// newViperInstance creates a new Viper instance with standard SmartSpec
// configuration: environment variable prefix (SMARTSPEC_), key replacer,
// and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
// This helps consolidate the common pattern of checking for missing config files.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config struct and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper precedence.
// Configuration is loaded in the following order (highest precedence first):
//  1. Environment variables (SMARTSPEC_* prefix)
//  2. Project config (.spec/config.yaml)
//  3. Global config (~/.smartspec/config.yaml)
//  4. Built-in defaults
//
// The function returns an error only for actual configuration problems,
// not for missing config files (which are expected in many scenarios).
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	// Load global config first (lower precedence)
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	// Load project config (higher precedence, merges over global)
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Int("engine.fan_out", cfg.Engine.FanOut).
		Dur("engine.workflow_timeout", cfg.Engine.WorkflowTimeout).
		Float64("verify.fuzzy_threshold", cfg.Verify.FuzzyThreshold).
		Int("gateway.rate_limit_per_minute", cfg.Gateway.RateLimitPerMinute).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// LoadFromFile reads one explicit config file over the defaults, bypassing
// the global/project discovery. Used for the --config flag.
func LoadFromFile(_ context.Context, path string) (*Config, error) {
	v := newViperInstance()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config: %s", path)
	}
	return unmarshalAndValidate(v)
}

// LoadFromPaths loads configuration from specific file paths for testing.
// This function allows precise control over which config files are loaded.
//
// projectConfigPath is the path to project-level config (higher priority).
// globalConfigPath is the path to global config (lower priority).
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// loadGlobalConfig attempts to load the global config file
// (~/.smartspec/config.yaml). Returns nil if the file doesn't exist or the
// home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		// Global config doesn't exist or home dir unavailable, skip silently
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
// Returns empty string and false if the home directory cannot be determined
// or the config file does not exist.
func getGlobalConfigPathIfExists() (string, bool) {
	globalConfigPath, err := GlobalConfigPath()
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}
	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file
// (.spec/config.yaml). Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		// Project config doesn't exist, skip silently
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// Engine defaults
	v.SetDefault("engine.fan_out", defaults.Engine.FanOut)
	v.SetDefault("engine.max_concurrent_executions", defaults.Engine.MaxConcurrentExecutions)
	v.SetDefault("engine.workflow_timeout", defaults.Engine.WorkflowTimeout.String())
	v.SetDefault("engine.cancel_grace", defaults.Engine.CancelGrace.String())
	v.SetDefault("engine.interrupt_timeout", defaults.Engine.InterruptTimeout.String())
	v.SetDefault("engine.checkpoint_retention", defaults.Engine.CheckpointRetention)

	// Verify defaults
	v.SetDefault("verify.fuzzy_threshold", defaults.Verify.FuzzyThreshold)
	v.SetDefault("verify.max_suggestions", defaults.Verify.MaxSuggestions)

	// Gateway defaults
	v.SetDefault("gateway.rate_limit_per_minute", defaults.Gateway.RateLimitPerMinute)
	v.SetDefault("gateway.markup_rate", defaults.Gateway.MarkupRate)
	v.SetDefault("gateway.expected_output_tokens", defaults.Gateway.ExpectedOutputTokens)
	v.SetDefault("gateway.max_tokens", defaults.Gateway.MaxTokens)
	v.SetDefault("gateway.api_key_env_vars", defaults.Gateway.APIKeyEnvVars)
	v.SetDefault("gateway.redis.enabled", defaults.Gateway.Redis.Enabled)
	v.SetDefault("gateway.redis.addr", defaults.Gateway.Redis.Addr)
	v.SetDefault("gateway.redis.password", "")
	v.SetDefault("gateway.redis.db", 0)

	// Store defaults
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("store.busy_timeout", defaults.Store.BusyTimeout.String())

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

// viperDecoderOption returns the decoder configuration for unmarshaling.
// The duration hook lets YAML values like "30m" decode into time.Duration.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}
