package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/config"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/engine"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/gateway"
	"github.com/mrz1836/smartspec/internal/gateway/providers"
	"github.com/mrz1836/smartspec/internal/git"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/store"
	"github.com/mrz1836/smartspec/internal/verify"
	"github.com/mrz1836/smartspec/internal/workflow"
	"github.com/mrz1836/smartspec/internal/workflow/steps"
)

// settings collects everything New accepts beyond the config file.
type settings struct {
	logger    zerolog.Logger
	clock     clock.Clock
	metrics   *metrics.Metrics
	operator  string
	providers []gateway.Provider
}

// Option configures New.
type Option func(*settings)

// WithLogger sets the logger every subsystem inherits.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock injects a clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithMetrics attaches Prometheus collectors to the engine, gateway, and
// account service. Nil (the default) records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithOperator overrides the email of the account local executions bill to.
func WithOperator(email string) Option {
	return func(s *settings) { s.operator = email }
}

// WithProvider registers an additional gateway provider alongside the ones
// configured through API key environment variables.
func WithProvider(p gateway.Provider) Option {
	return func(s *settings) { s.providers = append(s.providers, p) }
}

// New wires a complete system rooted at the repository directory: sqlite
// store, workflow registry (builtins plus .spec/workflows/), credit-gated
// gateway with whichever providers have API keys in the environment,
// evidence verifier, execution engine, and both routers.
//
// The caller owns the result and must Close it. A nil cfg uses built-in
// defaults.
func New(ctx context.Context, root string, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if root == "" {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "repository root required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	s := settings{
		logger:   zerolog.Nop(),
		clock:    clock.RealClock{},
		operator: constants.OperatorEmail,
	}
	for _, opt := range opts {
		opt(&s)
	}

	layout := bundle.NewLayout(root)

	st, err := store.Open(ctx, databasePath(root, layout, cfg),
		store.WithClock(s.clock),
		store.WithBusyTimeout(cfg.Store.BusyTimeout),
	)
	if err != nil {
		return nil, err
	}

	o, err := assemble(ctx, root, layout, st, cfg, s)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return o, nil
}

// assemble builds everything above the store. Split out so New can close the
// store on any wiring failure.
func assemble(ctx context.Context, root string, layout *bundle.Layout, st *store.Store, cfg *config.Config, s settings) (*Orchestrator, error) {
	registry := workflow.NewRegistry()
	if err := workflow.LoadBuiltins(registry); err != nil {
		return nil, err
	}
	if err := workflow.LoadUserDir(registry, layout.WorkflowsDir()); err != nil {
		return nil, err
	}

	provs := gateway.NewProviders(st)
	if err := registerConfiguredProviders(provs, &cfg.Gateway, s.logger); err != nil {
		return nil, err
	}
	for _, p := range s.providers {
		provs.Register(p)
	}

	gw := gateway.New(st, provs, cfg.Gateway,
		gateway.WithClock(s.clock),
		gateway.WithLogger(s.logger),
		gateway.WithMetrics(s.metrics),
		gateway.WithLimiter(newLimiter(&cfg.Gateway, s.clock)),
	)
	accounts := gateway.NewAccounts(st, cfg.Gateway.MarkupRate,
		gateway.WithAccountsLogger(s.logger),
		gateway.WithAccountsMetrics(s.metrics),
	)

	operator, err := ensureOperator(ctx, accounts, s.operator, s.logger)
	if err != nil {
		return nil, err
	}

	verifier, err := verify.NewVerifier(root,
		verify.WithThreshold(cfg.Verify.FuzzyThreshold),
		verify.WithMaxSuggestions(cfg.Verify.MaxSuggestions),
	)
	if err != nil {
		return nil, err
	}

	gitClient := git.NewClient(root)

	executors := engine.NewExecutorRegistry()
	steps.Register(executors, steps.Deps{
		Verifier: verifier,
		Gateway:  gw,
		UserID:   operator.ID,
		Tagger:   gitClient,
		Clock:    s.clock,
	})

	eng := engine.New(st, registry, executors, layout,
		engine.WithClock(s.clock),
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
		engine.WithConfig(cfg.Engine),
	)

	return &Orchestrator{
		root:      root,
		layout:    layout,
		registry:  registry,
		router:    workflow.NewRouter(registry, gitClient),
		nl:        workflow.NewNLRouter(registry),
		engine:    eng,
		gateway:   gw,
		accounts:  accounts,
		providers: provs,
		store:     st,
		operator:  operator,
		metrics:   s.metrics,
		logger:    s.logger,
	}, nil
}

// databasePath resolves the sqlite location: explicit config wins, relative
// paths resolve against the repository root, and the default lives inside
// the runtime tree.
func databasePath(root string, layout *bundle.Layout, cfg *config.Config) string {
	path := cfg.Store.Path
	if path == "" {
		return layout.DatabaseFile()
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(root, path)
	}
	return path
}

// registerConfiguredProviders builds an adapter for every provider whose API
// key environment variable is set. A configured provider with no key is
// skipped, not an error: the gateway fails a chat with a typed no-route
// error only when a call actually needs it.
func registerConfiguredProviders(provs *gateway.Providers, cfg *config.GatewayConfig, logger zerolog.Logger) error {
	for name, envVar := range cfg.APIKeyEnvVars {
		key := os.Getenv(envVar)
		if key == "" {
			logger.Debug().
				Str("provider", name).
				Str("env_var", envVar).
				Msg("provider skipped, no api key in environment")
			continue
		}

		var (
			p   gateway.Provider
			err error
		)
		switch name {
		case providers.AnthropicName:
			p, err = providers.NewAnthropic(key)
		case providers.OpenAIName:
			p, err = providers.NewOpenAI(key)
		default:
			logger.Warn().Str("provider", name).Msg("unknown provider in config, skipped")
			continue
		}
		if err != nil {
			return err
		}
		provs.Register(p)
	}
	return nil
}

// newLimiter picks the rate limiter backend: Redis when configured, an
// in-process fixed window otherwise.
func newLimiter(cfg *config.GatewayConfig, clk clock.Clock) gateway.Limiter {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return gateway.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute, clk)
	}
	return gateway.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute, clk)
}

// ensureOperator loads the billing account for local executions, creating it
// on first run. The account is created with a throwaway password: billing
// goes through the account id, and admin operations authenticate explicitly.
func ensureOperator(ctx context.Context, accounts *gateway.Accounts, email string, logger zerolog.Logger) (*domain.User, error) {
	user, err := accounts.Lookup(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sserrors.ErrUserNotFound) {
		return nil, err
	}

	user, err = accounts.RegisterAdmin(ctx, email, uuid.NewString())
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Msg("operator account created")
	return user, nil
}
