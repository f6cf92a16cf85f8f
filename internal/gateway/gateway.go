// Package gateway mediates every model invocation behind a credit gate.
//
// One Chat call walks a fixed sequence: rate limit, balance snapshot,
// routing, pre-flight estimate, provider call, then an atomic debit that
// appends the ledger row and updates the balance in one database
// transaction. A provider failure falls through to the next routing row and
// never debits; an insufficient balance fails before any provider request is
// issued. Top-up markup lives in the credit math here, never in deductions.
//
// This package follows strict import rules:
//   - CAN import: internal/clock, internal/config, internal/constants,
//     internal/domain, internal/errors, internal/metrics, internal/store
//   - MUST NOT import: internal/cli, internal/engine, internal/orchestrator,
//     internal/workflow
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/config"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/metrics"
	"github.com/mrz1836/smartspec/internal/store"
)

// Gateway routes chat completions to providers and debits credits on
// success. Safe for concurrent use.
type Gateway struct {
	store     *store.Store
	providers *Providers
	table     *RoutingTable
	limiter   Limiter
	clock     clock.Clock
	cfg       config.GatewayConfig
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	sem       *semaphore.Weighted
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock substitutes the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(g *Gateway) { g.clock = c }
}

// WithLogger sets the gateway's base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMetrics attaches Prometheus collectors. A nil Metrics records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLimiter substitutes the rate limiter backend.
func WithLimiter(l Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithRoutingTable substitutes the routing table.
func WithRoutingTable(t *RoutingTable) Option {
	return func(g *Gateway) { g.table = t }
}

// New creates a Gateway over the given store and provider registry.
func New(st *store.Store, providers *Providers, cfg config.GatewayConfig, opts ...Option) *Gateway {
	g := &Gateway{
		store:     st,
		providers: providers,
		table:     DefaultRoutingTable(),
		clock:     clock.RealClock{},
		cfg:       cfg,
		logger:    zerolog.Nop(),
		metrics:   nil,
		sem:       semaphore.NewWeighted(constants.DefaultGatewayConcurrency),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.limiter == nil {
		g.limiter = NewMemoryLimiter(cfg.RateLimitPerMinute, constants.RateLimitWindow, g.clock)
	}
	return g
}

// deductionMetadata is the audit payload recorded on each deduction row.
type deductionMetadata struct {
	Provider     string                `json:"provider"`
	Model        string                `json:"model"`
	InputTokens  int64                 `json:"input_tokens"`
	OutputTokens int64                 `json:"output_tokens"`
	RawCostUSD   float64               `json:"raw_cost_usd"`
	Task         domain.TaskClass      `json:"task,omitempty"`
	Priority     domain.BudgetPriority `json:"priority,omitempty"`
	Labels       map[string]string     `json:"labels,omitempty"`
}

// Chat executes one completion for the given user.
//
// The call observes this order: rate limit, balance snapshot, pre-flight
// estimate against the selected routing row, provider call, atomic debit.
// The caller never sees a completion whose credits were not debited, and is
// never debited for a completion they did not receive. Provider failures
// fall through the routing chain; exhausting it returns ErrNoRouteAvailable
// with zero ledger rows written.
func (g *Gateway) Chat(ctx context.Context, userID string, req *domain.ChatRequest) (*domain.ChatResult, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "chat request needs at least one message")
	}

	if err := g.limiter.Allow(ctx, userID); err != nil {
		if errors.Is(err, sserrors.ErrRateLimited) {
			g.metrics.RateLimited()
		}
		return nil, err
	}

	user, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, sserrors.Wrapf(sserrors.ErrUserDisabled, "%s", user.Email)
	}

	chain, err := g.chain(req)
	if err != nil {
		return nil, err
	}

	inputTokens := estimateInputTokens(req.PromptChars())
	expectedOutput := req.ExpectedOutputTokens
	if expectedOutput <= 0 {
		expectedOutput = g.cfg.ExpectedOutputTokens
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}

	var (
		attempted bool
		lastErr   error
	)
	for i := range chain {
		route := &chain[i]

		enabled, err := g.providers.Enabled(ctx, route.Provider)
		if err != nil {
			return nil, err
		}
		if !enabled {
			g.logger.Debug().
				Str("provider", route.Provider).
				Str("model", route.Model).
				Msg("skipping disabled provider")
			continue
		}
		provider, err := g.providers.Get(route.Provider)
		if err != nil {
			g.logger.Debug().
				Str("provider", route.Provider).
				Msg("no adapter registered, skipping route")
			continue
		}

		required := DebitCredits(estimateCostUSD(route, inputTokens, expectedOutput))
		if required > user.CreditBalance {
			return nil, &sserrors.CreditError{Balance: user.CreditBalance, Required: required}
		}

		attempted = true
		result, elapsed, err := g.call(ctx, provider, route, req, maxTokens)
		if err != nil {
			// No debit, no ledger row: telemetry only.
			g.metrics.ProviderCall(route.Provider, route.Model, "error", elapsed)
			g.logger.Warn().Err(err).
				Str("provider", route.Provider).
				Str("model", route.Model).
				Dur("elapsed", elapsed).
				Msg("provider call failed")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, sserrors.Wrap(ctxErr, "chat call")
			}
			lastErr = err
			continue
		}
		g.metrics.ProviderCall(route.Provider, route.Model, "ok", elapsed)
		g.metrics.Tokens(route.Provider, route.Model, result.Usage.InputTokens, result.Usage.OutputTokens)

		rawCost := result.RawCostUSD
		if rawCost <= 0 {
			rawCost = usageCostUSD(route, result.Usage)
		}
		debit := DebitCredits(rawCost)
		if debit > 0 {
			metadata, merr := json.Marshal(deductionMetadata{
				Provider:     route.Provider,
				Model:        route.Model,
				InputTokens:  result.Usage.InputTokens,
				OutputTokens: result.Usage.OutputTokens,
				RawCostUSD:   rawCost,
				Task:         req.TaskClass,
				Priority:     req.Priority,
				Labels:       req.Metadata,
			})
			if merr != nil {
				return nil, sserrors.Wrap(merr, "encoding deduction metadata")
			}
			if _, derr := g.store.Deduct(ctx, userID, debit, metadata); derr != nil {
				// The completion is withheld when it cannot be billed.
				return nil, derr
			}
			g.metrics.CreditsDebited(debit)
		}

		g.logger.Info().
			Str("user_id", userID).
			Str("model", route.ModelID()).
			Int64("input_tokens", result.Usage.InputTokens).
			Int64("output_tokens", result.Usage.OutputTokens).
			Float64("raw_cost_usd", rawCost).
			Int64("debited_credits", debit).
			Dur("elapsed", elapsed).
			Msg("chat completed")

		return &domain.ChatResult{
			Text:           result.Text,
			Provider:       route.Provider,
			Model:          route.ModelID(),
			Usage:          result.Usage,
			RawCostUSD:     rawCost,
			DebitedCredits: debit,
			Elapsed:        elapsed,
		}, nil
	}

	if !attempted {
		return nil, sserrors.Wrapf(sserrors.ErrNoRouteAvailable,
			"no enabled provider for %s/%s", req.TaskClass, req.Priority)
	}
	return nil, sserrors.Wrapf(sserrors.ErrNoRouteAvailable,
		"all providers failed, last: %v", lastErr)
}

// chain resolves the routing rows for a request: a pinned model bypasses the
// table lookup but still prices from the table.
func (g *Gateway) chain(req *domain.ChatRequest) ([]Route, error) {
	if req.Model != "" {
		return g.table.Pinned(req.Model)
	}
	task := req.TaskClass
	if task == "" {
		task = domain.TaskClassChat
	}
	return g.table.Chain(task, req.Priority)
}

// call runs one provider invocation under the gateway-wide and per-provider
// concurrency bounds, timing the round trip.
func (g *Gateway) call(ctx context.Context, provider Provider, route *Route, req *domain.ChatRequest, maxTokens int64) (*ProviderResult, time.Duration, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, sserrors.Wrap(err, "acquiring gateway slot")
	}
	defer g.sem.Release(1)

	if pool := g.providers.pool(route.Provider); pool != nil {
		if err := pool.Acquire(ctx, 1); err != nil {
			return nil, 0, sserrors.Wrap(err, "acquiring provider slot")
		}
		defer pool.Release(1)
	}

	started := g.clock.Now()
	result, err := provider.Chat(ctx, &ProviderRequest{
		Model:     route.Model,
		Messages:  req.Messages,
		MaxTokens: maxTokens,
	})
	elapsed := g.clock.Now().Sub(started)
	if err != nil {
		return nil, elapsed, err
	}
	return result, elapsed, nil
}

// SetProviderEnabled toggles a provider for routing. Admin only; the switch
// is persisted and takes effect on the next request.
func (g *Gateway) SetProviderEnabled(ctx context.Context, actor *domain.User, name string, enabled bool) error {
	if actor == nil || !actor.IsAdmin() {
		return sserrors.Wrap(sserrors.ErrAdminRequired, "toggling providers")
	}
	if err := g.providers.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}
	g.logger.Info().
		Str("provider", name).
		Bool("enabled", enabled).
		Str("actor", actor.Email).
		Msg("provider switch changed")
	return nil
}

// ProviderStates lists registered providers with their switches.
func (g *Gateway) ProviderStates(ctx context.Context) ([]ProviderState, error) {
	return g.providers.States(ctx)
}

// Routes returns the routing table rows, for display.
func (g *Gateway) Routes() []Route {
	return g.table.Rows()
}
