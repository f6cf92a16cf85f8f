package gateway

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/store"
)

// ProviderRequest is one normalized chat completion call handed to an adapter.
type ProviderRequest struct {
	// Model is the provider-native model identifier (no provider prefix).
	Model string

	// Messages is the conversation, oldest first.
	Messages []domain.ChatMessage

	// MaxTokens bounds the completion.
	MaxTokens int64
}

// ProviderResult is what an adapter reports back.
type ProviderResult struct {
	// Text is the completion content.
	Text string

	// Usage is the provider-reported token accounting.
	Usage domain.TokenUsage

	// RawCostUSD is the provider-reported cost when the adapter knows it.
	// Zero means unreported; the gateway then prices Usage against the
	// routing row.
	RawCostUSD float64
}

// Capabilities describes the optional surface of an adapter beyond plain
// chat completion.
type Capabilities struct {
	Streaming        bool `json:"streaming"`
	ToolCalling      bool `json:"tool_calling"`
	StructuredOutput bool `json:"structured_output"`
}

// Provider is one model provider adapter. Adapters translate the normalized
// request into their SDK's shape and report token usage back; they do not
// touch credits or routing.
type Provider interface {
	// Name returns the adapter's routing table name (e.g. "anthropic").
	Name() string

	// Capabilities reports the optional features this adapter supports.
	Capabilities() Capabilities

	// Chat executes one completion. Errors wrap ErrProviderRequest.
	Chat(ctx context.Context, req *ProviderRequest) (*ProviderResult, error)
}

// ProviderState is one row of the admin provider listing.
type ProviderState struct {
	Name         string       `json:"name"`
	Enabled      bool         `json:"enabled"`
	Capabilities Capabilities `json:"capabilities"`
}

// Providers registers adapters and answers enable/disable queries. The
// enabled switch is persisted in system_config and read per request, so an
// admin toggle takes effect on the next call without a restart; calls already
// in flight finish under the configuration they started with.
type Providers struct {
	store *store.Store

	mu       sync.RWMutex
	adapters map[string]Provider
	pools    map[string]*semaphore.Weighted
}

// NewProviders creates a registry backed by the given store for persistence
// of enable/disable state.
func NewProviders(st *store.Store) *Providers {
	return &Providers{
		store:    st,
		adapters: make(map[string]Provider),
		pools:    make(map[string]*semaphore.Weighted),
	}
}

// Register adds an adapter under its own name. Re-registering a name
// replaces the adapter but keeps its persisted enabled state.
func (p *Providers) Register(provider Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := provider.Name()
	p.adapters[name] = provider
	if _, ok := p.pools[name]; !ok {
		p.pools[name] = semaphore.NewWeighted(constants.DefaultProviderConcurrency)
	}
}

// Get returns the adapter registered under name.
func (p *Providers) Get(name string) (Provider, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	provider, ok := p.adapters[name]
	if !ok {
		return nil, sserrors.Wrapf(sserrors.ErrProviderNotFound, "%s", name)
	}
	return provider, nil
}

// pool returns the per-provider concurrency bound.
func (p *Providers) pool(name string) *semaphore.Weighted {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pools[name]
}

// enabledKey is the system_config key holding one provider's switch.
func enabledKey(name string) string {
	return "provider." + name + ".enabled"
}

// Enabled reports whether the named provider is administratively enabled.
// Providers with no persisted state default to enabled.
func (p *Providers) Enabled(ctx context.Context, name string) (bool, error) {
	value, ok, err := p.store.GetConfigValue(ctx, enabledKey(name))
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return value == "true", nil
}

// SetEnabled persists the provider switch. Unknown providers are rejected so
// a typo cannot silently create dead configuration.
func (p *Providers) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if _, err := p.Get(name); err != nil {
		return err
	}
	value := "false"
	if enabled {
		value = "true"
	}
	return p.store.SetConfigValue(ctx, enabledKey(name), value)
}

// States lists every registered adapter with its persisted switch, sorted by
// name for stable display.
func (p *Providers) States(ctx context.Context) ([]ProviderState, error) {
	p.mu.RLock()
	names := make([]string, 0, len(p.adapters))
	for name := range p.adapters {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	out := make([]ProviderState, 0, len(names))
	for _, name := range names {
		enabled, err := p.Enabled(ctx, name)
		if err != nil {
			return nil, err
		}
		provider, err := p.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ProviderState{
			Name:         name,
			Enabled:      enabled,
			Capabilities: provider.Capabilities(),
		})
	}
	return out, nil
}
