package gateway

import (
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Route is one routing table row: for a task class and budget priority, the
// provider and model to try, with its price sheet for estimation and billing.
type Route struct {
	// Task is the request category this row serves.
	Task domain.TaskClass `json:"task"`

	// Priority is the budget policy this row serves.
	Priority domain.BudgetPriority `json:"priority"`

	// Provider names the adapter to invoke.
	Provider string `json:"provider"`

	// Model is the provider-native model identifier.
	Model string `json:"model"`

	// PriceInPer1K is the USD cost per 1000 input tokens.
	PriceInPer1K float64 `json:"price_in_per_1k"`

	// PriceOutPer1K is the USD cost per 1000 output tokens.
	PriceOutPer1K float64 `json:"price_out_per_1k"`
}

// ModelID returns the normalized `<provider>/<model>` identifier.
func (r *Route) ModelID() string {
	return domain.NormalizeModelID(r.Provider, r.Model)
}

// RoutingTable maps (task, priority) to an ordered provider chain. The first
// row whose provider is enabled is selected; later rows are fallbacks tried
// in order when a provider call fails.
type RoutingTable struct {
	mu   sync.RWMutex
	rows []Route
}

// NewRoutingTable builds a table from explicit rows, preserving order.
func NewRoutingTable(rows []Route) *RoutingTable {
	return &RoutingTable{rows: rows}
}

// DefaultRoutingTable returns the built-in provider chains. Quality rows lead
// with the strongest model; cost and speed rows lead with the cheapest. Every
// chain carries a second provider so a single outage does not exhaust it.
func DefaultRoutingTable() *RoutingTable {
	var rows []Route
	for _, task := range []domain.TaskClass{
		domain.TaskClassChat,
		domain.TaskClassCodeGeneration,
		domain.TaskClassReasoning,
		domain.TaskClassSummarization,
		domain.TaskClassClassification,
	} {
		rows = append(rows,
			Route{Task: task, Priority: domain.PriorityQuality, Provider: "anthropic", Model: "claude-sonnet-4-5", PriceInPer1K: 0.003, PriceOutPer1K: 0.015},
			Route{Task: task, Priority: domain.PriorityQuality, Provider: "openai", Model: "gpt-4o", PriceInPer1K: 0.0025, PriceOutPer1K: 0.01},
			Route{Task: task, Priority: domain.PriorityCost, Provider: "openai", Model: "gpt-4o-mini", PriceInPer1K: 0.00015, PriceOutPer1K: 0.0006},
			Route{Task: task, Priority: domain.PriorityCost, Provider: "anthropic", Model: "claude-haiku-3-5", PriceInPer1K: 0.0008, PriceOutPer1K: 0.004},
			Route{Task: task, Priority: domain.PrioritySpeed, Provider: "anthropic", Model: "claude-haiku-3-5", PriceInPer1K: 0.0008, PriceOutPer1K: 0.004},
			Route{Task: task, Priority: domain.PrioritySpeed, Provider: "openai", Model: "gpt-4o-mini", PriceInPer1K: 0.00015, PriceOutPer1K: 0.0006},
		)
	}
	// Reasoning quality prefers the deepest model over the default chain.
	rows = append([]Route{
		{Task: domain.TaskClassReasoning, Priority: domain.PriorityQuality, Provider: "anthropic", Model: "claude-opus-4-1", PriceInPer1K: 0.015, PriceOutPer1K: 0.075},
	}, rows...)
	return NewRoutingTable(rows)
}

// Chain returns the ordered rows for a task class and priority. An empty
// priority defaults to quality; an unknown pairing returns
// ErrNoRouteAvailable.
func (t *RoutingTable) Chain(task domain.TaskClass, priority domain.BudgetPriority) ([]Route, error) {
	if priority == "" {
		priority = domain.PriorityQuality
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var chain []Route
	for _, r := range t.rows {
		if r.Task == task && r.Priority == priority {
			chain = append(chain, r)
		}
	}
	if len(chain) == 0 {
		return nil, sserrors.Wrapf(sserrors.ErrNoRouteAvailable, "no routing rows for %s/%s", task, priority)
	}
	return chain, nil
}

// Pinned returns a single-row chain for an explicit `<provider>/<model>`
// request, priced from the first table row that mentions the model, so pinned
// calls still estimate and bill consistently.
func (t *RoutingTable) Pinned(modelID string) ([]Route, error) {
	provider, model := domain.SplitModelID(modelID)
	if provider == "" || model == "" {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "model %q is not <provider>/<model>", modelID)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.rows {
		if r.Provider == provider && r.Model == model {
			pinned := r
			return []Route{pinned}, nil
		}
	}
	return nil, sserrors.Wrapf(sserrors.ErrNoRouteAvailable, "model %s is not in the routing table", modelID)
}

// Rows returns a copy of every routing row, for display.
func (t *RoutingTable) Rows() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Route, len(t.rows))
	copy(out, t.rows)
	return out
}
