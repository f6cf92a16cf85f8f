package gateway

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/config"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/store"
)

// testEpoch is the pinned start time for gateway tests.
var testEpoch = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

// fakeReply is one scripted provider response.
type fakeReply struct {
	text    string
	usage   domain.TokenUsage
	rawCost float64
	err     error
}

// fakeProvider answers with scripted replies, consumed in order; the last
// reply repeats.
type fakeProvider struct {
	name string

	mu      sync.Mutex
	replies []fakeReply
	calls   int
}

func newFakeProvider(name string, replies ...fakeReply) *fakeProvider {
	if len(replies) == 0 {
		replies = []fakeReply{{text: "ok"}}
	}
	return &fakeProvider{name: name, replies: replies}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Capabilities() Capabilities { return Capabilities{} }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) Chat(_ context.Context, _ *ProviderRequest) (*ProviderResult, error) {
	f.mu.Lock()
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	f.calls++
	f.mu.Unlock()

	if reply.err != nil {
		return nil, reply.err
	}
	return &ProviderResult{Text: reply.text, Usage: reply.usage, RawCostUSD: reply.rawCost}, nil
}

// testTable routes chat/quality through alpha with beta as fallback. Prices
// make estimates easy to reason about: $1 per 1k input, $0.10 per 1k output.
func testTable() *RoutingTable {
	return NewRoutingTable([]Route{
		{Task: domain.TaskClassChat, Priority: domain.PriorityQuality, Provider: "alpha", Model: "m1", PriceInPer1K: 1.0, PriceOutPer1K: 0.1},
		{Task: domain.TaskClassChat, Priority: domain.PriorityQuality, Provider: "beta", Model: "m2", PriceInPer1K: 1.0, PriceOutPer1K: 0.1},
	})
}

// newTestGateway builds a gateway over a temp store with the given providers
// registered and enabled by default.
func newTestGateway(t *testing.T, table *RoutingTable, provs ...Provider) (*Gateway, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := NewProviders(st)
	for _, p := range provs {
		registry.Register(p)
	}
	g := New(st, registry, config.DefaultConfig().Gateway,
		WithRoutingTable(table),
		WithClock(clock.NewFake(testEpoch)),
	)
	return g, st
}

// seedFundedUser creates an active account holding the given credits.
func seedFundedUser(t *testing.T, st *store.Store, credits int64) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "$2a$10$fixedhashforgatewaytests",
		Role:         constants.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	if credits > 0 {
		_, err := st.TopUp(context.Background(), u.ID, credits, nil)
		require.NoError(t, err)
		u.CreditBalance = credits
	}
	return u
}

// chatRequest builds a request whose estimate is easy to compute: promptChars
// characters of input and a declared expected output.
func chatRequest(promptChars int, expectedOutput int64) *domain.ChatRequest {
	return &domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUserMsg, Content: strings.Repeat("x", promptChars)},
		},
		TaskClass:            domain.TaskClassChat,
		Priority:             domain.PriorityQuality,
		ExpectedOutputTokens: expectedOutput,
	}
}

func TestChat_DebitsReportedCostExactly(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{
		text:    "completion",
		usage:   domain.TokenUsage{InputTokens: 50, OutputTokens: 20},
		rawCost: 0.10,
	})
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 86956)

	result, err := g.Chat(context.Background(), user.ID, chatRequest(400, 100))
	require.NoError(t, err)

	assert.Equal(t, "completion", result.Text)
	assert.Equal(t, "alpha", result.Provider)
	assert.Equal(t, "alpha/m1", result.Model)
	assert.InDelta(t, 0.10, result.RawCostUSD, 1e-9)
	assert.Equal(t, int64(100), result.DebitedCredits)

	balance, err := st.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(86856), balance)

	txns, err := st.Transactions(context.Background(), user.ID, 1)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionDeduction, txns[0].Kind)
	assert.Equal(t, int64(-100), txns[0].AmountCredits)
	assert.Equal(t, int64(86856), txns[0].BalanceAfter)
	assert.Contains(t, string(txns[0].Metadata), `"provider":"alpha"`)
	assert.Contains(t, string(txns[0].Metadata), `"model":"m1"`)
}

func TestChat_InsufficientCreditsFailsBeforeProviderCall(t *testing.T) {
	alpha := newFakeProvider("alpha")
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 50)

	// 400 chars -> 100 input tokens at $1/1k, 1000 expected output at
	// $0.10/1k: estimate $0.20 = 200 credits against a balance of 50.
	_, err := g.Chat(context.Background(), user.ID, chatRequest(400, 1000))
	require.ErrorIs(t, err, sserrors.ErrInsufficientCredits)

	var creditErr *sserrors.CreditError
	require.ErrorAs(t, err, &creditErr)
	assert.Equal(t, int64(50), creditErr.Balance)
	assert.Equal(t, int64(200), creditErr.Required)
	assert.Equal(t, int64(150), creditErr.Shortfall())

	// No provider request was issued and no transaction recorded.
	assert.Zero(t, alpha.callCount())
	txns, err := st.Transactions(context.Background(), user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // only the seed top-up

	// A smaller call fits the remaining balance and debits.
	alpha.mu.Lock()
	alpha.replies = []fakeReply{{text: "ok", usage: domain.TokenUsage{InputTokens: 20, OutputTokens: 10}, rawCost: 0.001}}
	alpha.mu.Unlock()

	result, err := g.Chat(context.Background(), user.ID, chatRequest(80, 200))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.DebitedCredits)

	balance, err := st.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(49), balance)
}

func TestChat_ProviderFailureFallsThrough(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{err: sserrors.Wrap(sserrors.ErrProviderRequest, "alpha: boom")})
	beta := newFakeProvider("beta", fakeReply{
		text:    "fallback answer",
		usage:   domain.TokenUsage{InputTokens: 10, OutputTokens: 5},
		rawCost: 0.002,
	})
	g, st := newTestGateway(t, testTable(), alpha, beta)
	user := seedFundedUser(t, st, 1000)

	result, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.NoError(t, err)

	assert.Equal(t, "beta", result.Provider)
	assert.Equal(t, "fallback answer", result.Text)
	assert.Equal(t, 1, alpha.callCount())
	assert.Equal(t, 1, beta.callCount())

	// Exactly one deduction, for the provider that served the call.
	txns, err := st.Transactions(context.Background(), user.ID, 1)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionDeduction, txns[0].Kind)
	assert.Contains(t, string(txns[0].Metadata), `"provider":"beta"`)
}

func TestChat_AllProvidersFailingDebitsNothing(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{err: sserrors.Wrap(sserrors.ErrProviderRequest, "alpha down")})
	beta := newFakeProvider("beta", fakeReply{err: sserrors.Wrap(sserrors.ErrProviderRequest, "beta down")})
	g, st := newTestGateway(t, testTable(), alpha, beta)
	user := seedFundedUser(t, st, 1000)

	_, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.ErrorIs(t, err, sserrors.ErrNoRouteAvailable)

	balance, berr := st.Balance(context.Background(), user.ID)
	require.NoError(t, berr)
	assert.Equal(t, int64(1000), balance)

	txns, terr := st.Transactions(context.Background(), user.ID, 0)
	require.NoError(t, terr)
	assert.Len(t, txns, 1) // only the seed top-up
}

func TestChat_DisabledProviderIsSkipped(t *testing.T) {
	alpha := newFakeProvider("alpha")
	beta := newFakeProvider("beta", fakeReply{
		text:  "served by beta",
		usage: domain.TokenUsage{InputTokens: 10, OutputTokens: 5},
	})
	g, st := newTestGateway(t, testTable(), alpha, beta)
	user := seedFundedUser(t, st, 1000)

	require.NoError(t, g.providers.SetEnabled(context.Background(), "alpha", false))

	result, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Provider)
	assert.Zero(t, alpha.callCount())
}

func TestChat_NoEnabledProviders(t *testing.T) {
	alpha := newFakeProvider("alpha")
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 1000)

	require.NoError(t, g.providers.SetEnabled(context.Background(), "alpha", false))

	_, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	assert.ErrorIs(t, err, sserrors.ErrNoRouteAvailable)
}

func TestChat_ZeroTokenCallDeductsNothing(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{text: "free"})
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 500)

	result, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.NoError(t, err)
	assert.Zero(t, result.DebitedCredits)
	assert.Zero(t, result.RawCostUSD)

	balance, err := st.Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	txns, err := st.Transactions(context.Background(), user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // only the seed top-up
}

func TestChat_PricesUsageWhenProviderDoesNotReportCost(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{
		text:  "priced from table",
		usage: domain.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	})
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 5000)

	result, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.NoError(t, err)

	// 1000 in at $1/1k + 500 out at $0.10/1k = $1.05 -> 1050 credits.
	assert.InDelta(t, 1.05, result.RawCostUSD, 1e-9)
	assert.Equal(t, int64(1050), result.DebitedCredits)
}

func TestChat_RateLimited(t *testing.T) {
	alpha := newFakeProvider("alpha", fakeReply{
		text:  "ok",
		usage: domain.TokenUsage{InputTokens: 1, OutputTokens: 1},
	})
	fake := clock.NewFake(testEpoch)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := NewProviders(st)
	registry.Register(alpha)
	g := New(st, registry, config.DefaultConfig().Gateway,
		WithRoutingTable(testTable()),
		WithClock(fake),
		WithLimiter(NewMemoryLimiter(1, time.Minute, fake)),
	)
	user := seedFundedUser(t, st, 1000)

	_, err = g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.NoError(t, err)

	_, err = g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	require.ErrorIs(t, err, sserrors.ErrRateLimited)

	var rateErr *sserrors.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))
}

func TestChat_DisabledAccountCannotSpend(t *testing.T) {
	alpha := newFakeProvider("alpha")
	g, st := newTestGateway(t, testTable(), alpha)
	user := seedFundedUser(t, st, 1000)
	require.NoError(t, st.SetUserActive(context.Background(), user.ID, false))

	_, err := g.Chat(context.Background(), user.ID, chatRequest(40, 100))
	assert.ErrorIs(t, err, sserrors.ErrUserDisabled)
	assert.Zero(t, alpha.callCount())
}

func TestChat_UnknownUser(t *testing.T) {
	g, _ := newTestGateway(t, testTable(), newFakeProvider("alpha"))

	_, err := g.Chat(context.Background(), "nobody", chatRequest(40, 100))
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)
}

func TestChat_EmptyRequestRejected(t *testing.T) {
	g, st := newTestGateway(t, testTable(), newFakeProvider("alpha"))
	user := seedFundedUser(t, st, 1000)

	_, err := g.Chat(context.Background(), user.ID, &domain.ChatRequest{})
	assert.ErrorIs(t, err, sserrors.ErrInvalidArgument)
}

func TestChat_PinnedModelBypassesTaskRouting(t *testing.T) {
	alpha := newFakeProvider("alpha")
	beta := newFakeProvider("beta", fakeReply{
		text:  "pinned",
		usage: domain.TokenUsage{InputTokens: 5, OutputTokens: 5},
	})
	g, st := newTestGateway(t, testTable(), alpha, beta)
	user := seedFundedUser(t, st, 1000)

	req := chatRequest(40, 100)
	req.Model = "beta/m2"

	result, err := g.Chat(context.Background(), user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "beta/m2", result.Model)
	assert.Zero(t, alpha.callCount())
}

func TestChat_PinnedModelValidation(t *testing.T) {
	g, st := newTestGateway(t, testTable(), newFakeProvider("alpha"))
	user := seedFundedUser(t, st, 1000)

	req := chatRequest(40, 100)
	req.Model = "bare-model-name"
	_, err := g.Chat(context.Background(), user.ID, req)
	assert.ErrorIs(t, err, sserrors.ErrInvalidArgument)

	req.Model = "alpha/unpriced-model"
	_, err = g.Chat(context.Background(), user.ID, req)
	assert.ErrorIs(t, err, sserrors.ErrNoRouteAvailable)
}

func TestChat_UnknownTaskClassHasNoRoute(t *testing.T) {
	g, st := newTestGateway(t, testTable(), newFakeProvider("alpha"))
	user := seedFundedUser(t, st, 1000)

	req := chatRequest(40, 100)
	req.TaskClass = domain.TaskClassReasoning
	_, err := g.Chat(context.Background(), user.ID, req)
	assert.ErrorIs(t, err, sserrors.ErrNoRouteAvailable)
}

func TestSetProviderEnabled_RequiresAdmin(t *testing.T) {
	g, st := newTestGateway(t, testTable(), newFakeProvider("alpha"))
	user := seedFundedUser(t, st, 0)
	admin := &domain.User{ID: uuid.NewString(), Email: "admin@example.com", Role: constants.RoleAdmin}

	err := g.SetProviderEnabled(context.Background(), user, "alpha", false)
	assert.ErrorIs(t, err, sserrors.ErrAdminRequired)

	require.NoError(t, g.SetProviderEnabled(context.Background(), admin, "alpha", false))

	enabled, err := g.providers.Enabled(context.Background(), "alpha")
	require.NoError(t, err)
	assert.False(t, enabled)

	// Unknown providers are rejected so a typo cannot park dead config.
	err = g.SetProviderEnabled(context.Background(), admin, "missing", true)
	assert.ErrorIs(t, err, sserrors.ErrProviderNotFound)
}

func TestProviderStates_SortedWithSwitches(t *testing.T) {
	g, _ := newTestGateway(t, testTable(), newFakeProvider("beta"), newFakeProvider("alpha"))

	states, err := g.ProviderStates(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "alpha", states[0].Name)
	assert.Equal(t, "beta", states[1].Name)
	assert.True(t, states[0].Enabled)
	assert.True(t, states[1].Enabled)
}

func TestDefaultRoutingTable_CoversEveryTaskAndPriority(t *testing.T) {
	table := DefaultRoutingTable()
	for _, task := range []domain.TaskClass{
		domain.TaskClassChat,
		domain.TaskClassCodeGeneration,
		domain.TaskClassReasoning,
		domain.TaskClassSummarization,
		domain.TaskClassClassification,
	} {
		for _, priority := range []domain.BudgetPriority{
			domain.PriorityQuality, domain.PriorityCost, domain.PrioritySpeed,
		} {
			chain, err := table.Chain(task, priority)
			require.NoError(t, err, "%s/%s", task, priority)
			assert.NotEmpty(t, chain)
		}
	}

	// Reasoning quality leads with the deepest model.
	chain, err := table.Chain(domain.TaskClassReasoning, domain.PriorityQuality)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-opus-4-1", chain[0].ModelID())
}

func TestRoutingTable_EmptyPriorityDefaultsToQuality(t *testing.T) {
	chain, err := testTable().Chain(domain.TaskClassChat, "")
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, domain.PriorityQuality, chain[0].Priority)
}
