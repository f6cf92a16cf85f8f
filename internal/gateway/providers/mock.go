package providers

import (
	"context"
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/gateway"
)

// MockReply is one scripted response for a Mock provider.
type MockReply struct {
	Text       string
	Usage      domain.TokenUsage
	RawCostUSD float64
	Err        error
}

// Mock is a scriptable in-process provider for tests and offline dry runs.
// Replies are consumed in order; the last reply repeats once the script runs
// out. Safe for concurrent use.
type Mock struct {
	name string

	mu      sync.Mutex
	replies []MockReply
	calls   []gateway.ProviderRequest
}

// NewMock creates a mock provider answering with the given replies.
func NewMock(name string, replies ...MockReply) *Mock {
	if name == "" {
		name = "mock"
	}
	if len(replies) == 0 {
		replies = []MockReply{{Text: "ok"}}
	}
	return &Mock{name: name, replies: replies}
}

// Name implements gateway.Provider.
func (m *Mock) Name() string { return m.name }

// Capabilities implements gateway.Provider.
func (m *Mock) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{StructuredOutput: true}
}

// Chat implements gateway.Provider.
func (m *Mock) Chat(_ context.Context, req *gateway.ProviderRequest) (*gateway.ProviderResult, error) {
	m.mu.Lock()
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	m.calls = append(m.calls, *req)
	m.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &gateway.ProviderResult{
		Text:       reply.Text,
		Usage:      reply.Usage,
		RawCostUSD: reply.RawCostUSD,
	}, nil
}

// Calls returns a copy of every request received, oldest first.
func (m *Mock) Calls() []gateway.ProviderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gateway.ProviderRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
