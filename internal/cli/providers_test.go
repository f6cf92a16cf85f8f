package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/gateway"
)

// fakeProviderAdmin records switch changes.
type fakeProviderAdmin struct {
	states  []gateway.ProviderState
	routes  []gateway.Route
	toggled string
	enabled bool
	err     error
}

func (f *fakeProviderAdmin) ProviderStates(_ context.Context) ([]gateway.ProviderState, error) {
	return f.states, f.err
}

func (f *fakeProviderAdmin) SetProviderEnabled(_ context.Context, _ *domain.User, name string, enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.toggled = name
	f.enabled = enabled
	return nil
}

func (f *fakeProviderAdmin) Routes() []gateway.Route {
	return f.routes
}

func testProviderStates() []gateway.ProviderState {
	return []gateway.ProviderState{
		{
			Name:         "anthropic",
			Enabled:      true,
			Capabilities: gateway.Capabilities{Streaming: true, ToolCalling: true},
		},
		{
			Name:    "openai",
			Enabled: false,
		},
	}
}

func TestRunProvidersList(t *testing.T) {
	t.Parallel()

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		admin := &fakeProviderAdmin{states: testProviderStates()}
		var buf bytes.Buffer
		err := runProvidersList(context.Background(), &buf, &GlobalFlags{Output: OutputText}, false, admin)
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, out, "anthropic")
		assert.Contains(t, out, "openai")
		assert.Contains(t, out, "disabled")
	})

	t.Run("with routes", func(t *testing.T) {
		t.Parallel()
		admin := &fakeProviderAdmin{
			states: testProviderStates(),
			routes: []gateway.Route{{
				Task:     domain.TaskClassCodeGeneration,
				Priority: domain.PriorityQuality,
				Provider: "anthropic",
				Model:    "claude-sonnet-4-5",
			}},
		}
		var buf bytes.Buffer
		err := runProvidersList(context.Background(), &buf, &GlobalFlags{Output: OutputText}, true, admin)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "claude-sonnet-4-5")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		admin := &fakeProviderAdmin{states: testProviderStates()}
		var buf bytes.Buffer
		err := runProvidersList(context.Background(), &buf, &GlobalFlags{Output: OutputJSON}, false, admin)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"providers"`)
	})
}

func TestRunProvidersToggle(t *testing.T) {
	t.Parallel()

	t.Run("disable", func(t *testing.T) {
		t.Parallel()
		admin := &fakeProviderAdmin{}
		var buf bytes.Buffer
		err := runProvidersToggle(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"openai", false, admin, operatorUser())
		require.NoError(t, err)
		assert.Equal(t, "openai", admin.toggled)
		assert.False(t, admin.enabled)
		assert.Contains(t, buf.String(), "provider openai disabled")
	})

	t.Run("admin required", func(t *testing.T) {
		t.Parallel()
		admin := &fakeProviderAdmin{err: errors.ErrAdminRequired}
		var buf bytes.Buffer
		err := runProvidersToggle(context.Background(), &buf, &GlobalFlags{Output: OutputText},
			"openai", true, admin, nil)
		assert.ErrorIs(t, err, errors.ErrAdminRequired)
	})
}

func TestCapabilitiesCell(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", capabilitiesCell(gateway.Capabilities{}))
	assert.Equal(t, "streaming", capabilitiesCell(gateway.Capabilities{Streaming: true}))
	assert.Equal(t, "streaming, tools, structured",
		capabilitiesCell(gateway.Capabilities{Streaming: true, ToolCalling: true, StructuredOutput: true}))
}
