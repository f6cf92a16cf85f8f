package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

// fakeWorkflowLister serves canned descriptors.
type fakeWorkflowLister struct {
	descriptors []*domain.Descriptor
}

func (f *fakeWorkflowLister) List() []*domain.Descriptor {
	return f.descriptors
}

func TestRunWorkflows(t *testing.T) {
	t.Parallel()

	registry := &fakeWorkflowLister{descriptors: []*domain.Descriptor{
		{
			Name:        constants.WorkflowVerifyTasks,
			Category:    "verification",
			Version:     "1.0.0",
			Description: "Verify claimed task evidence against the working tree",
			Effects:     domain.EffectSet{WritesRuntime: true},
		},
		{
			Name:        constants.WorkflowGenerateSpec,
			Category:    "authoring",
			Version:     "1.0.0",
			Description: "Draft a new spec bundle",
			Effects:     domain.EffectSet{WritesGoverned: true, RequiresNetwork: true},
		},
	}}

	t.Run("table output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runWorkflows(context.Background(), &buf, &GlobalFlags{Output: OutputText}, registry)
		require.NoError(t, err)
		out := buf.String()
		assert.Contains(t, out, constants.WorkflowVerifyTasks)
		assert.Contains(t, out, "authoring")
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		err := runWorkflows(context.Background(), &buf, &GlobalFlags{Output: OutputJSON}, registry)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"requires_network"`)
	})
}

func TestEffectsCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		effects domain.EffectSet
		want    string
	}{
		{name: "read only", effects: domain.EffectSet{}, want: "read-only"},
		{name: "governed", effects: domain.EffectSet{WritesGoverned: true}, want: "governed"},
		{name: "runtime", effects: domain.EffectSet{WritesRuntime: true}, want: "runtime"},
		{name: "network only", effects: domain.EffectSet{RequiresNetwork: true}, want: "network"},
		{
			name:    "everything",
			effects: domain.EffectSet{WritesGoverned: true, WritesRuntime: true, RequiresNetwork: true},
			want:    "governed, runtime, network",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, effectsCell(tc.effects))
		})
	}
}
