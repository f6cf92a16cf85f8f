package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// TestParseSpecID verifies the canonical identifier grammar.
func TestParseSpecID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    SpecID
		wantErr bool
	}{
		{
			name: "canonical feature id",
			raw:  "spec-feat-012-user-auth",
			want: SpecID{Category: "feat", Number: 12, Slug: "user-auth"},
		},
		{
			name: "single word slug",
			raw:  "spec-fix-003-login",
			want: SpecID{Category: "fix", Number: 3, Slug: "login"},
		},
		{
			name: "digits allowed in slug",
			raw:  "spec-chore-101-go2-migration",
			want: SpecID{Category: "chore", Number: 101, Slug: "go2-migration"},
		},
		{name: "missing prefix", raw: "feat-012-user-auth", wantErr: true},
		{name: "uppercase rejected", raw: "spec-FEAT-012-user-auth", wantErr: true},
		{name: "missing number", raw: "spec-feat-user-auth", wantErr: true},
		{name: "trailing hyphen", raw: "spec-feat-012-user-", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpecID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sserrors.ErrInvalidSpecID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSpecIDString verifies the number renders zero-padded to three digits.
func TestSpecIDString(t *testing.T) {
	id := SpecID{Category: "feat", Number: 12, Slug: "user-auth"}
	assert.Equal(t, "spec-feat-012-user-auth", id.String())

	id = SpecID{Category: "chore", Number: 1234, Slug: "big"}
	assert.Equal(t, "spec-chore-1234-big", id.String())
}

// TestSpecIDRoundTrip verifies JSON marshaling uses the canonical string.
func TestSpecIDRoundTrip(t *testing.T) {
	id, err := ParseSpecID("spec-docs-007-readme-refresh")
	require.NoError(t, err)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"spec-docs-007-readme-refresh"`, string(data))

	var back SpecID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)
}

// TestSpecIDBundleDir verifies the bundle path layout.
func TestSpecIDBundleDir(t *testing.T) {
	id := SpecID{Category: "feat", Number: 12, Slug: "user-auth"}
	assert.Equal(t, "specs/feat/spec-feat-012-user-auth", id.BundleDir())
}

// TestSlugFromTitle verifies slug derivation collapses and trims separators.
func TestSlugFromTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User Auth", "user-auth"},
		{"  Fix: login crashes!!  ", "fix-login-crashes"},
		{"a__b--c", "a-b-c"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SlugFromTitle(tt.in), "input %q", tt.in)
	}
}

// TestBundleStateAllTasksClaimed verifies the empty list never counts as done.
func TestBundleStateAllTasksClaimed(t *testing.T) {
	assert.False(t, BundleState{}.AllTasksClaimed())
	assert.False(t, BundleState{TasksTotal: 3, TasksClaimed: 2}.AllTasksClaimed())
	assert.True(t, BundleState{TasksTotal: 3, TasksClaimed: 3}.AllTasksClaimed())
}

// TestTaskHasHooks verifies malformed hooks do not count as usable evidence.
func TestTaskHasHooks(t *testing.T) {
	task := Task{Hooks: []EvidenceHook{{Kind: HookKindCode, Path: "a.go", ParseError: "both contains and regex"}}}
	assert.False(t, task.HasHooks())

	task.Hooks = append(task.Hooks, EvidenceHook{Kind: HookKindTest, Path: "a_test.go"})
	assert.True(t, task.HasHooks())
}

// TestEventTerminal verifies stream termination types.
func TestEventTerminal(t *testing.T) {
	assert.True(t, EventWorkflowCompleted.Terminal())
	assert.True(t, EventWorkflowCancelled.Terminal())
	assert.True(t, EventWorkflowFailed.Terminal())
	assert.False(t, EventWorkflowPaused.Terminal())
	assert.False(t, EventStepCompleted.Terminal())
}

// TestFailedTasksPriorityOrder verifies priority 1 verdicts precede priority 4.
func TestFailedTasksPriorityOrder(t *testing.T) {
	report := VerificationReport{
		Tasks: []TaskVerdict{
			{TaskID: "TASK-001", Passed: false, Priority: 4},
			{TaskID: "TASK-002", Passed: false, Priority: 1},
			{TaskID: "TASK-003", Passed: true},
			{TaskID: "TASK-004", Passed: false, Priority: 1},
		},
	}

	failed := report.FailedTasks()
	require.Len(t, failed, 3)
	assert.Equal(t, "TASK-002", failed[0].TaskID)
	assert.Equal(t, "TASK-004", failed[1].TaskID)
	assert.Equal(t, "TASK-001", failed[2].TaskID)
}

// TestSplitModelID verifies normalized model identifier decomposition.
func TestSplitModelID(t *testing.T) {
	provider, model := SplitModelID("anthropic/claude-sonnet-4-5")
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "claude-sonnet-4-5", model)

	provider, model = SplitModelID("gpt-4o-mini")
	assert.Empty(t, provider)
	assert.Equal(t, "gpt-4o-mini", model)
}

// TestArgsClone verifies stored args never alias the caller's map.
func TestArgsClone(t *testing.T) {
	orig := Args{"spec": "spec-feat-001-demo"}
	clone := orig.Clone()
	clone["spec"] = "mutated"
	assert.Equal(t, "spec-feat-001-demo", orig["spec"])

	assert.Nil(t, Args(nil).Clone())
}
