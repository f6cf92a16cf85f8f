package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_SpecDraft(t *testing.T) {
	got, err := Render(SpecDraft, SpecDraftData{
		SpecID:   "spec-feat-012-user-auth",
		Title:    "User authentication",
		Category: "feat",
	})
	require.NoError(t, err)

	require.Contains(t, got, "Spec ID: spec-feat-012-user-auth")
	require.Contains(t, got, "# User authentication")
	require.Contains(t, got, "## Acceptance criteria")
	require.Contains(t, got, "Output rules:")
	require.NotContains(t, got, "Additional guidance")
}

func TestRender_SpecDraft_WithGuidance(t *testing.T) {
	got, err := Render(SpecDraft, SpecDraftData{
		SpecID:   "spec-feat-012-user-auth",
		Title:    "User authentication",
		Category: "feat",
		Guidance: "Support SSO from day one.",
	})
	require.NoError(t, err)

	require.Contains(t, got, "Additional guidance from the requester:")
	require.Contains(t, got, "Support SSO from day one.")
}

func TestRender_PlanDraft(t *testing.T) {
	got, err := Render(PlanDraft, PlanDraftData{
		SpecID:      "spec-feat-012-user-auth",
		SpecContent: "# User authentication\n\nPasswords are hashed.",
	})
	require.NoError(t, err)

	require.Contains(t, got, "spec spec-feat-012-user-auth")
	require.Contains(t, got, "Passwords are hashed.")
	require.Contains(t, got, "# Implementation Plan")
	require.Contains(t, got, "## Risks")
}

func TestRender_TasksDraft_IncludesHookGrammar(t *testing.T) {
	got, err := Render(TasksDraft, TasksDraftData{
		SpecID:      "spec-feat-012-user-auth",
		SpecContent: "the spec text",
		PlanContent: "the plan text",
	})
	require.NoError(t, err)

	require.Contains(t, got, "the spec text")
	require.Contains(t, got, "the plan text")
	require.Contains(t, got, "evidence: <kind> path=<path>")
	require.Contains(t, got, "TASK-001 Implement password hashing")
	require.Contains(t, got, "Every checkbox starts unchecked")
}

func TestRender_ImplementGuide_WithReport(t *testing.T) {
	got, err := Render(ImplementGuide, ImplementGuideData{
		SpecID:    "spec-feat-012-user-auth",
		HasReport: true,
		Tasks: []PackTask{
			{
				ID:          "TASK-002",
				Title:       "Add login endpoint",
				Claimed:     true,
				Priority:    1,
				Evidence:    []string{"code internal/api/login.go: missing_file"},
				Remediation: []string{"Create file: internal/api/login.go"},
			},
		},
	})
	require.NoError(t, err)

	require.Contains(t, got, "[x] TASK-002 Add login endpoint (priority 1)")
	require.Contains(t, got, "code internal/api/login.go: missing_file")
	require.Contains(t, got, "Create file: internal/api/login.go")
	require.NotContains(t, got, "No verification report exists yet")
}

func TestRender_ImplementGuide_WithoutReport(t *testing.T) {
	got, err := Render(ImplementGuide, ImplementGuideData{
		SpecID:       "spec-feat-012-user-auth",
		HasReport:    false,
		TasksContent: "- [ ] TASK-001 Do the thing",
	})
	require.NoError(t, err)

	require.Contains(t, got, "No verification report exists yet")
	require.Contains(t, got, "- [ ] TASK-001 Do the thing")
}

func TestRender_PackCategory(t *testing.T) {
	got, err := Render(PackCategory, PackCategoryData{
		SpecID:   "spec-feat-012-user-auth",
		RunID:    "run-abc",
		Category: "missing_tests",
		Heading:  "Missing tests",
		Advice:   "Code landed without its proof. Write the tests first.",
		Tasks: []PackTask{
			{ID: "TASK-003", Title: "Hash passwords", Claimed: true, Priority: 1,
				Evidence:    []string{"test internal/auth/hash_test.go: missing_file"},
				Remediation: []string{"Create test file: internal/auth/hash_test.go"}},
			{ID: "TASK-004", Title: "Rotate sessions", Priority: 2},
		},
	})
	require.NoError(t, err)

	require.Contains(t, got, "# Remediation prompt: Missing tests")
	require.Contains(t, got, "- Verification run: run-abc")
	require.Contains(t, got, "- Tasks in this category: 2")
	require.Contains(t, got, "## TASK-003 [x] Hash passwords")
	require.Contains(t, got, "## TASK-004 [ ] Rotate sessions")
	require.Contains(t, got, "Create test file: internal/auth/hash_test.go")
	require.Contains(t, got, `failed with category "missing_tests"`)
}

func TestRender_UnknownID(t *testing.T) {
	_, err := Render(PromptID("generate/nope"), nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestList_ContainsAllPrompts(t *testing.T) {
	ids := List()
	for _, want := range []PromptID{SpecDraft, PlanDraft, TasksDraft, ImplementGuide, PackCategory} {
		require.Contains(t, ids, want)
		require.True(t, Exists(want))
	}
	require.False(t, Exists(PromptID("generate/nope")))
}

func TestValidateData(t *testing.T) {
	tests := []struct {
		name    string
		id      PromptID
		data    any
		wantErr bool
	}{
		{name: "spec ok", id: SpecDraft, data: SpecDraftData{}, wantErr: false},
		{name: "spec wrong type", id: SpecDraft, data: PlanDraftData{}, wantErr: true},
		{name: "plan ok", id: PlanDraft, data: PlanDraftData{}, wantErr: false},
		{name: "tasks wrong type", id: TasksDraft, data: "nope", wantErr: true},
		{name: "implement ok", id: ImplementGuide, data: ImplementGuideData{}, wantErr: false},
		{name: "pack wrong type", id: PackCategory, data: SpecDraftData{}, wantErr: true},
		{name: "unknown id passes", id: PromptID("x/y"), data: 42, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateData(tt.id, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidData))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMustRender_PanicsOnUnknown(t *testing.T) {
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		require.True(t, strings.Contains(rec.(string), "generate/nope"))
	}()
	MustRender(PromptID("generate/nope"), nil)
}
