package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
)

// TestParseDocumentChecklist verifies checklist bullets become tasks with
// claim bits and attached hooks.
func TestParseDocumentChecklist(t *testing.T) {
	input := `# Tasks

## Authentication

- [x] TASK-001 Implement password hashing
  evidence: code path="src/auth.go" symbol=HashPassword
  evidence: test path="src/auth_test.go" contains="HashPassword"
- [ ] TASK-002 Add login endpoint
  evidence: code path=src/login.go
`

	doc, err := ParseDocument(strings.NewReader(input), "tasks.md")
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 2)

	first := doc.Tasks[0]
	assert.Equal(t, "TASK-001", first.ID)
	assert.Equal(t, "TASK-001 Implement password hashing", first.Title)
	assert.True(t, first.Claimed)
	assert.Equal(t, 5, first.Line)
	require.Len(t, first.Hooks, 2)
	assert.Equal(t, domain.HookKindCode, first.Hooks[0].Kind)
	assert.Equal(t, "src/auth.go", first.Hooks[0].Path)
	assert.Equal(t, "HashPassword", first.Hooks[0].Symbol)
	assert.Equal(t, domain.HookKindTest, first.Hooks[1].Kind)
	assert.Equal(t, "HashPassword", first.Hooks[1].Contains)

	second := doc.Tasks[1]
	assert.Equal(t, "TASK-002", second.ID)
	assert.False(t, second.Claimed)
	require.Len(t, second.Hooks, 1)
	assert.Equal(t, "src/login.go", second.Hooks[0].Path)
}

// TestParseDocumentHeadingTask verifies hooks outside a bullet attach to the
// nearest level 2/3 heading, which becomes a task lazily.
func TestParseDocumentHeadingTask(t *testing.T) {
	input := `## TASK-010: Wire metrics

Some prose about the task.

evidence: code path="internal/metrics/metrics.go"

### Subsection note

evidence: doc path="docs/metrics.md"
`

	doc, err := ParseDocument(strings.NewReader(input), "tasks.md")
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 2)

	assert.Equal(t, "TASK-010", doc.Tasks[0].ID)
	assert.False(t, doc.Tasks[0].Claimed)
	require.Len(t, doc.Tasks[0].Hooks, 1)

	// The level-3 heading replaces the context.
	assert.Equal(t, "Subsection note", doc.Tasks[1].Title)
	require.Len(t, doc.Tasks[1].Hooks, 1)
	assert.Equal(t, domain.HookKindDoc, doc.Tasks[1].Hooks[0].Kind)
}

// TestParseDocumentOrphanHooks verifies hooks before any task or heading are
// kept as orphans.
func TestParseDocumentOrphanHooks(t *testing.T) {
	input := `evidence: code path="src/stray.go"

- [ ] TASK-001 Real task
`
	doc, err := ParseDocument(strings.NewReader(input), "tasks.md")
	require.NoError(t, err)
	require.Len(t, doc.OrphanHooks, 1)
	assert.Equal(t, "src/stray.go", doc.OrphanHooks[0].Path)
	assert.Equal(t, 1, doc.OrphanHooks[0].Line)
}

// TestParseHookGrammar exercises the hook tokenizer edge cases.
func TestParseHookGrammar(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   string
		wantHook  domain.EvidenceHook
		checkHook bool
	}{
		{
			name: "bare path",
			body: "code path=src/a.go",
			wantHook: domain.EvidenceHook{
				Kind: domain.HookKindCode, Path: "src/a.go",
			},
			checkHook: true,
		},
		{
			name: "quoted path with spaces preserved",
			body: `doc path="docs/design notes.md"`,
			wantHook: domain.EvidenceHook{
				Kind: domain.HookKindDoc, Path: "docs/design notes.md",
			},
			checkHook: true,
		},
		{
			name: "regex slashes",
			body: `test path=tests/auth_test.go regex=/func TestHash\w+/`,
			wantHook: domain.EvidenceHook{
				Kind: domain.HookKindTest, Path: "tests/auth_test.go", Regex: `func TestHash\w+`,
			},
			checkHook: true,
		},
		{
			name: "contains with spaces",
			body: `test path=tests/auth_test.go contains="hash password"`,
			wantHook: domain.EvidenceHook{
				Kind: domain.HookKindTest, Path: "tests/auth_test.go", Contains: "hash password",
			},
			checkHook: true,
		},
		{name: "unknown kind", body: "blob path=a.go", wantErr: "unknown hook kind"},
		{name: "missing path", body: "code symbol=Foo", wantErr: "missing required path"},
		{name: "both predicates", body: `code path=a.go contains="x" regex=/y/`, wantErr: "mutually exclusive"},
		{name: "unterminated quote", body: `code path="a.go`, wantErr: "unterminated"},
		{name: "unterminated regex", body: `code path=a.go regex=/foo`, wantErr: "unterminated"},
		{name: "unknown key", body: "code path=a.go size=12", wantErr: "unknown hook key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := parseHookBody(tt.body)
			if tt.wantErr != "" {
				assert.Contains(t, hook.ParseError, tt.wantErr)
				return
			}
			require.Empty(t, hook.ParseError)
			if tt.checkHook {
				assert.Equal(t, tt.wantHook.Kind, hook.Kind)
				assert.Equal(t, tt.wantHook.Path, hook.Path)
				assert.Equal(t, tt.wantHook.Symbol, hook.Symbol)
				assert.Equal(t, tt.wantHook.Contains, hook.Contains)
				assert.Equal(t, tt.wantHook.Regex, hook.Regex)
			}
		})
	}
}

// TestParseDocumentIgnoresUnrecognizedLines verifies prose never breaks the
// parse and malformed hooks are kept with their parse error.
func TestParseDocumentIgnoresUnrecognizedLines(t *testing.T) {
	input := `Random prose, evidence mentioned casually.

- [ ] TASK-001 Something
  evidence: code path=a.go contains="x" regex=/y/
  not an evidence line at all
`
	doc, err := ParseDocument(strings.NewReader(input), "tasks.md")
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 1)
	require.Len(t, doc.Tasks[0].Hooks, 1)
	assert.Contains(t, doc.Tasks[0].Hooks[0].ParseError, "mutually exclusive")
	assert.False(t, doc.Tasks[0].HasHooks())
}

// TestExtractTaskIDFallback verifies tasks without explicit IDs get a
// line-derived identifier.
func TestExtractTaskIDFallback(t *testing.T) {
	assert.Equal(t, "TASK-007", extractTaskID("TASK-007 do things", 3))
	assert.Equal(t, "AUTH-12", extractTaskID("AUTH-12: harden login", 9))
	assert.Equal(t, "task-L42", extractTaskID("just words here", 42))
}
