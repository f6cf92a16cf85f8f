package domain

import "strings"

// HookKind categorizes what an evidence hook points at.
type HookKind string

// Hook kind constants. These are the only kinds the parser accepts.
const (
	// HookKindCode points at implementation code.
	HookKindCode HookKind = "code"

	// HookKindTest points at a test artifact.
	HookKindTest HookKind = "test"

	// HookKindDoc points at documentation.
	HookKindDoc HookKind = "doc"
)

// ValidHookKind reports whether s names a supported hook kind.
func ValidHookKind(s string) bool {
	switch HookKind(s) {
	case HookKindCode, HookKindTest, HookKindDoc:
		return true
	default:
		return false
	}
}

// EvidenceHook binds a task to a concrete artifact on disk. A task passes
// verification only if every hook resolves to a file that exists, contains
// the symbol if one is named, and satisfies the content predicate if present.
//
// Example source line:
//
//	evidence: code path="src/auth.go" symbol=HashPassword contains="bcrypt"
type EvidenceHook struct {
	// Kind is code, test, or doc.
	Kind HookKind `json:"kind"`

	// Path is the repository-relative target file. Never absolute, never
	// containing "..".
	Path string `json:"path"`

	// Symbol optionally names a definition expected inside the file.
	Symbol string `json:"symbol,omitempty"`

	// Contains optionally requires the file to contain this literal.
	Contains string `json:"contains,omitempty"`

	// Regex optionally requires the file to match this pattern. Contains and
	// Regex are mutually exclusive.
	Regex string `json:"regex,omitempty"`

	// Line is the 1-based line number the hook was parsed from.
	Line int `json:"line"`

	// ParseError records why the hook is malformed. A hook with a parse
	// error never resolves; it fails with a validation reason.
	ParseError string `json:"parse_error,omitempty"`
}

// Task is one checklist item extracted from a tasks document, carrying its
// claim bit and any evidence hooks bound to it.
//
// Example JSON representation:
//
//	{
//	    "id": "TASK-001",
//	    "title": "Implement password hashing",
//	    "claimed": true,
//	    "line": 12,
//	    "hooks": [...]
//	}
type Task struct {
	// ID is the task identifier extracted from the heading or bullet text
	// (e.g. "TASK-001"). Falls back to a line-derived identifier when the
	// text carries none.
	ID string `json:"id"`

	// Title is the task text with checkbox and identifier markers stripped.
	Title string `json:"title"`

	// Claimed reports whether the checkbox is checked ([x] or [X]).
	Claimed bool `json:"claimed"`

	// Line is the 1-based line number of the task's heading or bullet.
	Line int `json:"line"`

	// Hooks are the evidence hooks bound to this task, in document order.
	Hooks []EvidenceHook `json:"hooks,omitempty"`
}

// HasHooks reports whether at least one well-formed hook is attached.
func (t *Task) HasHooks() bool {
	for i := range t.Hooks {
		if t.Hooks[i].ParseError == "" {
			return true
		}
	}
	return false
}

// TasksDocument is the parse result of one tasks.md: every task in document
// order plus any hook lines that could not be attributed to a task.
type TasksDocument struct {
	// Path is the document location, repository-relative.
	Path string `json:"path"`

	// Tasks lists every extracted task in document order.
	Tasks []Task `json:"tasks"`

	// OrphanHooks are evidence lines with no enclosing task.
	OrphanHooks []EvidenceHook `json:"orphan_hooks,omitempty"`

	// SchemaVersion tracks the document format for future migrations.
	SchemaVersion string `json:"schema_version"`
}

// ClaimedCount returns how many tasks are checked off.
func (d *TasksDocument) ClaimedCount() int {
	n := 0
	for i := range d.Tasks {
		if d.Tasks[i].Claimed {
			n++
		}
	}
	return n
}

// TaskByID returns the task with the given ID, matching case-insensitively.
// Returns nil when absent.
func (d *TasksDocument) TaskByID(id string) *Task {
	for i := range d.Tasks {
		if strings.EqualFold(d.Tasks[i].ID, id) {
			return &d.Tasks[i]
		}
	}
	return nil
}
