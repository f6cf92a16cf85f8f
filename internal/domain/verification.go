package domain

import "time"

// TaskCategory is the verifier's classification of one task.
type TaskCategory string

// Task categories, ordered by classification precedence.
const (
	// CategoryNotImplemented means no code or test hook resolved.
	CategoryNotImplemented TaskCategory = "not_implemented"

	// CategoryMissingTests means code hooks resolved but a test hook did not.
	CategoryMissingTests TaskCategory = "missing_tests"

	// CategoryMissingCode means test hooks resolved but a code hook did not.
	CategoryMissingCode TaskCategory = "missing_code"

	// CategoryNamingIssue means a path failed but a similar file exists above
	// the fuzzy threshold.
	CategoryNamingIssue TaskCategory = "naming_issue"

	// CategorySymbolIssue means the path resolved but the symbol is missing.
	CategorySymbolIssue TaskCategory = "symbol_issue"

	// CategoryContentIssue means path and symbol resolved but the content
	// predicate failed.
	CategoryContentIssue TaskCategory = "content_issue"

	// CategoryVerified means every hook resolved.
	CategoryVerified TaskCategory = "verified"

	// CategoryUnverifiable means the task carries no usable hooks. Claimed
	// unverifiable tasks are treated like not_implemented for priority.
	CategoryUnverifiable TaskCategory = "unverifiable"
)

// String implements fmt.Stringer.
func (c TaskCategory) String() string { return string(c) }

// HookFailReason identifies why a single hook failed.
type HookFailReason string

// Hook failure reasons.
const (
	// HookFailMissingFile means the target file does not exist.
	HookFailMissingFile HookFailReason = "missing_file"

	// HookFailSecurity means the path escaped the repository root or used
	// forbidden segments.
	HookFailSecurity HookFailReason = "security"

	// HookFailMissingSymbol means the file exists but the symbol does not.
	HookFailMissingSymbol HookFailReason = "missing_symbol"

	// HookFailContent means the content predicate did not match.
	HookFailContent HookFailReason = "content_mismatch"

	// HookFailValidation means the hook line itself was malformed.
	HookFailValidation HookFailReason = "validation_error"
)

// Suggestion is a fuzzy-match candidate for a hook whose path failed.
// Suggestions never make a hook pass; they only guide remediation.
type Suggestion struct {
	// Path is the candidate file, repository-relative.
	Path string `json:"path"`

	// Score is the normalized similarity in [0,1].
	Score float64 `json:"score"`
}

// HookResult is the resolution outcome of one evidence hook.
type HookResult struct {
	// Hook is the hook as parsed.
	Hook EvidenceHook `json:"hook"`

	// Resolved reports whether every check on the hook passed.
	Resolved bool `json:"resolved"`

	// Reason identifies the first failing check when Resolved is false.
	Reason HookFailReason `json:"reason,omitempty"`

	// Detail is a human-readable elaboration of the failure.
	Detail string `json:"detail,omitempty"`

	// Suggestions lists similar files when the path did not resolve, highest
	// score first, at most three.
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// TaskVerdict is the verifier's judgment of one task.
type TaskVerdict struct {
	// TaskID is the task identifier from the document.
	TaskID string `json:"task_id"`

	// Title is the task text.
	Title string `json:"title"`

	// Claimed reports whether the task was checked off in the document.
	Claimed bool `json:"claimed"`

	// Category is the classification result.
	Category TaskCategory `json:"category"`

	// Priority ranks remediation urgency: 1 (claimed but failing) through
	// 4 (naming issue).
	Priority int `json:"priority"`

	// Passed reports whether the task verified cleanly.
	Passed bool `json:"passed"`

	// Hooks holds the per-hook resolution results in document order.
	Hooks []HookResult `json:"hooks,omitempty"`

	// Remediation lists human-actionable fixes derived from the failures
	// ("Create test file: tests/test_auth.py").
	Remediation []string `json:"remediation,omitempty"`
}

// ReportTotals aggregates verdict counts for quick display.
type ReportTotals struct {
	// Tasks is the total number of tasks in the document.
	Tasks int `json:"tasks"`

	// Verified counts tasks whose every hook resolved.
	Verified int `json:"verified"`

	// Failed counts tasks with at least one failing hook.
	Failed int `json:"failed"`

	// Unverifiable counts tasks with no usable hooks.
	Unverifiable int `json:"unverifiable"`

	// Claimed counts tasks checked off in the document.
	Claimed int `json:"claimed"`
}

// VerificationReport is the verifier's pure-data output. Field names are
// stable: downstream prompt packs and the sync workflow parse this struct.
//
// Example JSON representation:
//
//	{
//	    "spec_id": "spec-feat-012-user-auth",
//	    "tasks_path": "specs/feat/spec-feat-012-user-auth/tasks.md",
//	    "generated_at": "2026-01-15T10:00:00Z",
//	    "totals": {"tasks": 3, "verified": 2, "failed": 1, "unverifiable": 0, "claimed": 2},
//	    "by_category": {"verified": 2, "missing_tests": 1},
//	    "tasks": [...],
//	    "schema_version": "1.0"
//	}
type VerificationReport struct {
	// SpecID identifies the bundle, when the document belongs to one.
	SpecID string `json:"spec_id,omitempty"`

	// TasksPath is the verified document, repository-relative.
	TasksPath string `json:"tasks_path"`

	// GeneratedAt is the UTC report timestamp.
	GeneratedAt time.Time `json:"generated_at"`

	// Totals aggregates verdict counts.
	Totals ReportTotals `json:"totals"`

	// ByCategory counts tasks per classification. Categories with zero
	// tasks are omitted.
	ByCategory map[TaskCategory]int `json:"by_category"`

	// Tasks holds per-task verdicts in document order.
	Tasks []TaskVerdict `json:"tasks"`

	// SchemaVersion tracks the report format for future migrations.
	SchemaVersion string `json:"schema_version"`
}

// Clean reports whether every task verified and none were unverifiable.
// A clean report on an all-claimed document means the bundle is done.
func (r *VerificationReport) Clean() bool {
	return r.Totals.Failed == 0 && r.Totals.Unverifiable == 0 && r.Totals.Tasks > 0
}

// FailedTasks returns the verdicts that did not pass, in priority order
// (priority 1 first), preserving document order within a priority.
func (r *VerificationReport) FailedTasks() []TaskVerdict {
	out := make([]TaskVerdict, 0, len(r.Tasks))
	for priority := 1; priority <= 4; priority++ {
		for _, v := range r.Tasks {
			if !v.Passed && v.Priority == priority {
				out = append(out, v)
			}
		}
	}
	return out
}
