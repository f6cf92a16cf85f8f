// Package constants provides centralized constant values used throughout SmartSpec.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by SmartSpec for organizing data.
const (
	// SmartSpecHome is the hidden directory name where SmartSpec stores global data.
	// This directory is created in the user's home directory.
	SmartSpecHome = ".smartspec"

	// LogsDir is the directory name where log files are stored under SmartSpecHome.
	LogsDir = "logs"

	// SpecsDir is the repository directory that holds governed spec bundles.
	SpecsDir = "specs"

	// RuntimeDir is the repository directory that holds runtime (non-governed) files:
	// reports, prompt packs, locks, and the local database.
	RuntimeDir = ".spec"

	// ReportsDir is the directory under RuntimeDir where workflow reports are written.
	ReportsDir = "reports"

	// PromptsDir is the directory under RuntimeDir where prompt packs are written.
	PromptsDir = "prompts"

	// ScriptsDir is the directory under RuntimeDir reserved for generated helper scripts.
	ScriptsDir = "scripts"

	// LocksDir is the directory under RuntimeDir where bundle lock files live.
	LocksDir = "locks"

	// WorkflowsDir is the directory under RuntimeDir where user-provided workflow
	// descriptors are discovered at startup.
	WorkflowsDir = "workflows"
)

// Governed artifact file names within a spec bundle.
const (
	// SpecFileName is the governed specification artifact.
	SpecFileName = "spec.md"

	// PlanFileName is the governed plan artifact.
	PlanFileName = "plan.md"

	// TasksFileName is the governed tasks artifact with parseable evidence hooks.
	TasksFileName = "tasks.md"

	// DocsFileName is the governed documentation digest artifact.
	DocsFileName = "docs.md"

	// TestplanDirName is the governed test plan subtree within a bundle.
	TestplanDirName = "testplan"
)

// Runtime file names.
const (
	// DatabaseFileName is the sqlite database under RuntimeDir.
	DatabaseFileName = "smartspec.db"

	// ReportFileName is the human-readable report emitted by report-producing steps.
	ReportFileName = "report.md"

	// ReportDataFileName is the full verification report as structured data,
	// written by verify steps and consumed by prompt packs and guidance.
	ReportDataFileName = "report.json"

	// SummaryFileName is the machine-readable report summary.
	SummaryFileName = "summary.json"

	// GuidanceFileName is the generated implementation guidance artifact.
	GuidanceFileName = "guidance.md"

	// EventsFileName is the JSON Lines event log flushed at execution end.
	EventsFileName = "events.jsonl"
)

// Engine defaults.
const (
	// DefaultFanOut is the default maximum number of steps of one execution that
	// may run concurrently when their dependencies are satisfied.
	DefaultFanOut = 4

	// DefaultWorkflowTimeout is the implicit timeout applied to an execution when
	// its descriptor does not declare one.
	DefaultWorkflowTimeout = 30 * time.Minute

	// DefaultCancelGrace is how long the engine waits for a cancelled step to
	// observe the cancel token before issuing a hard stop.
	DefaultCancelGrace = 30 * time.Second

	// DefaultInterruptTimeout is how long a human-in-the-loop interrupt waits for
	// a response before the execution fails with interrupt_timeout.
	DefaultInterruptTimeout = time.Hour

	// DefaultStepProgressBudget is the CPU-bound budget between suspension points.
	// Steps exceeding it are logged as malformed but not aborted.
	DefaultStepProgressBudget = 100 * time.Millisecond
)

// Verifier defaults.
const (
	// DefaultFuzzyThreshold is the minimum normalized similarity for a missing
	// path to produce a naming suggestion.
	DefaultFuzzyThreshold = 0.55

	// MaxFuzzySuggestions caps how many similar files are suggested per hook.
	MaxFuzzySuggestions = 3
)

// Gateway defaults.
const (
	// DefaultRateLimitPerMinute is the per-user request budget enforced before
	// any cost estimation happens.
	DefaultRateLimitPerMinute = 60

	// DefaultExpectedOutputTokens is the conservative output estimate used when
	// a workflow does not declare one.
	DefaultExpectedOutputTokens = 1024

	// DefaultMaxTokens bounds provider completions when a request does not set one.
	DefaultMaxTokens = 4096

	// RateLimitWindow is the fixed window the per-user request budget applies to.
	RateLimitWindow = time.Minute

	// EstimateCharsPerToken is the prompt-size heuristic for pre-flight cost
	// estimation: roughly four characters of English text per token.
	EstimateCharsPerToken = 4

	// DefaultProviderConcurrency caps in-flight calls per provider adapter.
	DefaultProviderConcurrency = 4

	// DefaultGatewayConcurrency caps in-flight provider calls across the gateway.
	DefaultGatewayConcurrency = 16
)

// Log rotation settings for the global CLI log file.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation, in megabytes.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files to retain.
	LogMaxBackups = 5

	// LogMaxAgeDays is the maximum age of rotated log files, in days.
	LogMaxAgeDays = 30

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Schema version constants for data migration support.
const (
	// ExecutionSchemaVersion is the current version of the persisted execution schema.
	ExecutionSchemaVersion = "1.0"

	// ReportSchemaVersion is the current version of the verification report schema.
	ReportSchemaVersion = "1.0"
)
