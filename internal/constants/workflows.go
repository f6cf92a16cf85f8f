package constants

// Builtin workflow names. The registry embeds a descriptor for each; the
// recommendation decision table emits exactly these.
const (
	// WorkflowGenerateSpec drafts a new spec.md, optionally from a prompt.
	WorkflowGenerateSpec = "generate_spec"

	// WorkflowGeneratePlan derives plan.md from an existing spec.md.
	WorkflowGeneratePlan = "generate_plan"

	// WorkflowGenerateTasks derives tasks.md from an existing plan.md.
	WorkflowGenerateTasks = "generate_tasks"

	// WorkflowVerifyTasks runs the evidence verifier over tasks.md and
	// writes a report run under .spec/reports/verify_tasks/.
	WorkflowVerifyTasks = "verify_tasks"

	// WorkflowImplementTasks drives implementation of unchecked tasks.
	WorkflowImplementTasks = "implement_tasks"

	// WorkflowSyncTasksCheckboxes rewrites claim bits to match the latest
	// verification report.
	WorkflowSyncTasksCheckboxes = "sync_tasks_checkboxes"

	// WorkflowReportImplementPrompter renders per-category prompt packs
	// from the latest verification report.
	WorkflowReportImplementPrompter = "report_implement_prompter"

	// WorkflowGenerateDocs renders the bundle digest into docs.md.
	WorkflowGenerateDocs = "generate_docs"

	// WorkflowReleaseTagger creates an annotated release tag for the spec.
	WorkflowReleaseTagger = "release_tagger"
)

// ReleaseTagPrefix prefixes annotated release tags: release/<spec-id>.
// The git_tag step and the release-tag observation must agree on it.
const ReleaseTagPrefix = "release/"

// BuiltinWorkflows lists every builtin workflow name in decision-table order.
//
//nolint:gochecknoglobals // fixed catalog of builtin names
var BuiltinWorkflows = []string{
	WorkflowGenerateSpec,
	WorkflowGeneratePlan,
	WorkflowGenerateTasks,
	WorkflowVerifyTasks,
	WorkflowReportImplementPrompter,
	WorkflowImplementTasks,
	WorkflowSyncTasksCheckboxes,
	WorkflowGenerateDocs,
	WorkflowReleaseTagger,
}
