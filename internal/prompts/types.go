package prompts

// PromptID identifies a specific prompt template.
type PromptID string

// Prompt identifiers for every model-facing template in SmartSpec.
const (
	// Artifact drafting prompts, selected by generate steps.
	SpecDraft      PromptID = "generate/spec"
	PlanDraft      PromptID = "generate/plan"
	TasksDraft     PromptID = "generate/tasks"
	ImplementGuide PromptID = "generate/implement"

	// PackCategory renders one remediation prompt file per failing
	// verification category.
	PackCategory PromptID = "pack/category"
)

// SpecDraftData feeds the spec.md drafting prompt.
type SpecDraftData struct {
	// SpecID is the canonical identifier the new bundle will live under.
	SpecID string
	// Title is the human-readable title the bundle was requested with.
	Title string
	// Category is the bundle category (feat, fix, infra, docs, chore).
	Category string
	// Guidance is optional extra direction from the requester.
	Guidance string
}

// PlanDraftData feeds the plan.md drafting prompt.
type PlanDraftData struct {
	// SpecID identifies the bundle being planned.
	SpecID string
	// SpecContent is the governed spec.md the plan derives from.
	SpecContent string
	// Guidance is optional extra direction from the requester.
	Guidance string
}

// TasksDraftData feeds the tasks.md drafting prompt.
type TasksDraftData struct {
	// SpecID identifies the bundle the checklist belongs to.
	SpecID string
	// SpecContent is the governed spec.md.
	SpecContent string
	// PlanContent is the governed plan.md the checklist decomposes.
	PlanContent string
	// Guidance is optional extra direction from the requester.
	Guidance string
}

// ImplementGuideData feeds the implementation guidance prompt.
type ImplementGuideData struct {
	// SpecID identifies the bundle under work.
	SpecID string
	// Tasks are the failing verdicts, highest priority first.
	Tasks []PackTask
	// HasReport is false when verification has never run; the prompt then
	// derives the outstanding work from the raw checklist instead.
	HasReport bool
	// TasksContent is the raw tasks.md, used when HasReport is false.
	TasksContent string
	// Guidance is optional extra direction from the requester.
	Guidance string
}

// PackTask is one failing task as presented to the model.
type PackTask struct {
	// ID is the task identifier from the document.
	ID string
	// Title is the task text.
	Title string
	// Claimed reports whether the task was checked off.
	Claimed bool
	// Priority ranks remediation urgency, 1 highest.
	Priority int
	// Evidence holds the rendered hook outcomes, one line each.
	Evidence []string
	// Remediation lists actionable fixes from the verifier.
	Remediation []string
}

// PackCategoryData feeds one remediation prompt-pack file.
type PackCategoryData struct {
	// SpecID is the verified bundle.
	SpecID string
	// RunID is the verification run the pack derives from.
	RunID string
	// Category is the machine name of the failure class.
	Category string
	// Heading is the human name of the failure class.
	Heading string
	// Advice is the category-level remediation paragraph.
	Advice string
	// Tasks are this category's failing verdicts in priority order.
	Tasks []PackTask
}
