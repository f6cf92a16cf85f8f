package domain

import "time"

// Recommendation is the router's answer to "what should run next on this
// spec". It is advice only; nothing executes until the caller invokes run.
type Recommendation struct {
	// Workflow is the recommended descriptor name.
	Workflow string `json:"workflow"`

	// SpecID is the bundle the recommendation was computed from.
	SpecID string `json:"spec_id,omitempty"`

	// Rationale explains which observed state produced the recommendation.
	Rationale string `json:"rationale"`

	// EstimatedDuration is the expected runtime of the workflow.
	EstimatedDuration time.Duration `json:"estimated_duration"`

	// Warnings lists prerequisite concerns (stale verification, checkbox
	// drift) the caller should weigh before running.
	Warnings []string `json:"warnings,omitempty"`

	// RequiredFlags names universal flags the workflow's effects demand
	// (apply, allow-network).
	RequiredFlags []string `json:"required_flags,omitempty"`
}

// QueryKind classifies a natural-language request.
type QueryKind string

// Query kinds the NL router distinguishes.
const (
	// QueryStatus asks about current executions or bundle progress.
	QueryStatus QueryKind = "status_query"

	// QueryRecommendation asks what to do next.
	QueryRecommendation QueryKind = "recommendation_query"

	// QueryExistence asks whether an artifact or spec exists.
	QueryExistence QueryKind = "existence_query"

	// QueryComplex needs an LLM or a human to decompose.
	QueryComplex QueryKind = "complex_query"
)

// RoutedQuery is the NL router's classification of one input string. Every
// result carries a confidence; callers fall back to a status query below the
// confidence floor.
type RoutedQuery struct {
	// Kind is the classified intent.
	Kind QueryKind `json:"kind"`

	// SpecID is the spec identifier extracted from the input, if any.
	SpecID string `json:"spec_id,omitempty"`

	// Workflow is the workflow name extracted from the input, if any.
	Workflow string `json:"workflow,omitempty"`

	// Confidence is the classifier's self-assessed score in [0,1].
	Confidence float64 `json:"confidence"`

	// Fallback reports that confidence fell below the floor and the kind
	// was coerced to status_query.
	Fallback bool `json:"fallback,omitempty"`
}
