package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/smartspec/internal/bundle"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	"github.com/mrz1836/smartspec/internal/store"
)

// recentExecutionLimit caps how many executions an Ask answer reports.
const recentExecutionLimit = 10

// AskResult is the typed answer to a natural-language query. Answer is
// always present; the structured fields carry whatever the dispatched
// handler produced so clients can render richer views than the sentence.
type AskResult struct {
	// Query is the classification the answer was dispatched on.
	Query *domain.RoutedQuery `json:"query"`

	// Answer is a human-readable response.
	Answer string `json:"answer"`

	// Bundle is the observed state when the query named one spec.
	Bundle *domain.BundleState `json:"bundle,omitempty"`

	// Bundles holds the workspace overview when no spec was named.
	Bundles []domain.BundleState `json:"bundles,omitempty"`

	// Executions are recent runs relevant to the query, newest first.
	Executions []*domain.Execution `json:"executions,omitempty"`

	// Recommendation is the decision-table verdict for recommendation and
	// complex queries.
	Recommendation *domain.Recommendation `json:"recommendation,omitempty"`
}

// Ask classifies a natural-language request and dispatches it: status and
// existence queries answer from bundle observation and the execution store,
// recommendation and complex queries run the decision table. Low-confidence
// classifications fall back to a status answer, never an error.
func (o *Orchestrator) Ask(ctx context.Context, input string) (*AskResult, error) {
	routed, err := o.nl.Route(ctx, input)
	if err != nil {
		return nil, err
	}

	o.logger.Debug().
		Str("component", "orchestrator").
		Str("kind", string(routed.Kind)).
		Float64("confidence", routed.Confidence).
		Msg("dispatching query")

	switch routed.Kind {
	case domain.QueryRecommendation, domain.QueryComplex:
		return o.askRecommendation(ctx, routed)
	case domain.QueryExistence:
		return o.askExistence(ctx, routed)
	default:
		return o.askStatus(ctx, routed)
	}
}

// askStatus answers "where are things" for one bundle or the workspace.
func (o *Orchestrator) askStatus(ctx context.Context, routed *domain.RoutedQuery) (*AskResult, error) {
	result := &AskResult{Query: routed}

	if routed.SpecID != "" {
		id, err := domain.ParseSpecID(routed.SpecID)
		if err != nil {
			return nil, err
		}
		state, err := bundle.Observe(ctx, o.layout, id)
		if err != nil {
			return nil, err
		}
		execs, err := o.store.ListExecutions(ctx, store.ExecutionFilter{
			SpecID: id.String(),
			Limit:  recentExecutionLimit,
		})
		if err != nil {
			return nil, err
		}

		result.Bundle = &state
		result.Executions = execs
		result.Answer = describeBundle(&state)
		if live := countLive(execs); live > 0 {
			result.Answer += fmt.Sprintf("; %d execution(s) in flight", live)
		}
		return result, nil
	}

	states, err := o.observeAll(ctx)
	if err != nil {
		return nil, err
	}
	execs, err := o.store.ListExecutions(ctx, store.ExecutionFilter{Limit: recentExecutionLimit})
	if err != nil {
		return nil, err
	}

	result.Bundles = states
	result.Executions = execs
	result.Answer = describeWorkspace(states, execs)
	return result, nil
}

// askExistence answers "do we have X" for a spec bundle or a workflow.
func (o *Orchestrator) askExistence(ctx context.Context, routed *domain.RoutedQuery) (*AskResult, error) {
	result := &AskResult{Query: routed}

	switch {
	case routed.SpecID != "":
		id, err := domain.ParseSpecID(routed.SpecID)
		if err != nil {
			return nil, err
		}
		state, err := bundle.Observe(ctx, o.layout, id)
		if err != nil {
			return nil, err
		}
		if !state.HasSpec {
			result.Answer = fmt.Sprintf("%s does not exist", id)
			return result, nil
		}
		result.Bundle = &state
		result.Answer = describeBundle(&state)
		return result, nil

	case routed.Workflow != "":
		if o.registry.Has(routed.Workflow) {
			result.Answer = fmt.Sprintf("workflow %s is available", routed.Workflow)
		} else {
			result.Answer = fmt.Sprintf("workflow %s is not registered", routed.Workflow)
		}
		return result, nil

	default:
		states, err := o.observeAll(ctx)
		if err != nil {
			return nil, err
		}
		result.Bundles = states
		if len(states) == 0 {
			result.Answer = "the workspace has no spec bundles"
			return result, nil
		}
		names := make([]string, len(states))
		for i := range states {
			names[i] = states[i].SpecID.String()
		}
		result.Answer = fmt.Sprintf("the workspace has %d spec bundle(s): %s",
			len(states), strings.Join(names, ", "))
		return result, nil
	}
}

// askRecommendation runs the decision table for the named bundle, the sole
// bundle when only one exists, or an empty workspace. Complex multi-step
// requests get the same verdict plus a note that executions run one workflow
// at a time.
func (o *Orchestrator) askRecommendation(ctx context.Context, routed *domain.RoutedQuery) (*AskResult, error) {
	result := &AskResult{Query: routed}

	state, err := o.recommendationTarget(ctx, routed)
	if err != nil {
		return nil, err
	}
	if state == nil {
		ids, lerr := o.layout.ListSpecs()
		if lerr != nil {
			return nil, lerr
		}
		names := make([]string, len(ids))
		for i := range ids {
			names[i] = ids[i].String()
		}
		result.Answer = fmt.Sprintf("several spec bundles exist; name one of: %s",
			strings.Join(names, ", "))
		return result, nil
	}

	rec, err := o.router.Recommend(ctx, state)
	if err != nil {
		return nil, err
	}
	result.Bundle = state
	result.Recommendation = rec

	switch {
	case rec.Workflow == "":
		result.Answer = rec.Rationale
	case state.SpecID.IsZero():
		result.Answer = fmt.Sprintf("run %s: %s", rec.Workflow, rec.Rationale)
	default:
		result.Answer = fmt.Sprintf("run %s on %s: %s", rec.Workflow, state.SpecID, rec.Rationale)
	}
	if routed.Workflow != "" && routed.Workflow != rec.Workflow {
		result.Answer += fmt.Sprintf(" (you mentioned %s)", routed.Workflow)
	}
	if routed.Kind == domain.QueryComplex && rec.Workflow != "" {
		result.Answer += "; executions run one workflow at a time, so ask again after it completes"
	}
	return result, nil
}

// recommendationTarget picks the bundle a recommendation applies to. Returns
// a zero-spec state for an empty workspace and nil when several bundles are
// candidates and none was named.
func (o *Orchestrator) recommendationTarget(ctx context.Context, routed *domain.RoutedQuery) (*domain.BundleState, error) {
	if routed.SpecID != "" {
		id, err := domain.ParseSpecID(routed.SpecID)
		if err != nil {
			return nil, err
		}
		state, err := bundle.Observe(ctx, o.layout, id)
		if err != nil {
			return nil, err
		}
		return &state, nil
	}

	ids, err := o.layout.ListSpecs()
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return &domain.BundleState{}, nil
	case 1:
		state, oerr := bundle.Observe(ctx, o.layout, ids[0])
		if oerr != nil {
			return nil, oerr
		}
		return &state, nil
	default:
		return nil, nil
	}
}

// observeAll snapshots every bundle in the workspace.
func (o *Orchestrator) observeAll(ctx context.Context) ([]domain.BundleState, error) {
	ids, err := o.layout.ListSpecs()
	if err != nil {
		return nil, err
	}
	states := make([]domain.BundleState, 0, len(ids))
	for _, id := range ids {
		if cerr := ctxutil.Canceled(ctx); cerr != nil {
			return nil, cerr
		}
		state, oerr := bundle.Observe(ctx, o.layout, id)
		if oerr != nil {
			return nil, oerr
		}
		states = append(states, state)
	}
	return states, nil
}

// describeBundle renders one observed bundle as a sentence.
func describeBundle(state *domain.BundleState) string {
	if !state.HasSpec {
		return fmt.Sprintf("%s has no spec.md yet", state.SpecID)
	}

	parts := []string{"spec"}
	if state.HasPlan {
		parts = append(parts, "plan")
	}
	if state.HasTasks {
		parts = append(parts, fmt.Sprintf("tasks (%d/%d claimed)", state.TasksClaimed, state.TasksTotal))
	}
	if state.HasDocs {
		parts = append(parts, "docs")
	}

	sentence := fmt.Sprintf("%s has %s", state.SpecID, strings.Join(parts, ", "))
	if !state.HasTasks {
		return sentence
	}

	switch {
	case !state.HasVerification:
		sentence += "; verification has not run"
	case state.VerificationStale:
		sentence += "; verification is stale"
	case state.VerificationClean:
		sentence += "; verification is clean"
	default:
		sentence += "; verification found failures"
	}
	return sentence
}

// describeWorkspace renders the no-spec status overview.
func describeWorkspace(states []domain.BundleState, execs []*domain.Execution) string {
	if len(states) == 0 {
		return "the workspace has no spec bundles; generate_spec starts one"
	}
	sentence := fmt.Sprintf("%d spec bundle(s), %d recent execution(s)", len(states), len(execs))
	if live := countLive(execs); live > 0 {
		sentence += fmt.Sprintf(", %d in flight", live)
	}
	return sentence
}

// countLive counts executions that have not reached a terminal status.
func countLive(execs []*domain.Execution) int {
	live := 0
	for _, e := range execs {
		switch e.Status {
		case constants.ExecutionStatusPending, constants.ExecutionStatusRunning, constants.ExecutionStatusPaused:
			live++
		}
	}
	return live
}
