package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// TagChecker reports whether a release tag already exists for a spec
// bundle. The git package provides the real implementation; tests stub it.
type TagChecker interface {
	HasReleaseTag(ctx context.Context, specID domain.SpecID) (bool, error)
}

// Router turns an observed bundle state into a single workflow
// recommendation. The decision table is a first-match cascade: each row keys
// on the earliest missing or out-of-date artifact, so repeatedly running the
// recommended workflow walks a bundle from empty directory to tagged release.
type Router struct {
	registry *Registry
	tags     TagChecker
}

// NewRouter returns a Router reading descriptors from registry and release
// tags from tags.
func NewRouter(registry *Registry, tags TagChecker) *Router {
	return &Router{registry: registry, tags: tags}
}

// Recommend evaluates the decision table against state and returns the
// first matching row. A fully complete bundle returns a recommendation with
// an empty Workflow and a rationale saying so.
func (r *Router) Recommend(ctx context.Context, state *domain.BundleState) (*domain.Recommendation, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "nil bundle state")
	}

	workflow, rationale, warnings, err := r.match(ctx, state)
	if err != nil {
		return nil, err
	}

	rec := &domain.Recommendation{
		Workflow:  workflow,
		Rationale: rationale,
		Warnings:  warnings,
	}
	if !state.SpecID.IsZero() {
		rec.SpecID = state.SpecID.String()
	}
	if workflow != "" {
		d, gerr := r.registry.Get(workflow)
		if gerr != nil {
			return nil, gerr
		}
		rec.EstimatedDuration = d.EstimatedDuration
		rec.RequiredFlags = requiredFlags(d.Effects)
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "router").
		Str("spec_id", state.SpecID.String()).
		Str("workflow", workflow).
		Str("rationale", rationale).
		Msg("recommendation computed")

	return rec, nil
}

// match walks the table rows in order and returns the first hit.
func (r *Router) match(ctx context.Context, state *domain.BundleState) (workflow, rationale string, warnings []string, err error) {
	switch {
	case !state.HasSpec:
		return constants.WorkflowGenerateSpec, "bundle has no spec.md", nil, nil

	case !state.HasPlan:
		return constants.WorkflowGeneratePlan, "spec.md exists but plan.md is missing", nil, nil

	case !state.HasTasks:
		return constants.WorkflowGenerateTasks, "plan.md exists but tasks.md is missing", nil, nil

	case state.VerificationStale:
		rationale = "tasks.md changed after the latest verification"
		if !state.HasVerification {
			rationale = "tasks.md has never been verified"
		}
		if state.AllTasksClaimed() {
			warnings = append(warnings, "all checkboxes are claimed but unverified; run may reveal drift")
		}
		return constants.WorkflowVerifyTasks, rationale, warnings, nil

	case !state.VerificationClean && !state.HasPromptPack:
		rationale = fmt.Sprintf("verification run %s reported failures and no prompt pack exists for it", state.LatestVerifyRunID)
		return constants.WorkflowReportImplementPrompter, rationale, driftWarning(state), nil

	case !state.VerificationClean:
		return constants.WorkflowImplementTasks, "latest verification reports unresolved tasks", driftWarning(state), nil

	case state.CheckboxDrift || state.TasksClaimed < state.TasksTotal:
		return constants.WorkflowSyncTasksCheckboxes, "verification is clean but checkbox state disagrees with the evidence", nil, nil

	case !state.HasDocs:
		return constants.WorkflowGenerateDocs, "all tasks verified and synced but docs.md is missing", nil, nil
	}

	tagged, terr := r.tags.HasReleaseTag(ctx, state.SpecID)
	if terr != nil {
		return "", "", nil, sserrors.Wrap(terr, "checking release tag")
	}
	if !tagged {
		return constants.WorkflowReleaseTagger, "docs.md is built but no release tag exists", nil, nil
	}

	return "", "bundle is complete: spec, plan, tasks, verification, docs, and release tag are all in place", nil, nil
}

// driftWarning returns the checkbox-drift prerequisite warning when the
// observed claimed count disagrees with the latest report.
func driftWarning(state *domain.BundleState) []string {
	if !state.CheckboxDrift {
		return nil
	}
	return []string{"checkboxes may disagree with evidence; consider syncing after implementation"}
}

// requiredFlags maps descriptor effects to the universal flags they demand.
func requiredFlags(effects domain.EffectSet) []string {
	var flags []string
	if effects.WritesGoverned {
		flags = append(flags, "apply")
	}
	if effects.RequiresNetwork {
		flags = append(flags, "allow-network")
	}
	return flags
}
