package bundle

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/verify"
)

// Observe builds a deterministic snapshot of one bundle's state. Two calls
// over an unchanged tree return equal states, so the recommendation table can
// be tested without time injection. Missing artifacts are ordinary
// observations; any other filesystem error aborts.
func Observe(ctx context.Context, layout *Layout, id domain.SpecID) (domain.BundleState, error) {
	state := domain.BundleState{SpecID: id}

	if err := ctxutil.Canceled(ctx); err != nil {
		return state, err
	}

	var err error
	if state.HasSpec, err = fileExists(layout.SpecFile(id)); err != nil {
		return state, err
	}
	if state.HasPlan, err = fileExists(layout.PlanFile(id)); err != nil {
		return state, err
	}
	if state.HasDocs, err = fileExists(layout.DocsFile(id)); err != nil {
		return state, err
	}

	tasksPath := layout.TasksFile(id)
	tasksInfo, err := os.Stat(tasksPath)
	switch {
	case err == nil:
		state.HasTasks = !tasksInfo.IsDir()
	case os.IsNotExist(err):
		// No tasks yet: the remaining observations are all vacuous.
	default:
		return state, sserrors.Wrapf(err, "observing %s", layout.Rel(tasksPath))
	}

	var tasksModified time.Time
	if state.HasTasks {
		tasksModified = tasksInfo.ModTime()
		doc, perr := verify.ParseFile(tasksPath)
		if perr != nil {
			return state, perr
		}
		for i := range doc.Tasks {
			state.TasksTotal++
			if doc.Tasks[i].Claimed {
				state.TasksClaimed++
			}
		}
	}

	summary, err := LatestRunSummary(layout, id)
	if err != nil {
		return state, err
	}
	if summary == nil {
		state.VerificationStale = state.HasTasks
	} else {
		state.HasVerification = true
		state.LatestVerifyRunID = summary.RunID
		state.VerificationClean = summary.Clean
		state.VerificationStale = state.HasTasks && tasksModified.After(summary.GeneratedAt)
		state.CheckboxDrift = summary.Totals.Claimed != state.TasksClaimed

		state.HasPromptPack, err = promptPackExists(layout, summary.RunID)
		if err != nil {
			return state, err
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "bundle").
		Str("spec_id", id.String()).
		Bool("has_spec", state.HasSpec).
		Bool("has_plan", state.HasPlan).
		Bool("has_tasks", state.HasTasks).
		Bool("verification_stale", state.VerificationStale).
		Msg("bundle observed")

	return state, nil
}

// fileExists reports whether a regular file exists at path. Errors other
// than not-exist propagate.
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, sserrors.Wrapf(err, "observing %s", path)
	}
	return !info.IsDir(), nil
}

// promptPackExists reports whether the prompt pack for a verification run
// holds at least one rendered markdown file.
func promptPackExists(layout *Layout, runID string) (bool, error) {
	entries, err := os.ReadDir(layout.PromptPackDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, sserrors.Wrap(err, "observing prompt pack")
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
			return true, nil
		}
	}
	return false, nil
}
