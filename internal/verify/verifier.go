package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/clock"
	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Verifier resolves evidence hooks against a repository root and classifies
// every task in a tasks document.
type Verifier struct {
	root           string
	resolvedRoot   string
	threshold      float64
	maxSuggestions int
	clock          clock.Clock
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithThreshold overrides the fuzzy suggestion threshold.
func WithThreshold(t float64) Option {
	return func(v *Verifier) { v.threshold = t }
}

// WithMaxSuggestions overrides how many fuzzy candidates a hook may carry.
func WithMaxSuggestions(n int) Option {
	return func(v *Verifier) { v.maxSuggestions = n }
}

// WithClock overrides the time source, for tests.
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) { v.clock = c }
}

// NewVerifier creates a Verifier rooted at the repository root. The root is
// resolved through symlinks once so every containment check compares against
// the real location.
func NewVerifier(root string, opts ...Option) (*Verifier, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, sserrors.Wrapf(err, "resolving repository root %s", root)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, sserrors.Wrapf(err, "resolving repository root %s", root)
	}

	v := &Verifier{
		root:           root,
		resolvedRoot:   abs,
		threshold:      constants.DefaultFuzzyThreshold,
		maxSuggestions: constants.MaxFuzzySuggestions,
		clock:          clock.RealClock{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Run parses the tasks document at tasksPath (repository-relative) and
// resolves every hook, producing a deterministic report. Filesystem errors
// other than "not found" abort the run; no partial report is returned.
func (v *Verifier) Run(ctx context.Context, tasksPath string) (*domain.VerificationReport, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "verify").Logger()

	rel, failReason := sanitizeHookPath(tasksPath)
	if failReason != "" {
		return nil, sserrors.Wrapf(sserrors.ErrInvalidArgument, "tasks path: %s", failReason)
	}

	doc, err := ParseFile(filepath.Join(v.resolvedRoot, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}

	report := &domain.VerificationReport{
		TasksPath:     rel,
		GeneratedAt:   v.clock.Now().UTC().Truncate(time.Second),
		ByCategory:    make(map[domain.TaskCategory]int),
		Tasks:         make([]domain.TaskVerdict, 0, len(doc.Tasks)),
		SchemaVersion: constants.ReportSchemaVersion,
	}

	for i := range doc.Tasks {
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}
		verdict, err := v.judge(&doc.Tasks[i])
		if err != nil {
			// IO failure: abort the whole run, never emit a partial report.
			return nil, sserrors.Wrapf(err, "verifying task %s", doc.Tasks[i].ID)
		}
		report.Tasks = append(report.Tasks, verdict)

		report.Totals.Tasks++
		report.ByCategory[verdict.Category]++
		if verdict.Claimed {
			report.Totals.Claimed++
		}
		switch {
		case verdict.Category == domain.CategoryUnverifiable:
			report.Totals.Unverifiable++
		case verdict.Passed:
			report.Totals.Verified++
		default:
			report.Totals.Failed++
		}
	}

	logger.Debug().
		Str("tasks_path", rel).
		Int("tasks", report.Totals.Tasks).
		Int("verified", report.Totals.Verified).
		Int("failed", report.Totals.Failed).
		Int("unverifiable", report.Totals.Unverifiable).
		Msg("verification run complete")

	return report, nil
}

// judge resolves all hooks of one task and classifies it.
func (v *Verifier) judge(task *domain.Task) (domain.TaskVerdict, error) {
	verdict := domain.TaskVerdict{
		TaskID:  task.ID,
		Title:   task.Title,
		Claimed: task.Claimed,
	}

	if !task.HasHooks() {
		// Malformed-only hooks still show up in the verdict for diagnosis.
		for _, hook := range task.Hooks {
			verdict.Hooks = append(verdict.Hooks, domain.HookResult{
				Hook:   hook,
				Reason: domain.HookFailValidation,
				Detail: hook.ParseError,
			})
		}
		verdict.Category = domain.CategoryUnverifiable
		verdict.Priority = priorityFor(verdict.Category, verdict.Claimed)
		return verdict, nil
	}

	allResolved := true
	for _, hook := range task.Hooks {
		result, err := v.resolveHook(hook)
		if err != nil {
			return verdict, err
		}
		if !result.Resolved {
			allResolved = false
		}
		verdict.Hooks = append(verdict.Hooks, result)
	}

	verdict.Category = classify(verdict.Hooks)
	verdict.Passed = allResolved && verdict.Category == domain.CategoryVerified
	verdict.Priority = priorityFor(verdict.Category, verdict.Claimed)
	verdict.Remediation = buildRemediation(verdict.Hooks)
	return verdict, nil
}

// buildRemediation derives actionable fix suggestions from hook failures.
func buildRemediation(results []domain.HookResult) []string {
	var out []string
	for _, r := range results {
		if r.Resolved {
			continue
		}
		switch r.Reason {
		case domain.HookFailMissingFile:
			if len(r.Suggestions) > 0 {
				out = append(out, fmt.Sprintf("Rename or point the hook at %s (%.0f%% similar)",
					r.Suggestions[0].Path, r.Suggestions[0].Score*100))
				continue
			}
			if r.Hook.Kind == domain.HookKindTest {
				out = append(out, "Create test file: "+r.Hook.Path)
			} else {
				out = append(out, "Create file: "+r.Hook.Path)
			}
		case domain.HookFailMissingSymbol:
			out = append(out, fmt.Sprintf("Add a definition of %s to %s", r.Hook.Symbol, r.Hook.Path))
		case domain.HookFailContent:
			out = append(out, "Update "+r.Hook.Path+" to satisfy the content predicate")
		case domain.HookFailSecurity:
			out = append(out, "Fix the hook path: "+r.Detail)
		case domain.HookFailValidation:
			out = append(out, "Fix the evidence hook syntax: "+r.Detail)
		}
	}
	return out
}
