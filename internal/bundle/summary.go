package bundle

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// RunSummary is the machine-readable digest a verification run leaves behind
// in .spec/reports/verify_tasks/<run-id>/summary.json. Recommendation reads
// it instead of re-parsing the full report.
//
// Example JSON representation:
//
//	{
//	    "run_id": "3f6c9f0e-9f2a-4c1e-8f4b-2f4f3c7a1d20",
//	    "spec_id": "spec-feat-012-user-auth",
//	    "generated_at": "2026-01-15T10:00:00Z",
//	    "clean": false,
//	    "totals": {"tasks": 12, "verified": 9, "failed": 2, "unverifiable": 1, "claimed": 10},
//	    "schema_version": "1.0"
//	}
type RunSummary struct {
	// RunID is the execution id of the verification run.
	RunID string `json:"run_id"`

	// SpecID is the canonical id of the verified bundle.
	SpecID string `json:"spec_id"`

	// GeneratedAt is when the report was produced (UTC).
	GeneratedAt time.Time `json:"generated_at"`

	// Clean mirrors report.Clean(): no failed and no unverifiable tasks.
	Clean bool `json:"clean"`

	// Totals is the report's aggregate counts. Totals.Claimed doubles as
	// the claim-bit snapshot used for drift detection.
	Totals domain.ReportTotals `json:"totals"`

	// SchemaVersion tracks the summary format.
	SchemaVersion string `json:"schema_version"`
}

// NewRunSummary derives a summary from a finished report.
func NewRunSummary(runID string, report *domain.VerificationReport) RunSummary {
	return RunSummary{
		RunID:         runID,
		SpecID:        report.SpecID,
		GeneratedAt:   report.GeneratedAt,
		Clean:         report.Clean(),
		Totals:        report.Totals,
		SchemaVersion: constants.ReportSchemaVersion,
	}
}

// LoadRunSummary reads one summary.json.
func LoadRunSummary(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed from the layout
	if err != nil {
		return nil, sserrors.Wrap(err, "reading run summary")
	}
	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, sserrors.Wrap(err, "parsing run summary")
	}
	return &summary, nil
}

// LatestRunSummary finds the newest verification summary for a spec by
// GeneratedAt, tie-broken by run id so the choice is deterministic.
// Returns (nil, nil) when no run has been recorded.
func LatestRunSummary(layout *Layout, specID domain.SpecID) (*RunSummary, error) {
	reportsDir := layout.ReportsDir(constants.WorkflowVerifyTasks)
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sserrors.Wrap(err, "listing verification runs")
	}

	want := specID.String()
	var latest *RunSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(reportsDir, entry.Name(), constants.SummaryFileName)
		summary, lerr := LoadRunSummary(path)
		if lerr != nil {
			// Half-written runs are skipped, not fatal: the engine writes
			// summary.json last, so a missing file means the run never
			// finished.
			if errors.Is(lerr, fs.ErrNotExist) {
				continue
			}
			return nil, lerr
		}
		if summary.SpecID != want {
			continue
		}
		if latest == nil ||
			summary.GeneratedAt.After(latest.GeneratedAt) ||
			(summary.GeneratedAt.Equal(latest.GeneratedAt) && summary.RunID > latest.RunID) {
			latest = summary
		}
	}
	return latest, nil
}
