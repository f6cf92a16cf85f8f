// Package domain provides shared domain types for the SmartSpec orchestration system.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case per architecture requirements.
package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/smartspec/internal/constants"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// specIDRegex matches the canonical spec identifier form:
// spec-<category>-<number>-<slug>, e.g. spec-feat-012-user-auth.
// Category and slug are lowercase kebab segments; number is 1+ digits.
var specIDRegex = regexp.MustCompile(`^spec-([a-z]+)-(\d+)-([a-z0-9]+(?:-[a-z0-9]+)*)$`)

// SpecID identifies one spec bundle. The zero value is invalid; construct
// through ParseSpecID so the parts are always well formed.
type SpecID struct {
	// Category groups related specs (feat, fix, chore, docs, ...).
	Category string `json:"category"`

	// Number is the per-category ordinal, rendered zero-padded to 3 digits.
	Number int `json:"number"`

	// Slug is the kebab-case short name.
	Slug string `json:"slug"`
}

// ParseSpecID validates and decomposes a spec identifier string.
// Returns ErrInvalidSpecID when the string does not match
// spec-<category>-<number>-<slug>.
func ParseSpecID(raw string) (SpecID, error) {
	m := specIDRegex.FindStringSubmatch(raw)
	if m == nil {
		return SpecID{}, fmt.Errorf("%w: %q", sserrors.ErrInvalidSpecID, raw)
	}

	number, err := strconv.Atoi(m[2])
	if err != nil {
		return SpecID{}, fmt.Errorf("%w: %q", sserrors.ErrInvalidSpecID, raw)
	}

	return SpecID{Category: m[1], Number: number, Slug: m[3]}, nil
}

// String renders the canonical identifier with a zero-padded number.
func (s SpecID) String() string {
	return fmt.Sprintf("spec-%s-%03d-%s", s.Category, s.Number, s.Slug)
}

// IsZero reports whether the ID is the zero value.
func (s SpecID) IsZero() bool {
	return s.Category == "" && s.Number == 0 && s.Slug == ""
}

// BundleDir returns the bundle directory for this spec relative to the
// repository root: specs/<category>/<spec-id>/.
func (s SpecID) BundleDir() string {
	return filepath.Join(constants.SpecsDir, s.Category, s.String())
}

// MarshalText implements encoding.TextMarshaler so SpecID renders as its
// canonical string in JSON and YAML.
func (s SpecID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SpecID) UnmarshalText(text []byte) error {
	parsed, err := ParseSpecID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BundleState is a deterministic snapshot of one spec bundle's artifacts.
// It drives workflow recommendation: the decision table consumes exactly
// these observations, so two observations of an unchanged bundle are equal.
//
// Example JSON representation:
//
//	{
//	    "spec_id": "spec-feat-012-user-auth",
//	    "has_spec": true,
//	    "has_plan": true,
//	    "has_tasks": false,
//	    "tasks_total": 0,
//	    "tasks_claimed": 0,
//	    "verification_stale": false
//	}
type BundleState struct {
	// SpecID identifies the observed bundle.
	SpecID SpecID `json:"spec_id"`

	// HasSpec reports whether spec.md exists in the bundle.
	HasSpec bool `json:"has_spec"`

	// HasPlan reports whether plan.md exists in the bundle.
	HasPlan bool `json:"has_plan"`

	// HasTasks reports whether tasks.md exists in the bundle.
	HasTasks bool `json:"has_tasks"`

	// HasDocs reports whether docs.md exists in the bundle.
	HasDocs bool `json:"has_docs"`

	// TasksTotal is the number of checklist tasks found in tasks.md.
	TasksTotal int `json:"tasks_total"`

	// TasksClaimed is the number of tasks checked off as done.
	TasksClaimed int `json:"tasks_claimed"`

	// HasVerification reports whether any verification report exists for
	// this spec under .spec/reports/.
	HasVerification bool `json:"has_verification"`

	// VerificationStale reports whether tasks.md changed after the latest
	// verification report was written, or tasks exist but verification
	// never ran.
	VerificationStale bool `json:"verification_stale"`

	// VerificationClean reports whether the latest report has zero failed
	// and zero unverifiable tasks. False when no report exists.
	VerificationClean bool `json:"verification_clean"`

	// HasPromptPack reports whether a prompt pack exists for the latest
	// verification run.
	HasPromptPack bool `json:"has_prompt_pack"`

	// CheckboxDrift reports whether the document's claimed count diverged
	// from the latest report's snapshot of it.
	CheckboxDrift bool `json:"checkbox_drift"`

	// LatestVerifyRunID is the run identifier of the newest verification
	// report, empty when none exists.
	LatestVerifyRunID string `json:"latest_verify_run_id,omitempty"`
}

// AllTasksClaimed reports whether every task in the bundle is checked off.
// Returns false for an empty task list.
func (b BundleState) AllTasksClaimed() bool {
	return b.TasksTotal > 0 && b.TasksClaimed == b.TasksTotal
}

// SlugFromTitle derives a kebab-case slug from free-form text, for naming
// new spec bundles. Non-alphanumeric runs collapse to single hyphens.
func SlugFromTitle(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugScrubRegex.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

const maxSlugLen = 48

var slugScrubRegex = regexp.MustCompile(`[^a-z0-9]+`)
