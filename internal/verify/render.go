package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mrz1836/smartspec/internal/domain"
)

// categoryOrder fixes the section order of rendered reports.
var categoryOrder = []domain.TaskCategory{
	domain.CategoryNotImplemented,
	domain.CategoryMissingTests,
	domain.CategoryMissingCode,
	domain.CategoryNamingIssue,
	domain.CategorySymbolIssue,
	domain.CategoryContentIssue,
	domain.CategoryUnverifiable,
	domain.CategoryVerified,
}

// RenderMarkdown turns a report into its human-readable form. The report
// itself stays pure data; callers decide where the rendering goes.
func RenderMarkdown(report *domain.VerificationReport) string {
	var b strings.Builder

	b.WriteString("# Verification Report\n\n")
	if report.SpecID != "" {
		fmt.Fprintf(&b, "- **Spec:** %s\n", report.SpecID)
	}
	fmt.Fprintf(&b, "- **Document:** %s\n", report.TasksPath)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Totals\n\n")
	b.WriteString("| Tasks | Verified | Failed | Unverifiable | Claimed |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		report.Totals.Tasks, report.Totals.Verified, report.Totals.Failed,
		report.Totals.Unverifiable, report.Totals.Claimed)

	b.WriteString("## By category\n\n")
	for _, cat := range sortedCategories(report.ByCategory) {
		fmt.Fprintf(&b, "- %s: %d\n", cat, report.ByCategory[cat])
	}
	b.WriteString("\n")

	for _, cat := range categoryOrder {
		verdicts := tasksInCategory(report, cat)
		if len(verdicts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", headingFor(cat))
		for _, verdict := range verdicts {
			renderVerdict(&b, verdict)
		}
	}

	return b.String()
}

// renderVerdict writes one task section.
func renderVerdict(b *strings.Builder, v domain.TaskVerdict) {
	marker := " "
	if v.Claimed {
		marker = "x"
	}
	fmt.Fprintf(b, "### [%s] %s — %s\n\n", marker, v.TaskID, v.Title)
	if v.Priority > 0 {
		fmt.Fprintf(b, "Priority %d\n\n", v.Priority)
	}

	for _, hr := range v.Hooks {
		status := "ok"
		if !hr.Resolved {
			status = string(hr.Reason)
		}
		fmt.Fprintf(b, "- `%s path=%s`", hr.Hook.Kind, hr.Hook.Path)
		if hr.Hook.Symbol != "" {
			fmt.Fprintf(b, " `symbol=%s`", hr.Hook.Symbol)
		}
		fmt.Fprintf(b, " → %s", status)
		if hr.Detail != "" && !hr.Resolved {
			fmt.Fprintf(b, " (%s)", hr.Detail)
		}
		b.WriteString("\n")

		for _, s := range hr.Suggestions {
			fmt.Fprintf(b, "  - Did you mean `%s`? (%.0f%% similar)\n", s.Path, s.Score*100)
		}
	}
	b.WriteString("\n")
}

// headingFor renders a category as a section title with remediation hints.
func headingFor(cat domain.TaskCategory) string {
	switch cat {
	case domain.CategoryNotImplemented:
		return "Not implemented"
	case domain.CategoryMissingTests:
		return "Missing tests"
	case domain.CategoryMissingCode:
		return "Missing code"
	case domain.CategoryNamingIssue:
		return "Naming issues"
	case domain.CategorySymbolIssue:
		return "Symbol issues"
	case domain.CategoryContentIssue:
		return "Content issues"
	case domain.CategoryUnverifiable:
		return "Unverifiable (no evidence hooks)"
	case domain.CategoryVerified:
		return "Verified"
	default:
		return string(cat)
	}
}

// tasksInCategory filters verdicts preserving document order.
func tasksInCategory(report *domain.VerificationReport, cat domain.TaskCategory) []domain.TaskVerdict {
	var out []domain.TaskVerdict
	for _, v := range report.Tasks {
		if v.Category == cat {
			out = append(out, v)
		}
	}
	return out
}

// sortedCategories returns the map keys in fixed category order, then any
// stragglers alphabetically.
func sortedCategories(m map[domain.TaskCategory]int) []domain.TaskCategory {
	seen := make(map[domain.TaskCategory]bool, len(m))
	var out []domain.TaskCategory
	for _, cat := range categoryOrder {
		if _, ok := m[cat]; ok {
			out = append(out, cat)
			seen[cat] = true
		}
	}
	var rest []domain.TaskCategory
	for cat := range m {
		if !seen[cat] {
			rest = append(rest, cat)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
