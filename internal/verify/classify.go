package verify

import "github.com/mrz1836/smartspec/internal/domain"

// classify derives the task category from its hook results, first match wins.
// Rules 1-3 look at path existence only; symbol and content failures leave
// the path "resolved" for their purposes:
//
//  1. Code or test hooks exist and none of their paths resolves, and no
//     near-miss candidate was found → not_implemented.
//  2. Code paths resolve, a test path does not → missing_tests.
//  3. Test paths resolve, a code path does not → missing_code.
//  4. A path failed but a similar file exists above the fuzzy threshold → naming_issue.
//  5. A path resolved but its symbol is missing → symbol_issue.
//  6. Path and symbol resolved but a content predicate failed → content_issue.
//  7. Any remaining failure (doc path missing, malformed hook, security) → not_implemented.
//  8. Otherwise → verified.
//
// Tasks with no usable hooks are unverifiable; the caller handles that case
// before calling classify.
func classify(results []domain.HookResult) domain.TaskCategory {
	var hasCode, hasTest bool
	var codePathOK, testPathOK int
	var codePathFail, testPathFail int
	var anyFailed, anyNaming, anySymbol, anyContent bool

	for _, r := range results {
		if r.Hook.ParseError != "" {
			// Malformed hooks fail the task but carry no kind signal.
			anyFailed = true
			continue
		}

		pathOK := r.Resolved ||
			r.Reason == domain.HookFailMissingSymbol ||
			r.Reason == domain.HookFailContent

		switch r.Hook.Kind {
		case domain.HookKindCode:
			hasCode = true
			if pathOK {
				codePathOK++
			} else {
				codePathFail++
			}
		case domain.HookKindTest:
			hasTest = true
			if pathOK {
				testPathOK++
			} else {
				testPathFail++
			}
		case domain.HookKindDoc:
			// Doc hooks influence pass/fail but not the code/test split.
		}

		if !r.Resolved {
			anyFailed = true
			if len(r.Suggestions) > 0 {
				anyNaming = true
			}
			switch r.Reason {
			case domain.HookFailMissingSymbol:
				anySymbol = true
			case domain.HookFailContent:
				anyContent = true
			}
		}
	}

	switch {
	case (hasCode || hasTest) && codePathOK == 0 && testPathOK == 0 &&
		(codePathFail > 0 || testPathFail > 0) && !anyNaming:
		return domain.CategoryNotImplemented
	case hasCode && codePathFail == 0 && testPathFail > 0:
		return domain.CategoryMissingTests
	case hasTest && testPathFail == 0 && codePathFail > 0:
		return domain.CategoryMissingCode
	case anyNaming:
		return domain.CategoryNamingIssue
	case anySymbol:
		return domain.CategorySymbolIssue
	case anyContent:
		return domain.CategoryContentIssue
	case anyFailed:
		return domain.CategoryNotImplemented
	default:
		return domain.CategoryVerified
	}
}

// priorityFor ranks remediation urgency:
//
//	1 — task is claimed but verification failed (or is unverifiable)
//	2 — unclaimed not_implemented, missing_tests, missing_code, unverifiable
//	3 — symbol_issue, content_issue
//	4 — naming_issue
//	0 — verified
func priorityFor(category domain.TaskCategory, claimed bool) int {
	if category == domain.CategoryVerified {
		return 0
	}
	if claimed {
		return 1
	}
	switch category {
	case domain.CategoryNotImplemented, domain.CategoryMissingTests,
		domain.CategoryMissingCode, domain.CategoryUnverifiable:
		return 2
	case domain.CategorySymbolIssue, domain.CategoryContentIssue:
		return 3
	case domain.CategoryNamingIssue:
		return 4
	default:
		return 2
	}
}
