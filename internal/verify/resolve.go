package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrz1836/smartspec/internal/domain"
)

// ioError marks a filesystem failure that must abort the whole run. Missing
// files are ordinary hook failures; permission and IO errors are not.
type ioError struct {
	err error
}

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

// resolveHook checks one hook against the filesystem. The returned result
// never carries an error; filesystem failures other than "not found" return
// a non-nil error that aborts the run.
func (v *Verifier) resolveHook(hook domain.EvidenceHook) (domain.HookResult, error) {
	result := domain.HookResult{Hook: hook}

	if hook.ParseError != "" {
		result.Reason = domain.HookFailValidation
		result.Detail = hook.ParseError
		return result, nil
	}

	rel, reason := sanitizeHookPath(hook.Path)
	if reason != "" {
		result.Reason = domain.HookFailSecurity
		result.Detail = reason
		return result, nil
	}

	abs, ok, err := v.containedPath(rel)
	if err != nil {
		return result, err
	}
	if !ok {
		result.Reason = domain.HookFailSecurity
		result.Detail = fmt.Sprintf("path %q escapes the repository root", hook.Path)
		return result, nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			result.Reason = domain.HookFailMissingFile
			result.Detail = fmt.Sprintf("file %q does not exist", hook.Path)
			result.Suggestions = v.suggestionsFor(rel)
			return result, nil
		}
		return result, &ioError{err: err}
	}
	if info.IsDir() {
		result.Reason = domain.HookFailMissingFile
		result.Detail = fmt.Sprintf("%q is a directory, not a file", hook.Path)
		return result, nil
	}

	// Symbol and content checks need the file body.
	if hook.Symbol == "" && hook.Contains == "" && hook.Regex == "" {
		result.Resolved = true
		return result, nil
	}

	data, err := os.ReadFile(abs) //#nosec G304 -- path is contained within the repository root
	if err != nil {
		return result, &ioError{err: err}
	}
	content := string(data)

	if hook.Symbol != "" && !containsDefinition(content, hook.Symbol) {
		result.Reason = domain.HookFailMissingSymbol
		result.Detail = fmt.Sprintf("no definition of %q found in %s (heuristic scan)", hook.Symbol, hook.Path)
		return result, nil
	}

	if hook.Contains != "" && !strings.Contains(content, hook.Contains) {
		result.Reason = domain.HookFailContent
		result.Detail = fmt.Sprintf("%s does not contain %q", hook.Path, hook.Contains)
		return result, nil
	}

	if hook.Regex != "" {
		re, err := regexp.Compile(hook.Regex)
		if err != nil {
			result.Reason = domain.HookFailValidation
			result.Detail = fmt.Sprintf("regex does not compile: %v", err)
			return result, nil
		}
		if !matchesAnyLine(content, re) {
			result.Reason = domain.HookFailContent
			result.Detail = fmt.Sprintf("no line of %s matches /%s/", hook.Path, hook.Regex)
			return result, nil
		}
	}

	result.Resolved = true
	return result, nil
}

// sanitizeHookPath rejects absolute paths and ".." segments before any
// filesystem access. Returns the slash-cleaned relative path.
func sanitizeHookPath(p string) (rel, failReason string) {
	if p == "" {
		return "", "empty path"
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return "", fmt.Sprintf("absolute path %q is rejected", p)
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return "", fmt.Sprintf("path %q contains a parent-directory segment", p)
		}
	}
	return clean, ""
}

// containedPath joins rel onto the resolved root and verifies the result
// stays inside it after symlink resolution. The second return is false when
// the final target escapes the root.
func (v *Verifier) containedPath(rel string) (abs string, contained bool, err error) {
	abs = filepath.Join(v.resolvedRoot, filepath.FromSlash(rel))

	// Lexical containment first; catches crafted joins.
	if !strings.HasPrefix(abs, v.resolvedRoot+string(filepath.Separator)) && abs != v.resolvedRoot {
		return abs, false, nil
	}

	// Resolve symlinks when the target exists; a dangling path cannot be a
	// link and the lexical check already passed.
	resolved, rerr := filepath.EvalSymlinks(abs)
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return abs, true, nil
		}
		return abs, false, &ioError{err: rerr}
	}
	if !strings.HasPrefix(resolved, v.resolvedRoot+string(filepath.Separator)) && resolved != v.resolvedRoot {
		return abs, false, nil
	}
	return resolved, true, nil
}

// suggestionsFor computes fuzzy candidates for a missing path when its
// parent directory exists.
func (v *Verifier) suggestionsFor(rel string) []domain.Suggestion {
	dirRel := filepath.Dir(filepath.FromSlash(rel))
	dirAbs := filepath.Join(v.resolvedRoot, dirRel)
	if info, err := os.Stat(dirAbs); err != nil || !info.IsDir() {
		return nil
	}
	base := filepath.Base(rel)
	return suggestSimilar(dirAbs, dirRel, base, v.threshold, v.maxSuggestions)
}

// defKeywords front a definition in most languages the verifier meets.
var defKeywords = map[string]struct{}{
	"func": {}, "def": {}, "class": {}, "type": {}, "var": {}, "const": {},
	"fn": {}, "function": {}, "struct": {}, "interface": {}, "trait": {},
	"let": {}, "val": {}, "public": {}, "private": {}, "protected": {},
	"static": {}, "async": {}, "export": {},
}

// containsDefinition scans for a language-agnostic definition of symbol:
// a line where the identifier is introduced by a keyword, or leads the line
// and is followed by parentheses, assignment, or a type introducer. This is
// a heuristic; reports say so.
func containsDefinition(content, symbol string) bool {
	for _, line := range strings.Split(content, "\n") {
		if matchesDefinition(line, symbol) {
			return true
		}
	}
	return false
}

// matchesDefinition applies the definition heuristic to one line.
func matchesDefinition(line, symbol string) bool {
	idx := indexIdentifier(line, symbol)
	if idx < 0 {
		return false
	}

	after := strings.TrimLeft(line[idx+len(symbol):], " \t")
	followedByIntroducer := strings.HasPrefix(after, "(") ||
		strings.HasPrefix(after, "=") ||
		strings.HasPrefix(after, ":") ||
		strings.HasPrefix(after, "struct") ||
		strings.HasPrefix(after, "interface")

	before := strings.TrimSpace(line[:idx])
	if before == "" {
		return followedByIntroducer
	}

	// A keyword anywhere in the prefix counts: "export async function foo(",
	// "pub fn foo(", "func (s *Store) foo(".
	for _, word := range strings.Fields(before) {
		word = strings.Trim(word, "(*)&")
		if _, ok := defKeywords[word]; ok {
			return true
		}
	}
	return false
}

// indexIdentifier finds symbol in line at an identifier boundary, so "auth"
// does not match inside "author".
func indexIdentifier(line, symbol string) int {
	start := 0
	for {
		idx := strings.Index(line[start:], symbol)
		if idx < 0 {
			return -1
		}
		idx += start
		beforeOK := idx == 0 || !isIdentChar(line[idx-1])
		end := idx + len(symbol)
		afterOK := end >= len(line) || !isIdentChar(line[end])
		if beforeOK && afterOK {
			return idx
		}
		start = idx + 1
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// matchesAnyLine applies the pattern line by line, never across lines.
func matchesAnyLine(content string, re *regexp.Regexp) bool {
	for _, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
