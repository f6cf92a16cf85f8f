// Package verify implements the evidence verifier: it parses evidence hooks
// out of a tasks document and proves (or disproves) that each task's claimed
// work exists on disk.
//
// The verifier is deterministic: given the same document and the same
// filesystem, it produces the same report. Individual hook failures never
// abort a run; filesystem errors other than "not found" abort the whole run
// so partial reports are never emitted.
package verify

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Hook lines are line-scoped: one hook per line, no continuations.
var (
	// evidenceLineRegex recognizes a hook line, optionally indented and
	// optionally behind a list bullet.
	evidenceLineRegex = regexp.MustCompile(`^\s*(?:[-*]\s+)?evidence:\s+(.+?)\s*$`)

	// checklistRegex recognizes a task checkbox bullet.
	checklistRegex = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.+?)\s*$`)

	// headingRegex recognizes a level 2 or 3 heading.
	headingRegex = regexp.MustCompile(`^(#{2,3})\s+(.+?)\s*$`)

	// taskIDRegex extracts an explicit task identifier like TASK-001.
	taskIDRegex = regexp.MustCompile(`\b([A-Z][A-Z0-9]*-\d+)\b`)
)

// ParseDocument extracts tasks and evidence hooks from a tasks document.
// Lines it cannot recognize are ignored; malformed hook lines are still
// recorded, carrying a parse error so they fail verification with a
// validation reason instead of disappearing silently.
//
// Task identity is the nearest preceding checklist bullet, or the nearest
// level 2/3 heading when no bullet encloses the hook.
func ParseDocument(r io.Reader, path string) (*domain.TasksDocument, error) {
	doc := &domain.TasksDocument{
		Path:          path,
		SchemaVersion: constants.ReportSchemaVersion,
	}

	// Heading tasks are created lazily, only once a hook attaches to them.
	var (
		headingTitle string
		headingLine  int
		headingIdx   = -1 // index into doc.Tasks once materialized
		bulletIdx    = -1 // index of the open checklist task
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := headingRegex.FindStringSubmatch(line); m != nil {
			headingTitle = m[2]
			headingLine = lineNo
			headingIdx = -1
			bulletIdx = -1
			continue
		}

		if m := checklistRegex.FindStringSubmatch(line); m != nil {
			task := domain.Task{
				Title:   m[2],
				Claimed: m[1] == "x" || m[1] == "X",
				Line:    lineNo,
			}
			task.ID = extractTaskID(task.Title, lineNo)
			doc.Tasks = append(doc.Tasks, task)
			bulletIdx = len(doc.Tasks) - 1
			continue
		}

		m := evidenceLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		hook := parseHookBody(m[1])
		hook.Line = lineNo

		switch {
		case bulletIdx >= 0:
			doc.Tasks[bulletIdx].Hooks = append(doc.Tasks[bulletIdx].Hooks, hook)
		case headingTitle != "":
			if headingIdx < 0 {
				task := domain.Task{
					Title: headingTitle,
					Line:  headingLine,
				}
				task.ID = extractTaskID(headingTitle, headingLine)
				doc.Tasks = append(doc.Tasks, task)
				headingIdx = len(doc.Tasks) - 1
			}
			doc.Tasks[headingIdx].Hooks = append(doc.Tasks[headingIdx].Hooks, hook)
		default:
			doc.OrphanHooks = append(doc.OrphanHooks, hook)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, sserrors.Wrapf(err, "reading tasks document %s", path)
	}

	return doc, nil
}

// ParseFile opens and parses a tasks document from disk.
func ParseFile(path string) (*domain.TasksDocument, error) {
	f, err := os.Open(path) //#nosec G304 -- path is validated by the caller against the repository root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sserrors.ErrTasksNotFound, path)
		}
		return nil, sserrors.Wrapf(err, "opening tasks document %s", path)
	}
	defer func() { _ = f.Close() }()

	return ParseDocument(f, path)
}

// extractTaskID pulls an explicit identifier (TASK-001) out of the task
// text, falling back to a line-derived identifier.
func extractTaskID(title string, line int) string {
	if m := taskIDRegex.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return fmt.Sprintf("task-L%d", line)
}

// parseHookBody tokenizes everything after "evidence:" into a hook.
// Grammar: <kind> path=<path> [symbol=<id>] [contains="<literal>"] [regex=/<pattern>/]
// Malformed bodies return a hook with ParseError set rather than an error,
// so the document keeps parsing.
func parseHookBody(body string) domain.EvidenceHook {
	var hook domain.EvidenceHook

	rest := strings.TrimSpace(body)
	kind, rest := nextToken(rest)
	if !domain.ValidHookKind(kind) {
		hook.ParseError = fmt.Sprintf("unknown hook kind %q (want code, test, or doc)", kind)
		return hook
	}
	hook.Kind = domain.HookKind(kind)

	for rest != "" {
		var key string
		key, rest = nextKey(rest)
		if key == "" {
			hook.ParseError = fmt.Sprintf("malformed hook field near %q", truncate(rest, 24))
			return hook
		}

		var value string
		var err error
		switch key {
		case "path":
			value, rest, err = scanQuotedOrBare(rest, '"')
			hook.Path = value
		case "symbol":
			value, rest, err = scanQuotedOrBare(rest, '"')
			hook.Symbol = value
		case "contains":
			value, rest, err = scanDelimited(rest, '"')
			hook.Contains = value
		case "regex":
			value, rest, err = scanDelimited(rest, '/')
			hook.Regex = value
		default:
			hook.ParseError = fmt.Sprintf("unknown hook key %q", key)
			return hook
		}
		if err != nil {
			hook.ParseError = fmt.Sprintf("%s: %v", key, err)
			return hook
		}
	}

	if hook.Path == "" {
		hook.ParseError = "missing required path"
		return hook
	}
	if hook.Contains != "" && hook.Regex != "" {
		hook.ParseError = "contains and regex are mutually exclusive"
		return hook
	}

	return hook
}

// nextToken splits off the first whitespace-delimited token.
func nextToken(s string) (token, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

// nextKey splits off a "key=" prefix, returning the key without '='.
func nextKey(s string) (key, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", s
	}
	key = s[:i]
	if strings.ContainsAny(key, " \t") {
		return "", s
	}
	return key, s[i+1:]
}

// scanQuotedOrBare reads a value that may be wrapped in the given delimiter
// or run bare to the next whitespace.
func scanQuotedOrBare(s string, delim byte) (value, rest string, err error) {
	if s != "" && s[0] == delim {
		return scanDelimited(s, delim)
	}
	value, rest = nextToken(s)
	if value == "" {
		return "", rest, fmt.Errorf("empty value")
	}
	return value, rest, nil
}

// scanDelimited reads a value wrapped in matching delimiters.
func scanDelimited(s string, delim byte) (value, rest string, err error) {
	if s == "" || s[0] != delim {
		return "", s, fmt.Errorf("value must be delimited by %q", string(delim))
	}
	end := strings.IndexByte(s[1:], delim)
	if end < 0 {
		return "", "", fmt.Errorf("unterminated %q delimiter", string(delim))
	}
	value = s[1 : 1+end]
	rest = strings.TrimSpace(s[2+end:])
	return value, rest, nil
}

// truncate shortens s for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
