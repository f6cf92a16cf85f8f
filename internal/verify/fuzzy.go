package verify

import (
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/mrz1836/smartspec/internal/domain"
)

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming form.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// similarity returns edit distance normalized by the longer length: 1.0 for
// identical strings, 0.0 for nothing in common. Both sides are NFC-normalized
// first; macOS checkouts store file names in NFD, so "café.md" in tasks.md
// and the same name on disk would otherwise never score 1.0.
func similarity(a, b string) float64 {
	a, b = norm.NFC.String(a), norm.NFC.String(b)
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// suggestSimilar scores every regular file in dir against the missing base
// name and returns the candidates at or above threshold, highest score
// first, capped at limit. Ties break lexicographically so output is stable.
// dirRel is the repository-relative directory used in suggestion paths.
func suggestSimilar(dir, dirRel, base string, threshold float64, limit int) []domain.Suggestion {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Parent unreadable: no suggestions, the hook already failed.
		return nil
	}

	var out []domain.Suggestion
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		score := similarity(base, entry.Name())
		if score >= threshold {
			out = append(out, domain.Suggestion{
				Path:  filepath.ToSlash(filepath.Join(dirRel, entry.Name())),
				Score: round2(score),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// round2 rounds to two decimals so scores render stably in reports.
func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
