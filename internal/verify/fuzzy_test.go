package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevenshtein exercises the edit-distance kernel.
func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "kitten", "kitten", 0},
		{"empty left", "", "abc", 3},
		{"empty right", "abc", "", 3},
		{"both empty", "", "", 0},
		{"substitution", "kitten", "sitten", 1},
		{"classic", "kitten", "sitting", 3},
		{"insertion", "handler.go", "handlers.go", 1},
		{"unicode", "caffé", "caffe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.want, levenshtein(tt.b, tt.a), "distance is symmetric")
		})
	}
}

// TestSimilarityNormalizesUnicode verifies that NFC and NFD spellings of the
// same name score as identical. macOS checkouts store names in NFD.
func TestSimilarityNormalizesUnicode(t *testing.T) {
	nfc := "café.md"        // é as one code point
	nfd := "café.md"       // e + combining acute
	assert.InDelta(t, 1.0, similarity(nfc, nfd), 1e-9)
}

// TestSuggestSimilar verifies scoring, ordering, threshold, and the cap.
func TestSuggestSimilar(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"handlers.go", "hand.go", "unrelated.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "handler.go.d"), 0o750))

	got := suggestSimilar(dir, "src", "handler.go", 0.55, 3)
	require.Len(t, got, 2, "directories and low scores are excluded")

	assert.Equal(t, "src/handlers.go", got[0].Path)
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
	assert.Equal(t, "src/hand.go", got[1].Path)
	assert.InDelta(t, 0.70, got[1].Score, 1e-9)
}

// TestSuggestSimilarCap verifies the result cap and lexicographic tie-break.
func TestSuggestSimilarCap(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"aab.go", "aac.go", "aad.go", "aae.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	got := suggestSimilar(dir, ".", "aaa.go", 0.55, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "aab.go", got[0].Path)
	assert.Equal(t, "aac.go", got[1].Path)
	assert.Equal(t, "aad.go", got[2].Path)
	for _, s := range got {
		assert.InDelta(t, 0.83, s.Score, 1e-9)
	}
}

// TestSuggestSimilarMissingDir returns nothing when the parent is gone.
func TestSuggestSimilarMissingDir(t *testing.T) {
	got := suggestSimilar(filepath.Join(t.TempDir(), "nope"), "nope", "a.go", 0.55, 3)
	assert.Nil(t, got)
}
