package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	t.Run("renders heading text", func(t *testing.T) {
		out := RenderMarkdown("# Verification Report\n\nAll tasks verified.")
		assert.Contains(t, out, "Verification Report")
		assert.Contains(t, out, "All tasks verified.")
	})

	t.Run("empty input unchanged", func(t *testing.T) {
		assert.Empty(t, RenderMarkdown(""))
	})

	t.Run("whitespace input unchanged", func(t *testing.T) {
		assert.Equal(t, "  \n", RenderMarkdown("  \n"))
	})

	t.Run("renderer is reused", func(t *testing.T) {
		first := RenderMarkdown("plain text")
		second := RenderMarkdown("plain text")
		assert.Equal(t, first, second)
	})
}
