package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownWrapWidth is the word-wrap width for rendered markdown.
const MarkdownWrapWidth = 80

//nolint:gochecknoglobals // cached renderer for performance
var (
	mdRenderer     *glamour.TermRenderer
	mdRendererOnce sync.Once
)

// markdownRenderer returns a cached glamour renderer. The renderer is
// initialized once and reused across all calls; nil when initialization
// failed and callers must fall back to plain text.
func markdownRenderer() *glamour.TermRenderer {
	mdRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(MarkdownWrapWidth),
		)
		if err == nil {
			mdRenderer = r
		}
	})
	return mdRenderer
}

// RenderMarkdown renders markdown for terminal display. Verification
// reports and docs digests pass through here before printing. Returns the
// source text unchanged when the renderer is unavailable or fails, so
// output degrades to plain markdown rather than disappearing.
func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return md
	}

	r := markdownRenderer()
	if r == nil {
		return md
	}

	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return rendered
}
