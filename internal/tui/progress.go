package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressBar wraps the charmbracelet/bubbles progress bar for static
// rendering. Uses a ColorPrimary gradient when colors are available and a
// solid fill in NO_COLOR mode.
type ProgressBar struct {
	bar   progress.Model
	width int
}

// NewProgressBar creates a new progress bar of the given width.
func NewProgressBar(width int) *ProgressBar {
	var bar progress.Model

	if HasColorSupport() {
		bar = progress.New(
			progress.WithWidth(width),
			progress.WithScaledGradient("#0087AF", "#00D7FF"), // Match ColorPrimary
			progress.WithoutPercentage(),
		)
	} else {
		bar = progress.New(
			progress.WithWidth(width),
			progress.WithSolidFill("#808080"),
			progress.WithoutPercentage(),
		)
	}

	return &ProgressBar{
		bar:   bar,
		width: width,
	}
}

// Render returns the progress bar as a string for the given fraction.
// The fraction is clamped to [0,1]; rendering is static (no animation).
func (pb *ProgressBar) Render(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return pb.bar.ViewAs(fraction)
}

// Width returns the current width of the progress bar.
func (pb *ProgressBar) Width() int {
	return pb.width
}

// SetWidth updates the progress bar width.
func (pb *ProgressBar) SetWidth(w int) {
	pb.width = w
	pb.bar.Width = w
}

// FormatStepCounter formats step progress as "current/total" (e.g., "3/7").
func FormatStepCounter(current, total int) string {
	return fmt.Sprintf("%d/%d", current, total)
}

// FormatStepWithName formats step progress with the step name as
// "current/total name" (e.g., "2/5 verify").
func FormatStepWithName(current, total int, name string) string {
	if name == "" {
		return FormatStepCounter(current, total)
	}
	return fmt.Sprintf("%d/%d %s", current, total, name)
}

// ProgressLine renders a one-line progress display:
//
//	[████████░░░░] 40% 2/5 verify
func ProgressLine(bar *ProgressBar, fraction float64, current, total int, stepName string) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	percent := fmt.Sprintf("%3d%%", int(fraction*100))
	return fmt.Sprintf("%s %s %s", bar.Render(fraction), percent, FormatStepWithName(current, total, stepName))
}
