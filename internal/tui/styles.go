// Package tui renders SmartSpec terminal output.
//
// This package provides a centralized style system using Lip Gloss for
// consistent command output. All colors use AdaptiveColor for light/dark
// terminal support, and status displays keep triple redundancy: icon +
// color + text.
//
// Call CheckNoColor at the start of commands that emit styled text to
// respect the NO_COLOR environment variable. Colors are also disabled when
// TERM=dumb.
//
// This package follows strict import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors
//   - MUST NOT import: internal/cli, internal/orchestrator, internal/engine, internal/gateway
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

//nolint:gochecknoglobals // Intentional package-level constants for TUI styling API
var (
	// ColorPrimary is blue, used for active states and primary actions.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for success states and completed items.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for warning states and items awaiting input.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for error states and failed items.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for dim/inactive states and secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies dim/faint formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// OutputStyles holds common output styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates common output styles using AdaptiveColor for
// light/dark terminal support.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(ColorWarning),
		Info: lipgloss.NewStyle().
			Foreground(ColorPrimary),
		Dim: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// TableStyles holds lipgloss styles for table rendering.
type TableStyles struct {
	Header       lipgloss.Style
	Cell         lipgloss.Style
	Dim          lipgloss.Style
	StatusColors map[constants.ExecutionStatus]lipgloss.AdaptiveColor
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell: lipgloss.NewStyle(),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		StatusColors: ExecutionStatusColors(),
	}
}

// CheckNoColor respects the NO_COLOR environment variable.
// Call this at the start of commands that output styled text.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns true if the terminal supports colors.
// Returns false if NO_COLOR is set (any value including empty string) or
// TERM=dumb, following the NO_COLOR standard: https://no-color.org/
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// ExecutionStatusColors returns the semantic color definitions for execution
// statuses. Uses AdaptiveColor for light/dark terminal support.
func ExecutionStatusColors() map[constants.ExecutionStatus]lipgloss.AdaptiveColor {
	return map[constants.ExecutionStatus]lipgloss.AdaptiveColor{
		// Active states - Blue
		constants.ExecutionStatusPending: {Light: "#0087AF", Dark: "#00D7FF"},
		constants.ExecutionStatusRunning: {Light: "#0087AF", Dark: "#00D7FF"},

		// Awaiting input - Yellow
		constants.ExecutionStatusPaused: {Light: "#D7AF00", Dark: "#FFD700"},

		// Success - Green
		constants.ExecutionStatusCompleted: {Light: "#00875F", Dark: "#00FF87"},

		// Failure - Red
		constants.ExecutionStatusFailed: {Light: "#AF0000", Dark: "#FF5F5F"},

		// Terminal without outcome - Gray
		constants.ExecutionStatusStopped: {Light: "#585858", Dark: "#6C6C6C"},
	}
}

// ExecutionStatusIcon returns the icon/symbol for a given execution status.
// Used for visual status indicators in status displays.
func ExecutionStatusIcon(status constants.ExecutionStatus) string {
	icons := map[constants.ExecutionStatus]string{
		constants.ExecutionStatusPending:   "○", // Empty circle - queued
		constants.ExecutionStatusRunning:   "●", // Filled circle - active
		constants.ExecutionStatusPaused:    "⚠", // Warning - needs a response
		constants.ExecutionStatusCompleted: "✓", // Checkmark - success
		constants.ExecutionStatusFailed:    "✗", // X mark - failed
		constants.ExecutionStatusStopped:   "◌", // Dashed circle - cancelled
	}
	if icon, ok := icons[status]; ok {
		return icon
	}
	return "?"
}

// StepStatusIcon returns the icon/symbol for a given step status.
func StepStatusIcon(status constants.StepStatus) string {
	icons := map[constants.StepStatus]string{
		constants.StepStatusPending:       "○",
		constants.StepStatusRunning:       "●",
		constants.StepStatusAwaitingInput: "⚠",
		constants.StepStatusCompleted:     "✓",
		constants.StepStatusFailed:        "✗",
		constants.StepStatusSkipped:       "◌",
	}
	if icon, ok := icons[status]; ok {
		return icon
	}
	return "?"
}

// EventIcon returns the icon for an engine progress event type. Used by the
// follow view to prefix event lines.
func EventIcon(t domain.EventType) string {
	icons := map[domain.EventType]string{
		domain.EventWorkflowStarted:   "●",
		domain.EventStepStarted:       "●",
		domain.EventStepProgress:      "⟳",
		domain.EventStepCompleted:     "✓",
		domain.EventStepFailed:        "✗",
		domain.EventWorkflowPaused:    "⚠",
		domain.EventWorkflowResumed:   "●",
		domain.EventWorkflowCompleted: "✓",
		domain.EventWorkflowCancelled: "◌",
		domain.EventWorkflowFailed:    "✗",
	}
	if icon, ok := icons[t]; ok {
		return icon
	}
	return "?"
}

// IsAttentionStatus returns true if the execution status requires user
// action. These statuses are highlighted and sorted to the top of listings.
func IsAttentionStatus(status constants.ExecutionStatus) bool {
	return status == constants.ExecutionStatusPaused ||
		status == constants.ExecutionStatusFailed
}

// SuggestedAction returns the suggested CLI command for a given execution
// status. Returns empty string if no action applies.
func SuggestedAction(status constants.ExecutionStatus) string {
	actions := map[constants.ExecutionStatus]string{
		constants.ExecutionStatusPaused: "smartspec respond",
		constants.ExecutionStatusFailed: "smartspec resume",
	}
	if action, ok := actions[status]; ok {
		return action
	}
	return ""
}

// Status is an interface that both ExecutionStatus and StepStatus satisfy.
// Used for generic status formatting functions.
type Status interface {
	String() string
}

// FormatStatusWithIcon formats a status with its icon and text for triple
// redundancy. Color is applied via Lip Gloss styles when rendering; this
// function provides icon + text.
func FormatStatusWithIcon[S Status](status S, text string) string {
	var icon string

	switch s := any(status).(type) {
	case constants.ExecutionStatus:
		icon = ExecutionStatusIcon(s)
	case constants.StepStatus:
		icon = StepStatusIcon(s)
	default:
		icon = "?"
	}

	return icon + " " + text
}

// NarrowTerminalWidth is the threshold for narrow terminal mode.
const NarrowTerminalWidth = 80

// DefaultTerminalWidth is used when terminal width cannot be determined.
const DefaultTerminalWidth = 80

// TerminalWidth returns the current terminal width in columns, or 0 when
// stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// IsNarrowTerminal returns true if terminal width is below the narrow
// threshold. Width 0 means detection failed and is treated as narrow.
func IsNarrowTerminal() bool {
	width := TerminalWidth()
	if width == 0 {
		return true
	}
	return width < NarrowTerminalWidth
}
