package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Terminal layout constants for interactive forms.
const (
	// FormEdgeMargin is the space kept between form content and the
	// terminal edge.
	FormEdgeMargin = 4

	// MinFormWidth is the minimum usable width for form content.
	MinFormWidth = 40

	// DefaultFormWidth is used when terminal width cannot be determined.
	DefaultFormWidth = 80
)

// Theme returns the huh theme mapping the package's semantic colors onto
// form states. Uses AdaptiveColor for light/dark terminal support.
func Theme() *huh.Theme {
	CheckNoColor()

	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorPrimary)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorPrimary)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorPrimary)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)

	return t
}

// adaptFormWidth returns an appropriate form width based on terminal size.
func adaptFormWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultFormWidth
	}

	available := width - FormEdgeMargin
	if available < MinFormWidth {
		return MinFormWidth
	}
	if available > DefaultFormWidth {
		return DefaultFormWidth
	}
	return available
}

// runField creates and runs a single-field form with the package theme.
// Returns ErrPromptCanceled when the user aborts or stdin is not a
// terminal, so non-interactive callers fail fast instead of hanging.
func runField(field huh.Field, errorContext string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return sserrors.ErrPromptCanceled
	}

	_, accessible := os.LookupEnv("ACCESSIBLE")

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(Theme()).
		WithWidth(adaptFormWidth()).
		WithAccessible(accessible).
		WithShowHelp(true)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return sserrors.ErrPromptCanceled
		}
		return fmt.Errorf("%s: %w", errorContext, err)
	}

	return nil
}

// RespondForm interactively collects a decision for a pending interrupt:
// the action, state overrides for modify, and an optional reviewer note.
// Returns ErrPromptCanceled when the user aborts or no terminal is attached;
// non-interactive callers pass --approve/--reject/--modify flags instead.
func RespondForm(interrupt *domain.PendingInterrupt) (*domain.InterruptResponse, error) {
	title := interrupt.Prompt
	if title == "" {
		title = "The workflow is awaiting input"
	}
	desc := fmt.Sprintf("step %s · expires in %s",
		interrupt.StepName, FormatDuration(interrupt.Deadline.Sub(DefaultClock.Now())))

	var action domain.InterruptAction
	selectField := huh.NewSelect[domain.InterruptAction]().
		Title(title).
		Description(desc).
		Options(
			huh.NewOption("approve · resume the execution unchanged", domain.InterruptApprove),
			huh.NewOption("reject · fail the execution", domain.InterruptReject),
			huh.NewOption("modify · merge state overrides, then resume", domain.InterruptModify),
		).
		Value(&action)

	if err := runField(selectField, "interrupt action select failed"); err != nil {
		return nil, err
	}

	resp := &domain.InterruptResponse{Action: action}

	if action == domain.InterruptModify {
		var payload string
		payloadField := huh.NewText().
			Title("State overrides (JSON object)").
			Placeholder(`{"key": "value"}`).
			Validate(ValidatePayload).
			Value(&payload)
		if err := runField(payloadField, "interrupt payload input failed"); err != nil {
			return nil, err
		}
		if trimmed := strings.TrimSpace(payload); trimmed != "" {
			resp.Payload = json.RawMessage(trimmed)
		}
	}

	var note string
	noteField := huh.NewInput().
		Title("Note (optional)").
		Value(&note)
	if err := runField(noteField, "interrupt note input failed"); err != nil {
		return nil, err
	}
	resp.Note = strings.TrimSpace(note)

	return resp, nil
}

// ValidatePayload checks that a modify payload is a JSON object, the shape
// the engine merges into workflow state. Empty input is allowed and means
// no overrides.
func ValidatePayload(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &patch); err != nil {
		return errors.New("must be a JSON object")
	}
	return nil
}

// PasswordPrompt collects a secret without echoing it. Returns
// ErrPromptCanceled when the user aborts or no terminal is attached.
func PasswordPrompt(title string, validate func(string) error) (string, error) {
	var secret string
	field := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(validate).
		Value(&secret)

	if err := runField(field, "password prompt failed"); err != nil {
		return "", err
	}
	return secret, nil
}

// Confirm presents a yes/no confirmation prompt. Returns ErrPromptCanceled
// when the user aborts or no terminal is attached.
func Confirm(message string, defaultYes bool) (bool, error) {
	confirmed := defaultYes

	confirmField := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := runField(confirmField, "confirm prompt failed"); err != nil {
		return false, err
	}

	return confirmed, nil
}
