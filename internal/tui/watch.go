package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

// eventLogDepth is how many recent events the follow view keeps on screen.
const eventLogDepth = 8

// followBarWidth is the default progress bar width in the follow view.
const followBarWidth = 30

// EventMsg delivers the next engine event to the follow view.
type EventMsg domain.Event

// StreamClosedMsg signals the event channel closed without a terminal event,
// which happens when the engine shuts down mid-stream.
type StreamClosedMsg struct{}

// FollowModel is the Bubble Tea model for following one execution's event
// stream (run and events with --follow). It implements tea.Model.
//
// The model consumes events from a channel, keeps an overall progress
// fraction of completed steps plus the in-flight step's own fraction, and
// quits on the stream's terminal event.
type FollowModel struct {
	workflow    string
	specID      string
	executionID string
	totalSteps  int

	events <-chan domain.Event

	status         constants.ExecutionStatus
	completedSteps int
	stepFraction   float64
	currentStep    int
	stepName       string
	interruptID    string
	failure        string
	recent         []domain.Event

	bar    *ProgressBar
	styles *OutputStyles

	width    int
	height   int
	done     bool
	quitting bool
}

// NewFollowModel creates a follow view for the given execution. The events
// channel is the replay-then-live stream returned by the orchestrator.
func NewFollowModel(exec *domain.Execution, events <-chan domain.Event) *FollowModel {
	return &FollowModel{
		workflow:    exec.Workflow,
		specID:      exec.SpecID,
		executionID: exec.ID,
		totalSteps:  exec.TotalSteps,
		events:      events,
		status:      exec.Status,
		recent:      make([]domain.Event, 0, eventLogDepth),
		bar:         NewProgressBar(followBarWidth),
		styles:      NewOutputStyles(),
		width:       DefaultTerminalWidth,
		height:      24,
	}
}

// Init starts reading the event stream.
func (m *FollowModel) Init() tea.Cmd {
	return m.waitForEvent()
}

// waitForEvent returns a command that blocks on the next stream event.
func (m *FollowModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Update handles messages and returns the updated model and any commands.
func (m *FollowModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.SetWidth(barWidthFor(msg.Width))
		return m, nil

	case EventMsg:
		m.apply(domain.Event(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case StreamClosedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one event into the view state.
func (m *FollowModel) apply(ev domain.Event) {
	m.recent = append(m.recent, ev)
	if len(m.recent) > eventLogDepth {
		m.recent = m.recent[len(m.recent)-eventLogDepth:]
	}

	switch ev.Type {
	case domain.EventWorkflowStarted:
		m.status = constants.ExecutionStatusRunning

	case domain.EventStepStarted:
		m.status = constants.ExecutionStatusRunning
		m.currentStep = ev.StepIndex
		m.stepName = ev.StepName
		m.stepFraction = 0

	case domain.EventStepProgress:
		m.stepName = ev.StepName
		m.stepFraction = ev.Fraction

	case domain.EventStepCompleted:
		m.completedSteps++
		m.stepFraction = 0

	case domain.EventStepFailed:
		m.failure = ev.Error

	case domain.EventWorkflowPaused:
		m.status = constants.ExecutionStatusPaused
		m.interruptID = ev.InterruptID

	case domain.EventWorkflowResumed:
		m.status = constants.ExecutionStatusRunning
		m.interruptID = ""

	case domain.EventWorkflowCompleted:
		m.status = constants.ExecutionStatusCompleted
		m.completedSteps = m.totalSteps
		m.done = true

	case domain.EventWorkflowCancelled:
		m.status = constants.ExecutionStatusStopped
		m.done = true

	case domain.EventWorkflowFailed:
		m.status = constants.ExecutionStatusFailed
		if ev.Error != "" {
			m.failure = ev.Error
		}
		m.done = true
	}
}

// Fraction returns the overall completion fraction: completed steps plus the
// in-flight step's own progress, over the total.
func (m *FollowModel) Fraction() float64 {
	if m.totalSteps == 0 {
		return 0
	}
	f := (float64(m.completedSteps) + m.stepFraction) / float64(m.totalSteps)
	if f > 1 {
		f = 1
	}
	return f
}

// Status returns the execution status as derived from the event stream.
func (m *FollowModel) Status() constants.ExecutionStatus {
	return m.status
}

// Done reports whether a terminal event ended the stream.
func (m *FollowModel) Done() bool {
	return m.done
}

// InterruptID returns the pending interrupt id while paused, empty otherwise.
func (m *FollowModel) InterruptID() string {
	return m.interruptID
}

// Failure returns the last failure message from the stream.
func (m *FollowModel) Failure() string {
	return m.failure
}

// View renders the current state to a string.
func (m *FollowModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerLine())
	b.WriteString("\n\n")

	step := m.currentStep
	if step == 0 && m.completedSteps > 0 {
		step = m.completedSteps
	}
	b.WriteString(ProgressLine(m.bar, m.Fraction(), step, m.totalSteps, m.stepName))
	b.WriteString("\n")

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, ev := range m.recent {
			b.WriteString("  " + m.eventLine(ev) + "\n")
		}
	}

	if footer := m.footer(); footer != "" {
		b.WriteString("\n" + footer + "\n")
	}

	if !m.done {
		b.WriteString(m.styles.Dim.Render("press q to detach") + "\n")
	}

	return b.String()
}

// headerLine renders "workflow on spec · execution 3f6e1a2b".
func (m *FollowModel) headerLine() string {
	target := m.workflow
	if m.specID != "" {
		target += " on " + m.specID
	}
	return StyleBold.Render(target) + m.styles.Dim.Render(" · execution "+ShortID(m.executionID))
}

// eventLine renders one event as "icon time text".
func (m *FollowModel) eventLine(ev domain.Event) string {
	ts := ev.Timestamp.Local().Format("15:04:05")

	var text string
	switch ev.Type {
	case domain.EventWorkflowStarted:
		text = "workflow started"
	case domain.EventStepStarted:
		text = ev.StepName + " started"
	case domain.EventStepProgress:
		text = fmt.Sprintf("%s %d%%", ev.StepName, int(ev.Fraction*100))
	case domain.EventStepCompleted:
		text = ev.StepName + " completed"
	case domain.EventStepFailed:
		text = ev.StepName + " failed: " + ev.Error
	case domain.EventWorkflowPaused:
		text = "paused: " + ev.Reason
	case domain.EventWorkflowResumed:
		text = "resumed"
	case domain.EventWorkflowCompleted:
		text = "workflow completed"
	case domain.EventWorkflowCancelled:
		text = "cancelled: " + ev.Reason
	case domain.EventWorkflowFailed:
		text = "workflow failed: " + ev.Error
	default:
		text = string(ev.Type)
	}

	return EventIcon(ev.Type) + " " + m.styles.Dim.Render(ts) + " " + text
}

// footer renders the status-dependent action line.
func (m *FollowModel) footer() string {
	switch m.status {
	case constants.ExecutionStatusPaused:
		hint := "awaiting input"
		if m.interruptID != "" {
			hint += " · smartspec respond " + ShortID(m.interruptID) + " --approve"
		}
		return m.styles.Warning.Render("⚠ " + hint)
	case constants.ExecutionStatusCompleted:
		return m.styles.Success.Render("✓ workflow completed")
	case constants.ExecutionStatusFailed:
		line := "✗ workflow failed"
		if m.failure != "" {
			line += ": " + m.failure
		}
		return m.styles.Error.Render(line)
	case constants.ExecutionStatusStopped:
		return m.styles.Dim.Render("◌ workflow cancelled")
	default:
		return ""
	}
}

// barWidthFor sizes the progress bar to the terminal, leaving room for the
// percent and step counter suffix.
func barWidthFor(termWidth int) int {
	width := termWidth - 30
	if width > 40 {
		return 40
	}
	if width < 10 {
		return 10
	}
	return width
}
