package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mrz1836/smartspec/internal/constants"
	"github.com/mrz1836/smartspec/internal/domain"
)

// Alignment defines text alignment in a column.
type Alignment int

// Alignment constants.
const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableColumn defines a column in a table.
type TableColumn struct {
	Name  string
	Width int
	Align Alignment
}

// Table provides styled table rendering with width-aware cells. Cells wider
// than their column are truncated with an ellipsis; East Asian wide runes
// count as two columns via go-runewidth.
type Table struct {
	w       io.Writer
	styles  *TableStyles
	columns []TableColumn
}

// NewTable creates a new table with the given columns.
func NewTable(w io.Writer, columns []TableColumn) *Table {
	return &Table{
		w:       w,
		styles:  NewTableStyles(),
		columns: columns,
	}
}

// WriteHeader writes the table header row.
func (t *Table) WriteHeader() {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		cells[i] = padCell(col.Name, col.Width, col.Align)
	}
	_, _ = fmt.Fprintln(t.w, t.styles.Header.Render(strings.Join(cells, "  ")))
}

// WriteRow writes a data row to the table.
func (t *Table) WriteRow(values ...string) {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		cells[i] = padCell(value, col.Width, col.Align)
	}
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "  "))
}

// WriteStyledRow writes a data row with the style applied to one cell.
// Padding happens before styling, so the escape codes wrap the whole cell
// and column alignment is preserved.
func (t *Table) WriteStyledRow(values []string, styledIndex int, style lipgloss.Style) {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		cell := padCell(value, col.Width, col.Align)
		if i == styledIndex {
			cell = style.Render(cell)
		}
		cells[i] = cell
	}
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "  "))
}

// padCell truncates s to the column width and pads it to exactly that
// display width.
func padCell(s string, width int, align Alignment) string {
	if width <= 0 {
		return s
	}
	s = runewidth.Truncate(s, width, "…")
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	if align == AlignRight {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// ShortID returns the first eight characters of an identifier, enough to
// distinguish executions in a listing. Commands accept these prefixes and
// resolve them back to full ids.
func ShortID(id string) string {
	runes := []rune(id)
	if len(runes) <= 8 {
		return id
	}
	return string(runes[:8])
}

// ========================================
// ExecutionTable - Execution Listing
// ========================================

// ExecutionRow represents one row in the execution status table.
type ExecutionRow struct {
	ID          string
	Workflow    string
	SpecID      string
	Status      constants.ExecutionStatus
	CurrentStep int
	TotalSteps  int
	StartedAt   time.Time
}

// BuildExecutionRows converts executions to table rows, preserving order.
func BuildExecutionRows(execs []*domain.Execution) []ExecutionRow {
	rows := make([]ExecutionRow, 0, len(execs))
	for _, e := range execs {
		rows = append(rows, ExecutionRow{
			ID:          e.ID,
			Workflow:    e.Workflow,
			SpecID:      e.SpecID,
			Status:      e.Status,
			CurrentStep: e.CurrentStep,
			TotalSteps:  e.TotalSteps,
			StartedAt:   e.StartedAt,
		})
	}
	return rows
}

// executionMinWidths are the minimum column widths for the execution table.
//
//nolint:gochecknoglobals // Intentional package-level constant for table minimum widths
var executionMinWidths = []int{8, 12, 10, 12, 4, 10}

// executionMaxWidths cap content-driven column growth so one long workflow
// or spec name cannot push the table past the terminal edge.
//
//nolint:gochecknoglobals // Intentional package-level constant for table maximum widths
var executionMaxWidths = []int{8, 26, 30, 14, 6, 14}

// ExecutionTable renders executions in a formatted table with a colored
// status column.
type ExecutionTable struct {
	rows   []ExecutionRow
	styles *TableStyles
	width  int
}

// ExecutionTableOption is a functional option for ExecutionTable configuration.
type ExecutionTableOption func(*ExecutionTable)

// WithExecutionTableWidth sets a specific terminal width (useful for testing).
func WithExecutionTableWidth(width int) ExecutionTableOption {
	return func(t *ExecutionTable) {
		t.width = width
	}
}

// NewExecutionTable creates a new execution table with the given rows.
// Terminal width is auto-detected unless overridden.
func NewExecutionTable(rows []ExecutionRow, opts ...ExecutionTableOption) *ExecutionTable {
	t := &ExecutionTable{
		rows:   rows,
		styles: NewTableStyles(),
		width:  TerminalWidth(),
	}
	if t.width == 0 {
		t.width = DefaultTerminalWidth
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// IsNarrow returns true if the table renders with abbreviated headers.
func (t *ExecutionTable) IsNarrow() bool {
	return t.width < NarrowTerminalWidth
}

// Headers returns the column headers, abbreviated in narrow mode.
func (t *ExecutionTable) Headers() []string {
	if t.IsNarrow() {
		return []string{"EXEC", "WORKFLOW", "SPEC", "STAT", "STEP", "AGE"}
	}
	return []string{"EXECUTION", "WORKFLOW", "SPEC", "STATUS", "STEP", "STARTED"}
}

// Render writes the formatted table to the writer.
func (t *ExecutionTable) Render(w io.Writer) error {
	headers := t.Headers()
	widths := t.columnWidths(headers)

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = padCell(h, widths[i], AlignLeft)
	}
	if _, err := fmt.Fprintln(w, t.styles.Header.Render(strings.Join(headerCells, "  "))); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := []string{
			padCell(ShortID(row.ID), widths[0], AlignLeft),
			padCell(row.Workflow, widths[1], AlignLeft),
			padCell(specCell(row.SpecID), widths[2], AlignLeft),
			t.statusCell(row.Status, widths[3]),
			padCell(stepCell(row.CurrentStep, row.TotalSteps), widths[4], AlignRight),
			padCell(startedCell(row.StartedAt), widths[5], AlignLeft),
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "  ")); err != nil {
			return err
		}
	}

	return nil
}

// Rows returns a copy of the rows to prevent external mutation.
func (t *ExecutionTable) Rows() []ExecutionRow {
	if t.rows == nil {
		return nil
	}
	result := make([]ExecutionRow, len(t.rows))
	copy(result, t.rows)
	return result
}

// columnWidths computes per-column widths from minimums, headers, and row
// content, capped by per-column maximums.
func (t *ExecutionTable) columnWidths(headers []string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = max(executionMinWidths[i], runewidth.StringWidth(h))
	}

	for _, row := range t.rows {
		content := []string{
			ShortID(row.ID),
			row.Workflow,
			specCell(row.SpecID),
			FormatStatusWithIcon(row.Status, row.Status.String()),
			stepCell(row.CurrentStep, row.TotalSteps),
			startedCell(row.StartedAt),
		}
		for i, c := range content {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		if widths[i] > executionMaxWidths[i] {
			widths[i] = executionMaxWidths[i]
		}
	}

	return widths
}

// statusCell renders the status with icon, padding, and semantic color.
func (t *ExecutionTable) statusCell(status constants.ExecutionStatus, width int) string {
	plain := padCell(FormatStatusWithIcon(status, status.String()), width, AlignLeft)
	color, ok := t.styles.StatusColors[status]
	if !ok {
		return plain
	}
	return lipgloss.NewStyle().Foreground(color).Render(plain)
}

func specCell(specID string) string {
	if specID == "" {
		return "-"
	}
	return specID
}

func stepCell(current, total int) string {
	if total == 0 {
		return "-"
	}
	return FormatStepCounter(current, total)
}

func startedCell(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return RelativeTime(ts)
}
