package main

import (
	"fmt"
	"strings"

	"alphaforge/internal/ledger"
	"alphaforge/internal/simulation"
	"alphaforge/internal/submission"

	"github.com/charmbracelet/lipgloss"
)

var (
	successColor = lipgloss.Color("#8BC34A")
	warningColor = lipgloss.Color("#FFC107")
	failColor    = lipgloss.Color("#e53935")
	mutedColor   = lipgloss.Color("#6b7280")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	sepStyle    = lipgloss.NewStyle().Foreground(mutedColor)
)

// table renders static rows with padded columns.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers}
}

func (t *table) addRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) String() string {
	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(titleStyle.Render(t.title))
		sb.WriteString("\n")
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	// Width includes the padding.
	for i := range widths {
		widths[i] += 2
	}

	writeLine := func(cells []string, style lipgloss.Style) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(widths)-1 {
				sb.WriteString(sepStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}

	writeLine(t.headers, headerStyle)
	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", max(total, 0))))
	sb.WriteString("\n")
	for _, row := range t.rows {
		writeLine(row, cellStyle)
	}
	return sb.String()
}

func stateColor(state simulation.State) lipgloss.Color {
	switch state {
	case simulation.Succeeded:
		return successColor
	case simulation.FailedChecks:
		return failColor
	default:
		return warningColor
	}
}

func colored(c lipgloss.Color, s string) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func renderSimulationReport(r *simulation.Report) string {
	t := newTable("Simulation run "+r.RunID, "#", "State", "Alpha", "Submits", "Expression")
	for _, o := range r.Outcomes {
		alphaID := o.AlphaID
		if o.Reauthenticated {
			alphaID += " (re-auth)"
		}
		t.addRow(
			fmt.Sprint(o.Index),
			colored(stateColor(o.State), o.State.String()),
			alphaID,
			fmt.Sprint(o.Submits),
			truncate(o.Regular, 60),
		)
	}

	summary := fmt.Sprintf("succeeded %d  failed checks %d  skipped %d  timed out %d",
		r.Succeeded, r.FailedChecks, r.Skipped, r.TimedOut)
	if r.Aborted != nil {
		summary += "\n" + colored(failColor, "aborted: "+r.Aborted.Error())
	}
	return t.String() + summary + "\n"
}

func renderSubmissionReport(r *submission.Report) string {
	t := newTable("Submission run "+r.RunID, "Alpha", "Result", "Error")
	for _, o := range r.Outcomes {
		c := failColor
		switch o.Result {
		case submission.Passed:
			c = successColor
		case submission.TimedOut:
			c = warningColor
		}
		t.addRow(o.AlphaID, colored(c, o.Result), truncate(o.Error, 60))
	}
	return t.String() + fmt.Sprintf("passed %d of %d submitted\n", r.Passed, len(r.Outcomes))
}

func renderLedger(entries []ledger.Entry) string {
	t := newTable(fmt.Sprintf("Outcome log (%d entries)", len(entries)), "Time", "Alpha", "Outcome", "Run")
	for _, e := range entries {
		t.addRow(e.Time().Format("2006-01-02 15:04:05"), e.AlphaID, e.Outcome, e.RunID)
	}
	return t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
