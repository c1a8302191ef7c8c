package live

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the run header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Run " + state.RunID
	if state.Document != "" {
		line += " | Document: " + state.Document
	}
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + now.Sub(state.StartedAt).Round(100*time.Millisecond).String()
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderSummary renders the status counts line.
func renderSummary(state State, noColor bool) string {
	counts := state.Counts
	line := "Queued: " + fmtInt(counts.Queued+counts.Scheduled+counts.Reserving) +
		" Waiting: " + fmtInt(counts.Waiting) +
		" Running: " + fmtInt(counts.Running) +
		" Done: " + fmtInt(counts.Done) + "/" + fmtInt(state.Total) +
		" Yes: " + fmtInt(counts.Yes) +
		" No: " + fmtInt(counts.No) +
		" Not Given: " + fmtInt(counts.NotGiven) +
		" Failed: " + fmtInt(counts.Failed)
	if counts.Skipped > 0 {
		line += " Skipped: " + fmtInt(counts.Skipped)
	}
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders the last event line.
func renderFooter(state State, noColor bool) string {
	if state.LastEvent == "" {
		return ""
	}
	return stylize("Last event: "+state.LastEvent, noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
