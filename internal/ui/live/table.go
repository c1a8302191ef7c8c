package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	minQuestionWidth = 20
	fixedColumnWidth = 4 + 22 + 14 + 8 + 7
)

// defaultColumns returns the columns used before the terminal size is known.
func defaultColumns() []table.Column {
	return columnsForWidth(120)
}

// columnsForWidth gives the question column whatever the fixed columns leave.
func columnsForWidth(width int) []table.Column {
	question := max(width-fixedColumnWidth-12, minQuestionWidth)
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Question", Width: question},
		{Title: "Status", Width: 22},
		{Title: "Pages", Width: 14},
		{Title: "Time", Width: 8},
		{Title: "Retry", Width: 7},
	}
}

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	if noColor {
		return styles
	}
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, now time.Time, questionWidth int, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Rows))
	for _, row := range state.Rows {
		rows = append(rows, table.Row{
			formatIndex(row.Index),
			formatQuestionText(row.Text, questionWidth),
			formatStatus(row, noColor),
			formatPages(row),
			formatRowDuration(row, now),
			formatRetries(row.RetryCount),
		})
	}
	return rows
}
