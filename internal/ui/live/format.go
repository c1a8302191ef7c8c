package live

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// formatIndex formats a question index.
func formatIndex(index int) string {
	return "Q" + pad2(index+1)
}

// pad2 left-pads a number to two digits when needed.
func pad2(value int) string {
	if value >= 10 {
		return fmtInt(value)
	}
	return "0" + fmtInt(value)
}

func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatQuestionText truncates question text for display.
func formatQuestionText(text string, limit int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	runes := []rune(normalized)
	if limit <= 3 || len(runes) <= limit {
		return normalized
	}
	return string(runes[:limit-3]) + "..."
}

// formatStatus renders a status string for a row.
func formatStatus(row QuestionRow, noColor bool) string {
	return stylizeStatus(formatPrimaryStatus(row), row, noColor)
}

// formatPrimaryStatus renders the primary status text.
func formatPrimaryStatus(row QuestionRow) string {
	switch row.Status {
	case runner.QuestionWaitingRateLimit:
		if row.RetryAfterMs > 0 {
			return "waiting rate limit (" + formatRetryAfter(row.RetryAfterMs) + ")"
		}
		return "waiting rate limit"
	case runner.QuestionWaitingLimiterError:
		return "waiting limiter error"
	case runner.QuestionAnswered:
		return string(row.Label)
	default:
		return string(row.Status)
	}
}

// formatPages renders relevant pages once a question finished.
func formatPages(row QuestionRow) string {
	if row.Status != runner.QuestionAnswered {
		return ""
	}
	return report.FormatPages(row.SourcePages)
}

// formatRetryAfter renders retry delays in human readable units.
func formatRetryAfter(ms int) string {
	if ms <= 0 {
		return ""
	}
	return formatDuration(time.Duration(ms) * time.Millisecond)
}

// formatRowDuration returns elapsed or total time for a row.
func formatRowDuration(row QuestionRow, now time.Time) string {
	if !row.FinishedAt.IsZero() && !row.StartedAt.IsZero() {
		return row.FinishedAt.Sub(row.StartedAt).Round(100 * time.Millisecond).String()
	}
	if !row.StartedAt.IsZero() {
		return now.Sub(row.StartedAt).Round(100 * time.Millisecond).String()
	}
	return ""
}

// formatRetries formats retry counts for display.
func formatRetries(retries int) string {
	if retries <= 0 {
		return ""
	}
	return fmtInt(retries)
}

func stylizeStatus(text string, row QuestionRow, noColor bool) string {
	if noColor {
		return text
	}
	return statusStyle(row).Render(text)
}

// statusStyle selects a style for a row's status and label.
func statusStyle(row QuestionRow) lipgloss.Style {
	color := lipgloss.Color("246")
	switch row.Status {
	case runner.QuestionAnswered:
		switch row.Label {
		case categorize.Yes:
			color = lipgloss.Color("42")
		case categorize.No:
			color = lipgloss.Color("220")
		default:
			color = lipgloss.Color("244")
		}
	case runner.QuestionFailed:
		color = lipgloss.Color("196")
	case runner.QuestionWaitingRateLimit, runner.QuestionWaitingLimiterError:
		color = lipgloss.Color("39")
	case runner.QuestionRunning:
		color = lipgloss.Color("33")
	}
	return lipgloss.NewStyle().Foreground(color)
}
