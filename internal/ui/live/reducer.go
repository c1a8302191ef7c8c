package live

import (
	"fmt"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// Reduce applies a question event to the UI state.
func Reduce(state State, event runner.QuestionEvent) State {
	state = ensureRow(state, event.QuestionIndex)
	state = applyQuestionEvent(state, event)
	state.Counts = recount(state.Rows)
	if message := formatLastEvent(event); message != "" {
		state.LastEvent = message
	}
	return state
}

// StartRun resets state for a new batch of total questions.
func StartRun(state State, runID, document string, total int, now time.Time) State {
	state = State{RunID: runID, Document: document, Total: total, StartedAt: now}
	if total > 0 {
		state = ensureRow(state, total-1)
	}
	state.Counts = recount(state.Rows)
	return state
}

// EndRun records the final summary.
func EndRun(state State, summary report.Summary) State {
	state.Finished = true
	state.Summary = summary
	state.LastEvent = fmt.Sprintf("Batch finished: %d yes, %d no, %d not given, %d failed",
		summary.Labels.Yes, summary.Labels.No, summary.Labels.NotGiven, summary.Failed)
	return state
}

// ensureRow grows the state rows to include index.
func ensureRow(state State, index int) State {
	if index < 0 || index < len(state.Rows) {
		return state
	}
	rows := make([]QuestionRow, index+1)
	copy(rows, state.Rows)
	for i := len(state.Rows); i < len(rows); i++ {
		rows[i] = QuestionRow{Index: i, Status: runner.QuestionQueued}
	}
	state.Rows = rows
	return state
}

// applyQuestionEvent updates a row with the given event.
func applyQuestionEvent(state State, event runner.QuestionEvent) State {
	if event.QuestionIndex < 0 || event.QuestionIndex >= len(state.Rows) {
		return state
	}
	row := state.Rows[event.QuestionIndex]
	if row.Text == "" {
		row.Text = event.QuestionText
	}
	row.Status = event.Type
	row.RetryAfterMs = event.RetryAfterMs
	switch event.Type {
	case runner.QuestionWaitingRateLimit, runner.QuestionWaitingLimiterError:
		row.RetryCount++
	case runner.QuestionRunning:
		if row.StartedAt.IsZero() {
			row.StartedAt = event.EmittedAt
		}
	}
	if event.Type.Terminal() {
		if !event.EmittedAt.IsZero() {
			row.FinishedAt = event.EmittedAt
		}
		row.Label = event.Label
		row.SourcePages = event.SourcePages
		row.Tokens = event.Tokens
		row.Error = event.Error
	}
	state.Rows[event.QuestionIndex] = row
	return state
}

// recount recomputes status counts for the current rows.
func recount(rows []QuestionRow) StatusCounts {
	var counts StatusCounts
	for _, row := range rows {
		switch row.Status {
		case runner.QuestionQueued:
			counts.Queued++
		case runner.QuestionScheduled:
			counts.Scheduled++
		case runner.QuestionReserving:
			counts.Reserving++
		case runner.QuestionWaitingRateLimit, runner.QuestionWaitingLimiterError:
			counts.Waiting++
		case runner.QuestionRunning:
			counts.Running++
		case runner.QuestionAnswered:
			counts.Done++
			switch row.Label {
			case categorize.Yes:
				counts.Yes++
			case categorize.No:
				counts.No++
			default:
				counts.NotGiven++
			}
		case runner.QuestionFailed:
			counts.Done++
			counts.Failed++
		case runner.QuestionSkipped:
			counts.Done++
			counts.Skipped++
		}
	}
	return counts
}

// formatLastEvent creates a short footer message for the event.
func formatLastEvent(event runner.QuestionEvent) string {
	n := event.QuestionIndex + 1
	switch event.Type {
	case runner.QuestionWaitingRateLimit:
		if event.RetryAfterMs > 0 {
			return fmt.Sprintf("Q%d rate limited (retry in %s)", n, formatRetryAfter(event.RetryAfterMs))
		}
		return fmt.Sprintf("Q%d rate limited", n)
	case runner.QuestionWaitingLimiterError:
		return fmt.Sprintf("Q%d limiter error (retrying)", n)
	case runner.QuestionAnswered:
		return fmt.Sprintf("Q%d answered: %s", n, event.Label)
	case runner.QuestionFailed:
		return fmt.Sprintf("Q%d failed: %s", n, event.Error)
	case runner.QuestionSkipped:
		return fmt.Sprintf("Q%d skipped", n)
	}
	return ""
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(100 * time.Millisecond).String()
}
