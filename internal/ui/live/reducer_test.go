package live

import (
	"strings"
	"testing"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/engine"
	"reportqa/internal/report"
	"reportqa/internal/runner"
	"reportqa/internal/testutil"
)

// TestReduceQuestionLifecycle verifies core status transitions are recorded.
func TestReduceQuestionLifecycle(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		state := StartRun(State{}, "run-1", "esg.pdf", 2, start)
		if len(state.Rows) != 2 || state.Counts.Queued != 2 {
			t.Fatalf("expected two queued rows, got %+v", state.Counts)
		}
		state = Reduce(state, event(0, runner.QuestionScheduled, "", start))
		state = Reduce(state, event(0, runner.QuestionReserving, "", start))
		state = Reduce(state, event(0, runner.QuestionRunning, "", start))
		done := event(0, runner.QuestionAnswered, "", start.Add(1500*time.Millisecond))
		done.Label = categorize.Yes
		done.SourcePages = []*int{engine.Page(3)}
		done.Tokens = 120
		state = Reduce(state, done)

		row := state.Rows[0]
		if row.Status != runner.QuestionAnswered || row.Label != categorize.Yes {
			t.Fatalf("unexpected row %+v", row)
		}
		if row.Tokens != 120 {
			t.Fatalf("expected tokens to be set, got %d", row.Tokens)
		}
		if got := formatRowDuration(row, start); got != "1.5s" {
			t.Fatalf("unexpected duration %q", got)
		}
		if got := formatPages(row); got != "[3]" {
			t.Fatalf("unexpected pages %q", got)
		}
		if state.Counts.Done != 1 || state.Counts.Yes != 1 || state.Counts.Queued != 1 {
			t.Fatalf("unexpected counts %+v", state.Counts)
		}
		if state.LastEvent != "Q1 answered: Yes" {
			t.Fatalf("unexpected last event %q", state.LastEvent)
		}
	})
}

// TestReduceWaitingIncrementsRetry verifies retry counts are tracked.
func TestReduceWaitingIncrementsRetry(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		state := State{}
		waiting := event(0, runner.QuestionWaitingRateLimit, "", time.Now())
		waiting.RetryAfterMs = 2000
		state = Reduce(state, waiting)
		state = Reduce(state, event(0, runner.QuestionWaitingLimiterError, "", time.Now()))
		row := state.Rows[0]
		if row.RetryCount != 2 {
			t.Fatalf("expected retries=2, got %d", row.RetryCount)
		}
		if state.Counts.Waiting != 1 {
			t.Fatalf("expected waiting count, got %d", state.Counts.Waiting)
		}
		state = Reduce(state, waiting)
		if got := formatPrimaryStatus(state.Rows[0]); got != "waiting rate limit (2s)" {
			t.Fatalf("unexpected status %q", got)
		}
	})
}

// TestReduceFailuresAndSkips verifies terminal error states.
func TestReduceFailuresAndSkips(t *testing.T) {
	runWithTimeout(t, time.Second, func() {
		state := State{}
		state = Reduce(state, event(0, runner.QuestionFailed, "provider unavailable", time.Now()))
		state = Reduce(state, event(1, runner.QuestionSkipped, "", time.Now()))
		if state.Rows[0].Error != "provider unavailable" {
			t.Fatalf("expected error to be recorded")
		}
		if state.Counts.Failed != 1 || state.Counts.Skipped != 1 || state.Counts.Done != 2 {
			t.Fatalf("unexpected counts %+v", state.Counts)
		}
		if formatPages(state.Rows[0]) != "" {
			t.Fatalf("failed rows show no pages")
		}
	})
}

func TestApplyEventRunEnd(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	model := NewModel(nil, Options{NoColor: true, Clock: clock.Now})
	model = applyEvent(model, Event{Kind: EventRunStart, RunID: "run-1", Document: "esg.pdf", Total: 1})
	summary := report.Summary{Total: 1, Labels: categorize.Counts{No: 1}}
	model = applyEvent(model, Event{Kind: EventRunEnd, Summary: summary})

	state := model.State()
	if !state.Finished || state.Summary.Labels.No != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
	view := model.View()
	for _, want := range []string{"Run run-1 | Document: esg.pdf", "Done: 0/1", "Batch finished: 0 yes, 1 no"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestFormatQuestionText(t *testing.T) {
	if got := formatQuestionText("Is  scope 1\nreported?", 40); got != "Is scope 1 reported?" {
		t.Fatalf("unexpected %q", got)
	}
	if got := formatQuestionText(strings.Repeat("é", 30), 10); got != strings.Repeat("é", 7)+"..." {
		t.Fatalf("unexpected %q", got)
	}
}

// event builds a QuestionEvent for testing.
func event(index int, kind runner.QuestionEventType, errMsg string, when time.Time) runner.QuestionEvent {
	return runner.QuestionEvent{
		QuestionIndex: index,
		QuestionText:  "Question",
		Type:          kind,
		Error:         errMsg,
		EmittedAt:     when,
	}
}

// runWithTimeout executes a test body with a timeout.
func runWithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	ctx := testutil.Context(t, timeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("test timed out")
	}
}
