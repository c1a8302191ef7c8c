package runner

import (
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
)

// QuestionEventType identifies a question status update for observers.
type QuestionEventType string

const (
	// QuestionQueued marks a question known but not yet submitted.
	QuestionQueued QuestionEventType = "queued"
	// QuestionScheduled marks a question submitted to the scheduler.
	QuestionScheduled QuestionEventType = "scheduled"
	// QuestionReserving marks a reserve attempt in progress.
	QuestionReserving QuestionEventType = "reserving"
	// QuestionWaitingRateLimit marks a reserve denial with retry_after_ms.
	QuestionWaitingRateLimit QuestionEventType = "waiting_rate_limit"
	// QuestionWaitingLimiterError marks a reserve error retry.
	QuestionWaitingLimiterError QuestionEventType = "waiting_limiter_error"
	// QuestionRunning marks an engine query in flight.
	QuestionRunning QuestionEventType = "running"
	// QuestionAnswered marks a categorized answer.
	QuestionAnswered QuestionEventType = "answered"
	// QuestionFailed marks a query error.
	QuestionFailed QuestionEventType = "failed"
	// QuestionSkipped marks a question never run because the batch aborted.
	QuestionSkipped QuestionEventType = "skipped"
)

// Terminal reports whether no further events follow for the question.
func (t QuestionEventType) Terminal() bool {
	return t == QuestionAnswered || t == QuestionFailed || t == QuestionSkipped
}

// QuestionEvent carries a single status update for a question.
type QuestionEvent struct {
	QuestionIndex int
	QuestionText  string
	Type          QuestionEventType
	RetryAfterMs  int
	Label         categorize.Label
	SourcePages   []*int
	Tokens        int
	WallTime      time.Duration
	Error         string
	EmittedAt     time.Time
}

// RunObserver receives batch lifecycle events for UI or logging.
type RunObserver interface {
	OnRunStart(runID string, document string, total int)
	OnQuestionEvent(event QuestionEvent)
	OnRunEnd(rep report.Report)
}

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(observers ...RunObserver) RunObserver {
	var active multiObserver
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return active
}

type multiObserver []RunObserver

func (m multiObserver) OnRunStart(runID, document string, total int) {
	for _, o := range m {
		o.OnRunStart(runID, document, total)
	}
}

func (m multiObserver) OnQuestionEvent(event QuestionEvent) {
	for _, o := range m {
		o.OnQuestionEvent(event)
	}
}

func (m multiObserver) OnRunEnd(rep report.Report) {
	for _, o := range m {
		o.OnRunEnd(rep)
	}
}
