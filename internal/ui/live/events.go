package live

import (
	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventRunStart signals the start of a batch.
	EventRunStart EventKind = iota
	// EventQuestion delivers a question status update.
	EventQuestion
	// EventRunEnd signals batch completion.
	EventRunEnd
)

// Event carries a UI update payload.
type Event struct {
	Kind     EventKind
	RunID    string
	Document string
	Total    int
	Question runner.QuestionEvent
	Summary  report.Summary
}
