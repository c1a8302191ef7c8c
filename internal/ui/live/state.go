package live

import (
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// QuestionRow holds UI state for a single question.
type QuestionRow struct {
	Index        int
	Text         string
	Status       runner.QuestionEventType
	Label        categorize.Label
	SourcePages  []*int
	RetryCount   int
	RetryAfterMs int
	StartedAt    time.Time
	FinishedAt   time.Time
	Tokens       int
	Error        string
}

// StatusCounts aggregates counts by status bucket.
type StatusCounts struct {
	Queued    int
	Scheduled int
	Reserving int
	Waiting   int
	Running   int
	Done      int
	Yes       int
	No        int
	NotGiven  int
	Failed    int
	Skipped   int
}

// State captures the live UI state for a batch.
type State struct {
	RunID     string
	Document  string
	Total     int
	StartedAt time.Time
	Finished  bool
	Summary   report.Summary
	LastEvent string
	Rows      []QuestionRow
	Counts    StatusCounts
}
