// Package report holds batch results and their CSV, JSON and HTML renderings.
package report

import (
	"time"

	"reportqa/internal/categorize"
)

// Export column names.
const (
	ColumnQuestions     = "Questions"
	ColumnResponse      = "Response"
	ColumnRelevantPages = "Relevant_pages"
	ColumnAnswerModel   = "Answer_model"
)

// DownloadName is the filename offered for CSV downloads.
const DownloadName = "qa_results.csv"

// Row is the outcome of one question.
type Row struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	SourcePages []*int           `json:"source_pages"`
	Label       categorize.Label `json:"label"`
	Error       string           `json:"error,omitempty"`
	Record      []string         `json:"record,omitempty"`
}

// Failed reports whether the row records a per-question failure.
func (r Row) Failed() bool {
	return r.Error != ""
}

// Report is an ordered batch result. Rows follow the question set order.
type Report struct {
	RunID          string    `json:"run_id"`
	Document       string    `json:"document"`
	DocumentSHA256 string    `json:"document_sha256,omitempty"`
	EmbeddingModel string    `json:"embedding_model"`
	LanguageModel  string    `json:"language_model"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Header         []string  `json:"header,omitempty"`
	QuestionColumn int       `json:"question_column"`
	Rows           []Row     `json:"rows"`
	Summary        Summary   `json:"summary"`
}

// Summary aggregates label and failure counts.
type Summary struct {
	Total           int               `json:"total"`
	Failed          int               `json:"failed"`
	Labels          categorize.Counts `json:"labels"`
	DurationSeconds float64           `json:"duration_seconds"`
}

// Summarize computes a summary for the rows.
func Summarize(rows []Row) Summary {
	summary := Summary{Total: len(rows)}
	for _, row := range rows {
		summary.Labels.Add(row.Label)
		if row.Failed() {
			summary.Failed++
		}
	}
	return summary
}

// Finalize recomputes the summary from the rows and timestamps.
func (r *Report) Finalize() {
	r.Summary = Summarize(r.Rows)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		r.Summary.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	}
}

// Questions returns the row questions in order.
func (r Report) Questions() []string {
	questions := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		questions[i] = row.Question
	}
	return questions
}
