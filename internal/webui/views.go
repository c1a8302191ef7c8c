package webui

import (
	"net/url"

	"github.com/a-h/templ"

	"reportqa/internal/question"
	"reportqa/internal/report"
	"reportqa/internal/session"
	"reportqa/internal/store"
)

type notice struct {
	Message string
	Error   string
}

type batchView struct {
	Preview []question.Question
	Total   int
	Report  *report.Report
	Warning string
	Error   string
}

type askView struct {
	Answer string
	Pages  string
	Error  string
}

type historyView struct {
	Enabled bool
	Runs    []store.RunSummary
	Error   string
}

type pageData struct {
	Status    session.Status
	Languages []string
	Selected  string
	Embedding string
	Tip       string
	Question  string
	Archive   bool
	Document  *notice
	Batch     *batchView
	Ask       *askView
}

// csvURL is the download route for an archived or in-memory run.
func csvURL(runID string) templ.SafeURL {
	return templ.URL("/batch/" + url.PathEscape(runID) + "/csv")
}
