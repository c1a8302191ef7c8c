package report

import (
	"context"
	"fmt"
	"io"

	"reportqa/internal/categorize"
)

var exportColumns = []string{ColumnQuestions, ColumnResponse, ColumnRelevantPages, ColumnAnswerModel}

// Render writes a standalone HTML report.
func Render(ctx context.Context, w io.Writer, r Report) error {
	return Page(r).Render(ctx, w)
}

func reportTitle(r Report) string {
	if r.Document == "" {
		return "Document QA report"
	}
	return "Document QA report: " + r.Document
}

func summaryText(s Summary) string {
	text := fmt.Sprintf("%d questions: %d Yes, %d No, %d Not Given", s.Total, s.Labels.Yes, s.Labels.No, s.Labels.NotGiven)
	if s.Failed > 0 {
		text += fmt.Sprintf(" (%d failed)", s.Failed)
	}
	return text
}

func rowStatus(row Row) string {
	if row.Failed() {
		return "failed"
	}
	switch row.Label {
	case categorize.Yes:
		return "yes"
	case categorize.No:
		return "no"
	default:
		return "not-given"
	}
}
