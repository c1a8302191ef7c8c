package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"reportqa/internal/categorize"
)

// layout maps export columns to positions in the written header.
type layout struct {
	header        []string
	questions     int
	response      int
	relevantPages int
	answerModel   int
}

// newLayout keeps the input header and appends the answer columns that are not
// already present. Existing columns are overwritten in place.
func newLayout(input []string, questionColumn int) layout {
	header := append([]string(nil), input...)
	if len(header) == 0 {
		header = []string{ColumnQuestions}
		questionColumn = 0
	}
	l := layout{header: header, questions: questionColumn}
	if l.questions < 0 || l.questions >= len(header) {
		l.questions = indexOf(header, ColumnQuestions)
	}
	l.response = l.ensure(ColumnResponse)
	l.relevantPages = l.ensure(ColumnRelevantPages)
	l.answerModel = l.ensure(ColumnAnswerModel)
	return l
}

func (l *layout) ensure(name string) int {
	if i := indexOf(l.header, name); i >= 0 {
		return i
	}
	l.header = append(l.header, name)
	return len(l.header) - 1
}

func indexOf(header []string, name string) int {
	for i, column := range header {
		if column == name {
			return i
		}
	}
	return -1
}

// CSVHeader returns the CSV header WriteCSV produces for the report.
func (r Report) CSVHeader() []string {
	return newLayout(r.Header, r.QuestionColumn).header
}

// WriteCSV writes the report as CSV.
func WriteCSV(w io.Writer, r Report) error {
	l := newLayout(r.Header, r.QuestionColumn)
	writer := csv.NewWriter(w)
	if err := writer.Write(l.header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range r.Rows {
		record := make([]string, len(l.header))
		copy(record, row.Record)
		record[l.questions] = row.Question
		record[l.response] = row.Answer
		record[l.relevantPages] = FormatPages(row.SourcePages)
		record[l.answerModel] = string(row.Label)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV reads an exported report back. Only the rows and header are
// recovered; run metadata is not part of the CSV. The export has no error
// column, so recorded failures come back as plain rows with their label and
// Summary.Failed is zero. results.json and the archive keep Row.Error.
func ReadCSV(r io.Reader) (Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Report{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Report{}, fmt.Errorf("read csv: empty input")
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	l := layout{
		header:        header,
		questions:     indexOf(header, ColumnQuestions),
		response:      indexOf(header, ColumnResponse),
		relevantPages: indexOf(header, ColumnRelevantPages),
		answerModel:   indexOf(header, ColumnAnswerModel),
	}
	var missing []string
	for name, index := range map[string]int{
		ColumnQuestions:     l.questions,
		ColumnResponse:      l.response,
		ColumnRelevantPages: l.relevantPages,
		ColumnAnswerModel:   l.answerModel,
	} {
		if index < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Report{}, fmt.Errorf("read csv: missing columns %s", strings.Join(missing, ", "))
	}

	out := Report{Header: header, QuestionColumn: l.questions}
	for i, record := range records[1:] {
		padded := make([]string, len(header))
		copy(padded, record)
		pages, err := ParsePages(padded[l.relevantPages])
		if err != nil {
			return Report{}, fmt.Errorf("read csv row %d: %w", i+1, err)
		}
		label, err := categorize.ParseLabel(padded[l.answerModel])
		if err != nil {
			return Report{}, fmt.Errorf("read csv row %d: %w", i+1, err)
		}
		out.Rows = append(out.Rows, Row{
			Question:    padded[l.questions],
			Answer:      padded[l.response],
			SourcePages: pages,
			Label:       label,
			Record:      padded,
		})
	}
	out.Summary = Summarize(out.Rows)
	return out, nil
}
