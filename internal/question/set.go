// Package question loads batch question sets from CSV.
package question

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Column is the required input column.
const Column = "Questions"

// PreviewRows is the number of questions shown before a batch runs.
const PreviewRows = 5

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Question is one input row. Record holds every input field aligned to the
// set header so extra columns can pass through to the export.
type Question struct {
	Text   string
	Record []string
}

// Set is an ordered question set with its input header.
type Set struct {
	Header    []string
	Questions []Question
	column    int
}

// Len returns the number of questions.
func (s Set) Len() int {
	return len(s.Questions)
}

// Texts returns the question texts in order.
func (s Set) Texts() []string {
	texts := make([]string, len(s.Questions))
	for i, q := range s.Questions {
		texts[i] = q.Text
	}
	return texts
}

// Preview returns at most n questions from the start of the set.
func (s Set) Preview(n int) []Question {
	if n < 0 || n > len(s.Questions) {
		n = len(s.Questions)
	}
	return s.Questions[:n]
}

// QuestionColumn returns the header index of the Questions column.
func (s Set) QuestionColumn() int {
	return s.column
}

// FromTexts builds a single-column set, mostly for callers that already hold
// the questions in memory.
func FromTexts(texts []string) Set {
	set := Set{Header: []string{Column}}
	for _, text := range texts {
		set.Questions = append(set.Questions, Question{Text: text, Record: []string{text}})
	}
	return set
}

// LoadFile reads a question set from a CSV file.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read questions: %w", err)
	}
	return Parse(data)
}

// Load reads a question set from r.
func Load(r io.Reader) (Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Set{}, fmt.Errorf("read questions: %w", err)
	}
	return Parse(data)
}

// Parse decodes CSV bytes into a validated question set. Input that is not
// valid UTF-8 is decoded as Windows-1252.
func Parse(data []byte) (Set, error) {
	text, err := decode(data)
	if err != nil {
		return Set{}, err
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Set{}, &ValidationError{Issues: []Issue{{
				Row:     parseErr.Line,
				Message: fmt.Sprintf("malformed CSV: %v", parseErr.Err),
			}}}
		}
		return Set{}, fmt.Errorf("parse questions: %w", err)
	}
	return fromRecords(records)
}

func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode questions: %w", err)
	}
	return string(decoded), nil
}

func fromRecords(records [][]string) (Set, error) {
	if len(records) == 0 {
		return Set{}, &ValidationError{Issues: []Issue{{Message: "file is empty"}}}
	}
	header := make([]string, len(records[0]))
	column := -1
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
		if header[i] == Column && column < 0 {
			column = i
		}
	}
	if column < 0 {
		return Set{}, &ValidationError{Issues: []Issue{{
			Message: fmt.Sprintf("missing required column %q", Column),
		}}}
	}

	collector := issueCollector{}
	set := Set{Header: header, column: column}
	for i, record := range records[1:] {
		row := i + 1
		padded := make([]string, len(header))
		copy(padded, record)
		if len(record) > len(header) {
			collector.add(row, fmt.Sprintf("has %d fields, header has %d", len(record), len(header)))
			continue
		}
		text := padded[column]
		if strings.TrimSpace(text) == "" {
			collector.add(row, "Questions is blank")
			continue
		}
		set.Questions = append(set.Questions, Question{Text: text, Record: padded})
	}
	if len(set.Questions) == 0 && len(collector.issues) == 0 {
		collector.add(0, "no questions found")
	}
	if err := collector.result(); err != nil {
		return Set{}, err
	}
	return set, nil
}
