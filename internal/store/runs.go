package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reportqa/internal/categorize"
	"reportqa/internal/report"
)

// DefaultListLimit bounds ListRuns when no limit is given.
const DefaultListLimit = 20

var (
	// ErrRunNotFound is returned by LoadReport for unknown run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunConflict is returned when a run id is already archived with different content.
	ErrRunConflict = errors.New("run already archived with different content")
)

// RunSummary is one archived run as listed by ListRuns.
type RunSummary struct {
	RunID          string
	Document       string
	EmbeddingModel string
	LanguageModel  string
	StartedAt      time.Time
	ArchivedAt     time.Time
	Fingerprint    string
	Summary        report.Summary
}

// SaveReport archives rep and returns its fingerprint. Saving the same report
// twice is a no-op.
func (s *Store) SaveReport(ctx context.Context, rep report.Report) (string, error) {
	if strings.TrimSpace(rep.RunID) == "" {
		return "", errors.New("store: run id is required")
	}
	fingerprint, err := FingerprintJSON(rep)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT fingerprint FROM runs WHERE run_id = ?`, rep.RunID).Scan(&existing)
	switch {
	case err == nil && existing == fingerprint:
		return fingerprint, nil
	case err == nil:
		return "", fmt.Errorf("%w: %s", ErrRunConflict, rep.RunID)
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("lookup run: %w", err)
	}

	now := s.now().UTC()
	if rep.DocumentSHA256 != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (document_sha256, name, created_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT (document_sha256) DO NOTHING`,
			rep.DocumentSHA256, rep.Document, now,
		); err != nil {
			return "", fmt.Errorf("upsert document: %w", err)
		}
	}

	header, err := encodeStrings(rep.Header)
	if err != nil {
		return "", err
	}
	summary := report.Summarize(rep.Rows)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
		  run_id, document_sha256, document_name, embedding_model, language_model,
		  started_at, finished_at, question_column, header,
		  total, yes_count, no_count, not_given_count, failed_count, duration_seconds,
		  fingerprint, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, nullableString(rep.DocumentSHA256), rep.Document, rep.EmbeddingModel, rep.LanguageModel,
		nullableTime(rep.StartedAt), nullableTime(rep.FinishedAt), rep.QuestionColumn, header,
		summary.Total, summary.Labels.Yes, summary.Labels.No, summary.Labels.NotGiven, summary.Failed,
		rep.Summary.DurationSeconds, fingerprint, now,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, row := range rep.Rows {
		record, err := encodeStrings(row.Record)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_rows (row_id, run_id, position, question, answer, relevant_pages, label, error, record)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), rep.RunID, i, row.Question, row.Answer,
			report.FormatPages(row.SourcePages), string(row.Label), nullableString(row.Error), record,
		); err != nil {
			return "", fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit archive: %w", err)
	}
	return fingerprint, nil
}

// ListRuns returns archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, document_name, embedding_model, language_model, started_at, archived_at, fingerprint,
		        total, yes_count, no_count, not_given_count, failed_count, duration_seconds
		 FROM runs
		 ORDER BY archived_at DESC, run_id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			run       RunSummary
			startedAt sql.NullTime
		)
		if err := rows.Scan(
			&run.RunID, &run.Document, &run.EmbeddingModel, &run.LanguageModel, &startedAt, &run.ArchivedAt, &run.Fingerprint,
			&run.Summary.Total, &run.Summary.Labels.Yes, &run.Summary.Labels.No, &run.Summary.Labels.NotGiven,
			&run.Summary.Failed, &run.Summary.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if startedAt.Valid {
			run.StartedAt = startedAt.Time.UTC()
		}
		run.ArchivedAt = run.ArchivedAt.UTC()
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// LoadReport rebuilds an archived report.
func (s *Store) LoadReport(ctx context.Context, runID string) (report.Report, error) {
	var (
		rep         report.Report
		documentSHA sql.NullString
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
		header      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, document_sha256, document_name, embedding_model, language_model,
		        started_at, finished_at, question_column, header, duration_seconds
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rep.RunID, &documentSHA, &rep.Document, &rep.EmbeddingModel, &rep.LanguageModel,
		&startedAt, &finishedAt, &rep.QuestionColumn, &header, &rep.Summary.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("load run: %w", err)
	}
	rep.DocumentSHA256 = documentSHA.String
	if startedAt.Valid {
		rep.StartedAt = startedAt.Time.UTC()
	}
	if finishedAt.Valid {
		rep.FinishedAt = finishedAt.Time.UTC()
	}
	if rep.Header, err = decodeStrings(header); err != nil {
		return report.Report{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT question, answer, relevant_pages, label, error, record
		 FROM run_rows WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return report.Report{}, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			row    report.Row
			pages  string
			label  string
			errMsg sql.NullString
			record sql.NullString
		)
		if err := rows.Scan(&row.Question, &row.Answer, &pages, &label, &errMsg, &record); err != nil {
			return report.Report{}, fmt.Errorf("scan row: %w", err)
		}
		if row.SourcePages, err = report.ParsePages(pages); err != nil {
			return report.Report{}, fmt.Errorf("row pages: %w", err)
		}
		if row.Label, err = categorize.ParseLabel(label); err != nil {
			return report.Report{}, fmt.Errorf("row label: %w", err)
		}
		row.Error = errMsg.String
		if row.Record, err = decodeStrings(record); err != nil {
			return report.Report{}, err
		}
		rep.Rows = append(rep.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return report.Report{}, fmt.Errorf("load rows: %w", err)
	}
	duration := rep.Summary.DurationSeconds
	rep.Summary = report.Summarize(rep.Rows)
	rep.Summary.DurationSeconds = duration
	return rep, nil
}

func encodeStrings(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode strings: %w", err)
	}
	return string(data), nil
}

func decodeStrings(value sql.NullString) ([]string, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		return nil, fmt.Errorf("decode strings: %w", err)
	}
	return out, nil
}
