// Package runner orchestrates batch and interactive questions against a
// document engine and writes run outputs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/engine"
	"reportqa/internal/models"
	"reportqa/internal/question"
	"reportqa/internal/report"
	"reportqa/pkg/ratelimiter"
)

// AnswerSuffix is appended to every batch question before it is sent.
const AnswerSuffix = "Give me an answer: yes or no answer and reasoning from the context"

// ErrEngineNotReady is returned before any engine call when no document is loaded.
var ErrEngineNotReady = errors.New("no document loaded: submit a PDF first")

// FailurePolicy selects what a per-question failure does to the batch.
type FailurePolicy string

const (
	// FailureRecord stores the error in the row and continues.
	FailureRecord FailurePolicy = "record"
	// FailureAbort stops at the first failure.
	FailureAbort FailurePolicy = "abort"
)

// ParseFailurePolicy parses a policy name. Empty means record.
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", FailureRecord:
		return FailureRecord, nil
	case FailureAbort:
		return FailureAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want record or abort)", value)
	}
}

// BatchError reports the question that aborted a batch.
type BatchError struct {
	Index    int
	Question string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted at question %d: %v", e.Index+1, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchParams configures one RunBatch call. Zero values run sequentially
// with the record policy and no rate limits.
type BatchParams struct {
	RunID          string
	Document       string
	DocumentSHA256 string
	EmbeddingModel string
	LanguageModel  string

	Workers         int
	FailurePolicy   FailurePolicy
	Limiter         ratelimiter.Limiter
	MaxOutputTokens uint64
	Observer        RunObserver

	Verbose       bool
	VerboseWriter io.Writer
	NoColor       bool

	Now func() time.Time
}

// AugmentQuestion appends the answer instruction to a question. The suffix
// is joined without a separator.
func AugmentQuestion(text string) string {
	return text + AnswerSuffix
}

type jobResult struct {
	index  int
	result engine.AnswerResult
	err    error
	wall   time.Duration
}

// RunBatch answers every question in order and returns the finished report.
// Rows keep the question set order whatever the worker count.
func RunBatch(ctx context.Context, set question.Set, eng engine.DocumentQAEngine, params BatchParams) (report.Report, error) {
	if eng == nil || !eng.Ready() {
		return report.Report{}, ErrEngineNotReady
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	runID := params.RunID
	if runID == "" {
		id, err := NewRunID()
		if err != nil {
			return report.Report{}, err
		}
		runID = id
	}
	policy := params.FailurePolicy
	if policy == "" {
		policy = FailureRecord
	}
	workers := max(params.Workers, 1)

	verboseWriter := wrapVerboseWriter(workers, params.VerboseWriter)
	observer := params.Observer
	if params.Verbose && verboseWriter != nil {
		observer = MultiObserver(observer, NewVerboseObserver(verboseWriter, params.NoColor))
	}

	rep := report.Report{
		RunID:          runID,
		Document:       params.Document,
		DocumentSHA256: params.DocumentSHA256,
		EmbeddingModel: params.EmbeddingModel,
		LanguageModel:  params.LanguageModel,
		StartedAt:      now().UTC(),
		Header:         set.Header,
		QuestionColumn: set.QuestionColumn(),
	}
	if observer != nil {
		observer.OnRunStart(runID, params.Document, set.Len())
	}

	jobs := newJobObserver(observer, set.Questions)
	var opts []ratelimiter.Option
	if jobs != nil {
		opts = append(opts, ratelimiter.WithObserver(jobs))
	}
	sched := ratelimiter.NewScheduler(params.Limiter, workers, opts...)
	run := batchRun{
		set:      set,
		eng:      eng,
		sched:    sched,
		jobs:     jobs,
		policy:   policy,
		provider: providerFor(params.LanguageModel),
		model:    params.LanguageModel,
		maxOut:   params.MaxOutputTokens,
		runID:    runID,
	}
	jobs.emitQueuedAll()

	var rows []report.Row
	var err error
	if workers == 1 {
		rows, err = run.sequential(ctx)
	} else {
		rows, err = run.concurrent(ctx)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = sched.Shutdown(shutdownCtx)
	if err != nil {
		return report.Report{}, err
	}

	rep.Rows = rows
	rep.FinishedAt = now().UTC()
	rep.Finalize()
	if observer != nil {
		observer.OnRunEnd(rep)
	}
	return rep, nil
}

type batchRun struct {
	set      question.Set
	eng      engine.DocumentQAEngine
	sched    *ratelimiter.Scheduler
	jobs     *jobObserver
	policy   FailurePolicy
	provider string
	model    string
	maxOut   uint64
	runID    string
}

// job builds the scheduler job for question index. The result is always
// delivered on out, even when ctx is already done.
func (b batchRun) job(ctx context.Context, index int, out chan<- jobResult) ratelimiter.Job {
	prompt := AugmentQuestion(b.set.Questions[index].Text)
	jobID := fmt.Sprintf("%s-%d", b.runID, index+1)
	b.jobs.register(jobID, index)
	return ratelimiter.Job{
		JobID:           jobID,
		Provider:        b.provider,
		Model:           b.model,
		Prompt:          prompt,
		MaxOutputTokens: b.maxOut,
		Execute: func(context.Context) (uint64, error) {
			if err := ctx.Err(); err != nil {
				out <- jobResult{index: index, err: err}
				return 0, err
			}
			b.jobs.emit(index, QuestionEvent{Type: QuestionRunning})
			start := time.Now()
			res, err := b.eng.Query(ctx, prompt)
			out <- jobResult{index: index, result: res, err: err, wall: time.Since(start)}
			return uint64(res.TokensIn + res.TokensOut), err
		},
	}
}

func (b batchRun) sequential(ctx context.Context) ([]report.Row, error) {
	rows := make([]report.Row, 0, b.set.Len())
	for index := range b.set.Questions {
		resultCh := make(chan jobResult, 1)
		job := b.job(ctx, index, resultCh)
		b.jobs.emit(index, QuestionEvent{Type: QuestionScheduled})
		b.sched.Submit(job)
		var res jobResult
		select {
		case res = <-resultCh:
		case <-ctx.Done():
			b.skipFrom(index, nil)
			return nil, canceled(ctx)
		}
		if res.err != nil && ctx.Err() != nil {
			b.skipFrom(index, nil)
			return nil, canceled(ctx)
		}
		row := b.finish(res)
		if row.Failed() && b.policy == FailureAbort {
			b.skipFrom(index+1, nil)
			return nil, &BatchError{Index: index, Question: row.Question, Err: res.err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (b batchRun) concurrent(ctx context.Context) ([]report.Row, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := b.set.Len()
	rows := make([]report.Row, total)
	done := make([]bool, total)
	resultCh := make(chan jobResult, total)
	for index := range b.set.Questions {
		job := b.job(runCtx, index, resultCh)
		b.jobs.emit(index, QuestionEvent{Type: QuestionScheduled})
		b.sched.Submit(job)
	}

	for received := 0; received < total; received++ {
		var res jobResult
		select {
		case res = <-resultCh:
		case <-ctx.Done():
			b.skipFrom(0, done)
			return nil, canceled(ctx)
		}
		if res.err != nil && ctx.Err() != nil {
			b.skipFrom(0, done)
			return nil, canceled(ctx)
		}
		done[res.index] = true
		row := b.finish(res)
		if row.Failed() && b.policy == FailureAbort {
			cancel()
			b.skipFrom(0, done)
			return nil, &BatchError{Index: res.index, Question: row.Question, Err: res.err}
		}
		rows[res.index] = row
	}
	return rows, nil
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("batch canceled: %w", ctx.Err())
}

// finish converts a job result into a row and emits its terminal event.
func (b batchRun) finish(res jobResult) report.Row {
	q := b.set.Questions[res.index]
	row := buildRow(q, res.result, res.err)
	event := QuestionEvent{
		Type:        QuestionAnswered,
		Label:       row.Label,
		SourcePages: row.SourcePages,
		Tokens:      res.result.TokensIn + res.result.TokensOut,
		WallTime:    res.wall,
	}
	if row.Failed() {
		event.Type = QuestionFailed
		event.Error = row.Error
	}
	b.jobs.emit(res.index, event)
	return row
}

// skipFrom emits skipped events for questions from start on that are not
// marked done.
func (b batchRun) skipFrom(start int, done []bool) {
	for index := start; index < b.set.Len(); index++ {
		if done != nil && done[index] {
			continue
		}
		b.jobs.emit(index, QuestionEvent{Type: QuestionSkipped})
	}
}

func buildRow(q question.Question, res engine.AnswerResult, err error) report.Row {
	row := report.Row{Question: q.Text, Record: q.Record}
	if err != nil {
		row.Answer = err.Error()
		row.Error = err.Error()
		row.SourcePages = []*int{}
		row.Label = categorize.NotGiven
		return row
	}
	row.Answer = res.Text
	row.SourcePages = sourcePages(res)
	row.Label = categorize.Categorize(res.Text)
	return row
}

// sourcePages prefers the explicit page list and falls back to the
// passages. The result is never nil.
func sourcePages(res engine.AnswerResult) []*int {
	if res.SourcePages != nil {
		return res.SourcePages
	}
	return engine.PagesOf(res.Passages)
}

func providerFor(languageModel string) string {
	model, err := models.LookupLanguage(languageModel)
	if err != nil {
		return "engine"
	}
	return string(model.Provider)
}
