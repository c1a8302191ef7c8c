package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reportqa/internal/categorize"
	"reportqa/internal/engine"
	"reportqa/internal/engine/enginetest"
	"reportqa/internal/question"
	"reportqa/internal/report"
	"reportqa/internal/testutil"
	"reportqa/pkg/ratelimiter"
	"reportqa/pkg/ratelimiter/local"
)

// echoAnswers replies "Yes" for questions mentioning emissions, "No" for
// water and a neutral sentence otherwise.
func echoAnswers(_ context.Context, text string) (engine.AnswerResult, error) {
	question := strings.TrimSuffix(text, AnswerSuffix)
	switch {
	case strings.Contains(question, "emissions"):
		return engine.AnswerResult{Text: "Yes, emissions are reported.", SourcePages: []*int{engine.Page(3), engine.Page(3), nil}}, nil
	case strings.Contains(question, "water"):
		return engine.AnswerResult{Text: "No, water use is not covered.", SourcePages: []*int{engine.Page(7)}}, nil
	default:
		return engine.AnswerResult{Text: "The context does not say.", SourcePages: []*int{}}, nil
	}
}

func testSet(texts ...string) question.Set {
	return question.FromTexts(texts)
}

type recordingObserver struct {
	mu     sync.Mutex
	starts []string
	events []QuestionEvent
	ends   []report.Report
}

func (o *recordingObserver) OnRunStart(runID, document string, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, fmt.Sprintf("%s|%s|%d", runID, document, total))
}

func (o *recordingObserver) OnQuestionEvent(event QuestionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) OnRunEnd(rep report.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ends = append(o.ends, rep)
}

func (o *recordingObserver) typesFor(index int) []QuestionEventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	var types []QuestionEventType
	for _, event := range o.events {
		if event.QuestionIndex == index {
			types = append(types, event.Type)
		}
	}
	return types
}

// TestRunBatchKeepsOrderAndLabels verifies rows follow input order with categorized labels.
func TestRunBatchKeepsOrderAndLabels(t *testing.T) {
	eng := enginetest.New(echoAnswers)
	set := testSet("Are emissions disclosed?", "Is water use covered?", "Who audited it?")
	rep, err := RunBatch(testutil.Context(t, 0), set, eng, BatchParams{RunID: "run-1", Document: "esg.pdf"})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(rep.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rep.Rows))
	}
	wantLabels := []categorize.Label{categorize.Yes, categorize.No, categorize.NotGiven}
	for i, row := range rep.Rows {
		if row.Question != set.Questions[i].Text {
			t.Fatalf("row %d question %q, want %q", i, row.Question, set.Questions[i].Text)
		}
		if row.Label != wantLabels[i] {
			t.Fatalf("row %d label %q, want %q", i, row.Label, wantLabels[i])
		}
	}
	if got := report.FormatPages(rep.Rows[0].SourcePages); got != "[3, 3, null]" {
		t.Fatalf("unexpected pages %s", got)
	}
	if rep.RunID != "run-1" || rep.Document != "esg.pdf" || rep.Summary.Total != 3 || rep.Summary.Labels.Yes != 1 {
		t.Fatalf("unexpected report metadata: %+v", rep.Summary)
	}
}

// TestRunBatchAugmentsQuestions verifies the suffix is appended without a separator.
func TestRunBatchAugmentsQuestions(t *testing.T) {
	eng := enginetest.New(echoAnswers)
	if _, err := RunBatch(testutil.Context(t, 0), testSet("Is it green?"), eng, BatchParams{}); err != nil {
		t.Fatalf("run batch: %v", err)
	}
	queries := eng.Queries()
	want := "Is it green?Give me an answer: yes or no answer and reasoning from the context"
	if len(queries) != 1 || queries[0] != want {
		t.Fatalf("expected %q, got %v", want, queries)
	}
}

// TestRunBatchRequiresReadyEngine verifies no engine call happens without a document.
func TestRunBatchRequiresReadyEngine(t *testing.T) {
	eng := enginetest.NotReady(echoAnswers)
	_, err := RunBatch(testutil.Context(t, 0), testSet("Q?"), eng, BatchParams{})
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if len(eng.Queries()) != 0 {
		t.Fatalf("expected no queries")
	}
	if _, err := RunBatch(testutil.Context(t, 0), testSet("Q?"), nil, BatchParams{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady for nil engine, got %v", err)
	}
}

// TestRunBatchConcurrentPreservesOrder verifies later questions finishing first keep their slot.
func TestRunBatchConcurrentPreservesOrder(t *testing.T) {
	texts := []string{"q0", "q1", "q2", "q3", "q4"}
	eng := enginetest.New(func(ctx context.Context, text string) (engine.AnswerResult, error) {
		var index int
		fmt.Sscanf(strings.TrimSuffix(text, AnswerSuffix), "q%d", &index)
		select {
		case <-time.After(time.Duration(len(texts)-index) * 10 * time.Millisecond):
		case <-ctx.Done():
			return engine.AnswerResult{}, ctx.Err()
		}
		return engine.AnswerResult{Text: "answer " + texts[index]}, nil
	})
	rep, err := RunBatch(testutil.Context(t, 0), testSet(texts...), eng, BatchParams{Workers: 5})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	for i, row := range rep.Rows {
		if row.Question != texts[i] || row.Answer != "answer "+texts[i] {
			t.Fatalf("row %d out of order: %+v", i, row)
		}
	}
}

// TestRunBatchRecordPolicy verifies a failure becomes an error row and the batch continues.
func TestRunBatchRecordPolicy(t *testing.T) {
	eng := enginetest.New(func(ctx context.Context, text string) (engine.AnswerResult, error) {
		if strings.HasPrefix(text, "bad") {
			return engine.AnswerResult{}, engine.QueryError("query", errors.New("provider returned 500"))
		}
		return engine.AnswerResult{Text: "yes"}, nil
	})
	rep, err := RunBatch(testutil.Context(t, 0), testSet("good 1", "bad", "good 2"), eng, BatchParams{FailurePolicy: FailureRecord})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	failed := rep.Rows[1]
	if !failed.Failed() || failed.Label != categorize.NotGiven || !strings.Contains(failed.Answer, "provider returned 500") {
		t.Fatalf("unexpected failed row: %+v", failed)
	}
	if failed.SourcePages == nil || len(failed.SourcePages) != 0 {
		t.Fatalf("expected empty page list, got %v", failed.SourcePages)
	}
	if rep.Rows[2].Label != categorize.Yes || rep.Summary.Failed != 1 {
		t.Fatalf("expected batch to continue: %+v", rep.Summary)
	}
	if len(eng.Queries()) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(eng.Queries()))
	}
}

// TestRunBatchAbortPolicy verifies the first failure stops the batch.
func TestRunBatchAbortPolicy(t *testing.T) {
	eng := enginetest.New(func(ctx context.Context, text string) (engine.AnswerResult, error) {
		if strings.HasPrefix(text, "bad") {
			return engine.AnswerResult{}, engine.QueryError("query", errors.New("timeout"))
		}
		return engine.AnswerResult{Text: "no"}, nil
	})
	observer := &recordingObserver{}
	_, err := RunBatch(testutil.Context(t, 0), testSet("ok", "bad", "never", "never again"), eng, BatchParams{
		FailurePolicy: FailureAbort,
		Observer:      observer,
	})
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.Index != 1 || batchErr.Question != "bad" {
		t.Fatalf("unexpected batch error: %+v", batchErr)
	}
	if !errors.Is(err, engine.ErrQuery) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
	if got := len(eng.Queries()); got != 2 {
		t.Fatalf("expected 2 queries before abort, got %d", got)
	}
	for _, index := range []int{2, 3} {
		types := observer.typesFor(index)
		if len(types) == 0 || types[len(types)-1] != QuestionSkipped {
			t.Fatalf("expected question %d skipped, got %v", index, types)
		}
	}
	if len(observer.ends) != 0 {
		t.Fatalf("expected no run end for an aborted batch")
	}
}

// TestRunBatchObserverLifecycle verifies start, per-question and end events.
func TestRunBatchObserverLifecycle(t *testing.T) {
	eng := enginetest.New(echoAnswers)
	observer := &recordingObserver{}
	_, err := RunBatch(testutil.Context(t, 0), testSet("Are emissions disclosed?", "Is water use covered?"), eng, BatchParams{
		RunID:    "run-obs",
		Document: "esg.pdf",
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(observer.starts) != 1 || observer.starts[0] != "run-obs|esg.pdf|2" {
		t.Fatalf("unexpected starts: %v", observer.starts)
	}
	want := []QuestionEventType{QuestionQueued, QuestionScheduled, QuestionReserving, QuestionRunning, QuestionAnswered}
	for index := 0; index < 2; index++ {
		got := observer.typesFor(index)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("question %d events %v, want %v", index, got, want)
		}
	}
	if len(observer.ends) != 1 || observer.ends[0].Summary.Total != 2 {
		t.Fatalf("unexpected run end: %+v", observer.ends)
	}
}

// TestRunBatchHonoursConcurrencyLimit verifies the embedded limiter caps in-flight queries.
func TestRunBatchHonoursConcurrencyLimit(t *testing.T) {
	limiter, err := local.New([]ratelimiter.LimitDefinition{{
		Key:            ratelimiter.ConcurrencyKey("openai", "gpt-4o"),
		Kind:           ratelimiter.KindConcurrency,
		Capacity:       1,
		TimeoutSeconds: 30,
	}}, nil)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	var inFlight, peak int32
	eng := enginetest.New(func(ctx context.Context, text string) (engine.AnswerResult, error) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return engine.AnswerResult{Text: "yes"}, nil
	})
	rep, err := RunBatch(testutil.Context(t, 0), testSet("a", "b", "c", "d"), eng, BatchParams{
		Workers:       4,
		LanguageModel: "gpt-4o",
		Limiter:       limiter,
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if rep.Summary.Labels.Yes != 4 {
		t.Fatalf("expected 4 answers, got %+v", rep.Summary)
	}
	if got := atomic.LoadInt32(&peak); got != 1 {
		t.Fatalf("expected at most one in-flight query, saw %d", got)
	}
}

// TestRunBatchCancellation verifies a canceled context stops the batch with an error.
func TestRunBatchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(testutil.Context(t, 0))
	eng := enginetest.New(func(qctx context.Context, text string) (engine.AnswerResult, error) {
		cancel()
		<-qctx.Done()
		return engine.AnswerResult{}, qctx.Err()
	})
	_, err := RunBatch(ctx, testSet("a", "b"), eng, BatchParams{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	cases := map[string]FailurePolicy{"": FailureRecord, "record": FailureRecord, " ABORT ": FailureAbort}
	for input, want := range cases {
		got, err := ParseFailurePolicy(input)
		if err != nil || got != want {
			t.Fatalf("ParseFailurePolicy(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseFailurePolicy("retry"); err == nil {
		t.Fatalf("expected error")
	}
}
