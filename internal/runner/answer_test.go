package runner

import (
	"context"
	"errors"
	"testing"

	"reportqa/internal/engine"
	"reportqa/internal/engine/enginetest"
	"reportqa/internal/report"
	"reportqa/internal/testutil"
)

// TestAnswerOneSendsQuestionUnchanged verifies single questions are not augmented.
func TestAnswerOneSendsQuestionUnchanged(t *testing.T) {
	eng := enginetest.New(enginetest.Fixed("It is an ESG report.", 1, 2))
	ctx := testutil.Context(t, 0)

	res, err := AnswerOne(ctx, "What is this document?", eng)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Text != "It is an ESG report." {
		t.Fatalf("unexpected answer %q", res.Text)
	}
	if got := report.FormatPages(res.SourcePages); got != "[1, 2]" {
		t.Fatalf("unexpected pages %s", got)
	}
	queries := eng.Queries()
	if len(queries) != 1 || queries[0] != "What is this document?" {
		t.Fatalf("expected unchanged query, got %q", queries)
	}
}

// TestAnswerOneDerivesPagesFromPassages verifies pages fall back to passage order.
func TestAnswerOneDerivesPagesFromPassages(t *testing.T) {
	eng := enginetest.New(func(_ context.Context, _ string) (engine.AnswerResult, error) {
		return engine.AnswerResult{
			Text: "Yes.",
			Passages: []engine.SourcePassage{
				{Text: "a", Page: engine.Page(4)},
				{Text: "b"},
			},
		}, nil
	})
	res, err := AnswerOne(testutil.Context(t, 0), "Is it audited?", eng)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := report.FormatPages(res.SourcePages); got != "[4, null]" {
		t.Fatalf("unexpected pages %s", got)
	}
}

func TestAnswerOneRejectsBlankQuestion(t *testing.T) {
	eng := enginetest.New(enginetest.Fixed("unused"))
	_, err := AnswerOne(testutil.Context(t, 0), "   ", eng)
	if !errors.Is(err, engine.ErrQuery) {
		t.Fatalf("expected query error, got %v", err)
	}
	if len(eng.Queries()) != 0 {
		t.Fatalf("blank question must not reach the engine")
	}
}

func TestAnswerOneRequiresDocument(t *testing.T) {
	eng := enginetest.NotReady(enginetest.Fixed("unused"))
	if _, err := AnswerOne(testutil.Context(t, 0), "What is this document?", eng); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := AnswerOne(testutil.Context(t, 0), "What is this document?", nil); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady for nil engine, got %v", err)
	}
}
