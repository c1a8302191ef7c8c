package runner

import (
	"context"
	"errors"
	"strings"

	"reportqa/internal/engine"
)

var errBlankQuestion = errors.New("question is blank")

// AnswerOne sends a single question unchanged and returns the answer with
// its source pages.
func AnswerOne(ctx context.Context, text string, eng engine.DocumentQAEngine) (engine.AnswerResult, error) {
	if eng == nil || !eng.Ready() {
		return engine.AnswerResult{}, ErrEngineNotReady
	}
	if strings.TrimSpace(text) == "" {
		return engine.AnswerResult{}, engine.QueryError("answer", errBlankQuestion)
	}
	res, err := eng.Query(ctx, text)
	if err != nil {
		return engine.AnswerResult{}, err
	}
	res.SourcePages = sourcePages(res)
	return res, nil
}
