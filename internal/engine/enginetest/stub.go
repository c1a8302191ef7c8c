// Package enginetest provides a scripted DocumentQAEngine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"reportqa/internal/engine"
)

// AnswerFunc produces the reply for one query.
type AnswerFunc func(ctx context.Context, text string) (engine.AnswerResult, error)

// Stub is a DocumentQAEngine driven by an AnswerFunc. It records every
// query text.
type Stub struct {
	answer AnswerFunc

	mu       sync.Mutex
	document string
	indexed  bool
	ready    bool
	queries  []string
	loadErr  error
}

// New returns a stub that is already Ready.
func New(answer AnswerFunc) *Stub {
	return &Stub{answer: answer, ready: true, indexed: true}
}

// NotReady returns a stub that has no document loaded.
func NotReady(answer AnswerFunc) *Stub {
	return &Stub{answer: answer}
}

// FailLoad makes the next LoadDocument fail with err.
func (s *Stub) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Fixed answers every query with text and the given pages.
func Fixed(text string, pages ...int) AnswerFunc {
	return func(context.Context, string) (engine.AnswerResult, error) {
		out := make([]*int, len(pages))
		for i, p := range pages {
			out[i] = engine.Page(p)
		}
		return engine.AnswerResult{Text: text, SourcePages: out}, nil
	}
}

func (s *Stub) LoadDocument(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		err := s.loadErr
		s.loadErr = nil
		s.ready, s.indexed = false, false
		return engine.DocumentLoadError("load document", err)
	}
	s.document = path
	s.ready, s.indexed = false, false
	return nil
}

func (s *Stub) BuildIndex(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == "" {
		return engine.IndexBuildError("build index", errors.New("no document loaded"))
	}
	s.indexed = true
	return nil
}

func (s *Stub) BuildRetrievalChain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.indexed {
		return engine.ChainBuildError("build chain", errors.New("index not built"))
	}
	s.ready = true
	return nil
}

func (s *Stub) Query(ctx context.Context, text string) (engine.AnswerResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, text)
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return engine.AnswerResult{}, engine.QueryError("query", errors.New("retrieval chain not built"))
	}
	if s.answer == nil {
		return engine.AnswerResult{}, nil
	}
	return s.answer(ctx, text)
}

func (s *Stub) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Document returns the last loaded path.
func (s *Stub) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Queries returns the texts received so far, in arrival order.
func (s *Stub) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
