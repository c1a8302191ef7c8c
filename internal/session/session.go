// Package session owns the current document engine for the CLI and web UI.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"reportqa/internal/engine"
	"reportqa/internal/question"
	"reportqa/internal/rag"
	"reportqa/internal/report"
	"reportqa/internal/runner"
)

// EngineFactory builds an engine for a configuration.
type EngineFactory func(cfg engine.Config) (engine.DocumentQAEngine, error)

// RAGFactory builds rag engines sharing opts.
func RAGFactory(opts rag.Options) EngineFactory {
	return func(cfg engine.Config) (engine.DocumentQAEngine, error) {
		return rag.New(cfg, opts)
	}
}

// Status describes the loaded document.
type Status struct {
	Ready          bool      `json:"ready"`
	Document       string    `json:"document,omitempty"`
	DocumentSHA256 string    `json:"document_sha256,omitempty"`
	Pages          int       `json:"pages,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	LanguageModel  string    `json:"language_model,omitempty"`
	LoadedAt       time.Time `json:"loaded_at,omitzero"`
}

// Session holds at most one ready engine. All calls are serialized.
type Session struct {
	factory EngineFactory
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	engine engine.DocumentQAEngine
	status Status
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the load time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty session.
func New(factory EngineFactory, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("engine factory is required")
	}
	s := &Session{factory: factory, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// documentInfo is implemented by engines that expose document metadata.
type documentInfo interface {
	Document() (rag.Document, bool)
}

// Submit replaces the current engine with one built for path. On failure the
// session is left without a ready engine.
func (s *Session) Submit(ctx context.Context, path string, cfg engine.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine = nil
	s.status = Status{}

	cfg.DocumentPath = path
	eng, err := s.factory(cfg)
	if err != nil {
		return err
	}
	steps := []func(context.Context) error{
		func(ctx context.Context) error { return eng.LoadDocument(ctx, path) },
		eng.BuildIndex,
		eng.BuildRetrievalChain,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.logger.Warn("document setup failed", zap.String("document", path), zap.Error(err))
			return err
		}
	}

	status := Status{
		Ready:          true,
		Document:       filepath.Base(path),
		EmbeddingModel: cfg.EmbeddingModelID,
		LanguageModel:  cfg.LanguageModelID,
		LoadedAt:       s.now().UTC(),
	}
	if info, ok := eng.(documentInfo); ok {
		if doc, loaded := info.Document(); loaded {
			status.DocumentSHA256 = doc.SHA256
			status.Pages = len(doc.Pages)
		}
	}
	s.engine = eng
	s.status = status
	s.logger.Info("document ready",
		zap.String("document", status.Document),
		zap.Int("pages", status.Pages),
		zap.String("embedding_model", status.EmbeddingModel),
		zap.String("language_model", status.LanguageModel),
	)
	return nil
}

// Status returns the current document status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Ready reports whether a document is loaded and queryable.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil && s.engine.Ready()
}

// RunBatch answers set against the current document. Document and model
// metadata left empty in params are filled from the session.
func (s *Session) RunBatch(ctx context.Context, set question.Set, params runner.BatchParams) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if params.Document == "" {
		params.Document = s.status.Document
	}
	if params.DocumentSHA256 == "" {
		params.DocumentSHA256 = s.status.DocumentSHA256
	}
	if params.EmbeddingModel == "" {
		params.EmbeddingModel = s.status.EmbeddingModel
	}
	if params.LanguageModel == "" {
		params.LanguageModel = s.status.LanguageModel
	}
	return runner.RunBatch(ctx, set, s.engine, params)
}

// AnswerOne answers a single question against the current document.
func (s *Session) AnswerOne(ctx context.Context, text string) (engine.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return runner.AnswerOne(ctx, text, s.engine)
}
