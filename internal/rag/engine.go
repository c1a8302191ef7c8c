// Package rag is a retrieval augmented implementation of the document QA
// engine: PDF pages are split into chunks, embedded, indexed in memory and
// searched for every question before the language model answers.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reportqa/internal/engine"
	"reportqa/internal/models"
	"reportqa/internal/provider"
)

const defaultEmbedConcurrency = 4

var (
	errNoDocument = errors.New("no document loaded")
	errNoIndex    = errors.New("no index built")
	errNoChain    = errors.New("retrieval chain not built")
)

// Options supplies providers and collaborators. Embedder and Chat replace the
// providers selected from the configured models when set.
type Options struct {
	Credentials      provider.Credentials
	Settings         provider.Settings
	Embedder         provider.Embedder
	Chat             provider.ChatModel
	Cache            VectorCache
	Logger           *zap.Logger
	EmbedConcurrency int
}

// Engine implements engine.DocumentQAEngine.
type Engine struct {
	cfg         engine.Config
	embedding   models.EmbeddingModel
	language    models.LanguageModel
	splitter    *Splitter
	embedder    provider.Embedder
	chat        provider.ChatModel
	cache       VectorCache
	logger      *zap.Logger
	concurrency int

	mu       sync.RWMutex
	document *Document
	index    *Index
	chain    *chain
}

var _ engine.DocumentQAEngine = (*Engine)(nil)

// New validates the configuration and selects providers. Unsupported model
// ids fail here, never at query time.
func New(cfg engine.Config, opts Options) (*Engine, error) {
	cfg = cfg.WithDefaults()
	embedding, err := models.LookupEmbedding(cfg.EmbeddingModelID)
	if err != nil {
		return nil, engine.ConfigurationError("init embeddings", err)
	}
	language, err := models.LookupLanguage(cfg.LanguageModelID)
	if err != nil {
		return nil, engine.ConfigurationError("init models", err)
	}
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, engine.ConfigurationError("init splitter", err)
	}
	cfg.EmbeddingModelID = embedding.ID
	cfg.LanguageModelID = language.ID

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := opts.Settings
	if settings.Logger == nil {
		settings.Logger = logger
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = provider.NewEmbedder(embedding, opts.Credentials, settings)
		if err != nil {
			return nil, engine.ConfigurationError("init embeddings", err)
		}
	}
	chat := opts.Chat
	if chat == nil {
		chat, err = provider.NewChatModel(language, opts.Credentials, settings)
		if err != nil {
			return nil, engine.ConfigurationError("init models", err)
		}
	}
	concurrency := opts.EmbedConcurrency
	if concurrency < 1 {
		concurrency = defaultEmbedConcurrency
	}
	return &Engine{
		cfg:         cfg,
		embedding:   embedding,
		language:    language,
		splitter:    splitter,
		embedder:    embedder,
		chat:        chat,
		cache:       opts.Cache,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Config returns the normalized configuration.
func (e *Engine) Config() engine.Config {
	return e.cfg
}

// Document returns the loaded document, if any.
func (e *Engine) Document() (Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.document == nil {
		return Document{}, false
	}
	return *e.document, true
}

// LoadDocument reads the PDF at path, or the configured path when path is
// empty. Loading a document discards any previous index and chain.
func (e *Engine) LoadDocument(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		path = e.cfg.DocumentPath
	}
	if strings.TrimSpace(path) == "" {
		return engine.DocumentLoadError("load document", errors.New("document path is empty"))
	}
	if err := ctx.Err(); err != nil {
		return engine.DocumentLoadError("load document", err)
	}
	doc, err := LoadPDF(path)
	if err != nil {
		return engine.DocumentLoadError("load "+path, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.document = &doc
	e.index = nil
	e.chain = nil
	e.logger.Info("document loaded",
		zap.String("document", doc.Name),
		zap.Int("pages", len(doc.Pages)),
		zap.String("sha256", doc.SHA256),
	)
	return nil
}

// BuildIndex chunks and embeds the loaded document.
func (e *Engine) BuildIndex(ctx context.Context) error {
	e.mu.RLock()
	doc := e.document
	e.mu.RUnlock()
	if doc == nil {
		return engine.IndexBuildError("build index", errNoDocument)
	}

	index, err := e.buildIndex(ctx, doc)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chain = nil
	if err != nil {
		e.index = nil
		return engine.IndexBuildError("build index", err)
	}
	e.index = index
	return nil
}

func (e *Engine) buildIndex(ctx context.Context, doc *Document) (*Index, error) {
	key := CacheKey{
		DocumentSHA256: doc.SHA256,
		EmbeddingModel: e.embedding.ID,
		ChunkSize:      e.cfg.ChunkSize,
		ChunkOverlap:   e.cfg.ChunkOverlap,
	}
	if e.cache != nil {
		passages, ok, err := e.cache.LookupVectors(ctx, key)
		switch {
		case err != nil:
			e.logger.Warn("vector cache lookup failed", zap.String("key", key.String()), zap.Error(err))
		case ok:
			index := NewIndex(e.embedding.Similarity)
			if err := index.Add(passages...); err == nil && index.Len() > 0 {
				e.logger.Info("vector cache hit", zap.String("document", doc.Name), zap.Int("passages", index.Len()))
				return index, nil
			}
		}
	}

	chunks := e.splitter.SplitPages(doc.Pages)
	if len(chunks) == 0 {
		return nil, errors.New("document produced no chunks")
	}
	passages, err := e.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	index := NewIndex(e.embedding.Similarity)
	if err := index.Add(passages...); err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.StoreVectors(ctx, key, passages); err != nil {
			e.logger.Warn("vector cache store failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
	e.logger.Info("index built",
		zap.String("document", doc.Name),
		zap.Int("chunks", len(chunks)),
		zap.String("embedding_model", e.embedding.ID),
	)
	return index, nil
}

// embedChunks embeds chunks in model sized batches, several batches at a time.
func (e *Engine) embedChunks(ctx context.Context, chunks []Chunk) ([]Passage, error) {
	batchSize := e.embedding.BatchSize
	if batchSize < 1 {
		batchSize = 16
	}
	passages := make([]Passage, len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		offset := start
		group.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}
			vectors, err := e.embedder.Embed(groupCtx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", offset, offset+len(batch)-1, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed chunks %d-%d: expected %d vectors, got %d", offset, offset+len(batch)-1, len(batch), len(vectors))
			}
			for i, chunk := range batch {
				passages[offset+i] = Passage{Text: chunk.Text, Page: chunk.Page, Vector: vectors[i]}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return passages, nil
}

// BuildRetrievalChain connects the index to the language model.
func (e *Engine) BuildRetrievalChain(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return engine.ChainBuildError("build retrieval chain", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return engine.ChainBuildError("build retrieval chain", errNoIndex)
	}
	e.chain = &chain{
		index:       e.index,
		embedder:    e.embedder,
		chat:        e.chat,
		topK:        e.cfg.TopK,
		temperature: e.cfg.Temperature,
		maxTokens:   e.cfg.MaxOutputTokens,
	}
	return nil
}

// Query answers text from the loaded document.
func (e *Engine) Query(ctx context.Context, text string) (engine.AnswerResult, error) {
	e.mu.RLock()
	c := e.chain
	e.mu.RUnlock()
	if c == nil {
		return engine.AnswerResult{}, engine.QueryError("query", errNoChain)
	}
	result, err := c.run(ctx, text)
	if err != nil {
		return engine.AnswerResult{}, engine.QueryError("query", err)
	}
	return result, nil
}

// Ready reports whether the retrieval chain is built.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chain != nil
}
