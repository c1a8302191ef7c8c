package rag

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"reportqa/internal/engine"
	"reportqa/internal/models"
	"reportqa/internal/testutil"
)

func testConfig(path string) engine.Config {
	return engine.Config{
		DocumentPath:     path,
		EmbeddingModelID: models.EmbeddingMPNetDot + " ",
		LanguageModelID:  models.LanguageLlama3Instruct,
		ChunkSize:        200,
		ChunkOverlap:     20,
		TopK:             2,
	}
}

func samplePDF(t *testing.T) string {
	t.Helper()
	return testutil.WritePDF(t, t.TempDir(), "esg.pdf",
		"Sustainability report 2024\nThe company reports scope 1 emissions of 1200 tonnes.",
		"Water usage\nTotal water withdrawal was 50 megalitres.",
		"Targets\nThe company commits to net zero by 2040.",
	)
}

// TestNewRejectsUnknownModels verifies configuration errors surface at construction.
func TestNewRejectsUnknownModels(t *testing.T) {
	cfg := testConfig("")
	cfg.LanguageModelID = "gpt-2"
	_, err := New(cfg, Options{Embedder: &keywordEmbedder{}, Chat: &scriptedChat{}})
	if !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	cfg = testConfig("")
	cfg.ChunkOverlap = cfg.ChunkSize
	if _, err := New(cfg, Options{Embedder: &keywordEmbedder{}, Chat: &scriptedChat{}}); !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("expected configuration error for overlap, got %v", err)
	}
}

// TestEngineStateMachine verifies each step fails with its own error kind when run out of order.
func TestEngineStateMachine(t *testing.T) {
	ctx := testutil.Context(t, 0)
	eng, err := New(testConfig(""), Options{Embedder: &keywordEmbedder{}, Chat: &scriptedChat{reply: "Yes"}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := eng.Query(ctx, "anything"); !errors.Is(err, engine.ErrQuery) {
		t.Fatalf("expected query error, got %v", err)
	}
	if err := eng.BuildRetrievalChain(ctx); !errors.Is(err, engine.ErrChainBuild) {
		t.Fatalf("expected chain build error, got %v", err)
	}
	if err := eng.BuildIndex(ctx); !errors.Is(err, engine.ErrIndexBuild) {
		t.Fatalf("expected index build error, got %v", err)
	}
	if err := eng.LoadDocument(ctx, ""); !errors.Is(err, engine.ErrDocumentLoad) {
		t.Fatalf("expected document load error, got %v", err)
	}
	notPDF := testutil.WriteFile(t, t.TempDir(), "notes.pdf", []byte("plain text"))
	if err := eng.LoadDocument(ctx, notPDF); !errors.Is(err, engine.ErrDocumentLoad) {
		t.Fatalf("expected document load error for non pdf, got %v", err)
	}
	if err := eng.LoadDocument(ctx, filepath.Join(t.TempDir(), "missing.pdf")); !errors.Is(err, engine.ErrDocumentLoad) {
		t.Fatalf("expected document load error for missing file, got %v", err)
	}
	if eng.Ready() {
		t.Fatalf("engine should not be ready")
	}
}

// TestEngineAnswersWithPages verifies a full build and query returns ranked passages with pages.
func TestEngineAnswersWithPages(t *testing.T) {
	ctx := testutil.Context(t, 0)
	chat := &scriptedChat{reply: "Yes, net zero by 2040."}
	eng, err := New(testConfig(samplePDF(t)), Options{Embedder: &keywordEmbedder{}, Chat: chat})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.LoadDocument(ctx, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, ok := eng.Document()
	if !ok || len(doc.Pages) != 3 || doc.Pages[2].Number != 3 || len(doc.SHA256) != 64 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if err := eng.BuildIndex(ctx); err != nil {
		t.Fatalf("build index: %v", err)
	}
	if err := eng.BuildRetrievalChain(ctx); err != nil {
		t.Fatalf("build chain: %v", err)
	}
	if !eng.Ready() {
		t.Fatalf("expected engine ready")
	}

	result, err := eng.Query(ctx, "Does the company commit to net zero?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Text != "Yes, net zero by 2040." {
		t.Fatalf("expected trimmed answer, got %q", result.Text)
	}
	if len(result.SourcePages) != 2 || len(result.Passages) != 2 {
		t.Fatalf("expected top 2 passages, got %d pages", len(result.SourcePages))
	}
	if result.SourcePages[0] == nil || *result.SourcePages[0] != 3 {
		t.Fatalf("expected best passage from page 3, got %v", result.SourcePages[0])
	}
	if len(chat.prompts) != 1 || !strings.Contains(chat.prompts[0].User, "net zero by 2040") {
		t.Fatalf("expected retrieved context in prompt")
	}
}

// TestEngineIndexFailureLeavesEngineNotReady verifies failed embeddings keep no partial index.
func TestEngineIndexFailureLeavesEngineNotReady(t *testing.T) {
	ctx := testutil.Context(t, 0)
	eng, err := New(testConfig(samplePDF(t)), Options{Embedder: &keywordEmbedder{err: errEmbeddingDown}, Chat: &scriptedChat{}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.LoadDocument(ctx, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	err = eng.BuildIndex(ctx)
	if !errors.Is(err, engine.ErrIndexBuild) || !errors.Is(err, errEmbeddingDown) {
		t.Fatalf("expected index build error wrapping cause, got %v", err)
	}
	if err := eng.BuildRetrievalChain(ctx); !errors.Is(err, engine.ErrChainBuild) {
		t.Fatalf("expected chain build error, got %v", err)
	}
}

// TestEngineUsesVectorCache verifies a second engine reuses cached vectors for
// the same content under another file name.
func TestEngineUsesVectorCache(t *testing.T) {
	ctx := testutil.Context(t, 0)
	path := samplePDF(t)
	cache := newMemoryCache()

	first := &keywordEmbedder{}
	eng, err := New(testConfig(path), Options{Embedder: first, Chat: &scriptedChat{}, Cache: cache})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.LoadDocument(ctx, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := eng.BuildIndex(ctx); err != nil {
		t.Fatalf("build index: %v", err)
	}
	if cache.stores != 1 || first.calls == 0 {
		t.Fatalf("expected vectors stored once, got %d stores", cache.stores)
	}

	renamed := filepath.Join(t.TempDir(), "renamed.pdf")
	if err := testutil.CopyFile(path, renamed); err != nil {
		t.Fatalf("copy pdf: %v", err)
	}
	second := &keywordEmbedder{}
	again, err := New(testConfig(renamed), Options{Embedder: second, Chat: &scriptedChat{}, Cache: cache})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := again.LoadDocument(ctx, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := again.BuildIndex(ctx); err != nil {
		t.Fatalf("build index: %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("expected cache hit without embedding, got %d calls", second.calls)
	}
}

// TestEngineCacheKeyKeepsZeroOverlap verifies the cache key records the
// configured overlap when chunking runs at the default size without overlap.
func TestEngineCacheKeyKeepsZeroOverlap(t *testing.T) {
	ctx := testutil.Context(t, 0)
	cache := newMemoryCache()
	cfg := testConfig(samplePDF(t))
	cfg.ChunkSize = engine.DefaultChunkSize
	cfg.ChunkOverlap = 0
	eng, err := New(cfg, Options{Embedder: &keywordEmbedder{}, Chat: &scriptedChat{}, Cache: cache})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.LoadDocument(ctx, ""); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := eng.BuildIndex(ctx); err != nil {
		t.Fatalf("build index: %v", err)
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(cache.entries))
	}
	for key := range cache.entries {
		if key.ChunkSize != engine.DefaultChunkSize || key.ChunkOverlap != 0 {
			t.Fatalf("unexpected cache key %+v", key)
		}
	}
}
