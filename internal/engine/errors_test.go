package engine

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

// TestErrorMatchesSentinelByKind verifies wrapped errors match the sentinel of their kind only.
func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", DocumentLoadError("open report.pdf", io.ErrUnexpectedEOF))
	if !errors.Is(err, ErrDocumentLoad) {
		t.Fatalf("expected document load match, got %v", err)
	}
	if errors.Is(err, ErrQuery) {
		t.Fatalf("did not expect query match")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to unwrap")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindDocumentLoad {
		t.Fatalf("expected document_load kind, got %q", kind)
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: QueryError("query", errors.New("timeout")), want: "query error: query: timeout"},
		{err: ChainBuildError("", errors.New("no index")), want: "chain build error: no index"},
		{err: ErrConfiguration, want: "configuration error"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestPagesOfKeepsOrderAndDuplicates(t *testing.T) {
	passages := []SourcePassage{{Page: Page(3)}, {Page: Page(3)}, {}, {Page: Page(1)}}
	pages := PagesOf(passages)
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}
	if *pages[0] != 3 || *pages[1] != 3 || pages[2] != nil || *pages[3] != 1 {
		t.Fatalf("unexpected pages")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.ChunkSize != DefaultChunkSize || cfg.ChunkOverlap != DefaultChunkOverlap || cfg.TopK != DefaultTopK {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	custom := Config{ChunkSize: 200, ChunkOverlap: 0, TopK: 2}.WithDefaults()
	if custom.ChunkOverlap != 0 || custom.TopK != 2 {
		t.Fatalf("custom values overwritten: %+v", custom)
	}
}

// TestConfigWithDefaultsKeepsExplicitZeroOverlap verifies a zero overlap at the
// default chunk size is not replaced by the default overlap.
func TestConfigWithDefaultsKeepsExplicitZeroOverlap(t *testing.T) {
	cfg := Config{ChunkSize: DefaultChunkSize, ChunkOverlap: 0}.WithDefaults()
	if cfg.ChunkSize != DefaultChunkSize || cfg.ChunkOverlap != 0 {
		t.Fatalf("expected size %d with overlap 0, got %+v", DefaultChunkSize, cfg)
	}
	negative := Config{ChunkOverlap: -5}.WithDefaults()
	if negative.ChunkOverlap != DefaultChunkOverlap {
		t.Fatalf("expected default overlap for unset size, got %d", negative.ChunkOverlap)
	}
}
