// Package engine defines the document question answering contract consumed by
// the batch and interactive orchestrators.
package engine

import "context"

// DocumentQAEngine answers questions against a single loaded document.
//
// Setup happens in three steps: LoadDocument, BuildIndex and
// BuildRetrievalChain. Query may only be called once Ready reports true and is
// safe for concurrent use from that point on.
type DocumentQAEngine interface {
	LoadDocument(ctx context.Context, path string) error
	BuildIndex(ctx context.Context) error
	BuildRetrievalChain(ctx context.Context) error
	Query(ctx context.Context, text string) (AnswerResult, error)
	Ready() bool
}

// Config selects the document and models for an engine.
type Config struct {
	DocumentPath     string
	EmbeddingModelID string
	LanguageModelID  string
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	Temperature      float64
	MaxOutputTokens  int
}

// Tuning defaults applied when a Config leaves a field at zero.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 100
	DefaultTopK            = 4
	DefaultMaxOutputTokens = 512
)

// WithDefaults fills zero tuning fields. The overlap default only applies
// together with the default chunk size; an explicit zero overlap is kept.
func (c Config) WithDefaults() Config {
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return c
}

// SourcePassage is one retrieved supporting passage.
type SourcePassage struct {
	Text  string  `json:"text"`
	Page  *int    `json:"page"`
	Score float64 `json:"score"`
}

// AnswerResult is the answer text plus the pages of the passages that
// supported it, in retrieval rank order. A nil page means unknown.
type AnswerResult struct {
	Text        string          `json:"text"`
	SourcePages []*int          `json:"source_pages"`
	Passages    []SourcePassage `json:"passages,omitempty"`
	TokensIn    int             `json:"tokens_in,omitempty"`
	TokensOut   int             `json:"tokens_out,omitempty"`
}

// PagesOf extracts the page of every passage, keeping order and duplicates.
func PagesOf(passages []SourcePassage) []*int {
	pages := make([]*int, len(passages))
	for i, passage := range passages {
		if passage.Page != nil {
			page := *passage.Page
			pages[i] = &page
		}
	}
	return pages
}

// Page returns a pointer to a page number.
func Page(n int) *int {
	return &n
}
