package rag

import (
	"strings"
	"testing"
)

// TestSplitterRespectsSize verifies every chunk fits and no words are lost.
func TestSplitterRespectsSize(t *testing.T) {
	splitter, err := NewSplitter(60, 15)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	text := strings.Repeat("Emissions fell by ten percent this year. ", 12) + "\n\nWater use was stable across all sites."
	chunks := splitter.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	joined := strings.Join(chunks, " ")
	for _, chunk := range chunks {
		if runeLen(chunk) > 60 {
			t.Fatalf("chunk exceeds size: %d %q", runeLen(chunk), chunk)
		}
	}
	if !strings.Contains(joined, "Water use was stable across all sites.") {
		t.Fatalf("expected final paragraph to survive splitting")
	}
}

// TestSplitterOverlapRepeatsTail verifies neighbouring chunks share trailing words.
func TestSplitterOverlapRepeatsTail(t *testing.T) {
	splitter, err := NewSplitter(20, 8)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := splitter.Split("alpha beta gamma delta epsilon zeta eta theta")
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		if !sharesBoundary(chunks[i-1], chunks[i]) {
			t.Fatalf("expected overlap between %q and %q", chunks[i-1], chunks[i])
		}
	}
}

func TestSplitterCutsLongWords(t *testing.T) {
	splitter, err := NewSplitter(10, 2)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := splitter.Split(strings.Repeat("x", 25))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 rune chunks, got %v", chunks)
	}
	for _, chunk := range chunks {
		if runeLen(chunk) > 10 {
			t.Fatalf("chunk too long: %q", chunk)
		}
	}
}

// TestSplitPagesKeepsPageNumbers verifies chunks never cross page boundaries.
func TestSplitPagesKeepsPageNumbers(t *testing.T) {
	splitter, err := NewSplitter(40, 0)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	chunks := splitter.SplitPages([]Page{
		{Number: 1, Text: "Short first page."},
		{Number: 4, Text: "A fourth page with quite a few more words than fit."},
	})
	if chunks[0].Page != 1 || chunks[0].Text != "Short first page." {
		t.Fatalf("unexpected first chunk %+v", chunks[0])
	}
	for _, chunk := range chunks[1:] {
		if chunk.Page != 4 {
			t.Fatalf("expected page 4, got %+v", chunk)
		}
		if strings.Contains(chunk.Text, "first page") {
			t.Fatalf("chunk crossed a page boundary: %q", chunk.Text)
		}
	}
}

func TestNewSplitterValidates(t *testing.T) {
	if _, err := NewSplitter(0, 0); err == nil {
		t.Fatalf("expected error for zero size")
	}
	if _, err := NewSplitter(10, 10); err == nil {
		t.Fatalf("expected error for overlap equal to size")
	}
}

// sharesBoundary reports whether next starts with words that end previous.
func sharesBoundary(previous, next string) bool {
	words := strings.Fields(next)
	for k := 1; k <= len(words); k++ {
		if strings.HasSuffix(previous, strings.Join(words[:k], " ")) {
			return true
		}
	}
	return false
}
