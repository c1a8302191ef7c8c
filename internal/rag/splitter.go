package rag

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Chunk is a piece of one page.
type Chunk struct {
	Text string
	Page int
}

// Splitter cuts text into chunks of at most Size runes, repeating up to
// Overlap runes of trailing context between neighbouring chunks. It tries
// paragraph, line, sentence and word boundaries before cutting runes.
type Splitter struct {
	Size    int
	Overlap int
	levels  []splitLevel
}

type splitLevel struct {
	split  func(string) []string
	joiner string
}

var (
	sentenceOnce      sync.Once
	sentenceTokenizer *sentences.DefaultSentenceTokenizer
	sentenceErr       error
)

func englishSentences() (*sentences.DefaultSentenceTokenizer, error) {
	sentenceOnce.Do(func() {
		sentenceTokenizer, sentenceErr = english.NewSentenceTokenizer(nil)
	})
	return sentenceTokenizer, sentenceErr
}

// NewSplitter validates sizes and prepares the boundary levels.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be >= 1")
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be >= 0 and < chunk size")
	}
	s := &Splitter{Size: size, Overlap: overlap}
	s.levels = append(s.levels,
		splitLevel{split: separatorSplit("\n\n"), joiner: "\n\n"},
		splitLevel{split: separatorSplit("\n"), joiner: "\n"},
	)
	if tokenizer, err := englishSentences(); err == nil {
		s.levels = append(s.levels, splitLevel{split: func(text string) []string {
			var out []string
			for _, sentence := range tokenizer.Tokenize(text) {
				if trimmed := strings.TrimSpace(sentence.Text); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			return out
		}, joiner: " "})
	}
	s.levels = append(s.levels, splitLevel{split: strings.Fields, joiner: " "})
	return s, nil
}

func separatorSplit(separator string) func(string) []string {
	return func(text string) []string {
		var out []string
		for _, part := range strings.Split(text, separator) {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
}

// SplitPages chunks every page separately so chunks never span pages.
func (s *Splitter) SplitPages(pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range s.Split(page.Text) {
			chunks = append(chunks, Chunk{Text: text, Page: page.Number})
		}
	}
	return chunks
}

// Split cuts text into chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, 0)
}

func (s *Splitter) split(text string, level int) []string {
	if runeLen(text) <= s.Size {
		return []string{text}
	}
	if level >= len(s.levels) {
		return s.splitRunes(text)
	}
	current := s.levels[level]
	pieces := current.split(text)
	if len(pieces) <= 1 {
		return s.split(text, level+1)
	}

	var chunks []string
	var window []string
	for _, piece := range pieces {
		if runeLen(piece) > s.Size {
			if len(window) > 0 {
				chunks = append(chunks, strings.Join(window, current.joiner))
				window = nil
			}
			chunks = append(chunks, s.split(piece, level+1)...)
			continue
		}
		if len(window) > 0 && extendedLen(window, piece, current.joiner) > s.Size {
			chunks = append(chunks, strings.Join(window, current.joiner))
			window = s.overlapTail(window, piece, current.joiner)
		}
		window = append(window, piece)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, current.joiner))
	}
	return chunks
}

// overlapTail keeps the trailing pieces of window that fit in the overlap
// and still leave room for next.
func (s *Splitter) overlapTail(window []string, next, joiner string) []string {
	start := len(window)
	for start > 0 {
		candidate := window[start-1:]
		if joinedLen(candidate, joiner) > s.Overlap {
			break
		}
		if extendedLen(candidate, next, joiner) > s.Size {
			break
		}
		start--
	}
	return append([]string(nil), window[start:]...)
}

func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	step := s.Size - s.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func joinedLen(parts []string, joiner string) int {
	if len(parts) == 0 {
		return 0
	}
	total := runeLen(joiner) * (len(parts) - 1)
	for _, part := range parts {
		total += runeLen(part)
	}
	return total
}

// extendedLen is the joined length of parts followed by next.
func extendedLen(parts []string, next, joiner string) int {
	if len(parts) == 0 {
		return runeLen(next)
	}
	return joinedLen(parts, joiner) + runeLen(joiner) + runeLen(next)
}

func runeLen(text string) int {
	return utf8.RuneCountInString(text)
}
