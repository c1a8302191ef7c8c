package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"reportqa/internal/provider"
)

// keywordEmbedder hashes lower-cased words into a small bag-of-words vector.
type keywordEmbedder struct {
	calls int32
	texts int32
	err   error
}

const keywordDims = 256

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	atomic.AddInt32(&e.texts, int32(len(texts)))
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, keywordDims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,?!:;()")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vector[h.Sum32()%keywordDims]++
		}
		vectors[i] = vector
	}
	return vectors, nil
}

type scriptedChat struct {
	mu      sync.Mutex
	prompts []provider.Prompt
	reply   string
	err     error
}

func (c *scriptedChat) Complete(_ context.Context, prompt provider.Prompt) (provider.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return provider.Completion{}, c.err
	}
	return provider.Completion{Text: "  " + c.reply + "\n", TokensIn: 10, TokensOut: 3}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[CacheKey][]Passage
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[CacheKey][]Passage{}}
}

func (c *memoryCache) LookupVectors(_ context.Context, key CacheKey) ([]Passage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	passages, ok := c.entries[key]
	return passages, ok, nil
}

func (c *memoryCache) StoreVectors(_ context.Context, key CacheKey, passages []Passage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.entries[key] = passages
	return nil
}

var errEmbeddingDown = errors.New("embedding service down")
