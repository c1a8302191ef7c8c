package rag

import (
	"context"
	"fmt"
	"strings"

	"reportqa/internal/engine"
	"reportqa/internal/provider"
)

const systemPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.`

// chain answers a question from the top-k passages of an index.
type chain struct {
	index       *Index
	embedder    provider.Embedder
	chat        provider.ChatModel
	topK        int
	temperature float64
	maxTokens   int
}

func (c *chain) run(ctx context.Context, question string) (engine.AnswerResult, error) {
	vectors, err := c.embedder.Embed(ctx, []string{question})
	if err != nil {
		return engine.AnswerResult{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return engine.AnswerResult{}, fmt.Errorf("embed question: expected 1 vector, got %d", len(vectors))
	}
	hits, err := c.index.Search(vectors[0], c.topK)
	if err != nil {
		return engine.AnswerResult{}, fmt.Errorf("search index: %w", err)
	}
	completion, err := c.chat.Complete(ctx, provider.Prompt{
		System:      systemPrompt,
		User:        stuffPrompt(hits, question),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return engine.AnswerResult{}, fmt.Errorf("complete: %w", err)
	}

	passages := make([]engine.SourcePassage, len(hits))
	for i, hit := range hits {
		passages[i] = engine.SourcePassage{Text: hit.Passage.Text, Score: hit.Score}
		if hit.Passage.Page > 0 {
			passages[i].Page = engine.Page(hit.Passage.Page)
		}
	}
	return engine.AnswerResult{
		Text:        strings.TrimSpace(completion.Text),
		SourcePages: engine.PagesOf(passages),
		Passages:    passages,
		TokensIn:    completion.TokensIn,
		TokensOut:   completion.TokensOut,
	}, nil
}

// stuffPrompt places every retrieved passage ahead of the question.
func stuffPrompt(hits []Hit, question string) string {
	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] (page %d)\n%s\n\n", i+1, hit.Passage.Page, hit.Passage.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nHelpful Answer:")
	return b.String()
}
