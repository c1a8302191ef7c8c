package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// OllamaChat completes prompts against a local Ollama server.
type OllamaChat struct {
	client *api.Client
	model  string
	retry  RetryPolicy
	logger *zap.Logger
}

// OllamaEmbedder embeds texts with a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	retry  RetryPolicy
	logger *zap.Logger
}

func newOllamaClient(settings Settings) (*api.Client, error) {
	base, err := url.Parse(strings.TrimSpace(settings.OllamaHost))
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama host %q must include scheme and host", settings.OllamaHost)
	}
	return api.NewClient(base, settings.HTTPClient), nil
}

// NewOllamaChat builds a chat model for the configured Ollama host.
func NewOllamaChat(model string, settings Settings) (*OllamaChat, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	settings = settings.withDefaults()
	client, err := newOllamaClient(settings)
	if err != nil {
		return nil, err
	}
	return &OllamaChat{client: client, model: model, retry: settings.Retry, logger: settings.Logger}, nil
}

// Complete runs a non-streaming chat request.
func (c *OllamaChat) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	stream := false
	messages := make([]api.Message, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, api.Message{Role: "system", Content: prompt.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: prompt.User})
	options := map[string]any{"temperature": prompt.Temperature}
	if prompt.MaxTokens > 0 {
		options["num_predict"] = prompt.MaxTokens
	}
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	var completion Completion
	err := c.retry.do(ctx, c.logger, "ollama chat", func(ctx context.Context) error {
		var text strings.Builder
		completion = Completion{}
		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			text.WriteString(resp.Message.Content)
			if resp.Done {
				completion.TokensIn = resp.PromptEvalCount
				completion.TokensOut = resp.EvalCount
			}
			return nil
		})
		if err != nil {
			return err
		}
		completion.Text = text.String()
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	return completion, nil
}

// NewOllamaEmbedder builds an embedder for the configured Ollama host.
func NewOllamaEmbedder(model string, settings Settings) (*OllamaEmbedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	settings = settings.withDefaults()
	client, err := newOllamaClient(settings)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{client: client, model: model, retry: settings.Retry, logger: settings.Logger}, nil
}

// Embed sends all texts in one request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var vectors [][]float32
	err := e.retry.do(ctx, e.logger, "ollama embeddings", func(ctx context.Context) error {
		resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: texts})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("ollama embeddings: expected %d vectors, got %d", len(texts), len(resp.Embeddings))
		}
		vectors = resp.Embeddings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}
