package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIChat completes prompts with the chat completions API. It also serves
// OpenAI-compatible endpoints such as the HuggingFace router.
type OpenAIChat struct {
	client openai.Client
	model  string
	name   string
	retry  RetryPolicy
	logger *zap.Logger
}

// OpenAIEmbedder embeds texts with the embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	retry  RetryPolicy
	logger *zap.Logger
}

func newOpenAIClient(apiKey, baseURL string, settings Settings) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(settings.HTTPClient),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return openai.NewClient(opts...)
}

// NewOpenAIChat builds a chat model against baseURL, or the default OpenAI
// endpoint when baseURL is empty. name labels errors and logs.
func NewOpenAIChat(name, model, apiKey, baseURL string, settings Settings) (*OpenAIChat, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s api key: %w", name, ErrMissingCredential)
	}
	settings = settings.withDefaults()
	return &OpenAIChat{
		client: newOpenAIClient(apiKey, baseURL, settings),
		model:  model,
		name:   name,
		retry:  settings.Retry,
		logger: settings.Logger,
	}, nil
}

// Complete sends one system and one user message.
func (c *OpenAIChat) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(prompt.Temperature),
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}

	var completion Completion
	err := c.retry.do(ctx, c.logger, c.name+" chat", func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s chat: empty choices", c.name)
		}
		completion = Completion{
			Text:      resp.Choices[0].Message.Content,
			TokensIn:  int(resp.Usage.PromptTokens),
			TokensOut: int(resp.Usage.CompletionTokens),
		}
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	return completion, nil
}

// NewOpenAIEmbedder builds an embedder for the OpenAI embeddings API.
func NewOpenAIEmbedder(model, apiKey, baseURL string, settings Settings) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key: %w", ErrMissingCredential)
	}
	settings = settings.withDefaults()
	return &OpenAIEmbedder{
		client: newOpenAIClient(apiKey, baseURL, settings),
		model:  model,
		retry:  settings.Retry,
		logger: settings.Logger,
	}, nil
}

// Embed returns one vector per text, ordered by the response index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	var vectors [][]float32
	err := e.retry.do(ctx, e.logger, "openai embeddings", func(ctx context.Context) error {
		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
		}
		vectors = make([][]float32, len(texts))
		for _, item := range resp.Data {
			index := int(item.Index)
			if index < 0 || index >= len(texts) {
				return fmt.Errorf("openai embeddings: index %d out of range", index)
			}
			vectors[index] = toFloat32(item.Embedding)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
