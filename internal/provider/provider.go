// Package provider adapts hosted and local model APIs to the embedding and
// chat interfaces used by the retrieval engine.
package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel completes a single prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// Prompt is a system instruction plus one user message.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completion is a chat model reply with token usage when the API reports it.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Credentials holds the API keys resolved at startup.
type Credentials struct {
	OpenAIKey      string
	HuggingFaceKey string
}

// ErrMissingCredential is returned when a provider needs a key that was not supplied.
var ErrMissingCredential = errors.New("missing credential")

// Default endpoints.
const (
	DefaultHuggingFaceBaseURL   = "https://api-inference.huggingface.co"
	DefaultHuggingFaceRouterURL = "https://router.huggingface.co/v1"
	DefaultOllamaHost           = "http://127.0.0.1:11434"
)

// Settings configures endpoints and transport for every provider.
type Settings struct {
	OpenAIBaseURL        string
	HuggingFaceBaseURL   string
	HuggingFaceRouterURL string
	OllamaHost           string
	RequestTimeout       time.Duration
	Retry                RetryPolicy
	HTTPClient           *http.Client
	Logger               *zap.Logger
}

func (s Settings) withDefaults() Settings {
	if s.HuggingFaceBaseURL == "" {
		s.HuggingFaceBaseURL = DefaultHuggingFaceBaseURL
	}
	if s.HuggingFaceRouterURL == "" {
		s.HuggingFaceRouterURL = DefaultHuggingFaceRouterURL
	}
	if s.OllamaHost == "" {
		s.OllamaHost = DefaultOllamaHost
	}
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: s.RequestTimeout}
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.Retry = s.Retry.withDefaults()
	return s
}
