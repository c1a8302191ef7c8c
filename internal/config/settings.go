package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"reportqa/internal/engine"
	"reportqa/internal/provider"
	"reportqa/internal/spec"
)

// EngineConfig builds the engine configuration for a document.
func EngineConfig(cfg spec.Config, documentPath string) engine.Config {
	return engine.Config{
		DocumentPath:     documentPath,
		EmbeddingModelID: cfg.Engine.EmbeddingModel,
		LanguageModelID:  cfg.Engine.LanguageModel,
		ChunkSize:        cfg.Engine.ChunkSize,
		ChunkOverlap:     cfg.Engine.ChunkOverlap,
		TopK:             cfg.Engine.TopK,
		Temperature:      cfg.Engine.Temperature,
		MaxOutputTokens:  cfg.Engine.MaxOutputTokens,
	}
}

// ProviderSettings builds provider endpoints, timeouts and retries.
func ProviderSettings(cfg spec.Config, logger *zap.Logger) provider.Settings {
	return provider.Settings{
		OpenAIBaseURL:        cfg.Providers.OpenAIBaseURL,
		HuggingFaceBaseURL:   cfg.Providers.HuggingFaceBaseURL,
		HuggingFaceRouterURL: cfg.Providers.HuggingFaceRouterURL,
		OllamaHost:           cfg.Providers.OllamaHost,
		RequestTimeout:       time.Duration(cfg.Engine.RequestTimeoutSeconds) * time.Second,
		Retry:                provider.RetryPolicy{MaxAttempts: cfg.Engine.MaxRetries},
		Logger:               logger,
	}
}

// ResolveCredentials reads both API keys from the environment. A missing
// key is a configuration error naming the variable.
func ResolveCredentials(cfg spec.Config, getenv func(string) string) (provider.Credentials, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var missing []string
	openAI := strings.TrimSpace(getenv(cfg.Credentials.OpenAIAPIKeyEnv))
	if openAI == "" {
		missing = append(missing, cfg.Credentials.OpenAIAPIKeyEnv)
	}
	huggingFace := strings.TrimSpace(getenv(cfg.Credentials.HuggingFaceAPIKeyEnv))
	if huggingFace == "" {
		missing = append(missing, cfg.Credentials.HuggingFaceAPIKeyEnv)
	}
	if len(missing) > 0 {
		return provider.Credentials{}, engine.ConfigurationError("resolve credentials",
			fmt.Errorf("%w: environment variable %s is not set", provider.ErrMissingCredential, strings.Join(missing, ", ")))
	}
	return provider.Credentials{OpenAIKey: openAI, HuggingFaceKey: huggingFace}, nil
}
