package config

import (
	"strings"

	"reportqa/internal/models"
	"reportqa/internal/provider"
	"reportqa/internal/spec"
)

// Default values applied by Normalize.
const (
	DefaultEmbeddingModel        = models.EmbeddingMPNetDot
	DefaultLanguageModel         = models.LanguageLlama3Instruct
	DefaultChunkSize             = 1000
	DefaultChunkOverlap          = 100
	DefaultTopK                  = 4
	DefaultMaxOutputTokens       = 512
	DefaultRequestTimeoutSeconds = 60
	DefaultMaxRetries            = 3
	DefaultOpenAIKeyEnv          = "OPENAI_API_KEY"
	DefaultHuggingFaceKeyEnv     = "HUGGINGFACE_API_KEY"
	DefaultWorkers               = 1
	DefaultFailurePolicy         = "record"
	DefaultAddr                  = "127.0.0.1:8501"
	DefaultMaxUploadMB           = 50
	DefaultLogLevel              = "info"
)

// Normalize fills unset fields with defaults and trims identifiers. An
// explicit chunk_overlap of 0 is kept only when chunk_size is also set.
func Normalize(cfg *spec.Config) {
	e := &cfg.Engine
	e.EmbeddingModel = strings.TrimSpace(e.EmbeddingModel)
	e.LanguageModel = strings.TrimSpace(e.LanguageModel)
	if e.EmbeddingModel == "" {
		e.EmbeddingModel = DefaultEmbeddingModel
	}
	if e.LanguageModel == "" {
		e.LanguageModel = DefaultLanguageModel
	}
	if e.ChunkSize == 0 {
		e.ChunkSize = DefaultChunkSize
		if e.ChunkOverlap == 0 {
			e.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if e.TopK == 0 {
		e.TopK = DefaultTopK
	}
	if e.MaxOutputTokens == 0 {
		e.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if e.RequestTimeoutSeconds == 0 {
		e.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = DefaultMaxRetries
	}

	c := &cfg.Credentials
	c.OpenAIAPIKeyEnv = defaultString(c.OpenAIAPIKeyEnv, DefaultOpenAIKeyEnv)
	c.HuggingFaceAPIKeyEnv = defaultString(c.HuggingFaceAPIKeyEnv, DefaultHuggingFaceKeyEnv)

	p := &cfg.Providers
	p.OpenAIBaseURL = strings.TrimSpace(p.OpenAIBaseURL)
	p.HuggingFaceBaseURL = defaultString(p.HuggingFaceBaseURL, provider.DefaultHuggingFaceBaseURL)
	p.HuggingFaceRouterURL = defaultString(p.HuggingFaceRouterURL, provider.DefaultHuggingFaceRouterURL)
	p.OllamaHost = defaultString(p.OllamaHost, provider.DefaultOllamaHost)

	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = DefaultWorkers
	}
	cfg.Batch.FailurePolicy = strings.ToLower(defaultString(cfg.Batch.FailurePolicy, DefaultFailurePolicy))

	cfg.Output.Dir = defaultString(cfg.Output.Dir, DefaultOutputDir)
	cfg.Output.ArchivePath = defaultString(cfg.Output.ArchivePath, DefaultArchivePath)

	cfg.Server.Addr = defaultString(cfg.Server.Addr, DefaultAddr)
	cfg.Server.UploadDir = defaultString(cfg.Server.UploadDir, DefaultUploadDir)
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = DefaultMaxUploadMB
	}

	cfg.Log.Level = strings.ToLower(defaultString(cfg.Log.Level, DefaultLogLevel))
	cfg.RateLimiter.Mode = strings.ToLower(defaultString(cfg.RateLimiter.Mode, "disabled"))
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
