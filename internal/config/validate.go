package config

import (
	"fmt"
	"strings"

	"reportqa/internal/models"
	"reportqa/internal/spec"
)

// Issue captures a validation problem with a config field.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates config validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error renders validation errors as a multi-line string.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "config validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

type issueAdder func(field, message string)

type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

// Validate checks a normalized config and reports every issue at once.
func Validate(cfg *spec.Config) error {
	collector := &issueCollector{}

	if cfg.Version == 0 {
		collector.add("version", "is required")
	} else if cfg.Version != 1 {
		collector.add("version", fmt.Sprintf("unsupported version %d", cfg.Version))
	}

	validateEngine(cfg.Engine, collector.add)
	validateCredentials(cfg.Credentials, collector.add)
	validateBatch(cfg.Batch, collector.add)
	validateServer(cfg.Server, collector.add)
	validateLog(cfg.Log, collector.add)
	validateRateLimiter(cfg.RateLimiter, collector.add)

	return collector.result()
}

func validateEngine(e spec.EngineConfig, add issueAdder) {
	if _, err := models.LookupEmbedding(e.EmbeddingModel); err != nil {
		add("engine.embedding_model", fmt.Sprintf("unsupported model %q (supported: %s)", e.EmbeddingModel, strings.Join(models.EmbeddingIDs(), ", ")))
	}
	if _, err := models.LookupLanguage(e.LanguageModel); err != nil {
		add("engine.language_model", fmt.Sprintf("unsupported model %q (supported: %s)", e.LanguageModel, strings.Join(models.LanguageIDs(), ", ")))
	}
	if e.ChunkSize < 1 {
		add("engine.chunk_size", "must be >= 1")
	}
	if e.ChunkOverlap < 0 {
		add("engine.chunk_overlap", "must be >= 0")
	} else if e.ChunkSize > 0 && e.ChunkOverlap >= e.ChunkSize {
		add("engine.chunk_overlap", "must be smaller than chunk_size")
	}
	if e.TopK < 1 {
		add("engine.top_k", "must be >= 1")
	}
	if e.Temperature < 0 || e.Temperature > 2 {
		add("engine.temperature", "must be between 0 and 2")
	}
	if e.MaxOutputTokens < 1 {
		add("engine.max_output_tokens", "must be >= 1")
	}
	if e.RequestTimeoutSeconds < 1 {
		add("engine.request_timeout_seconds", "must be >= 1")
	}
	if e.MaxRetries < 1 {
		add("engine.max_retries", "must be >= 1")
	}
}

func validateCredentials(c spec.CredentialsConfig, add issueAdder) {
	if strings.ContainsAny(c.OpenAIAPIKeyEnv, " =") {
		add("credentials.openai_api_key_env", "must be an environment variable name")
	}
	if strings.ContainsAny(c.HuggingFaceAPIKeyEnv, " =") {
		add("credentials.huggingface_api_key_env", "must be an environment variable name")
	}
}

func validateBatch(b spec.BatchConfig, add issueAdder) {
	if b.Workers < 1 {
		add("batch.workers", "must be >= 1")
	}
	switch b.FailurePolicy {
	case "record", "abort":
	default:
		add("batch.failure_policy", "must be one of record, abort")
	}
}

func validateServer(s spec.ServerConfig, add issueAdder) {
	if !strings.Contains(s.Addr, ":") {
		add("server.addr", fmt.Sprintf("must be host:port, got %q", s.Addr))
	}
	if s.MaxUploadMB < 1 {
		add("server.max_upload_mb", "must be >= 1")
	}
}

func validateLog(l spec.LogConfig, add issueAdder) {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error")
	}
}

func validateRateLimiter(r spec.RateLimiterConfig, add issueAdder) {
	switch r.Mode {
	case "disabled":
	case "embedded":
		if len(r.Limits) == 0 {
			add("rate_limiter.limits", "at least one limit is required when mode is embedded")
		}
	default:
		add("rate_limiter.mode", "must be one of disabled, embedded")
	}
	seen := map[string]struct{}{}
	for i, limit := range r.Limits {
		prefix := fmt.Sprintf("rate_limiter.limits[%d]", i)
		provider := strings.TrimSpace(limit.Provider)
		switch models.Provider(provider) {
		case models.ProviderOpenAI, models.ProviderHuggingFace, models.ProviderOllama:
		case "":
			add(prefix+".provider", "is required")
		default:
			add(prefix+".provider", fmt.Sprintf("unsupported provider %q", limit.Provider))
		}
		if strings.TrimSpace(limit.Model) == "" {
			add(prefix+".model", "is required")
		}
		if limit.RPM == 0 && limit.TPM == 0 && limit.Concurrency == 0 {
			add(prefix, "at least one of rpm, tpm, concurrency must be set")
		}
		key := provider + ":" + strings.TrimSpace(limit.Model)
		if _, dup := seen[key]; dup {
			add(prefix, fmt.Sprintf("duplicate limit for %s", key))
		}
		seen[key] = struct{}{}
	}
}
