package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reportqa/internal/engine"
	"reportqa/internal/provider"
	"reportqa/internal/spec"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := ConfigPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadAppliesDefaults verifies a minimal file gets every default.
func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: 1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.EmbeddingModel != DefaultEmbeddingModel || cfg.Engine.LanguageModel != DefaultLanguageModel {
		t.Fatalf("unexpected models: %+v", cfg.Engine)
	}
	if cfg.Engine.ChunkSize != 1000 || cfg.Engine.ChunkOverlap != 100 || cfg.Engine.TopK != 4 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Engine)
	}
	if cfg.Batch.Workers != 1 || cfg.Batch.FailurePolicy != "record" {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.Credentials.OpenAIAPIKeyEnv != "OPENAI_API_KEY" || cfg.Credentials.HuggingFaceAPIKeyEnv != "HUGGINGFACE_API_KEY" {
		t.Fatalf("unexpected credential defaults: %+v", cfg.Credentials)
	}
	if cfg.Output.Dir != DefaultOutputDir || cfg.RateLimiter.Mode != "disabled" {
		t.Fatalf("unexpected output or limiter defaults: %+v %+v", cfg.Output, cfg.RateLimiter)
	}
}

// TestNormalizeKeepsExplicitZeroOverlap verifies overlap 0 survives when chunk_size is set.
func TestNormalizeKeepsExplicitZeroOverlap(t *testing.T) {
	cfg := spec.Config{Version: 1, Engine: spec.EngineConfig{ChunkSize: 500}}
	Normalize(&cfg)
	if cfg.Engine.ChunkOverlap != 0 {
		t.Fatalf("expected overlap 0, got %d", cfg.Engine.ChunkOverlap)
	}
}

// TestNormalizeTrimsModelIDs verifies the padded embedding constant validates.
func TestNormalizeTrimsModelIDs(t *testing.T) {
	cfg := spec.Config{Version: 1, Engine: spec.EngineConfig{EmbeddingModel: "sentence-transformers/multi-qa-mpnet-base-dot-v1 "}}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

// TestValidateCollectsEveryIssue verifies all problems are reported together.
func TestValidateCollectsEveryIssue(t *testing.T) {
	cfg := Default()
	cfg.Version = 2
	cfg.Engine.LanguageModel = "gpt-2"
	cfg.Engine.ChunkOverlap = cfg.Engine.ChunkSize
	cfg.Batch.FailurePolicy = "ignore"
	cfg.Log.Level = "trace"
	cfg.RateLimiter.Mode = "remote"

	err := Validate(&cfg)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, issue := range validation.Issues {
		fields[issue.Field] = true
	}
	for _, field := range []string{"version", "engine.language_model", "engine.chunk_overlap", "batch.failure_policy", "log.level", "rate_limiter.mode"} {
		if !fields[field] {
			t.Fatalf("expected issue for %s, got %v", field, validation.Issues)
		}
	}
}

// TestValidateRateLimiterLimits verifies embedded limits are checked per entry.
func TestValidateRateLimiterLimits(t *testing.T) {
	cfg := Default()
	cfg.RateLimiter = spec.RateLimiterConfig{
		Mode: "embedded",
		Limits: []spec.ModelLimit{
			{Provider: "openai", Model: "gpt-4o", RPM: 10},
			{Provider: "openai", Model: "gpt-4o", TPM: 10},
			{Provider: "anthropic", Model: "claude"},
		},
	}
	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"duplicate limit for openai:gpt-4o", `unsupported provider "anthropic"`, "at least one of rpm, tpm, concurrency"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

// TestLoadRejectsUnknownKeys verifies strict decoding reaches Load callers.
func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: 1\nengine:\n  model: gpt-4o\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

// TestResolveCredentialsNamesMissingVariable verifies the error names the variable.
func TestResolveCredentialsNamesMissingVariable(t *testing.T) {
	cfg := Default()
	env := map[string]string{"OPENAI_API_KEY": "sk-test"}
	_, err := ResolveCredentials(cfg, func(key string) string { return env[key] })
	if !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if !strings.Contains(err.Error(), "HUGGINGFACE_API_KEY") {
		t.Fatalf("expected variable name in %q", err.Error())
	}

	env["HUGGINGFACE_API_KEY"] = "hf-test"
	creds, err := ResolveCredentials(cfg, func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.OpenAIKey != "sk-test" || creds.HuggingFaceKey != "hf-test" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestEngineConfigCopiesEngineSection(t *testing.T) {
	cfg := Default()
	cfg.Engine.TopK = 7
	got := EngineConfig(cfg, "report.pdf")
	if got.DocumentPath != "report.pdf" || got.TopK != 7 || got.ChunkSize != 1000 {
		t.Fatalf("unexpected engine config: %+v", got)
	}
	settings := ProviderSettings(cfg, nil)
	if settings.RequestTimeout.Seconds() != 60 || settings.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected provider settings: %+v", settings)
	}
}

// TestScaffoldWritesLoadableConfig verifies the starter config passes Load.
func TestScaffoldWritesLoadableConfig(t *testing.T) {
	root := t.TempDir()
	path := ConfigPath(root)
	if err := Scaffold(path, "out/results"); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load scaffold: %v", err)
	}
	if cfg.Output.Dir != "out/results" {
		t.Fatalf("expected output dir, got %q", cfg.Output.Dir)
	}
	if err := Scaffold(path, ""); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
}

// TestScaffoldQuotesOutputDir verifies folder names with YAML and HTML
// metacharacters load back unchanged.
func TestScaffoldQuotesOutputDir(t *testing.T) {
	root := t.TempDir()
	path := ConfigPath(root)
	want := `results & "drafts": <2025>`
	if err := Scaffold(path, want); err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load scaffold: %v", err)
	}
	if cfg.Output.Dir != want {
		t.Fatalf("expected output dir %q, got %q", want, cfg.Output.Dir)
	}
	if cfg.Engine.ChunkSize != DefaultChunkSize || cfg.RateLimiter.Mode != "disabled" {
		t.Fatalf("unexpected scaffold values: %+v", cfg)
	}
}

// TestFindConfigPathSearchesParents verifies discovery from a nested directory.
func TestFindConfigPathSearchesParents(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "version: 1\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := FindConfigPath(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if base := BaseDirFromConfigPath(got); base != root {
		t.Fatalf("expected base %q, got %q", root, base)
	}
	if got := ResolvePath(root, "results"); got != filepath.Join(root, "results") {
		t.Fatalf("unexpected resolved path %q", got)
	}
}
