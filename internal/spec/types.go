package spec

type Config struct {
	Version     int               `yaml:"version"`
	Engine      EngineConfig      `yaml:"engine"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Batch       BatchConfig       `yaml:"batch"`
	Output      OutputConfig      `yaml:"output"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
}

type EngineConfig struct {
	EmbeddingModel        string  `yaml:"embedding_model"`
	LanguageModel         string  `yaml:"language_model"`
	ChunkSize             int     `yaml:"chunk_size"`
	ChunkOverlap          int     `yaml:"chunk_overlap"`
	TopK                  int     `yaml:"top_k"`
	Temperature           float64 `yaml:"temperature"`
	MaxOutputTokens       int     `yaml:"max_output_tokens"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	MaxRetries            int     `yaml:"max_retries"`
}

// CredentialsConfig names the environment variables holding API keys.
type CredentialsConfig struct {
	OpenAIAPIKeyEnv      string `yaml:"openai_api_key_env"`
	HuggingFaceAPIKeyEnv string `yaml:"huggingface_api_key_env"`
}

type ProvidersConfig struct {
	OpenAIBaseURL        string `yaml:"openai_base_url"`
	HuggingFaceBaseURL   string `yaml:"huggingface_base_url"`
	HuggingFaceRouterURL string `yaml:"huggingface_router_url"`
	OllamaHost           string `yaml:"ollama_host"`
}

type BatchConfig struct {
	Workers       int    `yaml:"workers"`
	FailurePolicy string `yaml:"failure_policy"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir"`
	ArchivePath string `yaml:"archive_path"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type RateLimiterConfig struct {
	Mode            string       `yaml:"mode"`
	MaxOutputTokens uint64       `yaml:"max_output_tokens"`
	Limits          []ModelLimit `yaml:"limits"`
}

// ModelLimit caps calls to one provider/model pair. Zero disables a limit.
type ModelLimit struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	RPM         uint64 `yaml:"rpm"`
	TPM         uint64 `yaml:"tpm"`
	Concurrency uint64 `yaml:"concurrency"`
}
