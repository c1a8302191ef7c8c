package models

import (
	"fmt"
	"sort"
	"strings"
)

// Provider identifies the service that hosts a model.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderHuggingFace Provider = "huggingface"
	ProviderOllama      Provider = "ollama"
)

// Similarity selects the vector comparison an embedding model was trained for.
type Similarity string

const (
	SimilarityCosine Similarity = "cosine"
	SimilarityDot    Similarity = "dot"
)

// Supported model identifiers.
const (
	EmbeddingMPNetDot      = "sentence-transformers/multi-qa-mpnet-base-dot-v1"
	EmbeddingOpenAISmall   = "text-embedding-3-small"
	EmbeddingOllamaNomic   = "nomic-embed-text"
	LanguageGPT35Turbo     = "gpt-3.5-turbo"
	LanguageGPT4o          = "gpt-4o"
	LanguageGPT4oMini      = "gpt-4o-mini"
	LanguageLlama3Instruct = "meta-llama/Meta-Llama-3-8B-Instruct"
	LanguageOllamaLlama3   = "llama3"
)

// EmbeddingModel describes a supported embedding model.
type EmbeddingModel struct {
	ID         string
	Provider   Provider
	Dimensions int
	Similarity Similarity
	BatchSize  int
}

// LanguageModel describes a supported language model.
type LanguageModel struct {
	ID            string
	Provider      Provider
	ContextTokens int
}

var embeddingModels = map[string]EmbeddingModel{
	EmbeddingMPNetDot: {
		ID:         EmbeddingMPNetDot,
		Provider:   ProviderHuggingFace,
		Dimensions: 768,
		Similarity: SimilarityDot,
		BatchSize:  32,
	},
	EmbeddingOpenAISmall: {
		ID:         EmbeddingOpenAISmall,
		Provider:   ProviderOpenAI,
		Dimensions: 1536,
		Similarity: SimilarityCosine,
		BatchSize:  128,
	},
	EmbeddingOllamaNomic: {
		ID:         EmbeddingOllamaNomic,
		Provider:   ProviderOllama,
		Dimensions: 768,
		Similarity: SimilarityCosine,
		BatchSize:  16,
	},
}

var languageModels = map[string]LanguageModel{
	LanguageGPT35Turbo:     {ID: LanguageGPT35Turbo, Provider: ProviderOpenAI, ContextTokens: 16385},
	LanguageGPT4o:          {ID: LanguageGPT4o, Provider: ProviderOpenAI, ContextTokens: 128000},
	LanguageGPT4oMini:      {ID: LanguageGPT4oMini, Provider: ProviderOpenAI, ContextTokens: 128000},
	LanguageLlama3Instruct: {ID: LanguageLlama3Instruct, Provider: ProviderHuggingFace, ContextTokens: 8192},
	LanguageOllamaLlama3:   {ID: LanguageOllamaLlama3, Provider: ProviderOllama, ContextTokens: 8192},
}

// UnknownModelError reports an identifier outside the supported set.
type UnknownModelError struct {
	Kind string
	ID   string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unsupported %s model %q", e.Kind, e.ID)
}

// LookupEmbedding resolves an embedding model id. Surrounding whitespace is ignored.
func LookupEmbedding(id string) (EmbeddingModel, error) {
	model, ok := embeddingModels[strings.TrimSpace(id)]
	if !ok {
		return EmbeddingModel{}, &UnknownModelError{Kind: "embedding", ID: id}
	}
	return model, nil
}

// LookupLanguage resolves a language model id. Surrounding whitespace is ignored.
func LookupLanguage(id string) (LanguageModel, error) {
	model, ok := languageModels[strings.TrimSpace(id)]
	if !ok {
		return LanguageModel{}, &UnknownModelError{Kind: "language", ID: id}
	}
	return model, nil
}

// EmbeddingIDs returns the supported embedding ids in sorted order.
func EmbeddingIDs() []string {
	return sortedKeys(embeddingModels)
}

// LanguageIDs returns the supported language model ids in sorted order.
func LanguageIDs() []string {
	return sortedKeys(languageModels)
}

// Providers returns the providers referenced by the given models, deduplicated.
func Providers(embedding EmbeddingModel, language LanguageModel) []Provider {
	if embedding.Provider == language.Provider {
		return []Provider{embedding.Provider}
	}
	return []Provider{embedding.Provider, language.Provider}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
