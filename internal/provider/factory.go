package provider

import (
	"fmt"

	"reportqa/internal/models"
)

// NewEmbedder returns the embedder for a supported embedding model.
func NewEmbedder(model models.EmbeddingModel, creds Credentials, settings Settings) (Embedder, error) {
	switch model.Provider {
	case models.ProviderOpenAI:
		return NewOpenAIEmbedder(model.ID, creds.OpenAIKey, settings.OpenAIBaseURL, settings)
	case models.ProviderHuggingFace:
		return NewHuggingFaceEmbedder(model.ID, creds.HuggingFaceKey, nil, settings)
	case models.ProviderOllama:
		return NewOllamaEmbedder(model.ID, settings)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", model.Provider)
	}
}

// NewChatModel returns the chat model for a supported language model.
func NewChatModel(model models.LanguageModel, creds Credentials, settings Settings) (ChatModel, error) {
	settings = settings.withDefaults()
	switch model.Provider {
	case models.ProviderOpenAI:
		return NewOpenAIChat("openai", model.ID, creds.OpenAIKey, settings.OpenAIBaseURL, settings)
	case models.ProviderHuggingFace:
		return NewOpenAIChat("huggingface", model.ID, creds.HuggingFaceKey, settings.HuggingFaceRouterURL, settings)
	case models.ProviderOllama:
		return NewOllamaChat(model.ID, settings)
	default:
		return nil, fmt.Errorf("unsupported language provider %q", model.Provider)
	}
}
