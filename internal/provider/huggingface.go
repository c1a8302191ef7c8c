package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HTTPDoer abstracts HTTP clients used by providers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HuggingFaceEmbedder calls the Inference API feature-extraction pipeline.
type HuggingFaceEmbedder struct {
	APIKey  string
	BaseURL string
	Client  HTTPDoer
	Model   string
	retry   RetryPolicy
	logger  *zap.Logger
}

type featureExtractionRequest struct {
	Inputs  []string          `json:"inputs"`
	Options featureExtraction `json:"options"`
}

type featureExtraction struct {
	WaitForModel bool `json:"wait_for_model"`
}

// NewHuggingFaceEmbedder constructs an embedder with explicit settings.
func NewHuggingFaceEmbedder(model, apiKey string, client HTTPDoer, settings Settings) (*HuggingFaceEmbedder, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("huggingface api key: %w", ErrMissingCredential)
	}
	settings = settings.withDefaults()
	if client == nil {
		client = settings.HTTPClient
	}
	return &HuggingFaceEmbedder{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(settings.HuggingFaceBaseURL, "/"),
		Client:  client,
		Model:   model,
		retry:   settings.Retry,
		logger:  settings.Logger,
	}, nil
}

// Embed posts texts to the feature-extraction endpoint. Token-level outputs
// are mean pooled into one vector per text.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(featureExtractionRequest{
		Inputs:  texts,
		Options: featureExtraction{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := e.BaseURL + "/pipeline/feature-extraction/" + e.Model

	var vectors [][]float32
	err = e.retry.do(ctx, e.logger, "huggingface embeddings", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Provider: "huggingface", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		decoded, err := decodeFeatures(body)
		if err != nil {
			return err
		}
		if len(decoded) != len(texts) {
			return fmt.Errorf("huggingface embeddings: expected %d vectors, got %d", len(texts), len(decoded))
		}
		vectors = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func decodeFeatures(body []byte) ([][]float32, error) {
	var pooled [][]float32
	if err := json.Unmarshal(body, &pooled); err == nil {
		return pooled, nil
	}
	var tokens [][][]float32
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decode feature extraction response: %w", err)
	}
	out := make([][]float32, len(tokens))
	for i, sequence := range tokens {
		out[i] = meanPool(sequence)
	}
	return out, nil
}

func meanPool(sequence [][]float32) []float32 {
	if len(sequence) == 0 {
		return nil
	}
	sum := make([]float32, len(sequence[0]))
	for _, token := range sequence {
		for j := range sum {
			if j < len(token) {
				sum[j] += token[j]
			}
		}
	}
	for j := range sum {
		sum[j] /= float32(len(sequence))
	}
	return sum
}
