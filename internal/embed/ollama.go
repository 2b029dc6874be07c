package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaHost is the standard local Ollama address.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultOllamaModel is the embedding model requested when none is
// configured.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaEmbedder generates embeddings through Ollama's HTTP API.
type OllamaEmbedder struct {
	client *http.Client
	host   string
	model  string
	dims   int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to an Ollama server and verifies it is
// reachable. Construction is the expensive step; wrap it in Lazy so it
// does not block unrelated indexing.
func NewOllamaEmbedder(ctx context.Context, cfg Config) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultOllamaDimensions
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}

	e := &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		host:   cfg.Host,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}
	if !e.Available(ctx) {
		return nil, fmt.Errorf("embed: ollama unreachable at %s", cfg.Host)
	}
	return e, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests an embedding for text. Blank input yields no embedding.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed: ollama status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(result.Embedding) != e.dims {
		return nil, fmt.Errorf("embed: got %d dimensions, want %d", len(result.Embedding), e.dims)
	}

	vec := make([]float32, len(result.Embedding))
	for i, f := range result.Embedding {
		vec[i] = float32(f)
	}
	return normalizeVector(vec), nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.model }

// Available checks that the Ollama server responds.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
