// Package embed turns plain text into fixed-length vectors for similarity
// search. Embedding is best-effort: a nil vector means "no embedding
// available" and must never be stored or treated as a valid zero vector.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Providers selectable via configuration.
const (
	ProviderStatic   = "static"
	ProviderOllama   = "ollama"
	ProviderDisabled = "disabled"
)

// StaticDimensions is the vector size of the hash-based embedder.
const StaticDimensions = 256

// DefaultOllamaDimensions matches nomic-embed-text, the default model.
const DefaultOllamaDimensions = 768

// DefaultOllamaTimeout bounds a single embedding request.
const DefaultOllamaTimeout = 60 * time.Second

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns a normalized fixed-length vector for text. A nil
	// vector with a nil error means no embedding is available for this
	// input (blank text); callers skip it.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready for use.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config selects and parameterises the embedding provider.
type Config struct {
	Provider   string
	Host       string // ollama only
	Model      string // ollama only
	Dimensions int    // ollama only; 0 means the provider default
	Timeout    time.Duration
}

// New builds an Embedder from config. The Ollama provider is wrapped in a
// Lazy shell so the (slow, fallible) connection happens on first use, not
// at process start.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", ProviderStatic:
		return NewStaticEmbedder(), nil
	case ProviderOllama:
		dims := cfg.Dimensions
		if dims == 0 {
			dims = DefaultOllamaDimensions
		}
		ollamaCfg := cfg
		ollamaCfg.Dimensions = dims
		return NewLazy(dims, cfg.Model, func(ctx context.Context) (Embedder, error) {
			return NewOllamaEmbedder(ctx, ollamaCfg)
		}), nil
	case ProviderDisabled:
		return disabled{}, nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}

// disabled is the no-op embedder: semantic indexing is off, everything else
// keeps working.
type disabled struct{}

func (disabled) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (disabled) Dimensions() int                                  { return StaticDimensions }
func (disabled) ModelName() string                                { return "disabled" }
func (disabled) Available(context.Context) bool                   { return false }
func (disabled) Close() error                                     { return nil }

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
