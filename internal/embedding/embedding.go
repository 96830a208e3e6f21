// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
	// Name identifies the provider and model; vectors from embedders with
	// different names are not comparable.
	Name() string
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "hash" (default), "ollama" or "openai".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Dims     int    `yaml:"dims"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"-"`
}

// New creates an embedder from cfg.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(cfg.Dims), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Dims), nil
	case "openai":
		if cfg.APIKey == "" && cfg.URL == "" {
			return nil, goerr.New("openai embedder requires OPENAI_API_KEY or a custom url")
		}
		return NewOpenAIEmbedder(cfg.URL, cfg.APIKey, cfg.Model, cfg.Dims), nil
	default:
		return nil, goerr.New("unknown embedding provider (valid: hash, ollama, openai)", goerr.V("provider", cfg.Provider))
	}
}
