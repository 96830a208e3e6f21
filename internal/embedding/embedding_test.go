package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, tt.delta)
		})
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultHashDims, e.Dims())
	assert.Equal(t, "hash-256", e.Name())

	a, err := e.Embed(ctx, "The capital of France is Paris.")
	require.NoError(t, err)
	b, err := NewHashEmbedder(256).Embed(ctx, "The capital of France is Paris.")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 256)

	var norm float64
	for _, f := range a {
		norm += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(512)

	embed := func(s string) Vector {
		v, err := e.Embed(ctx, s)
		require.NoError(t, err)
		return v
	}

	query := embed("How does memory management work?")
	python := embed("Python uses reference counting and a garbage collector to manage memory automatically.")
	france := embed("The capital of France is Paris. It's known as the City of Light.")

	assert.Greater(t, CosineSimilarity(query, python), CosineSimilarity(query, france))
}

func TestHashEmbedderEmptyText(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "...")
	require.NoError(t, err)
	assert.Equal(t, make(Vector, 8), v)
}

func TestNew(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	e, err = New(Config{Provider: "ollama", Model: "all-minilm"})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dims())
	assert.Equal(t, "ollama:all-minilm", e.Name())

	e, err = New(Config{Provider: "openai", APIKey: "sk-test", Dims: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, e.Dims())
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(Config{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		assert.Equal(t, []string{"hello"}, req.Input)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "tiny", 3)
	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Vector{0.1, 0.2, 0.3}, v)

	_, err = NewOllamaEmbedder(srv.URL, "tiny", 4).Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOllamaEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "missing", 0).Embed(context.Background(), "hello")
	assert.Error(t, err)
}
