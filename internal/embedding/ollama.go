package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// Known output widths of common Ollama embedding models.
var ollamaDims = map[string]int{
	"nomic-embed-text":       768,
	"all-minilm":             384,
	"mxbai-embed-large":      1024,
	"snowflake-arctic-embed": 1024,
}

// OllamaEmbedder calls the /api/embed endpoint of an Ollama server.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an embedder for model served at baseURL. A zero
// dims is looked up from the model name, falling back to 768.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if dims <= 0 {
		name, _, _ := strings.Cut(model, ":")
		if dims = ollamaDims[name]; dims == 0 {
			dims = 768
		}
	}
	return &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, goerr.Wrap(err, "encode ollama request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "build ollama request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "ollama request failed", goerr.V("url", e.baseURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("ollama returned an error", goerr.V("status", resp.StatusCode), goerr.V("body", string(msg)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, goerr.Wrap(err, "decode ollama response")
	}
	if len(out.Embeddings) == 0 {
		return nil, goerr.New("ollama returned no embedding", goerr.V("model", e.model))
	}
	v := out.Embeddings[0]
	if len(v) != e.dims {
		return nil, goerr.New("ollama embedding width mismatch",
			goerr.V("model", e.model), goerr.V("expected", e.dims), goerr.V("actual", len(v)))
	}
	return v, nil
}

func (e *OllamaEmbedder) Dims() int    { return e.dims }
func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }
