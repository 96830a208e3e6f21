package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOpenAIDims  = 1536
)

// OpenAIEmbedder uses the OpenAI embeddings API or any compatible server.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL targets OpenAI;
// an empty apiKey defers to the client's OPENAI_API_KEY lookup.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = defaultOpenAIModel
	}
	if dims <= 0 {
		dims = defaultOpenAIDims
	}
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
		dims:   dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "openai embedding request failed", goerr.V("model", e.model))
	}
	if len(resp.Data) == 0 {
		return nil, goerr.New("no embedding returned", goerr.V("model", e.model))
	}

	raw := resp.Data[0].Embedding
	v := make(Vector, len(raw))
	for i, f := range raw {
		v[i] = float32(f)
	}
	return v, nil
}

func (e *OpenAIEmbedder) Dims() int    { return e.dims }
func (e *OpenAIEmbedder) Name() string { return "openai:" + e.model }
