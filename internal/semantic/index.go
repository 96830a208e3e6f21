// Package semantic maintains per-record embedding vectors and answers
// nearest-neighbour queries over them by exact cosine scan.
package semantic

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/chunker"
	"github.com/rcliao/memstore/internal/embedding"
	"github.com/rcliao/memstore/internal/model"
	"github.com/rcliao/memstore/internal/search"
)

type entry struct {
	vectors   []embedding.Vector
	createdAt time.Time
}

// Index is a flat vector index. A record may own several vectors, one per
// passage; its similarity to a query is the best passage similarity.
type Index struct {
	embedder embedding.Embedder
	chunking chunker.Options

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Index backed by e.
func New(e embedding.Embedder, opts chunker.Options) *Index {
	return &Index{
		embedder: e,
		chunking: opts,
		entries:  make(map[string]*entry),
	}
}

// Model returns the name of the underlying embedder.
func (idx *Index) Model() string { return idx.embedder.Name() }

// Dims returns the vector width of the underlying embedder.
func (idx *Index) Dims() int { return idx.embedder.Dims() }

// Embed computes the passage vectors for content without touching the index.
func (idx *Index) Embed(ctx context.Context, content string) ([]embedding.Vector, error) {
	passages := chunker.Split(content, idx.chunking)
	if len(passages) == 0 {
		passages = []string{content}
	}

	vectors := make([]embedding.Vector, 0, len(passages))
	for _, p := range passages {
		v, err := idx.embedder.Embed(ctx, p)
		if err != nil {
			return nil, goerr.Wrap(model.ErrStorage, "embed content", goerr.V("embedder", idx.embedder.Name()), goerr.V("cause", err.Error()))
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// Add stores vectors for key, replacing any previous entry.
func (idx *Index) Add(key string, vectors []embedding.Vector, createdAt time.Time) error {
	if len(vectors) == 0 {
		return goerr.Wrap(model.ErrStorage, "no vectors for record", goerr.V("key", key))
	}
	dims := idx.embedder.Dims()
	for _, v := range vectors {
		if len(v) != dims {
			return goerr.Wrap(model.ErrStorage, "dimension mismatch",
				goerr.V("key", key), goerr.V("expected", dims), goerr.V("actual", len(v)))
		}
	}

	copies := make([]embedding.Vector, len(vectors))
	for i, v := range vectors {
		copies[i] = append(embedding.Vector(nil), v...)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = &entry{vectors: copies, createdAt: createdAt}
	return nil
}

// Remove drops key from the index. Unknown keys are ignored.
func (idx *Index) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, key)
}

// Contains reports whether key is indexed.
func (idx *Index) Contains(key string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[key]
	return ok
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search embeds query and returns the limit most similar records.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	hits := []search.Hit{}
	if limit <= 0 || idx.Len() == 0 {
		return hits, nil
	}

	q, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(model.ErrStorage, "embed query", goerr.V("embedder", idx.embedder.Name()), goerr.V("cause", err.Error()))
	}
	return idx.SearchVector(q, limit), nil
}

// SearchVector returns the limit records most similar to q.
func (idx *Index) SearchVector(q embedding.Vector, limit int) []search.Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]search.Hit, 0, len(idx.entries))
	for key, e := range idx.entries {
		best := -1.0
		for _, v := range e.vectors {
			if s := embedding.CosineSimilarity(q, v); s > best {
				best = s
			}
		}
		hits = append(hits, search.Hit{Key: key, Score: best, CreatedAt: e.createdAt})
	}

	search.SortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
