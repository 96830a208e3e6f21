// Package engine ties the record store, the lexical index and the semantic
// index together behind one consistent API.
//
// The store is the source of truth; both indexes are derived from it and are
// rebuilt on Open. Writes hold an exclusive lock across the store transaction
// and both index updates, so readers never see a record that is present in
// one place but missing from another.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/chunker"
	"github.com/rcliao/memstore/internal/config"
	"github.com/rcliao/memstore/internal/embedding"
	"github.com/rcliao/memstore/internal/lexical"
	"github.com/rcliao/memstore/internal/logging"
	"github.com/rcliao/memstore/internal/model"
	"github.com/rcliao/memstore/internal/search"
	"github.com/rcliao/memstore/internal/semantic"
	"github.com/rcliao/memstore/internal/store"
)

// maxKeyAttempts bounds regeneration of colliding generated keys.
const maxKeyAttempts = 8

// Options configures an Engine.
type Options struct {
	Store        store.Store
	Embedder     embedding.Embedder
	Chunking     chunker.Options
	DefaultLimit int
	// KeywordWeight is the keyword share of hybrid scores. Nil selects
	// search.DefaultKeywordWeight.
	KeywordWeight *float64
	// DBPath is reported by Stats.
	DBPath string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Engine is the memory engine. It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	store    store.Store
	lexical  *lexical.Index
	semantic *semantic.Index

	embedder      embedding.Embedder
	chunking      chunker.Options
	defaultLimit  int
	keywordWeight float64
	dbPath        string
	now           func() time.Time
}

// New creates an Engine over opts.Store and populates both indexes from it.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, goerr.New("engine requires a store")
	}
	if opts.Embedder == nil {
		opts.Embedder = embedding.NewHashEmbedder(0)
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = search.DefaultLimit
	}
	weight := search.DefaultKeywordWeight
	if opts.KeywordWeight != nil {
		weight = *opts.KeywordWeight
	}
	if err := search.ValidateWeight(weight); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		store:         opts.Store,
		embedder:      opts.Embedder,
		chunking:      opts.Chunking,
		defaultLimit:  opts.DefaultLimit,
		keywordWeight: weight,
		dbPath:        opts.DBPath,
		now:           opts.Now,
	}
	if _, err := e.Rebuild(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Open creates the SQLite store and embedder described by cfg and returns an
// Engine over them.
func Open(ctx context.Context, cfg config.Config) (*Engine, error) {
	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	e, err := New(ctx, Options{
		Store:         s,
		Embedder:      emb,
		Chunking:      cfg.Chunking,
		DefaultLimit:  cfg.Search.DefaultLimit,
		KeywordWeight: &cfg.Search.KeywordWeight,
		DBPath:        cfg.DBPath,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store saves content under a freshly generated key and returns the key.
func (e *Engine) Store(ctx context.Context, content string, meta model.Metadata) (string, error) {
	return e.put(ctx, "", content, meta, time.Time{})
}

// StoreWithKey saves content under key. It fails with model.ErrDuplicateKey
// if key is already taken; the existing record is left untouched.
func (e *Engine) StoreWithKey(ctx context.Context, key, content string, meta model.Metadata) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", goerr.Wrap(model.ErrInvalidInput, "key is required")
	}
	return e.put(ctx, key, content, meta, time.Time{})
}

// put validates and persists one record. An empty key asks for a generated
// one; a zero createdAt means now.
func (e *Engine) put(ctx context.Context, key, content string, meta model.Metadata, createdAt time.Time) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", goerr.Wrap(model.ErrInvalidInput, "content is required")
	}
	if err := meta.Validate(); err != nil {
		return "", err
	}

	// Embedding may be slow; do it before taking the write lock.
	e.mu.RLock()
	sem := e.semantic
	e.mu.RUnlock()
	vectors, err := sem.Embed(ctx, content)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	generated := key == ""
	for attempt := 1; ; attempt++ {
		if generated {
			key = e.store.NewID()
		}
		if createdAt.IsZero() {
			createdAt = e.now().UTC()
		}
		rec := model.Record{Key: key, Content: content, Metadata: meta, CreatedAt: createdAt}

		err = e.commit(ctx, rec, vectors)
		if err == nil {
			logging.From(ctx).Debug("stored memory", "key", key, "generated", generated, "passages", len(vectors))
			return key, nil
		}
		if generated && isDuplicate(err) && attempt < maxKeyAttempts {
			logging.From(ctx).Warn("generated key collided, regenerating", "key", key, "attempt", attempt)
			continue
		}
		return "", err
	}
}

// commit runs the two-phase write: the record is inserted inside a store
// transaction, both indexes are updated, and only then is the transaction
// committed. Any failure scrubs the key from the indexes and rolls back.
// Callers must hold e.mu for writing.
func (e *Engine) commit(ctx context.Context, rec model.Record, vectors []embedding.Vector) error {
	applied := false
	err := e.store.Put(ctx, store.PutParams{
		Record:  rec,
		Vectors: vectors,
		Model:   e.semantic.Model(),
		Apply: func() error {
			applied = true
			if err := e.lexical.Add(lexical.Doc{Key: rec.Key, Content: rec.Content, CreatedAt: rec.CreatedAt}); err != nil {
				return goerr.Wrap(model.ErrStorage, "lexical index update", goerr.V("key", rec.Key), goerr.V("cause", err.Error()))
			}
			return e.semantic.Add(rec.Key, vectors, rec.CreatedAt)
		},
	})
	if err != nil && applied {
		e.lexical.Remove(rec.Key)
		e.semantic.Remove(rec.Key)
		logging.From(ctx).Warn("rolled back memory", "key", rec.Key, "error", err)
	}
	return err
}

func isDuplicate(err error) bool {
	return model.KindOf(err) == model.KindDuplicateKey
}

// Retrieve returns the record stored under key.
func (e *Engine) Retrieve(ctx context.Context, key string) (*model.Record, error) {
	if strings.TrimSpace(key) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "key is required")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(ctx, key)
}

// List returns summaries of every record in insertion order.
func (e *Engine) List(ctx context.Context) ([]model.Summary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	records, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Summary, len(records))
	for i, r := range records {
		out[i] = r.Summarize()
	}
	return out, nil
}

// Stats aggregates store-wide metrics. It never mutates state.
func (e *Engine) Stats(ctx context.Context) (*model.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agg, err := e.store.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Stats{
		TotalRecords:         agg.Count,
		TotalTerms:           e.lexical.Vocabulary(),
		AverageContentLength: agg.AverageContentLength,
		OldestCreatedAt:      agg.Oldest,
		NewestCreatedAt:      agg.Newest,
		Embedder:             e.semantic.Model(),
		EmbeddingDims:        e.semantic.Dims(),
		DBPath:               e.dbPath,
	}, nil
}

// Rebuild discards both indexes and repopulates them from the store. Stored
// vectors are reused when they came from the current embedder; otherwise the
// content is embedded again and the stored vectors replaced.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lex := lexical.New()
	sem := semantic.New(e.embedder, e.chunking)
	n, reembedded := 0, 0

	err := e.store.Scan(ctx, func(ent store.Entry) error {
		if err := lex.Add(lexical.Doc{Key: ent.Key, Content: ent.Content, CreatedAt: ent.CreatedAt}); err != nil {
			return err
		}

		vectors := ent.Vectors
		if ent.Model != sem.Model() || !hasDims(vectors, sem.Dims()) {
			var err error
			vectors, err = sem.Embed(ctx, ent.Content)
			if err != nil {
				return err
			}
			if err := e.store.ReplaceVectors(ctx, ent.Key, sem.Model(), vectors); err != nil {
				return err
			}
			reembedded++
		}
		if err := sem.Add(ent.Key, vectors, ent.CreatedAt); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "rebuild indexes")
	}

	e.lexical = lex
	e.semantic = sem
	logging.From(ctx).Debug("indexes rebuilt", "records", n, "reembedded", reembedded, "embedder", sem.Model())
	return n, nil
}

func hasDims(vectors []embedding.Vector, dims int) bool {
	if len(vectors) == 0 {
		return false
	}
	for _, v := range vectors {
		if len(v) != dims {
			return false
		}
	}
	return true
}
