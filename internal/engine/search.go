package engine

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/memstore/internal/logging"
	"github.com/rcliao/memstore/internal/model"
	"github.com/rcliao/memstore/internal/search"
)

// SearchParams holds parameters for a query.
type SearchParams struct {
	Query string
	Mode  search.Mode
	// Limit caps the result count. 0 selects the configured default.
	Limit int
}

// Search evaluates a query in the requested mode and returns full records
// with their scores, best first.
func (e *Engine) Search(ctx context.Context, p SearchParams) ([]model.Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is required")
	}
	if p.Limit < 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "limit must be positive", goerr.V("limit", p.Limit))
	}
	if p.Limit == 0 {
		p.Limit = e.defaultLimit
	}
	if p.Mode == "" {
		p.Mode = search.ModeHybrid
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var hits []search.Hit
	switch p.Mode {
	case search.ModeExact:
		hits = e.lexical.Exact(p.Query)
		if len(hits) > p.Limit {
			hits = hits[:p.Limit]
		}
	case search.ModeKeyword:
		hits = e.lexical.Search(p.Query, p.Limit)
	case search.ModeSemantic:
		var err error
		if hits, err = e.semantic.Search(ctx, p.Query, p.Limit); err != nil {
			return nil, err
		}
	case search.ModeHybrid:
		var err error
		if hits, err = e.hybrid(ctx, p.Query, p.Limit); err != nil {
			return nil, err
		}
	default:
		return nil, goerr.Wrap(model.ErrInvalidInput, "invalid search mode", goerr.V("mode", p.Mode))
	}

	results, err := e.resolve(ctx, hits)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("search", "mode", p.Mode, "limit", p.Limit, "results", len(results))
	return results, nil
}

// hybrid runs keyword and semantic retrieval concurrently over a widened
// candidate pool and fuses the two rankings. Callers must hold e.mu.
func (e *Engine) hybrid(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	pool := search.CandidatePool(limit)

	var keyword, semantic []search.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keyword = e.lexical.Search(query, pool)
		return nil
	})
	g.Go(func() error {
		var err error
		semantic, err = e.semantic.Search(gctx, query, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return search.Fuse(keyword, semantic, e.keywordWeight, limit), nil
}

// resolve joins hits with their stored records. Callers must hold e.mu.
func (e *Engine) resolve(ctx context.Context, hits []search.Hit) ([]model.Result, error) {
	results := make([]model.Result, 0, len(hits))
	for _, h := range hits {
		rec, err := e.store.Get(ctx, h.Key)
		if err != nil {
			if model.KindOf(err) == model.KindNotFound {
				return nil, goerr.Wrap(model.ErrStorage, "index references a missing record", goerr.V("key", h.Key))
			}
			return nil, err
		}
		results = append(results, model.Result{Record: *rec, Score: h.Score})
	}
	return results, nil
}
