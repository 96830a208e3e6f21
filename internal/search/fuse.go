package search

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/model"
)

// DefaultKeywordWeight is the keyword share of a hybrid score; the semantic
// share is 1 minus this.
const DefaultKeywordWeight = 0.3

// ValidateWeight checks that a keyword weight lies in [0, 1].
func ValidateWeight(w float64) error {
	if w < 0 || w > 1 {
		return goerr.Wrap(model.ErrInvalidInput, "keyword weight must be within [0, 1]", goerr.V("weight", w))
	}
	return nil
}

// Fuse merges independently ranked keyword and semantic hits into a single
// ranking. Each list is min-max normalised to [0, 1]; a record's combined
// score is weight*keyword + (1-weight)*semantic, where a missing side counts
// as 0. The result is sorted with SortHits and truncated to limit.
func Fuse(keyword, semantic []Hit, weight float64, limit int) []Hit {
	type fused struct {
		hit      Hit
		keyword  float64
		semantic float64
	}

	kwNorm := Normalize(keyword)
	semNorm := Normalize(semantic)

	byKey := make(map[string]*fused, len(keyword)+len(semantic))
	order := make([]string, 0, len(keyword)+len(semantic))

	for i, h := range keyword {
		if _, ok := byKey[h.Key]; ok {
			continue
		}
		byKey[h.Key] = &fused{hit: h, keyword: kwNorm[i]}
		order = append(order, h.Key)
	}
	for i, h := range semantic {
		if f, ok := byKey[h.Key]; ok {
			if semNorm[i] > f.semantic {
				f.semantic = semNorm[i]
			}
			continue
		}
		byKey[h.Key] = &fused{hit: h, semantic: semNorm[i]}
		order = append(order, h.Key)
	}

	merged := make([]Hit, 0, len(order))
	for _, k := range order {
		f := byKey[k]
		h := f.hit
		h.Score = weight*f.keyword + (1-weight)*f.semantic
		merged = append(merged, h)
	}

	SortHits(merged)
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Normalize returns min-max normalised scores for hits, index-aligned.
// When every score is equal, positive scores normalise to 1 and the rest to 0.
func Normalize(hits []Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}

	out := make([]float64, len(hits))
	spread := hi - lo
	for i, h := range hits {
		switch {
		case spread == 0 && h.Score > 0:
			out[i] = 1
		case spread == 0:
			out[i] = 0
		default:
			out[i] = (h.Score - lo) / spread
		}
	}
	return out
}
