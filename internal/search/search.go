// Package search holds the pure parts of query evaluation: modes, scored hits,
// ordering and hybrid score fusion. It has no knowledge of storage or indexes.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/model"
)

// Mode specifies the search strategy.
type Mode string

const (
	ModeExact    Mode = "exact"
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// DefaultLimit is the result count used when a request omits one.
const DefaultLimit = 5

// ParseMode converts a string to a Mode. The empty string selects ModeHybrid.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModeHybrid, nil
	case "exact":
		return ModeExact, nil
	case "keyword":
		return ModeKeyword, nil
	case "semantic":
		return ModeSemantic, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return "", goerr.Wrap(model.ErrInvalidInput, "invalid search mode (valid: exact, keyword, semantic, hybrid)", goerr.V("mode", s))
	}
}

// Hit is a scored reference to a record.
type Hit struct {
	Key       string
	Score     float64
	CreatedAt time.Time
}

// SortHits orders hits by score descending, then most recent first, then key.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].Key < hits[j].Key
	})
}

// CandidatePool is how many hits each side of a hybrid query should return so
// that fusion has overlap to work with.
func CandidatePool(limit int) int {
	n := limit * 3
	if n < 15 {
		n = 15
	}
	return n
}
