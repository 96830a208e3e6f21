package engine

import (
	"context"
	"math"

	"github.com/rcliao/memstore/internal/search"
)

const (
	// DefaultContextBudget is the token budget used when none is given.
	DefaultContextBudget = 4000
	contextCandidates    = 50
	charsPerToken        = 4
	minExcerpt           = 100
)

// ContextMemory is a scored memory selected for a context window.
type ContextMemory struct {
	Key     string  `json:"key"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
}

// ContextResult is an assembled context window.
type ContextResult struct {
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Memories []ContextMemory `json:"memories"`
}

// Context assembles the memories most relevant to query into a token budget.
// Candidates come from a hybrid search and are packed greedily in rank order;
// the first one that does not fit is truncated into an excerpt if enough room
// remains, and packing stops there.
func (e *Engine) Context(ctx context.Context, query string, budget int) (*ContextResult, error) {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	charBudget := budget * charsPerToken

	results, err := e.Search(ctx, SearchParams{Query: query, Mode: search.ModeHybrid, Limit: contextCandidates})
	if err != nil {
		return nil, err
	}

	out := &ContextResult{Budget: budget, Memories: []ContextMemory{}}
	used := 0
	for _, r := range results {
		score := math.Round(r.Score*100) / 100
		content := []rune(r.Content)

		if used+len(content) <= charBudget {
			out.Memories = append(out.Memories, ContextMemory{Key: r.Key, Content: r.Content, Score: score})
			used += len(content)
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			out.Memories = append(out.Memories, ContextMemory{
				Key:     r.Key,
				Content: string(content[:remaining]) + "...",
				Score:   score,
				Excerpt: true,
			})
			used += remaining
		}
		break
	}

	out.Used = used / charsPerToken
	return out, nil
}
