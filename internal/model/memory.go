// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// PreviewLength is the number of runes kept in a Summary preview.
const PreviewLength = 100

// Metadata is an open, order-irrelevant set of scalar attributes.
type Metadata map[string]any

// Record represents a stored memory.
type Record struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the listing view of a Record.
type Summary struct {
	Key       string    `json:"key"`
	Preview   string    `json:"content_preview"`
	Length    int       `json:"content_length"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is a ranked search hit joined with its record.
type Result struct {
	Record
	Score float64 `json:"score"`
}

// Summarize returns the listing view of r.
func (r Record) Summarize() Summary {
	runes := []rune(r.Content)
	preview := r.Content
	if len(runes) > PreviewLength {
		preview = string(runes[:PreviewLength]) + "..."
	}
	return Summary{
		Key:       r.Key,
		Preview:   preview,
		Length:    len(runes),
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}

// Validate checks that every metadata value is a JSON scalar.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return goerr.Wrap(ErrInvalidInput, "metadata key is empty")
		}
		switch v.(type) {
		case nil, string, bool, float64, float32, int, int64, int32, json.Number:
		default:
			return goerr.Wrap(ErrInvalidInput, "metadata value must be a scalar", goerr.V("key", k))
		}
	}
	return nil
}

// Stats holds store-wide aggregates.
type Stats struct {
	TotalRecords         int        `json:"total_records"`
	TotalTerms           int        `json:"total_terms"`
	AverageContentLength float64    `json:"average_content_length"`
	OldestCreatedAt      *time.Time `json:"oldest_created_at,omitempty"`
	NewestCreatedAt      *time.Time `json:"newest_created_at,omitempty"`
	Embedder             string     `json:"embedder"`
	EmbeddingDims        int        `json:"embedding_dims"`
	DBPath               string     `json:"db_path"`
}
