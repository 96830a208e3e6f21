// Package store provides the durable record store and its SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/rcliao/memstore/internal/model"
)

// PutParams holds parameters for persisting a record.
type PutParams struct {
	Record model.Record
	// Vectors are the passage embeddings derived from Record.Content.
	Vectors [][]float32
	// Model names the embedder that produced Vectors.
	Model string
	// Apply runs inside the transaction after the insert. A non-nil error
	// rolls the insert back.
	Apply func() error
}

// Entry is a persisted record together with its stored embeddings.
type Entry struct {
	model.Record
	Vectors [][]float32
	Model   string
}

// Aggregate holds store-wide totals.
type Aggregate struct {
	Count                int
	AverageContentLength float64
	Oldest               *time.Time
	Newest               *time.Time
}

// Store defines the record storage interface.
type Store interface {
	// Put inserts a new record. Returns model.ErrDuplicateKey if the key exists.
	Put(ctx context.Context, p PutParams) error

	// Get retrieves a record by key.
	Get(ctx context.Context, key string) (*model.Record, error)

	// List returns every record in insertion order.
	List(ctx context.Context) ([]model.Record, error)

	// Scan calls fn for every record in insertion order.
	Scan(ctx context.Context, fn func(Entry) error) error

	// ReplaceVectors swaps the stored embeddings of key, typically after the
	// embedder changed.
	ReplaceVectors(ctx context.Context, key, modelName string, vectors [][]float32) error

	// Aggregate computes store-wide totals.
	Aggregate(ctx context.Context) (*Aggregate, error)

	// NewID returns a fresh, time-ordered key.
	NewID() string

	// Close closes the store.
	Close() error
}
