package lexical

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"The capital of France is Paris.", []string{"the", "capital", "of", "france", "is", "paris"}},
		{"Rust's ownership system", []string{"rust", "ownership", "system"}},
		{"don't PANIC!!", []string{"dont", "panic"}},
		{"rust-ownership", []string{"rust", "ownership"}},
		{"  ", nil},
		{"Go 1.25 ships", []string{"go", "1", "25", "ships"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func newFixture(t *testing.T) *Index {
	t.Helper()
	idx := New()
	docs := []Doc{
		{Key: "france", Content: "The capital of France is Paris. It's known as the City of Light.", CreatedAt: base},
		{Key: "rust-ownership", Content: "Rust's ownership system ensures memory safety without a garbage collector. Each value has a single owner.", CreatedAt: base.Add(time.Minute)},
		{Key: "python-gc", Content: "Python uses reference counting and a garbage collector to manage memory automatically.", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, d := range docs {
		require.NoError(t, idx.Add(d))
	}
	return idx
}

func TestExactMatchesKey(t *testing.T) {
	idx := newFixture(t)

	hits := idx.Exact("rust-ownership")
	require.Len(t, hits, 1)
	assert.Equal(t, "rust-ownership", hits[0].Key)
	assert.Equal(t, 1.0, hits[0].Score)

	assert.Empty(t, idx.Exact("rust"))
}

func TestExactKeyBeforeContent(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add(Doc{Key: "note", Content: "alpha", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, idx.Add(Doc{Key: "alpha", Content: "something else", CreatedAt: base}))

	hits := idx.Exact("alpha")
	require.Len(t, hits, 2)
	assert.Equal(t, "alpha", hits[0].Key)
	assert.Equal(t, "note", hits[1].Key)
}

func TestSearchKeyword(t *testing.T) {
	idx := newFixture(t)

	hits := idx.Search("memory garbage collector", 5)
	require.Len(t, hits, 2)
	got := map[string]bool{hits[0].Key: true, hits[1].Key: true}
	assert.True(t, got["rust-ownership"])
	assert.True(t, got["python-gc"])
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	hits = idx.Search("capital city France", 5)
	require.Len(t, hits, 1)
	assert.Equal(t, "france", hits[0].Key)

	assert.Empty(t, idx.Search("javascript", 5))
}

func TestSearchLimitAndOrder(t *testing.T) {
	idx := New()
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Add(Doc{
			Key:       fmt.Sprintf("doc-%d", i),
			Content:   "shared term",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	hits := idx.Search("shared", 3)
	require.Len(t, hits, 3)
	// equal scores: newest first
	assert.Equal(t, "doc-9", hits[0].Key)
	assert.Equal(t, "doc-8", hits[1].Key)
	assert.Equal(t, "doc-7", hits[2].Key)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New()
	assert.Empty(t, idx.Search("anything", 5))
	assert.Empty(t, idx.Exact("anything"))
}

func TestRemove(t *testing.T) {
	idx := newFixture(t)
	vocab := idx.Vocabulary()

	require.NoError(t, idx.Add(Doc{Key: "extra", Content: "zebra unicorn", CreatedAt: base}))
	assert.Equal(t, vocab+2, idx.Vocabulary())
	assert.True(t, idx.Contains("extra"))

	idx.Remove("extra")
	assert.Equal(t, vocab, idx.Vocabulary())
	assert.False(t, idx.Contains("extra"))
	assert.Empty(t, idx.Search("zebra", 5))
	assert.Empty(t, idx.Exact("zebra unicorn"))
	assert.Equal(t, 3, idx.Len())

	idx.Remove("never-added")
	assert.Equal(t, 3, idx.Len())
}
