// Package lexical implements the term-based index behind exact and keyword search.
//
// Documents are tokenized with Tokenize and stored in an inverted index that
// maps each term to a roaring bitmap of internal document ordinals. Keyword
// queries are scored with BM25.
package lexical

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/rcliao/memstore/internal/search"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Doc is the indexable view of a record.
type Doc struct {
	Key       string
	Content   string
	CreatedAt time.Time
}

type document struct {
	key       string
	content   string
	createdAt time.Time
	freqs     map[string]int
	length    int
}

// Index is an in-memory inverted index. It is safe for concurrent use.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]*roaring.Bitmap
	docs        map[uint32]*document
	ordinals    map[string]uint32
	byContent   map[string][]uint32
	next        uint32
	totalLength int64
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		postings:  make(map[string]*roaring.Bitmap),
		docs:      make(map[uint32]*document),
		ordinals:  make(map[string]uint32),
		byContent: make(map[string][]uint32),
	}
}

// Add indexes d. Adding an existing key replaces the previous document.
func (idx *Index) Add(d Doc) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.ordinals[d.Key]; ok {
		idx.removeLocked(d.Key)
	}

	tokens := Tokenize(d.Content)
	freqs := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}

	ord := idx.next
	idx.next++

	idx.docs[ord] = &document{
		key:       d.Key,
		content:   d.Content,
		createdAt: d.CreatedAt,
		freqs:     freqs,
		length:    len(tokens),
	}
	idx.ordinals[d.Key] = ord
	idx.totalLength += int64(len(tokens))

	exact := strings.TrimSpace(d.Content)
	idx.byContent[exact] = append(idx.byContent[exact], ord)

	for t := range freqs {
		bm, ok := idx.postings[t]
		if !ok {
			bm = roaring.New()
			idx.postings[t] = bm
		}
		bm.Add(ord)
	}
	return nil
}

// Remove drops key from the index. Unknown keys are ignored.
func (idx *Index) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(key)
}

func (idx *Index) removeLocked(key string) {
	ord, ok := idx.ordinals[key]
	if !ok {
		return
	}
	doc := idx.docs[ord]

	for t := range doc.freqs {
		bm := idx.postings[t]
		bm.Remove(ord)
		if bm.IsEmpty() {
			delete(idx.postings, t)
		}
	}

	exact := strings.TrimSpace(doc.content)
	ords := idx.byContent[exact]
	for i, o := range ords {
		if o == ord {
			ords = append(ords[:i], ords[i+1:]...)
			break
		}
	}
	if len(ords) == 0 {
		delete(idx.byContent, exact)
	} else {
		idx.byContent[exact] = ords
	}

	idx.totalLength -= int64(doc.length)
	delete(idx.docs, ord)
	delete(idx.ordinals, key)
}

// Exact returns the document whose key equals query, followed by documents
// whose whole content equals query. Every hit scores 1.
func (idx *Index) Exact(query string) []search.Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := []search.Hit{}
	keyOrd, keyMatch := idx.ordinals[query]
	if keyMatch {
		d := idx.docs[keyOrd]
		hits = append(hits, search.Hit{Key: d.key, Score: 1, CreatedAt: d.createdAt})
	}

	var byContent []search.Hit
	for _, ord := range idx.byContent[strings.TrimSpace(query)] {
		if keyMatch && ord == keyOrd {
			continue
		}
		d := idx.docs[ord]
		byContent = append(byContent, search.Hit{Key: d.key, Score: 1, CreatedAt: d.createdAt})
	}
	search.SortHits(byContent)
	return append(hits, byContent...)
}

// Search scores documents sharing at least one term with query using BM25
// and returns at most limit hits, best first.
func (idx *Index) Search(query string, limit int) []search.Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := []search.Hit{}
	if len(idx.docs) == 0 || limit <= 0 {
		return hits
	}

	terms := unique(Tokenize(query))
	avgDL := float64(idx.totalLength) / float64(len(idx.docs))
	scores := make(map[uint32]float64)

	for _, t := range terms {
		bm, ok := idx.postings[t]
		if !ok {
			continue
		}
		idf := idx.idf(int(bm.GetCardinality()))

		it := bm.Iterator()
		for it.HasNext() {
			ord := it.Next()
			d := idx.docs[ord]
			tf := float64(d.freqs[t])
			norm := 1 - b
			if avgDL > 0 {
				norm += b * float64(d.length) / avgDL
			}
			scores[ord] += idf * (tf * (k1 + 1)) / (tf + k1*norm)
		}
	}

	for ord, score := range scores {
		d := idx.docs[ord]
		hits = append(hits, search.Hit{Key: d.key, Score: score, CreatedAt: d.createdAt})
	}
	search.SortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (idx *Index) idf(df int) float64 {
	n := float64(len(idx.docs))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// Vocabulary returns the number of distinct indexed terms.
func (idx *Index) Vocabulary() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings)
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Contains reports whether key is indexed.
func (idx *Index) Contains(key string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.ordinals[key]
	return ok
}

func unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
