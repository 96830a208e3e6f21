package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/rcliao/memstore/internal/lexical"
)

// DefaultHashDims is the vector width of a HashEmbedder created with dims 0.
const DefaultHashDims = 256

// HashEmbedder is a local, deterministic embedder based on feature hashing.
// Each word and each character trigram of a word is hashed into a signed
// bucket; the result is L2-normalised. Texts sharing words or word stems end
// up close in cosine space. It needs no network and no model files.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of width dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, h.dims)

	tf := map[string]int{}
	var order []string
	for _, tok := range lexical.Tokenize(text) {
		if tf[tok] == 0 {
			order = append(order, tok)
		}
		tf[tok]++
	}

	for _, tok := range order {
		w := 1 + math.Log(float64(tf[tok]))
		h.add(v, "w:"+tok, w)

		grams := trigrams(tok)
		gw := w / math.Sqrt(float64(len(grams)))
		for _, g := range grams {
			h.add(v, "g:"+g, gw)
		}
	}

	normalize(v)
	return v, nil
}

func (h *HashEmbedder) add(v Vector, feature string, w float64) {
	sum := xxhash.Sum64String(feature)
	i := sum % uint64(h.dims)
	if sum>>63 == 1 {
		w = -w
	}
	v[i] += float32(w)
}

func (h *HashEmbedder) Dims() int     { return h.dims }
func (h *HashEmbedder) Name() string { return fmt.Sprintf("hash-%d", h.dims) }

// trigrams returns the character trigrams of a word padded with boundary marks.
func trigrams(word string) []string {
	r := []rune("^" + word + "$")
	if len(r) < 3 {
		return []string{string(r)}
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}

func normalize(v Vector) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
