// Package mock provides a deterministic embedder for tests and examples.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder generates deterministic embeddings without a model: each word
// hashes to a fixed pseudo-random vector and the text embeds as the
// normalized sum. Texts sharing words therefore score higher cosine
// similarity, which is enough structure for tests and offline demos.
type Embedder struct {
	dimensions int
}

// New creates an embedder with the default dimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates an embedder producing vectors of the given size.
func NewWithDimensions(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed converts text to a deterministic unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embedding := make([]float32, e.dimensions)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{""}
	}
	for _, word := range words {
		e.addWordVector(embedding, strings.Trim(word, ".,!?;:\"'"))
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// addWordVector accumulates the word's pseudo-random vector into dst.
// An FNV hash seeds a linear congruential generator per word.
func (e *Embedder) addWordVector(dst []float32, word string) {
	h := fnv.New64a()
	h.Write([]byte(word))
	seed := h.Sum64()
	for i := range dst {
		seed = seed*6364136223846793005 + 1442695040888963407
		dst[i] += float32(int64(seed)) / float32(math.MaxInt64)
	}
}

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
