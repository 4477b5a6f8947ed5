// Package cache provides a read-through embedding cache.
//
// Query texts repeat heavily across conversation turns (the same question
// re-asked, the same record content re-embedded after an extraction retry),
// so a small in-process cache in front of a model-backed embedder saves
// most of the embedding cost.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

// Embedder decorates an inner memory.Embedder with a ristretto cache keyed
// by the exact input text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// Config sizes the cache.
type Config struct {
	// MaxEntries bounds the number of cached embeddings. Default 4096.
	MaxEntries int64
}

// New wraps inner with a cache.
func New(inner memory.Embedder, cfg Config) (*Embedder, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text, embedding and caching it on
// a miss. Cached values are shared; callers must not mutate them.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}
	embedding, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding, 1)
	return embedding, nil
}

// Dimensions returns the inner embedder's dimensions.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
