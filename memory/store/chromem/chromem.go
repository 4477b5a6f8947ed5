// Package chromem backs the vector store with chromem-go, a pure Go
// embedded vector database. It is the persistent-capable alternative to the
// inmem reference backend.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

const collectionName = "memories"

// VectorStore implements memory.VectorStore on a single chromem collection.
// Namespace isolation is already enforced by the candidate id sets the
// coordinator passes in, so no per-tenant collections are needed.
type VectorStore struct {
	db  *chromem.DB
	log *zap.Logger

	mu  sync.Mutex
	col *chromem.Collection
}

// Option configures the store.
type Option func(*VectorStore)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *VectorStore) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a store over an ephemeral in-process database.
func New(opts ...Option) (*VectorStore, error) {
	return wrap(chromem.NewDB(), opts...)
}

// NewPersistent creates a store that persists its index under path.
func NewPersistent(path string, opts ...Option) (*VectorStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return wrap(db, opts...)
}

func wrap(db *chromem.DB, opts ...Option) (*VectorStore, error) {
	s := &VectorStore{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.col = col
	return s, nil
}

func (s *VectorStore) Save(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %s", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Content is unused for retrieval; chromem just requires the document
	// to carry either content or an embedding.
	return s.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: embedding,
	})
}

func (s *VectorStore) SaveAll(ctx context.Context, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("%w: %d ids, %d embeddings", memory.ErrSizeMismatch, len(ids), len(embeddings))
	}
	for i, id := range ids {
		if err := s.Save(ctx, id, embeddings[i]); err != nil {
			return fmt.Errorf("save %s: %w", id, err)
		}
	}
	return nil
}

// Search queries the whole collection and filters down to the candidate
// set. chromem cannot restrict a query to arbitrary ids, so the query
// over-fetches and the filter runs here.
func (s *VectorStore) Search(ctx context.Context, query []float32, topK int, candidates []string) ([]memory.SimilarityMatch, error) {
	if topK <= 0 || len(query) == 0 || len(candidates) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	total := s.col.Count()
	s.mu.Unlock()
	if total == 0 {
		return nil, nil
	}

	results, err := s.col.QueryEmbedding(ctx, query, total, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	wanted := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		wanted[id] = true
	}

	matches := make([]memory.SimilarityMatch, 0, topK)
	for _, res := range results {
		if !wanted[res.ID] {
			continue
		}
		matches = append(matches, memory.SimilarityMatch{
			ID:         res.ID,
			Similarity: float64(res.Similarity),
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		s.log.Warn("chromem delete", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (s *VectorStore) DeleteAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		s.log.Warn("chromem delete batch", zap.Int("count", len(ids)), zap.Error(err))
	}
	return nil
}

func (s *VectorStore) Close() error {
	return nil
}
