package inmem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

// VectorStore is the reference in-memory memory.VectorStore. Similarity is
// cosine; the search is a linear scan over the candidate id set, which is
// fine for the reference backend since candidates are already scoped to one
// namespace.
type VectorStore struct {
	mu         sync.RWMutex
	embeddings map[string][]float32
}

// NewVectorStore creates an empty store.
func NewVectorStore() *VectorStore {
	return &VectorStore{embeddings: make(map[string][]float32)}
}

func (s *VectorStore) Save(ctx context.Context, id string, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %s", id)
	}
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[id] = stored
	return nil
}

func (s *VectorStore) SaveAll(ctx context.Context, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("%w: %d ids, %d embeddings", memory.ErrSizeMismatch, len(ids), len(embeddings))
	}
	for i, id := range ids {
		if err := s.Save(ctx, id, embeddings[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, query []float32, topK int, candidates []string) ([]memory.SimilarityMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 || len(query) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	matches := make([]memory.SimilarityMatch, 0, len(candidates))
	for _, id := range candidates {
		emb, ok := s.embeddings[id]
		if !ok {
			continue
		}
		matches = append(matches, memory.SimilarityMatch{
			ID:         id,
			Similarity: cosineSimilarity(query, emb),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.embeddings, id)
	return nil
}

func (s *VectorStore) DeleteAll(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.embeddings, id)
	}
	return nil
}

func (s *VectorStore) Close() error {
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b.
// The dot product runs over the shorter prefix when lengths differ, but
// each norm covers its full vector so extra dimensions count against the
// score instead of being ignored. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	var normA, normB float64
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
