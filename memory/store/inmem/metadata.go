// Package inmem provides the in-memory reference implementations of the
// metadata and vector backends. Both use concurrent maps keyed by record
// id; per-key atomicity is sufficient because cross-record operations only
// read each record independently, and last-writer-wins on concurrent
// mutation of the same record is acceptable.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

// MetadataStore is the reference in-memory memory.MetadataStore.
type MetadataStore struct {
	mu      sync.RWMutex
	records map[string]*memory.MemoryRecord
	now     func() time.Time
}

// MetadataStoreOption configures a MetadataStore.
type MetadataStoreOption func(*MetadataStore)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) MetadataStoreOption {
	return func(s *MetadataStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMetadataStore creates an empty store.
func NewMetadataStore(opts ...MetadataStoreOption) *MetadataStore {
	s := &MetadataStore{
		records: make(map[string]*memory.MemoryRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MetadataStore) Save(ctx context.Context, record *memory.MemoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MetadataStore) SaveAll(ctx context.Context, records []*memory.MemoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
	return nil
}

func (s *MetadataStore) FindByID(ctx context.Context, id string) (*memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MetadataStore) FindByNamespace(ctx context.Context, ns memory.Namespace, filter *memory.SearchFilter) ([]*memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ns.Path()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.MemoryRecord
	for _, r := range s.records {
		if r.NamespacePath != path {
			continue
		}
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MetadataStore) FindAll(ctx context.Context) ([]*memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*memory.MemoryRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MetadataStore) FindDecayed(ctx context.Context, ns memory.Namespace, threshold float64) ([]*memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ns.Path()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.MemoryRecord
	for _, r := range s.records {
		if r.NamespacePath == path && r.DecayFactor < threshold {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MetadataStore) FindAllDecayed(ctx context.Context, threshold float64) ([]*memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*memory.MemoryRecord
	for _, r := range s.records {
		if r.DecayFactor < threshold {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MetadataStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MetadataStore) DeleteByNamespace(ctx context.Context, ns memory.Namespace) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path := ns.Path()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.records {
		if r.NamespacePath == path {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MetadataStore) RecordAccess(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return memory.ErrNotFound
	}
	r.AccessCount++
	r.LastAccessedAt = s.now()
	return nil
}

func (s *MetadataStore) UpdateDecayFactor(ctx context.Context, id string, factor float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return memory.ErrNotFound
	}
	r.DecayFactor = factor
	return nil
}

func (s *MetadataStore) Count(ctx context.Context, ns memory.Namespace) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path := ns.Path()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if r.NamespacePath == path {
			n++
		}
	}
	return n, nil
}

func (s *MetadataStore) CountByType(ctx context.Context, ns memory.Namespace) (map[memory.MemoryType]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ns.Path()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[memory.MemoryType]int)
	for _, r := range s.records {
		if r.NamespacePath == path {
			out[r.Type]++
		}
	}
	return out, nil
}

func (s *MetadataStore) Close() error {
	return nil
}
