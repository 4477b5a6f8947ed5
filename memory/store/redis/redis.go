// Package redis provides a shared MetadataStore for multi-instance
// deployments, backed by go-redis.
//
// Data layout:
//   - {prefix}:record:{id}   STRING  JSON-encoded record
//   - {prefix}:ns:{path}     SET     record ids in the namespace
//   - {prefix}:ids           SET     all record ids
//
// Mutations are last-writer-wins without transactions; the memory model
// tolerates races on access counts and decay factors, both of which are
// heuristic signals recomputed or re-incremented over time.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

// DefaultKeyPrefix namespaces every key this store writes.
const DefaultKeyPrefix = "mnemo"

// MetadataStore implements memory.MetadataStore on Redis.
type MetadataStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// Option configures the store.
type Option func(*MetadataStore)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *MetadataStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MetadataStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store from a Redis URL, e.g. "redis://localhost:6379".
func New(redisURL string, opts ...Option) (*MetadataStore, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewWithClient(redis.NewClient(ropts), opts...), nil
}

// NewWithClient wraps an existing client (used by tests with miniredis).
func NewWithClient(client *redis.Client, opts ...Option) *MetadataStore {
	s := &MetadataStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MetadataStore) recordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", s.prefix, id)
}

func (s *MetadataStore) nsKey(path string) string {
	return fmt.Sprintf("%s:ns:%s", s.prefix, path)
}

func (s *MetadataStore) idsKey() string {
	return fmt.Sprintf("%s:ids", s.prefix)
}

func (s *MetadataStore) Save(ctx context.Context, r *memory.MemoryRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(r.ID), data, 0)
	pipe.SAdd(ctx, s.nsKey(r.NamespacePath), r.ID)
	pipe.SAdd(ctx, s.idsKey(), r.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *MetadataStore) SaveAll(ctx context.Context, records []*memory.MemoryRecord) error {
	pipe := s.client.TxPipeline()
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.ID, err)
		}
		pipe.Set(ctx, s.recordKey(r.ID), data, 0)
		pipe.SAdd(ctx, s.nsKey(r.NamespacePath), r.ID)
		pipe.SAdd(ctx, s.idsKey(), r.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *MetadataStore) FindByID(ctx context.Context, id string) (*memory.MemoryRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(data)
}

func (s *MetadataStore) FindByNamespace(ctx context.Context, ns memory.Namespace, filter *memory.SearchFilter) ([]*memory.MemoryRecord, error) {
	ids, err := s.client.SMembers(ctx, s.nsKey(ns.Path())).Result()
	if err != nil {
		return nil, err
	}
	records, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MetadataStore) FindAll(ctx context.Context) ([]*memory.MemoryRecord, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ids)
}

func (s *MetadataStore) FindDecayed(ctx context.Context, ns memory.Namespace, threshold float64) ([]*memory.MemoryRecord, error) {
	records, err := s.FindByNamespace(ctx, ns, nil)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if r.DecayFactor < threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MetadataStore) FindAllDecayed(ctx context.Context, threshold float64) ([]*memory.MemoryRecord, error) {
	records, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if r.DecayFactor < threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MetadataStore) Delete(ctx context.Context, id string) error {
	r, err := s.FindByID(ctx, id)
	if err == memory.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(id))
	pipe.SRem(ctx, s.nsKey(r.NamespacePath), id)
	pipe.SRem(ctx, s.idsKey(), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *MetadataStore) DeleteByNamespace(ctx context.Context, ns memory.Namespace) (int, error) {
	path := ns.Path()
	ids, err := s.client.SMembers(ctx, s.nsKey(path)).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(id))
		pipe.SRem(ctx, s.idsKey(), id)
	}
	pipe.Del(ctx, s.nsKey(path))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *MetadataStore) RecordAccess(ctx context.Context, id string) error {
	r, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	r.AccessCount++
	r.LastAccessedAt = s.now()
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.client.Set(ctx, s.recordKey(id), data, 0).Err()
}

func (s *MetadataStore) UpdateDecayFactor(ctx context.Context, id string, factor float64) error {
	r, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	r.DecayFactor = factor
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.client.Set(ctx, s.recordKey(id), data, 0).Err()
}

func (s *MetadataStore) Count(ctx context.Context, ns memory.Namespace) (int, error) {
	n, err := s.client.SCard(ctx, s.nsKey(ns.Path())).Result()
	return int(n), err
}

func (s *MetadataStore) CountByType(ctx context.Context, ns memory.Namespace) (map[memory.MemoryType]int, error) {
	records, err := s.FindByNamespace(ctx, ns, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[memory.MemoryType]int)
	for _, r := range records {
		out[r.Type]++
	}
	return out, nil
}

func (s *MetadataStore) Close() error {
	return s.client.Close()
}

// fetch loads records by id, skipping ids whose record key has vanished
// (a concurrent delete between SMEMBERS and GET).
func (s *MetadataStore) fetch(ctx context.Context, ids []string) ([]*memory.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*memory.MemoryRecord, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		r, err := unmarshalRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func unmarshalRecord(data []byte) (*memory.MemoryRecord, error) {
	var r memory.MemoryRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if ns, err := memory.ParseNamespace(r.NamespacePath); err == nil {
		r.Namespace = ns
	}
	return &r, nil
}
