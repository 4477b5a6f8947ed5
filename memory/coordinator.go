package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// decayWriteEpsilon skips persisting a recomputed decay factor that differs
// from the stored one by less than this. Purely a write-avoidance
// optimization; correctness does not depend on it.
const decayWriteEpsilon = 0.001

// SearchResult is one recalled record with its ranking inputs.
type SearchResult struct {
	Record     *MemoryRecord
	Similarity float64
	Score      float64
}

// StoreCoordinator orchestrates the metadata and vector backends: dual
// writes, hybrid search with effective-score re-ranking, decay sweeps, and
// decayed-record cleanup. It is the sole writer of persisted record state;
// records it returns are snapshots.
//
// The two backends are allowed to drift (best-effort dual write); reads
// tolerate the drift by excluding ids present in only one backend.
type StoreCoordinator struct {
	meta    MetadataStore
	vectors VectorStore
	cfg     *Config
	log     *zap.Logger
	now     func() time.Time
}

// CoordinatorOption configures a StoreCoordinator.
type CoordinatorOption func(*StoreCoordinator)

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(log *zap.Logger) CoordinatorOption {
	return func(c *StoreCoordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCoordinatorClock overrides the clock, for tests.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *StoreCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewStoreCoordinator creates a coordinator over the given backends.
func NewStoreCoordinator(meta MetadataStore, vectors VectorStore, cfg *Config, opts ...CoordinatorOption) *StoreCoordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &StoreCoordinator{
		meta:    meta,
		vectors: vectors,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "store_coordinator"))
	return c
}

// Save writes one record's metadata and embedding in lockstep.
func (c *StoreCoordinator) Save(ctx context.Context, record *MemoryRecord, embedding []float32) error {
	if record == nil {
		return errors.New("nil record")
	}
	if err := c.meta.Save(ctx, record); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	if err := c.vectors.Save(ctx, record.ID, embedding); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	c.log.Debug("record saved",
		zap.String("id", record.ID),
		zap.String("namespace", record.NamespacePath),
		zap.String("type", string(record.Type)))
	return nil
}

// SaveAll writes a batch of records and their embeddings. The two
// collections must align by index; a mismatch fails with ErrSizeMismatch
// before anything is written. The dual write is best-effort, not atomic:
// a vector-side failure leaves the metadata writes in place and search
// tolerates the orphans.
func (c *StoreCoordinator) SaveAll(ctx context.Context, records []*MemoryRecord, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fmt.Errorf("%w: %d records, %d embeddings", ErrSizeMismatch, len(records), len(embeddings))
	}
	if len(records) == 0 {
		return nil
	}
	if err := c.meta.SaveAll(ctx, records); err != nil {
		return fmt.Errorf("save metadata batch: %w", err)
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := c.vectors.SaveAll(ctx, ids, embeddings); err != nil {
		return fmt.Errorf("save embedding batch: %w", err)
	}
	c.log.Debug("batch saved", zap.Int("count", len(records)))
	return nil
}

// Search runs the two-stage hybrid retrieval:
//
//  1. fetch every record in ns matching the optional filter (coarse
//     candidate set, unbounded by topK)
//  2. vector similarity restricted to the candidate ids, over-fetching
//     min(topK×2, |candidates|) neighbors to leave re-ranking room
//  3. re-rank by effective score, stable on the similarity order, and keep
//     the first topK
//
// Returned ids have their access recorded as a side effect; recall is not
// read-only. An empty namespace or no embedding overlap yields an empty
// result, never an error.
func (c *StoreCoordinator) Search(ctx context.Context, ns Namespace, query []float32, topK int, filter *SearchFilter) ([]SearchResult, error) {
	if topK <= 0 {
		topK = c.cfg.DefaultTopK
	}

	candidates, err := c.meta.FindByNamespace(ctx, ns, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	byID := make(map[string]*MemoryRecord, len(candidates))
	ids := make([]string, len(candidates))
	for i, r := range candidates {
		byID[r.ID] = r
		ids[i] = r.ID
	}

	fetch := topK * 2
	if fetch > len(candidates) {
		fetch = len(candidates)
	}
	matches, err := c.vectors.Search(ctx, query, fetch, ids)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		record, ok := byID[m.ID]
		if !ok {
			// Vector backend knows an id the metadata backend does not.
			// Tolerated drift: exclude rather than fail recall.
			c.log.Warn("excluding inconsistent record", zap.String("id", m.ID))
			continue
		}
		if m.Similarity < c.cfg.MinSimilarityThreshold {
			continue
		}
		results = append(results, SearchResult{
			Record:     record,
			Similarity: m.Similarity,
			Score:      record.EffectiveScore(m.Similarity),
		})
	}

	// Stable keeps the similarity-result order on score ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	now := c.now()
	for i := range results {
		if err := c.meta.RecordAccess(ctx, results[i].Record.ID); err != nil && !errors.Is(err, ErrNotFound) {
			c.log.Warn("record access", zap.String("id", results[i].Record.ID), zap.Error(err))
		}
		// Reflect the bump on the returned snapshot.
		results[i].Record.AccessCount++
		results[i].Record.LastAccessedAt = now
	}
	return results, nil
}

// UpdateDecay recomputes the decay factor of every record from its
// last-accessed timestamp and its type's decay rate, persisting the new
// value only when it moved by more than the write epsilon. Returns the
// number of records updated. Intended to run out-of-band, e.g. daily.
func (c *StoreCoordinator) UpdateDecay(ctx context.Context) (int, error) {
	records, err := c.meta.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("decay sweep: %w", err)
	}
	now := c.now()
	updated := 0
	for _, r := range records {
		factor := DecayFactorAt(r.LastAccessedAt, now, r.Type.DefaultDecayRate())
		if math.Abs(factor-r.DecayFactor) <= decayWriteEpsilon {
			continue
		}
		if err := c.meta.UpdateDecayFactor(ctx, r.ID, factor); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return updated, fmt.Errorf("update decay for %s: %w", r.ID, err)
		}
		updated++
	}
	c.log.Debug("decay sweep complete", zap.Int("scanned", len(records)), zap.Int("updated", updated))
	return updated, nil
}

// CleanupDecayed deletes every record, in any namespace, whose decay factor
// is strictly below threshold, removing metadata and embedding. Returns the
// count removed. Idempotent and safe to re-run.
func (c *StoreCoordinator) CleanupDecayed(ctx context.Context, threshold float64) (int, error) {
	decayed, err := c.meta.FindAllDecayed(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("find decayed: %w", err)
	}
	removed := 0
	for _, r := range decayed {
		if err := c.vectors.Delete(ctx, r.ID); err != nil {
			c.log.Warn("delete embedding", zap.String("id", r.ID), zap.Error(err))
		}
		if err := c.meta.Delete(ctx, r.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("delete record %s: %w", r.ID, err)
		}
		removed++
	}
	if removed > 0 {
		c.log.Info("decayed records removed", zap.Int("count", removed), zap.Float64("threshold", threshold))
	}
	return removed, nil
}

// GetDecayedMemories returns records in ns with decay factor strictly below
// threshold, without deleting anything.
func (c *StoreCoordinator) GetDecayedMemories(ctx context.Context, ns Namespace, threshold float64) ([]*MemoryRecord, error) {
	return c.meta.FindDecayed(ctx, ns, threshold)
}

// DeleteByNamespace removes every record whose namespace path equals ns
// from both backends and returns the count removed. Used for tenant
// teardown.
func (c *StoreCoordinator) DeleteByNamespace(ctx context.Context, ns Namespace) (int, error) {
	records, err := c.meta.FindByNamespace(ctx, ns, nil)
	if err != nil {
		return 0, fmt.Errorf("list namespace: %w", err)
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := c.vectors.DeleteAll(ctx, ids); err != nil {
		c.log.Warn("delete embeddings", zap.String("namespace", ns.Path()), zap.Error(err))
	}
	n, err := c.meta.DeleteByNamespace(ctx, ns)
	if err != nil {
		return 0, fmt.Errorf("delete namespace: %w", err)
	}
	c.log.Info("namespace deleted", zap.String("namespace", ns.Path()), zap.Int("count", n))
	return n, nil
}

// Count returns the number of records in ns.
func (c *StoreCoordinator) Count(ctx context.Context, ns Namespace) (int, error) {
	return c.meta.Count(ctx, ns)
}

// CountByType returns per-type record counts in ns.
func (c *StoreCoordinator) CountByType(ctx context.Context, ns Namespace) (map[MemoryType]int, error) {
	return c.meta.CountByType(ctx, ns)
}

// StartDecayLoop runs UpdateDecay and CleanupDecayed every
// DecayCheckInterval until ctx is canceled. It returns immediately when
// decay is disabled in the config.
func (c *StoreCoordinator) StartDecayLoop(ctx context.Context) {
	if !c.cfg.EnableDecay {
		return
	}
	go func() {
		ticker := time.NewTicker(c.cfg.DecayCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.UpdateDecay(ctx); err != nil {
					c.log.Warn("decay sweep failed", zap.Error(err))
					continue
				}
				if _, err := c.CleanupDecayed(ctx, c.cfg.DecayThreshold); err != nil {
					c.log.Warn("decay cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}
