package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evermindhq/mnemo-go-sdk/memory"
	"github.com/evermindhq/mnemo-go-sdk/memory/embedder/mock"
	"github.com/evermindhq/mnemo-go-sdk/memory/store/inmem"
)

type coordinatorFixture struct {
	coord    *memory.StoreCoordinator
	meta     *inmem.MetadataStore
	vectors  *inmem.VectorStore
	embedder *mock.Embedder
}

func newCoordinatorFixture(t *testing.T, cfg *memory.Config, opts ...memory.CoordinatorOption) *coordinatorFixture {
	t.Helper()
	meta := inmem.NewMetadataStore()
	vectors := inmem.NewVectorStore()
	return &coordinatorFixture{
		coord:    memory.NewStoreCoordinator(meta, vectors, cfg, opts...),
		meta:     meta,
		vectors:  vectors,
		embedder: mock.New(),
	}
}

// seed saves a record with its mock embedding and returns it.
func (f *coordinatorFixture) seed(t *testing.T, ns memory.Namespace, content string, typ memory.MemoryType) *memory.MemoryRecord {
	t.Helper()
	ctx := context.Background()
	record := memory.NewMemoryRecord(ns, content, typ)
	embedding, err := f.embedder.Embed(ctx, content)
	require.NoError(t, err)
	require.NoError(t, f.coord.Save(ctx, record, embedding))
	return record
}

func (f *coordinatorFixture) query(t *testing.T, text string) []float32 {
	t.Helper()
	embedding, err := f.embedder.Embed(context.Background(), text)
	require.NoError(t, err)
	return embedding
}

func TestSearch_NamespaceIsolation(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	alice := memory.MustNamespace("user", "alice")
	bob := memory.MustNamespace("user", "bob")

	f.seed(t, alice, "alice enjoys hiking in the mountains", memory.TypePreference)
	f.seed(t, alice, "alice works as a data engineer", memory.TypeFact)
	bobRec := f.seed(t, bob, "bob enjoys hiking in the mountains", memory.TypePreference)

	results, err := f.coord.Search(context.Background(), alice,
		f.query(t, "enjoys hiking in the mountains"), 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, res := range results {
		require.Equal(t, "user/alice", res.Record.NamespacePath)
		require.NotEqual(t, bobRec.ID, res.Record.ID)
	}
}

func TestSearch_ImportanceBreaksSimilarityTies(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	// Identical content makes similarity identical; importance decides.
	low := memory.NewMemoryRecord(ns, "quarterly planning meeting notes", memory.TypeFact).WithImportance(0.2)
	high := memory.NewMemoryRecord(ns, "quarterly planning meeting notes", memory.TypeFact).WithImportance(0.9)
	embedding := f.query(t, "quarterly planning meeting notes")
	require.NoError(t, f.coord.Save(ctx, low, embedding))
	require.NoError(t, f.coord.Save(ctx, high, embedding))

	results, err := f.coord.Search(ctx, ns, embedding, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, high.ID, results[0].Record.ID)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_FrequentlyAccessedRanksHigher(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	cold := memory.NewMemoryRecord(ns, "project deadline is in october", memory.TypeFact)
	warm := memory.NewMemoryRecord(ns, "project deadline is in october", memory.TypeFact)
	warm.AccessCount = 25
	embedding := f.query(t, "project deadline is in october")
	require.NoError(t, f.coord.Save(ctx, cold, embedding))
	require.NoError(t, f.coord.Save(ctx, warm, embedding))

	results, err := f.coord.Search(ctx, ns, embedding, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, warm.ID, results[0].Record.ID)
}

func TestSearch_TopKLimit(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")

	for i := 0; i < 8; i++ {
		f.seed(t, ns, "likes reading science fiction novels", memory.TypeFact)
	}
	results, err := f.coord.Search(context.Background(), ns,
		f.query(t, "likes reading science fiction novels"), 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestSearch_EmptyNamespaceIsNotAnError(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	results, err := f.coord.Search(context.Background(),
		memory.MustNamespace("user", "nobody"), f.query(t, "anything"), 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearch_RecordsAccessAsSideEffect(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	rec := f.seed(t, ns, "allergic to peanuts", memory.TypeFact)

	results, err := f.coord.Search(context.Background(), ns,
		f.query(t, "allergic to peanuts"), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The returned snapshot reflects the bump.
	require.Equal(t, int64(1), results[0].Record.AccessCount)
	require.False(t, results[0].Record.LastAccessedAt.IsZero())

	// And so does the store.
	stored, err := f.meta.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.AccessCount)
	require.False(t, stored.LastAccessedAt.IsZero())
}

func TestSearch_TypeFilter(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")

	f.seed(t, ns, "wants to learn woodworking this year", memory.TypeGoal)
	f.seed(t, ns, "wants to learn woodworking someday", memory.TypePreference)

	results, err := f.coord.Search(context.Background(), ns,
		f.query(t, "wants to learn woodworking"), 5,
		memory.WithTypes(memory.TypeGoal))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, memory.TypeGoal, results[0].Record.Type)
}

func TestSearch_MinSimilarityThresholdDropsWeakMatches(t *testing.T) {
	cfg := memory.DefaultConfig()
	cfg.MinSimilarityThreshold = 0.95
	f := newCoordinatorFixture(t, cfg)
	ns := memory.MustNamespace("user", "alice")

	f.seed(t, ns, "keeps a sourdough starter on the kitchen counter", memory.TypeFact)

	// Unrelated query falls below the threshold.
	results, err := f.coord.Search(context.Background(), ns,
		f.query(t, "favorite programming language is rust"), 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)

	// Matching text passes it.
	results, err = f.coord.Search(context.Background(), ns,
		f.query(t, "keeps a sourdough starter on the kitchen counter"), 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearch_ToleratesMissingEmbedding(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	f.seed(t, ns, "drinks tea in the morning", memory.TypeFact)
	// Metadata with no embedding, as left behind by a failed dual write.
	orphan := memory.NewMemoryRecord(ns, "drinks tea in the morning", memory.TypeFact)
	require.NoError(t, f.meta.Save(ctx, orphan))

	results, err := f.coord.Search(ctx, ns, f.query(t, "drinks tea in the morning"), 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotEqual(t, orphan.ID, results[0].Record.ID)
}

func TestSaveAll_SizeMismatch(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	records := []*memory.MemoryRecord{
		memory.NewMemoryRecord(ns, "a", memory.TypeFact),
		memory.NewMemoryRecord(ns, "b", memory.TypeFact),
	}
	err := f.coord.SaveAll(context.Background(), records, [][]float32{{0.1}})
	require.ErrorIs(t, err, memory.ErrSizeMismatch)

	// Nothing was written.
	n, err := f.coord.Count(context.Background(), ns)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUpdateDecay_RecomputesFromLastAccess(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base.AddDate(0, 0, 100)
	f := newCoordinatorFixture(t, nil, memory.WithCoordinatorClock(func() time.Time { return now }))
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	// FACT decays at 0.010/day; 100 days gives exp(-1) ≈ 0.368.
	accessed := memory.NewMemoryRecord(ns, "stale fact", memory.TypeFact)
	accessed.LastAccessedAt = base
	require.NoError(t, f.coord.Save(ctx, accessed, f.query(t, "stale fact")))

	// Never accessed, so never decayed.
	fresh := f.seed(t, ns, "fresh fact", memory.TypeFact)

	updated, err := f.coord.UpdateDecay(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	got, err := f.meta.FindByID(ctx, accessed.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.3679, got.DecayFactor, 0.001)

	untouched, err := f.meta.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, 1.0, untouched.DecayFactor)
}

func TestUpdateDecay_SkipsTinyMovements(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	rec := memory.NewMemoryRecord(ns, "just accessed", memory.TypePreference)
	rec.LastAccessedAt = time.Now()
	require.NoError(t, f.coord.Save(ctx, rec, f.query(t, "just accessed")))

	updated, err := f.coord.UpdateDecay(ctx)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func TestCleanupDecayed_RemovesBelowThreshold(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	faded := memory.NewMemoryRecord(ns, "long forgotten detail", memory.TypeEpisode)
	faded.DecayFactor = 0.05
	require.NoError(t, f.coord.Save(ctx, faded, f.query(t, "long forgotten detail")))
	kept := f.seed(t, ns, "still relevant detail", memory.TypeFact)

	removed, err := f.coord.CleanupDecayed(ctx, 0.1)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = f.meta.FindByID(ctx, faded.ID)
	require.ErrorIs(t, err, memory.ErrNotFound)
	_, err = f.meta.FindByID(ctx, kept.ID)
	require.NoError(t, err)

	// Re-running is a no-op.
	removed, err = f.coord.CleanupDecayed(ctx, 0.1)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestGetDecayedMemories_DoesNotDelete(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")
	ctx := context.Background()

	faded := memory.NewMemoryRecord(ns, "fading", memory.TypeEpisode)
	faded.DecayFactor = 0.02
	require.NoError(t, f.coord.Save(ctx, faded, f.query(t, "fading")))

	decayed, err := f.coord.GetDecayedMemories(ctx, ns, 0.1)
	require.NoError(t, err)
	require.Len(t, decayed, 1)

	_, err = f.meta.FindByID(ctx, faded.ID)
	require.NoError(t, err)
}

func TestDeleteByNamespace(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	alice := memory.MustNamespace("user", "alice")
	bob := memory.MustNamespace("user", "bob")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.seed(t, alice, "alice memory", memory.TypeFact)
	}
	for i := 0; i < 2; i++ {
		f.seed(t, bob, "bob memory", memory.TypeFact)
	}

	n, err := f.coord.DeleteByNamespace(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	aliceCount, err := f.coord.Count(ctx, alice)
	require.NoError(t, err)
	require.Zero(t, aliceCount)

	bobCount, err := f.coord.Count(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 2, bobCount)
}

func TestCountByType(t *testing.T) {
	f := newCoordinatorFixture(t, nil)
	ns := memory.MustNamespace("user", "alice")

	f.seed(t, ns, "a", memory.TypeFact)
	f.seed(t, ns, "b", memory.TypeFact)
	f.seed(t, ns, "c", memory.TypeGoal)

	counts, err := f.coord.CountByType(context.Background(), ns)
	require.NoError(t, err)
	require.Equal(t, 2, counts[memory.TypeFact])
	require.Equal(t, 1, counts[memory.TypeGoal])
	require.Zero(t, counts[memory.TypeEpisode])
}
