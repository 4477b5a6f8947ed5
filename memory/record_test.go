package memory_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

func TestNewMemoryRecord_Defaults(t *testing.T) {
	ns := memory.MustNamespace("user", "alice")
	r := memory.NewMemoryRecord(ns, "prefers dark roast coffee", memory.TypePreference)

	require.NotEmpty(t, r.ID)
	require.Equal(t, "user/alice", r.NamespacePath)
	require.Equal(t, memory.TypePreference, r.Type)
	require.Equal(t, 0.7, r.Importance)
	require.Equal(t, 1.0, r.DecayFactor)
	require.Zero(t, r.AccessCount)
	require.False(t, r.CreatedAt.IsZero())
	require.True(t, r.LastAccessedAt.IsZero())
}

func TestNewMemoryRecord_UnknownTypeFallsBackToFact(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.MemoryType("BOGUS"))
	require.Equal(t, memory.TypeFact, r.Type)
	require.Equal(t, 0.5, r.Importance)
}

func TestNewMemoryRecord_UniqueIDs(t *testing.T) {
	a := memory.NewMemoryRecord(memory.GlobalNamespace, "a", memory.TypeFact)
	b := memory.NewMemoryRecord(memory.GlobalNamespace, "b", memory.TypeFact)
	require.NotEqual(t, a.ID, b.ID)
}

func TestWithImportance_Clamped(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)

	require.Equal(t, 0.9, r.WithImportance(0.9).Importance)
	require.Equal(t, 1.0, r.WithImportance(3.0).Importance)
	require.Equal(t, 0.0, r.WithImportance(-1.0).Importance)
}

func TestParseMemoryType(t *testing.T) {
	require.Equal(t, memory.TypePreference, memory.ParseMemoryType("preference"))
	require.Equal(t, memory.TypeGoal, memory.ParseMemoryType(" GOAL "))
	require.Equal(t, memory.TypeFact, memory.ParseMemoryType("nonsense"))
	require.Equal(t, memory.TypeFact, memory.ParseMemoryType(""))
}

func TestEffectiveScore_Composition(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	r.Importance = 0.8
	r.DecayFactor = 0.5

	// Never accessed: frequency term is exactly 1.
	require.InDelta(t, 0.9*0.8*0.5, r.EffectiveScore(0.9), 1e-9)

	r.AccessCount = 10
	want := 0.9 * 0.8 * 0.5 * (1 + 0.1*math.Log1p(10))
	require.InDelta(t, want, r.EffectiveScore(0.9), 1e-9)
}

func TestEffectiveScore_MonotonicInAccessCount(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	prev := r.EffectiveScore(1.0)
	for _, count := range []int64{1, 5, 100, 10000} {
		r.AccessCount = count
		score := r.EffectiveScore(1.0)
		require.Greater(t, score, prev)
		prev = score
	}
}

func TestEffectiveScore_ZeroSimilarityIsZero(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeGoal)
	r.AccessCount = 50
	require.Zero(t, r.EffectiveScore(0))
}

func TestClone_IsDeep(t *testing.T) {
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	r.Metadata["source"] = "extraction"

	clone := r.Clone()
	clone.Content = "changed"
	clone.Metadata["source"] = "manual"

	require.Equal(t, "x", r.Content)
	require.Equal(t, "extraction", r.Metadata["source"])
}
