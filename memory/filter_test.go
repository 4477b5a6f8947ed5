package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evermindhq/mnemo-go-sdk/memory"
)

func TestSearchFilter_NilMatchesEverything(t *testing.T) {
	var f *memory.SearchFilter
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeEpisode)
	require.True(t, f.Matches(r))
}

func TestSearchFilter_Types(t *testing.T) {
	f := &memory.SearchFilter{Types: []memory.MemoryType{memory.TypeFact, memory.TypeGoal}}

	require.True(t, f.Matches(memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)))
	require.True(t, f.Matches(memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeGoal)))
	require.False(t, f.Matches(memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeEpisode)))
}

func TestSearchFilter_ImportanceAndDecayBoundsInclusive(t *testing.T) {
	f := &memory.SearchFilter{MinImportance: 0.5, MinDecayFactor: 0.3}

	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	r.Importance = 0.5
	r.DecayFactor = 0.3
	require.True(t, f.Matches(r))

	r.Importance = 0.49
	require.False(t, f.Matches(r))

	r.Importance = 0.5
	r.DecayFactor = 0.29
	require.False(t, f.Matches(r))
}

func TestSearchFilter_TimeBounds(t *testing.T) {
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	r.CreatedAt = base

	require.True(t, (&memory.SearchFilter{CreatedAfter: base.Add(-time.Hour)}).Matches(r))
	require.False(t, (&memory.SearchFilter{CreatedAfter: base.Add(time.Hour)}).Matches(r))
	require.True(t, (&memory.SearchFilter{CreatedBefore: base.Add(time.Hour)}).Matches(r))
	require.False(t, (&memory.SearchFilter{CreatedBefore: base.Add(-time.Hour)}).Matches(r))
}

func TestSearchFilter_ANDSemantics(t *testing.T) {
	f := &memory.SearchFilter{
		Types:         []memory.MemoryType{memory.TypeFact},
		MinImportance: 0.6,
	}
	r := memory.NewMemoryRecord(memory.GlobalNamespace, "x", memory.TypeFact)
	r.Importance = 0.4
	// Type matches but importance does not.
	require.False(t, f.Matches(r))
}

func TestWithTypes(t *testing.T) {
	require.Nil(t, memory.WithTypes())

	f := memory.WithTypes(memory.TypePreference)
	require.NotNil(t, f)
	require.Equal(t, []memory.MemoryType{memory.TypePreference}, f.Types)
}
