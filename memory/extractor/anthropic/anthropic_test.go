package anthropic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evermindhq/mnemo-go-sdk/core"
	"github.com/evermindhq/mnemo-go-sdk/memory"
)

func TestParseCandidates_WellFormed(t *testing.T) {
	ns := memory.MustNamespace("user", "alice")
	text := `[
		{"content": "prefers vegetarian food", "type": "preference", "importance": 0.8},
		{"content": "works in Berlin", "type": "fact", "importance": 0.6}
	]`

	records := parseCandidates(text, ns)
	require.Len(t, records, 2)

	require.Equal(t, "prefers vegetarian food", records[0].Content)
	require.Equal(t, memory.TypePreference, records[0].Type)
	require.Equal(t, 0.8, records[0].Importance)
	require.Equal(t, "user/alice", records[0].NamespacePath)
	require.NotEmpty(t, records[0].ID)

	require.Equal(t, memory.TypeFact, records[1].Type)
	require.Equal(t, 0.6, records[1].Importance)
}

func TestParseCandidates_CodeFenceAndProse(t *testing.T) {
	text := "Here are the extracted memories:\n```json\n" +
		`[{"content": "has two cats", "type": "fact", "importance": 0.5}]` +
		"\n```\nLet me know if you need more."

	records := parseCandidates(text, memory.GlobalNamespace)
	require.Len(t, records, 1)
	require.Equal(t, "has two cats", records[0].Content)
}

func TestParseCandidates_DefaultsForMissingFields(t *testing.T) {
	text := `[{"content": "something worth keeping"}]`

	records := parseCandidates(text, memory.GlobalNamespace)
	require.Len(t, records, 1)
	require.Equal(t, memory.TypeFact, records[0].Type)
	require.Equal(t, memory.TypeFact.DefaultImportance(), records[0].Importance)
}

func TestParseCandidates_ImportanceClamped(t *testing.T) {
	text := `[
		{"content": "too high", "importance": 5.0},
		{"content": "too low", "importance": -2.0}
	]`

	records := parseCandidates(text, memory.GlobalNamespace)
	require.Len(t, records, 2)
	require.Equal(t, 1.0, records[0].Importance)
	require.Equal(t, 0.0, records[1].Importance)
}

func TestParseCandidates_SkipsMalformedElements(t *testing.T) {
	text := `[
		{"content": "", "type": "fact"},
		{"type": "goal"},
		{"content": "the only valid one", "type": "goal"}
	]`

	records := parseCandidates(text, memory.GlobalNamespace)
	require.Len(t, records, 1)
	require.Equal(t, "the only valid one", records[0].Content)
	require.Equal(t, memory.TypeGoal, records[0].Type)
}

func TestParseCandidates_UnknownTypeFallsBackToFact(t *testing.T) {
	text := `[{"content": "x", "type": "hunch"}]`
	records := parseCandidates(text, memory.GlobalNamespace)
	require.Len(t, records, 1)
	require.Equal(t, memory.TypeFact, records[0].Type)
}

func TestParseCandidates_NoArrayYieldsNothing(t *testing.T) {
	require.Empty(t, parseCandidates("I could not find anything to extract.", memory.GlobalNamespace))
	require.Empty(t, parseCandidates("", memory.GlobalNamespace))
	require.Empty(t, parseCandidates(`{"content": "an object, not an array"}`, memory.GlobalNamespace))
}

func TestExtractJSONArray_NestedBracketsAndStrings(t *testing.T) {
	text := `prefix [ {"content": "list [1, 2, 3] inside", "note": "a ] in a string"} ] suffix`
	span := extractJSONArray(text)
	require.Equal(t, `[ {"content": "list [1, 2, 3] inside", "note": "a ] in a string"} ]`, span)
}

func TestExtractJSONArray_Unterminated(t *testing.T) {
	require.Empty(t, extractJSONArray(`[{"content": "never closed"`))
}

func TestFormatTranscript(t *testing.T) {
	got := formatTranscript([]core.Message{
		core.NewUserMessage("I live in Lisbon"),
		core.NewAssistantMessage("Nice city!"),
	})
	require.Contains(t, got, "user: I live in Lisbon")
	require.Contains(t, got, "assistant: Nice city!")
}
