package memory

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemoryType categorizes a memory record. Each type carries a default
// importance weight and a default decay rate (per day).
type MemoryType string

const (
	TypeFact         MemoryType = "FACT"
	TypePreference   MemoryType = "PREFERENCE"
	TypeGoal         MemoryType = "GOAL"
	TypeEpisode      MemoryType = "EPISODE"
	TypeRelationship MemoryType = "RELATIONSHIP"
)

// AllMemoryTypes lists every known memory type.
var AllMemoryTypes = []MemoryType{
	TypeFact, TypePreference, TypeGoal, TypeEpisode, TypeRelationship,
}

type typeDefaults struct {
	importance float64
	decayRate  float64
}

// Preferences and relationships fade slowly; episodes fade fast.
var memoryTypeDefaults = map[MemoryType]typeDefaults{
	TypeFact:         {importance: 0.5, decayRate: 0.010},
	TypePreference:   {importance: 0.7, decayRate: 0.005},
	TypeGoal:         {importance: 0.8, decayRate: 0.020},
	TypeEpisode:      {importance: 0.4, decayRate: 0.050},
	TypeRelationship: {importance: 0.6, decayRate: 0.005},
}

// DefaultImportance returns the type's default importance weight in [0,1].
func (t MemoryType) DefaultImportance() float64 {
	if d, ok := memoryTypeDefaults[t]; ok {
		return d.importance
	}
	return memoryTypeDefaults[TypeFact].importance
}

// DefaultDecayRate returns the type's default decay rate per day.
func (t MemoryType) DefaultDecayRate() float64 {
	if d, ok := memoryTypeDefaults[t]; ok {
		return d.decayRate
	}
	return memoryTypeDefaults[TypeFact].decayRate
}

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	_, ok := memoryTypeDefaults[t]
	return ok
}

// ParseMemoryType maps a free-form type label to a MemoryType,
// defaulting to TypeFact for unknown or empty input.
func ParseMemoryType(s string) MemoryType {
	t := MemoryType(strings.ToUpper(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeFact
}

// frequencyWeight scales the access-frequency bonus in the effective score.
const frequencyWeight = 0.1

// MemoryRecord is a stored fact extracted from conversation.
//
// The embedding is deliberately not part of the record; it lives in the
// VectorStore keyed by the same id so the metadata and vector backends can
// be scaled or swapped independently.
//
// Records handed to callers are snapshots. The StoreCoordinator is the sole
// writer of persisted state: access counts and decay factors mutated on a
// snapshot are not durable.
type MemoryRecord struct {
	ID             string         `json:"id"`
	Namespace      Namespace      `json:"-"`
	NamespacePath  string         `json:"namespace"`
	Content        string         `json:"content"`
	Type           MemoryType     `json:"type"`
	Importance     float64        `json:"importance"`
	AccessCount    int64          `json:"access_count"`
	DecayFactor    float64        `json:"decay_factor"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewMemoryRecord creates a record with a fresh id, the type's default
// importance, and a decay factor of 1.0.
func NewMemoryRecord(ns Namespace, content string, t MemoryType) *MemoryRecord {
	if !t.Valid() {
		t = TypeFact
	}
	return &MemoryRecord{
		ID:            uuid.New().String(),
		Namespace:     ns,
		NamespacePath: ns.Path(),
		Content:       content,
		Type:          t,
		Importance:    t.DefaultImportance(),
		DecayFactor:   1.0,
		CreatedAt:     time.Now(),
		Metadata:      map[string]any{},
	}
}

// WithImportance sets the importance weight, clamped to [0,1], and returns
// the record for chaining.
func (r *MemoryRecord) WithImportance(importance float64) *MemoryRecord {
	r.Importance = ClampImportance(importance)
	return r
}

// EffectiveScore combines a similarity input with the record's importance,
// decay factor, and access frequency:
//
//	similarity × importance × decayFactor × (1 + 0.1·ln(1+accessCount))
//
// The score is monotonically increasing in every input.
func (r *MemoryRecord) EffectiveScore(similarity float64) float64 {
	frequency := 1 + frequencyWeight*math.Log1p(float64(r.AccessCount))
	return similarity * r.Importance * r.DecayFactor * frequency
}

// Clone returns a deep copy of the record.
func (r *MemoryRecord) Clone() *MemoryRecord {
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ClampImportance clamps an importance weight to [0,1].
func ClampImportance(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
