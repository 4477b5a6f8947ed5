package memory

import "time"

// SearchFilter narrows the candidate set before vector ranking.
// Every present constraint must hold (AND semantics); zero-valued
// constraints are absent and always match.
type SearchFilter struct {
	// Types restricts matches to the listed memory types. Nil or empty
	// means any type.
	Types []MemoryType

	// MinImportance is the inclusive lower bound on importance.
	MinImportance float64

	// MinDecayFactor is the inclusive lower bound on the decay factor.
	MinDecayFactor float64

	// CreatedAfter / CreatedBefore bound the creation timestamp.
	// Zero times are absent.
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// WithTypes returns a filter matching only the given types, or nil when no
// types are supplied (no filtering).
func WithTypes(types ...MemoryType) *SearchFilter {
	if len(types) == 0 {
		return nil
	}
	return &SearchFilter{Types: types}
}

// Matches reports whether the record satisfies every present constraint.
// A nil filter matches everything.
func (f *SearchFilter) Matches(r *MemoryRecord) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if r.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.Importance < f.MinImportance {
		return false
	}
	if r.DecayFactor < f.MinDecayFactor {
		return false
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && r.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}
