package memory

import (
	"math"
	"time"
)

// Decay follows an exponential forgetting curve: a record's relevance
// penalty shrinks with days since last access, at a per-type rate.
// All functions here are pure; sweeps that apply them live on the
// StoreCoordinator.

const hoursPerDay = 24.0

// DecayFactorAt returns exp(-rate × days since lastAccessed) evaluated at
// now, clamped so future timestamps never inflate the factor above 1.0.
// A zero lastAccessed means the record was never accessed and is never
// decayed (factor 1.0).
func DecayFactorAt(lastAccessed, now time.Time, rate float64) float64 {
	if lastAccessed.IsZero() {
		return 1.0
	}
	days := now.Sub(lastAccessed).Hours() / hoursPerDay
	if days < 0 {
		days = 0
	}
	return math.Exp(-rate * days)
}

// DecayFactor is DecayFactorAt evaluated at the current time.
func DecayFactor(lastAccessed time.Time, rate float64) float64 {
	return DecayFactorAt(lastAccessed, time.Now(), rate)
}

// HalfLifeDays returns the number of days for the decay factor to halve
// at the given rate.
func HalfLifeDays(rate float64) float64 {
	return math.Ln2 / rate
}

// DecayRateForHalfLife returns the decay rate that produces the desired
// half-life in days.
func DecayRateForHalfLife(halfLifeDays float64) float64 {
	return math.Ln2 / halfLifeDays
}

// DaysUntilThreshold returns the number of days until the decay factor of an
// unaccessed record crosses below threshold. The threshold must lie strictly
// between 0 and 1.
func DaysUntilThreshold(rate, threshold float64) (float64, error) {
	if threshold <= 0 || threshold >= 1 {
		return 0, ErrInvalidThreshold
	}
	return -math.Log(threshold) / rate, nil
}
