package scoring

import (
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// TIER TABLE - points -> tier -> factor
// =============================================================================

// FloorTier is returned when no threshold matches.
const FloorTier = "T0"

// TierBound is the minimum points for a tier. Use math.Inf(-1) for the floor.
type TierBound struct {
	Tier string
	Min  float64
}

// TierTable maps points to a tier label and a tier to a rupee factor.
type TierTable struct {
	bounds  []TierBound // sorted by Min, descending
	factors map[string]float64
}

// NewTierTable sorts bounds descending and copies the factor map.
func NewTierTable(bounds []TierBound, factors map[string]float64) TierTable {
	sorted := make([]TierBound, len(bounds))
	copy(sorted, bounds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Min > sorted[j].Min
	})

	f := make(map[string]float64, len(factors))
	for k, v := range factors {
		f[k] = v
	}
	return TierTable{bounds: sorted, factors: f}
}

// DefaultTierBounds returns the seeded MF thresholds.
func DefaultTierBounds() []TierBound {
	return []TierBound{
		{Tier: "T6", Min: 60000},
		{Tier: "T5", Min: 40000},
		{Tier: "T4", Min: 25000},
		{Tier: "T3", Min: 15000},
		{Tier: "T2", Min: 8000},
		{Tier: "T1", Min: 2000},
		{Tier: "T0", Min: math.Inf(-1)},
	}
}

// DefaultTierFactors returns the seeded rupee factor per tier.
func DefaultTierFactors() map[string]float64 {
	return map[string]float64{
		"T6": 0.000037500,
		"T5": 0.000033333,
		"T4": 0.000029167,
		"T3": 0.000025000,
		"T2": 0.000020833,
		"T1": 0.000016667,
		"T0": 0.0,
	}
}

// DefaultTierTable returns the seeded MF tier table.
func DefaultTierTable() TierTable {
	return NewTierTable(DefaultTierBounds(), DefaultTierFactors())
}

// TierFor returns the first tier (highest minimum first) whose minimum is
// at most points. Points below every minimum fall to FloorTier.
func (t TierTable) TierFor(points float64) string {
	for _, b := range t.bounds {
		if points >= b.Min {
			return b.Tier
		}
	}
	return FloorTier
}

// FactorFor returns the factor for tier; unknown tiers yield 0.
func (t TierTable) FactorFor(tier string) float64 {
	return t.factors[tier]
}

// Lookup returns the tier for points and its factor.
func (t TierTable) Lookup(points float64) (string, float64) {
	tier := t.TierFor(points)
	return tier, t.FactorFor(tier)
}

// Rank orders tiers by their minimum, lowest first. FloorTier ranks below
// every threshold when the table does not list it. Unknown tiers report false.
func (t TierTable) Rank(tier string) (int, bool) {
	for i, b := range t.bounds {
		if b.Tier == tier {
			return len(t.bounds) - 1 - i, true
		}
	}
	if tier == FloorTier {
		return -1, true
	}
	return 0, false
}

// Bounds returns a copy of the thresholds, highest first.
func (t TierTable) Bounds() []TierBound {
	out := make([]TierBound, len(t.bounds))
	copy(out, t.bounds)
	return out
}

// CheckMonotonic returns an error if a higher threshold maps to a lower
// factor than the threshold below it.
func (t TierTable) CheckMonotonic() error {
	for i := 0; i+1 < len(t.bounds); i++ {
		hi, lo := t.bounds[i], t.bounds[i+1]
		if t.FactorFor(hi.Tier) < t.FactorFor(lo.Tier) {
			return fmt.Errorf("tier %s (min %v) pays %v, less than %s (min %v) at %v",
				hi.Tier, hi.Min, t.FactorFor(hi.Tier), lo.Tier, lo.Min, t.FactorFor(lo.Tier))
		}
	}
	return nil
}
