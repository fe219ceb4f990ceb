package scoring

import "sort"

// =============================================================================
// INSURANCE SLABS - points -> (fresh %, renewal %, bonus)
// =============================================================================

// Slab is one insurance payout band. Max is exclusive; a nil Max marks the
// catch-all top slab.
type Slab struct {
	Label       string
	Min         float64
	Max         *float64
	FreshPct    float64
	RenewPct    float64
	BonusRupees float64
}

// SlabTable selects a slab by effective insurance points.
type SlabTable struct {
	bounded []Slab // slabs with a Max, ascending by Min
	top     Slab
}

// NewSlabTable sorts slabs ascending by Min. The last slab without a Max
// becomes the default; without one the default pays nothing.
func NewSlabTable(slabs []Slab) SlabTable {
	sorted := make([]Slab, len(slabs))
	copy(sorted, slabs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Min < sorted[j].Min
	})

	t := SlabTable{top: Slab{Label: "<500"}}
	for _, s := range sorted {
		if s.Max == nil {
			t.top = s
			continue
		}
		t.bounded = append(t.bounded, s)
	}
	return t
}

func ptr(v float64) *float64 { return &v }

// DefaultSlabs returns the seeded insurance slabs.
func DefaultSlabs() []Slab {
	return []Slab{
		{Label: "<500", Min: 0, Max: ptr(500)},
		{Label: "500–999", Min: 500, Max: ptr(1000), FreshPct: 0.0050},
		{Label: "1000–1499", Min: 1000, Max: ptr(1500), FreshPct: 0.0100, RenewPct: 0.0020},
		{Label: "1500–1999", Min: 1500, Max: ptr(2000), FreshPct: 0.0125, RenewPct: 0.0040},
		{Label: "2000–2499", Min: 2000, Max: ptr(2500), FreshPct: 0.0150, RenewPct: 0.0050},
		{Label: "2500+", Min: 2500, FreshPct: 0.0175, RenewPct: 0.0075, BonusRupees: 2000},
	}
}

// DefaultSlabTable returns the seeded insurance slab table.
func DefaultSlabTable() SlabTable {
	return NewSlabTable(DefaultSlabs())
}

// SlabFor returns the first slab whose Max exceeds points, else the top slab.
func (t SlabTable) SlabFor(points float64) Slab {
	for _, s := range t.bounded {
		if points < *s.Max {
			return s
		}
	}
	return t.top
}

// InsurancePayout is the rupee breakdown for one slab and premium split.
type InsurancePayout struct {
	FromFresh float64
	FromRenew float64
	Total     float64
}

// Payout computes bonus + round(fresh% * fresh) + round(renew% * renew).
func (s Slab) Payout(freshPremium, renewPremium float64) InsurancePayout {
	fresh := Mul2(s.FreshPct, freshPremium)
	renew := Mul2(s.RenewPct, renewPremium)
	return InsurancePayout{
		FromFresh: fresh,
		FromRenew: renew,
		Total:     Sum2(s.BonusRupees, fresh, renew),
	}
}
