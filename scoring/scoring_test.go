/*
scoring_test.go - Tests for tier, slab, MF mode, badge and rounding functions

Tests for:
- Tier lookup order and floor
- Factor monotonicity of the seeded table
- Slab boundaries (strict < on the upper bound)
- Unified vs individual MF payout
- Badge operators, aliases and skipped metrics
*/
package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// ROUNDING
// =============================================================================

func TestRound2_HalfToEven(t *testing.T) {
	assert.Equal(t, 2.68, Round2(2.675))
	assert.Equal(t, 0.12, Round2(0.125))
	assert.Equal(t, 0.14, Round2(0.135))
	assert.Equal(t, 0.0, Round2(math.NaN()))
	assert.Equal(t, 0.0, Round2(math.Inf(1)))
}

func TestSum2_AddsRoundedParts(t *testing.T) {
	assert.Equal(t, 0.3, Sum2(0.1, 0.2))
	assert.Equal(t, 2037.5, Sum2(2000, 30, 7.5))
}

// =============================================================================
// TIERS
// =============================================================================

func TestTierFor_DefaultTable(t *testing.T) {
	table := DefaultTierTable()

	tests := []struct {
		points float64
		tier   string
	}{
		{-50, "T0"},
		{0, "T0"},
		{800, "T0"},
		{1999.99, "T0"},
		{2000, "T1"},
		{7999, "T1"},
		{8000, "T2"},
		{15000, "T3"},
		{25000, "T4"},
		{40000, "T5"},
		{60000, "T6"},
		{1e9, "T6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, table.TierFor(tt.points), "points=%v", tt.points)
	}
}

func TestTierFor_UnsortedInputIsSortedDescending(t *testing.T) {
	// GIVEN: Thresholds supplied lowest first
	table := NewTierTable([]TierBound{
		{Tier: "Bronze", Min: 0},
		{Tier: "Silver", Min: 100},
		{Tier: "Gold", Min: 500},
	}, map[string]float64{"Gold": 3, "Silver": 2, "Bronze": 1})

	// THEN: The highest matching minimum wins
	assert.Equal(t, "Gold", table.TierFor(600))
	assert.Equal(t, "Silver", table.TierFor(100))
	assert.Equal(t, "Bronze", table.TierFor(0))
	// Below every minimum without an explicit floor
	assert.Equal(t, FloorTier, table.TierFor(-1))
}

func TestFactorFor_UnknownTierIsZero(t *testing.T) {
	table := DefaultTierTable()
	assert.Equal(t, 0.0, table.FactorFor("T99"))
	assert.Equal(t, 0.0000375, table.FactorFor("T6"))
}

func TestDefaultTierTable_FactorIsMonotonic(t *testing.T) {
	table := DefaultTierTable()
	require.NoError(t, table.CheckMonotonic())

	prev := -1.0
	for p := -1000.0; p <= 100000; p += 250 {
		f := table.FactorFor(table.TierFor(p))
		assert.GreaterOrEqual(t, f, prev, "factor dropped at %v points", p)
		prev = f
	}
}

func TestCheckMonotonic_DetectsInversion(t *testing.T) {
	table := NewTierTable([]TierBound{
		{Tier: "A", Min: 100},
		{Tier: "B", Min: 0},
	}, map[string]float64{"A": 0.1, "B": 0.2})
	assert.Error(t, table.CheckMonotonic())
}

// =============================================================================
// SLABS
// =============================================================================

func TestSlabFor_Boundaries(t *testing.T) {
	table := DefaultSlabTable()

	tests := []struct {
		points float64
		label  string
		fresh  float64
		renew  float64
		bonus  float64
	}{
		{0, "<500", 0, 0, 0},
		{499.99, "<500", 0, 0, 0},
		{500, "500–999", 0.005, 0, 0},
		{999.99, "500–999", 0.005, 0, 0},
		{1000, "1000–1499", 0.01, 0.002, 0},
		{1500, "1500–1999", 0.0125, 0.004, 0},
		{2499, "2000–2499", 0.015, 0.005, 0},
		{2500, "2500+", 0.0175, 0.0075, 2000},
		{99999, "2500+", 0.0175, 0.0075, 2000},
	}
	for _, tt := range tests {
		s := table.SlabFor(tt.points)
		assert.Equal(t, tt.label, s.Label, "points=%v", tt.points)
		assert.Equal(t, tt.fresh, s.FreshPct, "points=%v", tt.points)
		assert.Equal(t, tt.renew, s.RenewPct, "points=%v", tt.points)
		assert.Equal(t, tt.bonus, s.BonusRupees, "points=%v", tt.points)
	}
}

func TestSlabFor_NoTopSlabPaysNothing(t *testing.T) {
	table := NewSlabTable([]Slab{{Label: "low", Min: 0, Max: ptr(100), FreshPct: 0.1}})
	s := table.SlabFor(500)
	assert.Equal(t, 0.0, s.FreshPct)
	assert.Equal(t, 0.0, s.BonusRupees)
}

func TestSlabPayout(t *testing.T) {
	// GIVEN: Top slab, 100000 fresh and 40000 renewal premium
	s := DefaultSlabTable().SlabFor(3000)

	p := s.Payout(100000, 40000)

	// THEN: 2000 + 1750 + 300
	assert.Equal(t, 1750.0, p.FromFresh)
	assert.Equal(t, 300.0, p.FromRenew)
	assert.Equal(t, 4050.0, p.Total)
}

// =============================================================================
// MF MODES
// =============================================================================

func TestUnifiedScorer(t *testing.T) {
	scorer, err := NewMFScorer(ModeUnified, DefaultTierTable(), DefaultTierTable())
	require.NoError(t, err)
	assert.Equal(t, ModeUnified, scorer.Mode())

	// GIVEN: 16000 effective points on 10,000,000 AUM
	r := scorer.Score(MFInput{
		EffectivePoints: 16000,
		SIPPoints:       9000,
		LumpsumPoints:   7000,
		TotalAUM:        10_000_000,
		LumpsumAUM:      4_000_000,
		SIPAUM:          SIPAUM(10_000_000, 4_000_000),
	})

	// THEN: T3 on total AUM
	assert.Equal(t, "T3", r.Tier)
	assert.Equal(t, 0.000025, r.Factor)
	assert.Equal(t, 250.0, r.Rupees)
	assert.Equal(t, "T2", r.SIPTier)
}

func TestIndividualScorer(t *testing.T) {
	lump := NewTierTable([]TierBound{
		{Tier: "L1", Min: 5000},
		{Tier: "L0", Min: math.Inf(-1)},
	}, map[string]float64{"L1": 0.0001, "L0": 0})

	scorer, err := NewMFScorer(ModeIndividual, DefaultTierTable(), lump)
	require.NoError(t, err)
	assert.Equal(t, ModeIndividual, scorer.Mode())

	r := scorer.Score(MFInput{
		EffectivePoints: 16000,
		SIPPoints:       9000,
		LumpsumPoints:   7000,
		TotalAUM:        10_000_000,
		LumpsumAUM:      4_000_000,
		SIPAUM:          6_000_000,
	})

	// THEN: SIP T2 on 6M + lumpsum L1 on 4M
	assert.Equal(t, "T2", r.SIPTier)
	assert.Equal(t, "L1", r.LumpTier)
	assert.Equal(t, 125.0, r.SIPRupees)
	assert.Equal(t, 400.0, r.LumpRupees)
	assert.Equal(t, 525.0, r.Rupees)
}

func TestModesDiverge(t *testing.T) {
	in := MFInput{EffectivePoints: 30000, SIPPoints: 30000, TotalAUM: 1_000_000, SIPAUM: 1_000_000}
	unified, _ := NewMFScorer(ModeUnified, DefaultTierTable(), DefaultTierTable())
	individual, _ := NewMFScorer(ModeIndividual, DefaultTierTable(), NewTierTable(nil, nil))

	// Unified pays T4 on all AUM; individual pays SIP T4 on SIP AUM only.
	assert.Equal(t, 29.17, unified.Score(in).Rupees)
	assert.Equal(t, 29.17, individual.Score(in).Rupees)

	in.LumpsumAUM = 400_000
	in.SIPAUM = 600_000
	assert.Equal(t, 29.17, unified.Score(in).Rupees)
	assert.Equal(t, 17.5, individual.Score(in).Rupees)
}

func TestSIPAUM_FlooredAtZero(t *testing.T) {
	assert.Equal(t, 0.0, SIPAUM(100, 250))
	assert.Equal(t, 150.0, SIPAUM(250, 100))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeUnified, m)
	m, err = ParseMode("individual")
	require.NoError(t, err)
	assert.Equal(t, ModeIndividual, m)
	_, err = ParseMode("hybrid")
	assert.Error(t, err)
}

// =============================================================================
// BADGES
// =============================================================================

func TestEvaluateBadges(t *testing.T) {
	rules := []BadgeRule{
		{ID: "referral_novice", Metric: "ref_points", Operator: "min_points", Value: 1},
		{ID: "insurance_titan", Metric: "insurance_points", Operator: "gte", Value: 2500.0},
		{ID: "sip_master", Metric: "mf_sip_tier", Operator: "equals", Value: "T6"},
		{ID: "club_500", Metric: "total_points", Operator: "", Value: "500"},
		{ID: "shield", Metric: "policies_active", Operator: "gte", Value: 10},
		{ID: "trophy", Metric: "consistency_score", Operator: "gte", Value: 90},
	}

	earned, skipped := EvaluateBadges(rules, BadgeMetrics{
		RefPoints:          2,
		InsPointsEffective: 300,
		MFPointsEffective:  200,
		MFSIPTier:          "T6",
	})

	ids := make([]string, len(earned))
	for i, b := range earned {
		ids[i] = b.ID
	}
	assert.Equal(t, []string{"referral_novice", "sip_master", "club_500"}, ids)

	require.Len(t, skipped, 2)
	assert.Equal(t, "shield", skipped[0].ID)
	assert.True(t, errors.Is(skipped[1].Err, model.ErrBadgeMetricUnavailable))
}

func TestEvaluateBadges_TierAtLeastComparesRank(t *testing.T) {
	// GIVEN: A table where "T10" sorts before "T6" as text but ranks above it
	tiers := NewTierTable([]TierBound{
		{Tier: "T10", Min: 100000},
		{Tier: "T6", Min: 60000},
		{Tier: "T1", Min: 2000},
	}, nil)
	rules := []BadgeRule{{ID: "sip_pro", Metric: "mf_sip_tier", Operator: "gte", Value: "T6"}}

	earnedIDs := func(tier string) []string {
		earned, skipped := EvaluateBadges(rules, BadgeMetrics{MFSIPTier: tier, SIPTiers: tiers})
		require.Empty(t, skipped)
		ids := []string{}
		for _, b := range earned {
			ids = append(ids, b.ID)
		}
		return ids
	}

	// THEN: At or above T6 earns the badge, below it does not
	assert.Equal(t, []string{"sip_pro"}, earnedIDs("T10"))
	assert.Equal(t, []string{"sip_pro"}, earnedIDs("T6"))
	assert.Empty(t, earnedIDs("T1"))
	assert.Empty(t, earnedIDs(FloorTier))
	assert.Empty(t, earnedIDs("T99"), "unknown tiers never qualify")
}

func TestTierTable_Rank(t *testing.T) {
	table := DefaultTierTable()

	t0, ok := table.Rank("T0")
	require.True(t, ok)
	t6, ok := table.Rank("T6")
	require.True(t, ok)
	assert.Equal(t, 0, t0)
	assert.Equal(t, 6, t6)

	_, ok = table.Rank("T7")
	assert.False(t, ok)
}

func TestEvaluateBadges_NoneEarnedIsEmptySlice(t *testing.T) {
	earned, skipped := EvaluateBadges(nil, BadgeMetrics{})
	assert.NotNil(t, earned)
	assert.Empty(t, earned)
	assert.Empty(t, skipped)
}
