/*
Package config resolves scoring configuration for the incentive engine.

PURPOSE:
  Scoring parameters live in versioned documents, one per domain, in a
  configuration store. The Resolver loads them, bootstraps missing ones
  with defaults, validates them, and caches them for its own lifetime.
  A run takes one Snapshot: the compiled tables it scores with.

DOCUMENTS (keyed by _id):
  Leaderboard_SIP        MF scoring mode, tier thresholds and factors
  Leaderboard_Insurance  Insurance slabs
  Leaderboard_Referral   Eligibility window, badge definitions
  Leaderboard_Schema     Range mode, leader identities

KEY VARIANTS:
  Badge definitions written by different editors use different keys for
  the same thing. Both spellings are accepted:
    condition_metric   | condition_field
    condition_operator | condition_type
    condition_value    | threshold

USAGE:
  resolver := config.NewResolver(store, logger)
  snap, err := resolver.Snapshot(ctx)
  tier := snap.SIPTable.TierFor(points)

SEE ALSO:
  - config/resolver.go: Load, bootstrap, cache
  - config/snapshot.go: Compiled per-run view
  - config/yaml.go: File import/export
*/
package config

import (
	"math"
	"time"

	"github.com/warp/incentive-engine/scoring"
)

// Domain is the fixed _id of a scoring document.
type Domain string

const (
	DomainSIP         Domain = "Leaderboard_SIP"
	DomainInsurance   Domain = "Leaderboard_Insurance"
	DomainReferral    Domain = "Leaderboard_Referral"
	DomainLeaderboard Domain = "Leaderboard_Schema"
)

// Domains lists every scoring document, in load order.
var Domains = []Domain{DomainSIP, DomainInsurance, DomainReferral, DomainLeaderboard}

// ParseDomain accepts a document id or its short name.
func ParseDomain(s string) (Domain, bool) {
	switch s {
	case string(DomainSIP), "sip", "mf":
		return DomainSIP, true
	case string(DomainInsurance), "insurance", "ins":
		return DomainInsurance, true
	case string(DomainReferral), "referral", "ref":
		return DomainReferral, true
	case string(DomainLeaderboard), "leaderboard", "schema":
		return DomainLeaderboard, true
	}
	return "", false
}

// Document is any scoring document.
type Document interface {
	Meta() *DocMeta
}

// DocMeta is the envelope shared by all scoring documents.
type DocMeta struct {
	ID            string    `json:"_id" yaml:"_id" validate:"required"`
	Module        string    `json:"module" yaml:"module"`
	SchemaVersion int       `json:"schema_version" yaml:"schema_version" validate:"gte=0"`
	Status        string    `json:"status" yaml:"status"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

func (m *DocMeta) Meta() *DocMeta { return m }

// =============================================================================
// MF (SIP + LUMPSUM)
// =============================================================================

// TierThreshold is a tier minimum. A nil MinVal is the floor tier.
type TierThreshold struct {
	Tier   string   `json:"tier" yaml:"tier" validate:"required"`
	MinVal *float64 `json:"min_val" yaml:"min_val"`
}

// SIPConfig is the Leaderboard_SIP document.
type SIPConfig struct {
	DocMeta `yaml:",inline"`

	ScoringMode           string             `json:"scoring_mode" yaml:"scoring_mode" validate:"omitempty,oneof=unified individual"`
	TierThresholds        []TierThreshold    `json:"tier_thresholds" yaml:"tier_thresholds" validate:"dive"`
	TierFactors           map[string]float64 `json:"tier_factors" yaml:"tier_factors" validate:"dive,gte=0"`
	LumpsumTierThresholds []TierThreshold    `json:"lumpsum_tier_thresholds" yaml:"lumpsum_tier_thresholds" validate:"dive"`
	LumpsumTierFactors    map[string]float64 `json:"lumpsum_tier_factors" yaml:"lumpsum_tier_factors" validate:"dive,gte=0"`
}

// =============================================================================
// INSURANCE
// =============================================================================

// SlabConfig is one insurance slab. A nil MaxPoints is the top slab.
type SlabConfig struct {
	Label       string   `json:"label" yaml:"label" validate:"required"`
	MinPoints   float64  `json:"min_points" yaml:"min_points"`
	MaxPoints   *float64 `json:"max_points" yaml:"max_points"`
	FreshPct    float64  `json:"fresh_pct" yaml:"fresh_pct" validate:"gte=0,lte=1"`
	RenewPct    float64  `json:"renew_pct" yaml:"renew_pct" validate:"gte=0,lte=1"`
	BonusRupees float64  `json:"bonus_rupees" yaml:"bonus_rupees" validate:"gte=0"`
}

// InsuranceConfig is the Leaderboard_Insurance document.
type InsuranceConfig struct {
	DocMeta `yaml:",inline"`

	Slabs []SlabConfig `json:"slabs" yaml:"slabs" validate:"dive"`
}

// =============================================================================
// REFERRAL + GAMIFICATION
// =============================================================================

// BadgeDef is a badge definition as stored, with both key spellings.
type BadgeDef struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Label       string `json:"label" yaml:"label"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	ConditionMetric   string `json:"condition_metric,omitempty" yaml:"condition_metric,omitempty"`
	ConditionField    string `json:"condition_field,omitempty" yaml:"condition_field,omitempty"`
	ConditionOperator string `json:"condition_operator,omitempty" yaml:"condition_operator,omitempty"`
	ConditionType     string `json:"condition_type,omitempty" yaml:"condition_type,omitempty"`
	ConditionValue    any    `json:"condition_value,omitempty" yaml:"condition_value,omitempty"`
	Threshold         any    `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Rule normalizes the key variants into a scoring rule.
func (b BadgeDef) Rule() scoring.BadgeRule {
	metric := b.ConditionMetric
	if metric == "" {
		metric = b.ConditionField
	}
	op := b.ConditionOperator
	if op == "" {
		op = b.ConditionType
	}
	value := b.ConditionValue
	if value == nil {
		value = b.Threshold
	}
	return scoring.BadgeRule{
		ID:          b.ID,
		Label:       b.Label,
		Icon:        b.Icon,
		Color:       b.Color,
		Description: b.Description,
		Metric:      metric,
		Operator:    op,
		Value:       value,
	}
}

// Gating controls payout eligibility after an employee goes inactive.
// A nil InactiveMonths means the default window.
type Gating struct {
	InactiveMonths *int `json:"inactive_months,omitempty" yaml:"inactive_months,omitempty" validate:"omitempty,gte=0,lte=120"`
}

// Window returns the grace window in months.
func (g Gating) Window() int {
	if g.InactiveMonths == nil {
		return DefaultInactiveMonths
	}
	return *g.InactiveMonths
}

// Gamification holds the badge catalogue.
type Gamification struct {
	Badges []BadgeDef `json:"badges" yaml:"badges" validate:"dive"`
}

// ReferralConfig is the Leaderboard_Referral document.
type ReferralConfig struct {
	DocMeta `yaml:",inline"`

	Gating       Gating        `json:"gating" yaml:"gating"`
	Gamification *Gamification `json:"gamification,omitempty" yaml:"gamification,omitempty"`
}

// =============================================================================
// LEADERBOARD (SCHEDULING + LEADERS)
// =============================================================================

// Range modes.
const (
	RangeSingle    = "single"
	RangeTwoMonths = "twomonths"
	RangeFY        = "fy"
)

// LeaderIdentities names the insurance and investment leaders. Employee
// IDs are matched first; the name patterns are a fallback.
type LeaderIdentities struct {
	InsEmployeeID string `json:"ins_employee_id,omitempty" yaml:"ins_employee_id,omitempty"`
	MFEmployeeID  string `json:"mf_employee_id,omitempty" yaml:"mf_employee_id,omitempty"`
	InsNameRegex  string `json:"ins_name_regex,omitempty" yaml:"ins_name_regex,omitempty"`
	MFNameRegex   string `json:"mf_name_regex,omitempty" yaml:"mf_name_regex,omitempty"`
}

// LeaderboardDefaults holds scheduling defaults.
type LeaderboardDefaults struct {
	RangeMode string `json:"range_mode" yaml:"range_mode" validate:"omitempty,oneof=single twomonths fy"`
}

// LeaderboardConfig is the Leaderboard_Schema document.
type LeaderboardConfig struct {
	DocMeta `yaml:",inline"`

	Defaults LeaderboardDefaults `json:"defaults" yaml:"defaults"`
	Leaders  LeaderIdentities    `json:"leaders" yaml:"leaders"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTierBounds(ts []TierThreshold) []scoring.TierBound {
	bounds := make([]scoring.TierBound, 0, len(ts))
	for _, t := range ts {
		floor := math.Inf(-1)
		if t.MinVal != nil {
			floor = *t.MinVal
		}
		bounds = append(bounds, scoring.TierBound{Tier: t.Tier, Min: floor})
	}
	return bounds
}

func fromTierBounds(bs []scoring.TierBound) []TierThreshold {
	out := make([]TierThreshold, 0, len(bs))
	for _, b := range bs {
		t := TierThreshold{Tier: b.Tier}
		if !math.IsInf(b.Min, -1) {
			v := b.Min
			t.MinVal = &v
		}
		out = append(out, t)
	}
	return out
}

func toSlabs(cs []SlabConfig) []scoring.Slab {
	slabs := make([]scoring.Slab, 0, len(cs))
	for _, c := range cs {
		slabs = append(slabs, scoring.Slab{
			Label:       c.Label,
			Min:         c.MinPoints,
			Max:         c.MaxPoints,
			FreshPct:    c.FreshPct,
			RenewPct:    c.RenewPct,
			BonusRupees: c.BonusRupees,
		})
	}
	return slabs
}

func fromSlabs(ss []scoring.Slab) []SlabConfig {
	out := make([]SlabConfig, 0, len(ss))
	for _, s := range ss {
		out = append(out, SlabConfig{
			Label:       s.Label,
			MinPoints:   s.Min,
			MaxPoints:   s.Max,
			FreshPct:    s.FreshPct,
			RenewPct:    s.RenewPct,
			BonusRupees: s.BonusRupees,
		})
	}
	return out
}
