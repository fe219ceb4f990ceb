package config

import (
	"time"

	"github.com/warp/incentive-engine/scoring"
)

// Default values used when a document or one of its keys is absent.
const (
	DefaultRangeMode      = RangeTwoMonths
	DefaultInactiveMonths = 6
	DefaultInsLeaderRegex = `(?i)^sumit\s+c`
	DefaultMFLeaderRegex  = `(?i)^sagar\s+maini`
	schemaVersion         = 1
)

func meta(d Domain, module string, now time.Time) DocMeta {
	return DocMeta{
		ID:            string(d),
		Module:        module,
		SchemaVersion: schemaVersion,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DefaultSIPConfig returns the seeded MF document (unified mode).
func DefaultSIPConfig(now time.Time) *SIPConfig {
	factors := scoring.DefaultTierFactors()
	lumpFactors := scoring.DefaultTierFactors()
	return &SIPConfig{
		DocMeta:               meta(DomainSIP, "SIP", now),
		ScoringMode:           string(scoring.ModeUnified),
		TierThresholds:        fromTierBounds(scoring.DefaultTierBounds()),
		TierFactors:           factors,
		LumpsumTierThresholds: fromTierBounds(scoring.DefaultTierBounds()),
		LumpsumTierFactors:    lumpFactors,
	}
}

// DefaultInsuranceConfig returns the seeded slab document.
func DefaultInsuranceConfig(now time.Time) *InsuranceConfig {
	return &InsuranceConfig{
		DocMeta: meta(DomainInsurance, "Insurance", now),
		Slabs:   fromSlabs(scoring.DefaultSlabs()),
	}
}

// DefaultBadges returns the seeded badge catalogue.
func DefaultBadges() []BadgeDef {
	return []BadgeDef{
		{ID: "referral_novice", Label: "Referral Novice", Icon: "UserPlus", Color: "orange",
			Description: "First successful referral!", ConditionType: "min_points", ConditionField: "ref_points", Threshold: 1.0},
		{ID: "referral_pro", Label: "Referral Pro", Icon: "Users", Color: "orange",
			Description: "Consistent referrer.", ConditionType: "min_points", ConditionField: "ref_points", Threshold: 100.0},
		{ID: "insurance_titan", Label: "Insurance Titan", Icon: "ShieldCheck", Color: "purple",
			Description: "Achieved the highest insurance slab.", ConditionType: "min_points", ConditionField: "ins_points_effective", Threshold: 2500.0},
		{ID: "sip_master", Label: "SIP Master", Icon: "TrendingUp", Color: "blue",
			Description: "Top tier SIP performance.", ConditionType: "equals", ConditionField: "mf_sip_tier", Threshold: "T6"},
		{ID: "club_500", Label: "Club 500", Icon: "Award", Color: "yellow",
			Description: "Earned 500+ total points in a month.", ConditionType: "min_points", ConditionField: "total_effective_points", Threshold: 500.0},
		{ID: "shield", Label: "Shield", Icon: "Shield", Color: "green",
			Description: "10 or more active policies.", ConditionOperator: "gte", ConditionMetric: "policies_active", ConditionValue: 10.0},
		{ID: "star", Label: "Star", Icon: "Star", Color: "yellow",
			Description: "1000+ total points.", ConditionOperator: "gte", ConditionMetric: "total_points", ConditionValue: 1000.0},
		{ID: "trophy", Label: "Trophy", Icon: "Trophy", Color: "gold",
			Description: "Consistency score of 90 or more.", ConditionOperator: "gte", ConditionMetric: "consistency_score", ConditionValue: 90.0},
	}
}

// DefaultReferralConfig returns the seeded referral document.
func DefaultReferralConfig(now time.Time) *ReferralConfig {
	window := DefaultInactiveMonths
	return &ReferralConfig{
		DocMeta:      meta(DomainReferral, "Referral", now),
		Gating:       Gating{InactiveMonths: &window},
		Gamification: &Gamification{Badges: DefaultBadges()},
	}
}

// DefaultLeaderboardConfig returns the seeded scheduling document.
func DefaultLeaderboardConfig(now time.Time) *LeaderboardConfig {
	return &LeaderboardConfig{
		DocMeta:  meta(DomainLeaderboard, "Leaderboard", now),
		Defaults: LeaderboardDefaults{RangeMode: DefaultRangeMode},
		Leaders: LeaderIdentities{
			InsNameRegex: DefaultInsLeaderRegex,
			MFNameRegex:  DefaultMFLeaderRegex,
		},
	}
}

// defaultFor returns a fresh default document for d.
func defaultFor(d Domain, now time.Time) Document {
	switch d {
	case DomainSIP:
		return DefaultSIPConfig(now)
	case DomainInsurance:
		return DefaultInsuranceConfig(now)
	case DomainReferral:
		return DefaultReferralConfig(now)
	default:
		return DefaultLeaderboardConfig(now)
	}
}

// emptyFor returns a zero document to decode d into.
func emptyFor(d Domain) Document {
	switch d {
	case DomainSIP:
		return &SIPConfig{}
	case DomainInsurance:
		return &InsuranceConfig{}
	case DomainReferral:
		return &ReferralConfig{}
	default:
		return &LeaderboardConfig{}
	}
}
