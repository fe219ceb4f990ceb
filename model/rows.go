/*
rows.go - Output documents

PURPOSE:
  The two tables the engine writes. Both are keyed by (rm_name,
  period_month) and are replaced wholesale on every run.

  PublicLeaderboardRow  Point facts per employee-month
  RupeeIncentiveRow     Money derived from a PublicLeaderboardRow (1:1)

INVARIANTS:
  total_points_public = mf_points + ins_points + ref_points
  mf_points           = mf_sip_points + mf_lumpsum_points
  total_incentive     = ins_rupees_total + mf_rupees + ref_rupees

SEE ALSO:
  - leaderboard/public.go: Builds PublicLeaderboardRow
  - leaderboard/incentive.go: Builds RupeeIncentiveRow
*/
package model

import "time"

// RowKey is the unique key of both output tables.
type RowKey struct {
	RMName string
	Month  Month
}

func (k RowKey) String() string {
	return k.RMName + "/" + k.Month.String()
}

// Provenance labels for the public board audit block.
const (
	SourceMF        = "MF_SIP_Leaderboard"
	SourceLumpsum   = "Leaderboard_Lumpsum"
	SourceInsurance = "Insurance_Policy_Scoring"
	SourceReferral  = "referralLeaderboard"
	SourceFallback  = "System Fallback"
)

// =============================================================================
// PUBLIC LEADERBOARD
// =============================================================================

// PublicLeaderboardRow is one employee's point facts for a month.
type PublicLeaderboardRow struct {
	RMName        string     `json:"rm_name"`
	PeriodMonth   Month      `json:"period_month"`
	EmployeeID    string     `json:"employee_id"`
	IsActive      bool       `json:"is_active"`
	InactiveSince *time.Time `json:"inactive_since,omitempty"`

	MFPoints          float64 `json:"mf_points"`
	MFSIPPoints       float64 `json:"mf_sip_points"`
	MFLumpsumPoints   float64 `json:"mf_lumpsum_points"`
	InsPoints         float64 `json:"ins_points"`
	RefPoints         float64 `json:"ref_points"`
	TotalPointsPublic float64 `json:"total_points_public"`

	TeamID             string `json:"team_id,omitempty"`
	ReportingManagerID string `json:"reporting_manager_id,omitempty"`

	SIP       SIPBreakdown       `json:"sip"`
	Lumpsum   LumpsumBreakdown   `json:"lumpsum"`
	Insurance InsuranceBreakdown `json:"insurance"`

	UpdatedAt      *time.Time  `json:"updated_at,omitempty"`
	UpdatedAtAudit string      `json:"updated_at_audit"`
	Audit          PublicAudit `json:"audit"`
}

// Key returns the row's unique key.
func (r PublicLeaderboardRow) Key() RowKey {
	return RowKey{RMName: r.RMName, Month: r.PeriodMonth}
}

// SIPBreakdown passes SIP flows through from the MF score row.
type SIPBreakdown struct {
	GrossSIP           float64 `json:"gross_sip"`
	NetSIP             float64 `json:"net_sip"`
	CancelSIP          float64 `json:"cancel_sip"`
	SWPAdjRegistration float64 `json:"swp_adj_registration"`
	SWPAdjCancellation float64 `json:"swp_adj_cancellation"`
	AUMStart           float64 `json:"aum_start"`
}

// LumpsumBreakdown is the normalized lumpsum enrichment.
type LumpsumBreakdown struct {
	DocID          string  `json:"doc_id,omitempty"`
	GrossPurchase  float64 `json:"gross_purchase"`
	Redemption     float64 `json:"redemption"`
	NetPurchase    float64 `json:"net_purchase"`
	SwitchIn       float64 `json:"switch_in"`
	SwitchOut      float64 `json:"switch_out"`
	COBIn          float64 `json:"cob_in"`
	COBOut         float64 `json:"cob_out"`
	FinalIncentive float64 `json:"final_incentive"`
	AUMStart       float64 `json:"aum_start"`
}

// InsuranceBreakdown summarizes the month's policy conversions.
type InsuranceBreakdown struct {
	PolicyCount        int     `json:"policy_count"`
	FreshPremium       float64 `json:"fresh_premium"`
	RenewalPremium     float64 `json:"renewal_premium"`
	RenewalLostPremium float64 `json:"renewal_lost_premium"`
}

// PublicAudit records where each number came from. EmployeeIDs lists
// every employee_id merged into the row when several resolve to the same
// name.
type PublicAudit struct {
	Buckets      BucketAudit  `json:"buckets"`
	Sources      SourceAudit  `json:"sources"`
	LatestSource LatestSource `json:"latest_source"`
	EmployeeIDs  []string     `json:"employee_ids,omitempty"`
}

// BucketAudit repeats the bucket totals used for total_points_public.
type BucketAudit struct {
	MF    float64 `json:"mf"`
	Ins   float64 `json:"ins"`
	Ref   float64 `json:"ref"`
	Total float64 `json:"total"`
}

// SourceAudit names the collection behind each bucket.
type SourceAudit struct {
	MF      string `json:"mf"`
	Lumpsum string `json:"lumpsum"`
	Ins     string `json:"ins"`
	Ref     string `json:"ref"`
}

// LatestSource identifies the most recently updated contributing document.
type LatestSource struct {
	Collection string `json:"collection"`
	DocID      string `json:"doc_id,omitempty"`
}

// =============================================================================
// RUPEE INCENTIVES
// =============================================================================

// RupeeIncentiveRow is the money computed on top of a public board row.
type RupeeIncentiveRow struct {
	RMName      string `json:"rm_name"`
	PeriodMonth Month  `json:"period_month"`
	EmployeeID  string `json:"employee_id"`
	IsActive    bool   `json:"is_active"`
	Eligible    bool   `json:"eligible"`

	MFPoints          float64 `json:"mf_points"`
	MFSIPPoints       float64 `json:"mf_sip_points"`
	MFLumpsumPoints   float64 `json:"mf_lumpsum_points"`
	InsPoints         float64 `json:"ins_points"`
	RefPoints         float64 `json:"ref_points"`
	TotalPointsPublic float64 `json:"total_points_public"`

	LeaderInsPoints    float64 `json:"leader_ins_points"`
	LeaderInvPoints    float64 `json:"leader_inv_points"`
	InsLeaderApplied   bool    `json:"ins_leader_applied"`
	MFLeaderApplied    bool    `json:"mf_leader_applied"`
	InsPointsEffective float64 `json:"ins_points_effective"`
	MFPointsEffective  float64 `json:"mf_points_effective"`

	AUMFirst      float64 `json:"aum_first"`
	LumpAUM       float64 `json:"lump_aum"`
	SIPAUMDerived float64 `json:"sip_aum_derived"`

	ScoringMode     string  `json:"scoring_mode"`
	MFTier          string  `json:"mf_tier"`
	MFSIPTier       string  `json:"mf_sip_tier"`
	MFLumpTier      string  `json:"mf_lump_tier"`
	MFFactor        float64 `json:"mf_factor"`
	MFSIPFactor     float64 `json:"mf_sip_factor"`
	MFLumpsumFactor float64 `json:"mf_lumpsum_factor"`
	MFSIPRupees     float64 `json:"mf_sip_rupees"`
	MFLumpsumRupees float64 `json:"mf_lumpsum_rupees"`
	MFRupees        float64 `json:"mf_rupees"`

	InsSlabLabel       string  `json:"ins_slab_label"`
	InsFreshPct        float64 `json:"ins_fresh_pct"`
	InsRenewPct        float64 `json:"ins_renew_pct"`
	InsBonusRupees     float64 `json:"ins_bonus_rupees"`
	FreshPremium       float64 `json:"fresh_premium"`
	RenewPremium       float64 `json:"renew_premium"`
	InsRupeesFromFresh float64 `json:"ins_rupees_from_fresh"`
	InsRupeesFromRenew float64 `json:"ins_rupees_from_renew"`
	InsRupeesTotal     float64 `json:"ins_rupees_total"`

	RefRupees      float64 `json:"ref_rupees"`
	TotalIncentive float64 `json:"total_incentive"`

	Badges []EarnedBadge  `json:"badges"`
	Audit  IncentiveAudit `json:"audit"`
}

// Key returns the row's unique key.
func (r RupeeIncentiveRow) Key() RowKey {
	return RowKey{RMName: r.RMName, Month: r.PeriodMonth}
}

// EarnedBadge is a badge whose condition held for the row.
type EarnedBadge struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// IncentiveAudit records the lookups behind the payout.
type IncentiveAudit struct {
	Tier          string   `json:"tier"`
	Rate          float64  `json:"rate"`
	InsSlab       string   `json:"ins_slab"`
	ScoringMode   string   `json:"scoring_mode"`
	UnifiedLogic  bool     `json:"unified_logic"`
	Eligible      bool     `json:"eligible"`
	UngatedTotal  float64  `json:"ungated_total"`
	SkippedBadges []string `json:"skipped_badges,omitempty"`
}
