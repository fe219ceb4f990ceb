/*
records.go - Source records read by the engine

PURPOSE:
  Typed views of the upstream collections. Upstream scrapers and scorers
  populate these; the engine only reads them.

SOURCES:
  Employee         Directory entry (status, inactive_since)
  MFScore          One row per (employee, month): SIP + lumpsum points, AUM
  LumpsumRecord    One row per (employee, month): transaction breakdown, AUM
  InsurancePolicy  One row per policy conversion event
  ReferralScore    One row per (employee, month); two tables (current, legacy)
  LeaderBonus      Bonus points for a named leader, per bucket

SEE ALSO:
  - model/store.go: SourceReader interface
  - leaderboard/aggregate.go: Consumes these records
*/
package model

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

// Employee is a directory entry. ID is the key score records reference.
type Employee struct {
	ID       string `json:"id"`
	Code     string `json:"employee_code"` // HR "Employee ID"; blank for ghost mappings
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Status   string `json:"status"`

	// Historical schema variants each carry their own active flag.
	Active         bool `json:"active"`
	IsActive       bool `json:"is_active"`
	IsActiveLegacy bool `json:"is_active_legacy"`

	InactiveSince *time.Time `json:"inactive_since,omitempty"`
}

// ActiveFlag reports whether any schema variant marks the employee active.
func (e Employee) ActiveFlag() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "active") ||
		e.Active || e.IsActive || e.IsActiveLegacy
}

// MarkedInactive reports whether status is literally "inactive".
func (e Employee) MarkedInactive() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "inactive")
}

// Eligible reports payout eligibility for month m with a grace window of
// windowMonths after inactive_since. An inactive employee without an
// inactive_since date stays eligible.
func Eligible(active bool, inactiveSince *time.Time, m Month, windowMonths int) bool {
	if active || inactiveSince == nil {
		return true
	}
	since := inactiveSince.UTC()
	start := m.Start()
	return !start.Before(since) && start.Before(since.AddDate(0, windowMonths, 0))
}

// =============================================================================
// MUTUAL FUND
// =============================================================================

// MFScore is a per-employee monthly mutual fund score.
type MFScore struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	RMName     string `json:"rm_name"`
	Month      Month  `json:"period_month"`

	TotalPoints   *float64 `json:"total_points,omitempty"`
	SIPPoints     float64  `json:"sip_points"`
	LumpsumPoints float64  `json:"lumpsum_points"`

	GrossSIP           float64 `json:"gross_sip"`
	NetSIP             float64 `json:"net_sip"`
	CancelSIP          float64 `json:"cancel_sip"`
	SWPAdjRegistration float64 `json:"swp_adj_registration"`
	SWPAdjCancellation float64 `json:"swp_adj_cancellation"`
	AUMStart           float64 `json:"aum_start"`

	TeamID             string     `json:"team_id,omitempty"`
	ReportingManagerID string     `json:"reporting_manager_id,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// Points returns the stored combined points, else SIP plus lumpsum.
func (r MFScore) Points() float64 {
	if r.TotalPoints != nil {
		return *r.TotalPoints
	}
	return r.SIPPoints + r.LumpsumPoints
}

// LumpsumRecord carries lumpsum transaction categories for one employee-month.
// Category amounts are stored as weighted by the scorer; the normalized
// helpers below undo the weighting.
type LumpsumRecord struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Month      Month  `json:"period_month"`

	TotalPurchase float64 `json:"total_purchase"`
	Redemption    float64 `json:"redemption"`
	SwitchIn90    float64 `json:"switch_in_90"`
	SwitchIn100   float64 `json:"switch_in_100"`
	SwitchIn120   float64 `json:"switch_in_120"`
	SwitchOut100  float64 `json:"switch_out_100"`
	SwitchOut120  float64 `json:"switch_out_120"`
	COBIn50       float64 `json:"cob_in_50"`
	COBIn55       float64 `json:"cob_in_55"`
	COBOut120     float64 `json:"cob_out_120"`

	FinalIncentive float64    `json:"final_incentive"`
	AUMStart       float64    `json:"aum_start"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// SwitchIn sums the switch-in categories.
func (r LumpsumRecord) SwitchIn() float64 {
	return r.SwitchIn90 + r.SwitchIn100 + r.SwitchIn120
}

// SwitchOut sums the switch-out categories.
func (r LumpsumRecord) SwitchOut() float64 {
	return r.SwitchOut100 + r.SwitchOut120
}

// COBIn returns change-of-broker inflow divided back out of its weights.
func (r LumpsumRecord) COBIn() float64 {
	return r.COBIn50/0.5 + r.COBIn55/0.55
}

// COBOut returns change-of-broker outflow divided back out of its weight.
func (r LumpsumRecord) COBOut() float64 {
	return r.COBOut120 / 1.2
}

// =============================================================================
// INSURANCE
// =============================================================================

var lostStatusPattern = regexp.MustCompile(`(?i)lapsed|surrendered|cancelled|lost`)

// InsurancePolicy is one policy conversion event.
type InsurancePolicy struct {
	PolicyNumber   string    `json:"policy_number"`
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	ConversionDate time.Time `json:"conversion_date"`

	TotalPoints  *float64 `json:"total_points,omitempty"`
	PointsPolicy float64  `json:"points_policy"`

	ThisYearPremium      float64  `json:"this_year_premium"`
	FreshPremiumEligible float64  `json:"fresh_premium_eligible"`
	RenewalNoticePremium *float64 `json:"renewal_notice_premium,omitempty"`
	LastYearPremium      float64  `json:"last_year_premium"`

	PolicyClassification string `json:"policy_classification"`
	ConversionStatus     string `json:"conversion_status"`
	PolicyStatus         string `json:"policy_status"`

	TeamID             string     `json:"team_id,omitempty"`
	ReportingManagerID string     `json:"reporting_manager_id,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// Points returns total_points, falling back to points_policy.
func (p InsurancePolicy) Points() float64 {
	if p.TotalPoints != nil {
		return *p.TotalPoints
	}
	return p.PointsPolicy
}

// IsRenewal reports whether the policy counts as a renewal for payout.
func (p InsurancePolicy) IsRenewal() bool {
	class := strings.ToLower(strings.TrimSpace(p.PolicyClassification))
	if class == "renewal" || class == "renew" {
		return true
	}
	return strings.Contains(strings.ToLower(p.ConversionStatus), "renew")
}

// RenewalPayoutPremium is the premium a renewal pays out on.
func (p InsurancePolicy) RenewalPayoutPremium() float64 {
	if p.RenewalNoticePremium != nil {
		return *p.RenewalNoticePremium
	}
	return p.LastYearPremium
}

// RenewalPremium is the renewal share of this year's premium, as shown on the board.
func (p InsurancePolicy) RenewalPremium() float64 {
	return p.ThisYearPremium - p.FreshPremiumEligible
}

// IsLost reports whether the policy status marks the premium as lost.
func (p InsurancePolicy) IsLost() bool {
	return lostStatusPattern.MatchString(p.PolicyStatus)
}

// =============================================================================
// REFERRALS & LEADERS
// =============================================================================

// ReferralScore is a per-employee monthly referral total.
type ReferralScore struct {
	ID           string     `json:"id"`
	EmployeeID   string     `json:"employee_id"`
	EmployeeName string     `json:"employee_name"`
	RMName       string     `json:"rm_name"`
	Month        Month      `json:"period_month"`
	Points       float64    `json:"points"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Name returns employee_name, falling back to rm_name.
func (r ReferralScore) Name() string {
	if strings.TrimSpace(r.EmployeeName) != "" {
		return r.EmployeeName
	}
	return r.RMName
}

// LegacyPoints truncates points to an integer, as the legacy table stores them.
func (r ReferralScore) LegacyPoints() float64 {
	return math.Trunc(r.Points)
}

// LeaderBucket names the domain a leader bonus applies to.
type LeaderBucket string

const (
	LeaderBucketInsurance  LeaderBucket = "INS"
	LeaderBucketInvestment LeaderBucket = "INV"
)

// LeaderBonus is a bonus-points addend for a named leader.
type LeaderBonus struct {
	RMName      string       `json:"rm_name"`
	Month       Month        `json:"period_month"`
	Bucket      LeaderBucket `json:"bucket"`
	BonusPoints float64      `json:"leader_bonus_points"`
}
