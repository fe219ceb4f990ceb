/*
incentive.go - Rupee Incentive Calculator

PURPOSE:
  Derives one RupeeIncentiveRow from every PublicLeaderboardRow of a
  month. The public board is the spine: this is a join, never a filter.

STEPS PER ROW:
  1. AUM lookup        Latest MF AUM and lumpsum AUM for the employee;
                       sip_aum = max(0, total - lumpsum)
  2. Leader bonus      INS/INV bonus points added once when the employee
                       is the configured leader (ID first, name pattern
                       as fallback)
  3. Insurance slab    Slab for effective insurance points; payout on
                       the month's fresh and renewal premiums
  4. MF payout         Mode-specific scorer chosen once per run
  5. Referral payout   Always 0 (referrals are non-monetary)
  6. Badges            Rules over the row's metrics; unsupported
                       metrics are skipped and reported
  7. Total             ins_rupees_total + mf_rupees + ref_rupees

ELIGIBILITY:
  Ineligible rows keep every label and badge but the three payout
  streams are zeroed. audit.ungated_total records what would have been
  paid.

SEE ALSO:
  - scoring/: Tier, slab, mode, badge and rounding primitives
  - config/snapshot.go: Compiled configuration used here
*/
package leaderboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/scoring"
)

// IncentiveInputs are the per-month lookups the calculator joins against.
type IncentiveInputs struct {
	MFAUM      map[string]float64 // by employee_id
	LumpsumAUM map[string]float64 // by employee_id
	LeaderIns  map[string]float64 // by rm_name
	LeaderInv  map[string]float64 // by rm_name
	Premiums   map[string]Premiums
}

// Premiums is an employee's payout premium split for the month.
type Premiums struct {
	Fresh float64
	Renew float64
}

// Calculator builds rupee incentive rows.
type Calculator struct {
	sources model.SourceReader
	logger  *slog.Logger
}

// NewCalculator creates a calculator. A nil logger discards output.
func NewCalculator(sources model.SourceReader, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Calculator{sources: sources, logger: logger}
}

// LoadInputs reads the AUM, leader and policy lookups for month m.
func (c *Calculator) LoadInputs(ctx context.Context, m model.Month) (IncentiveInputs, error) {
	in := IncentiveInputs{
		MFAUM:      make(map[string]float64),
		LumpsumAUM: make(map[string]float64),
		LeaderIns:  make(map[string]float64),
		LeaderInv:  make(map[string]float64),
		Premiums:   make(map[string]Premiums),
	}
	if c.sources == nil {
		return in, model.ErrStoreRequired
	}

	mf, err := c.sources.ListMFScores(ctx, m)
	if err != nil {
		return in, fmt.Errorf("list mf scores: %w", err)
	}
	mfSeen := make(map[string]stampedValue)
	for _, r := range mf {
		id := strings.TrimSpace(r.EmployeeID)
		if id == "" {
			continue
		}
		if next, ok := latest(mfSeen[id], stampedValue{value: r.AUMStart, at: r.UpdatedAt}); ok {
			mfSeen[id] = next
			in.MFAUM[id] = next.value
		}
	}

	lumpsum, err := c.sources.ListLumpsum(ctx, m)
	if err != nil {
		return in, fmt.Errorf("list lumpsum: %w", err)
	}
	lsSeen := make(map[string]stampedValue)
	for _, r := range lumpsum {
		id := strings.TrimSpace(r.EmployeeID)
		if id == "" {
			continue
		}
		if next, ok := latest(lsSeen[id], stampedValue{value: r.AUMStart, at: r.UpdatedAt}); ok {
			lsSeen[id] = next
			in.LumpsumAUM[id] = next.value
		}
	}

	leaders, err := c.sources.ListLeaderBonuses(ctx, m)
	if err != nil {
		return in, fmt.Errorf("list leader bonuses: %w", err)
	}
	for _, l := range leaders {
		switch l.Bucket {
		case model.LeaderBucketInsurance:
			in.LeaderIns[l.RMName] += l.BonusPoints
		case model.LeaderBucketInvestment:
			in.LeaderInv[l.RMName] += l.BonusPoints
		}
	}

	start, end := m.Window()
	policies, err := c.sources.ListInsurancePolicies(ctx, start, end)
	if err != nil {
		return in, fmt.Errorf("list insurance policies: %w", err)
	}
	for _, p := range policies {
		id := strings.TrimSpace(p.EmployeeID)
		if id == "" {
			continue
		}
		prem := in.Premiums[id]
		if p.IsRenewal() {
			prem.Renew += p.RenewalPayoutPremium()
		} else {
			prem.Fresh += p.ThisYearPremium
		}
		in.Premiums[id] = prem
	}

	return in, nil
}

// Build computes one incentive row per public row. Skipped badge rules are
// returned once per badge id.
func (c *Calculator) Build(
	ctx context.Context,
	m model.Month,
	rows []model.PublicLeaderboardRow,
	snap *config.Snapshot,
) ([]model.RupeeIncentiveRow, []scoring.SkippedBadge, error) {
	in, err := c.LoadInputs(ctx, m)
	if err != nil {
		return nil, nil, err
	}

	out := make([]model.RupeeIncentiveRow, 0, len(rows))
	skippedByID := make(map[string]scoring.SkippedBadge)
	for _, row := range rows {
		inc, skipped := ComputeIncentive(m, row, in, snap)
		for _, s := range skipped {
			skippedByID[s.ID] = s
		}
		out = append(out, inc)
	}

	skipped := make([]scoring.SkippedBadge, 0, len(skippedByID))
	for _, s := range skippedByID {
		skipped = append(skipped, s)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].ID < skipped[j].ID })
	for _, s := range skipped {
		c.logger.Warn("badge skipped", "month", m.String(), "badge", s.ID, "metric", s.Metric, "error", s.Err)
	}
	return out, skipped, nil
}

// ComputeIncentive is the pure per-row calculation.
func ComputeIncentive(
	m model.Month,
	row model.PublicLeaderboardRow,
	in IncentiveInputs,
	snap *config.Snapshot,
) (model.RupeeIncentiveRow, []scoring.SkippedBadge) {
	inc := model.RupeeIncentiveRow{
		RMName:            row.RMName,
		PeriodMonth:       m,
		EmployeeID:        row.EmployeeID,
		IsActive:          row.IsActive,
		MFPoints:          row.MFPoints,
		MFSIPPoints:       row.MFSIPPoints,
		MFLumpsumPoints:   row.MFLumpsumPoints,
		InsPoints:         row.InsPoints,
		RefPoints:         row.RefPoints,
		TotalPointsPublic: row.TotalPointsPublic,
		ScoringMode:       string(snap.MF.Mode()),
	}

	// 1. AUM, summed over every employee merged into the row
	ids := contributingIDs(row)
	var prem Premiums
	for _, id := range ids {
		inc.AUMFirst += in.MFAUM[id]
		inc.LumpAUM += in.LumpsumAUM[id]
		p := in.Premiums[id]
		prem.Fresh += p.Fresh
		prem.Renew += p.Renew
	}
	inc.SIPAUMDerived = scoring.SIPAUM(inc.AUMFirst, inc.LumpAUM)

	// 2. Leader bonus
	inc.LeaderInsPoints = in.LeaderIns[row.RMName]
	inc.LeaderInvPoints = in.LeaderInv[row.RMName]
	inc.InsPointsEffective = row.InsPoints
	inc.MFPointsEffective = row.MFPoints
	if anyLeader(ids, row.RMName, snap.Leaders.IsInsuranceLeader) {
		inc.InsLeaderApplied = true
		inc.InsPointsEffective += inc.LeaderInsPoints
	}
	if anyLeader(ids, row.RMName, snap.Leaders.IsInvestmentLeader) {
		inc.MFLeaderApplied = true
		inc.MFPointsEffective += inc.LeaderInvPoints
	}

	// 3. Insurance slab
	slab := snap.Slabs.SlabFor(inc.InsPointsEffective)
	pay := slab.Payout(prem.Fresh, prem.Renew)
	inc.InsSlabLabel = slab.Label
	inc.InsFreshPct = slab.FreshPct
	inc.InsRenewPct = slab.RenewPct
	inc.InsBonusRupees = slab.BonusRupees
	inc.FreshPremium = scoring.Round2(prem.Fresh)
	inc.RenewPremium = scoring.Round2(prem.Renew)
	inc.InsRupeesFromFresh = pay.FromFresh
	inc.InsRupeesFromRenew = pay.FromRenew
	inc.InsRupeesTotal = pay.Total

	// 4. MF tier and payout
	mf := snap.MF.Score(scoring.MFInput{
		EffectivePoints: inc.MFPointsEffective,
		SIPPoints:       row.MFSIPPoints,
		LumpsumPoints:   row.MFLumpsumPoints,
		TotalAUM:        inc.AUMFirst,
		LumpsumAUM:      inc.LumpAUM,
		SIPAUM:          inc.SIPAUMDerived,
	})
	inc.MFTier = mf.Tier
	inc.MFFactor = mf.Factor
	inc.MFSIPTier = mf.SIPTier
	inc.MFSIPFactor = mf.SIPFactor
	inc.MFLumpTier = mf.LumpTier
	inc.MFLumpsumFactor = mf.LumpFactor
	inc.MFSIPRupees = mf.SIPRupees
	inc.MFLumpsumRupees = mf.LumpRupees
	inc.MFRupees = mf.Rupees

	// 5. Referral
	inc.RefRupees = 0

	// 6. Badges
	badges, skipped := scoring.EvaluateBadges(snap.Badges, scoring.BadgeMetrics{
		RefPoints:          row.RefPoints,
		InsPointsEffective: inc.InsPointsEffective,
		MFPointsEffective:  inc.MFPointsEffective,
		MFSIPTier:          mf.SIPTier,
		SIPTiers:           snap.SIPTable,
	})
	inc.Badges = badges

	// 7. Total, gated by eligibility
	ungated := scoring.Sum2(inc.InsRupeesTotal, inc.MFRupees, inc.RefRupees)
	inc.Eligible = model.Eligible(row.IsActive, row.InactiveSince, m, snap.InactiveMonths)
	if !inc.Eligible {
		inc.InsRupeesTotal = 0
		inc.MFRupees = 0
		inc.RefRupees = 0
	}
	inc.TotalIncentive = scoring.Sum2(inc.InsRupeesTotal, inc.MFRupees, inc.RefRupees)

	inc.Audit = model.IncentiveAudit{
		Tier:         mf.Tier,
		Rate:         mf.Factor,
		InsSlab:      slab.Label,
		ScoringMode:  string(snap.MF.Mode()),
		UnifiedLogic: snap.MF.Mode() == scoring.ModeUnified,
		Eligible:     inc.Eligible,
		UngatedTotal: ungated,
	}
	for _, s := range skipped {
		inc.Audit.SkippedBadges = append(inc.Audit.SkippedBadges, s.ID)
	}
	return inc, skipped
}

// contributingIDs returns the employee ids a public row was built from.
// Rows written before the audit carried the list fall back to EmployeeID.
func contributingIDs(row model.PublicLeaderboardRow) []string {
	if len(row.Audit.EmployeeIDs) > 0 {
		return row.Audit.EmployeeIDs
	}
	if id := strings.TrimSpace(row.EmployeeID); id != "" {
		return []string{id}
	}
	return nil
}

// anyLeader applies a leader rule once for the row, whichever of its
// employee ids matches.
func anyLeader(ids []string, rmName string, match func(employeeID, rmName string) bool) bool {
	if len(ids) == 0 {
		return match("", rmName)
	}
	for _, id := range ids {
		if match(id, rmName) {
			return true
		}
	}
	return false
}
