package config

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/scoring"
)

// =============================================================================
// SNAPSHOT - compiled configuration for one run
// =============================================================================

// Leaders is the compiled leader identity matcher.
type Leaders struct {
	InsEmployeeID string
	MFEmployeeID  string
	InsName       *regexp.Regexp // nil disables the name fallback
	MFName        *regexp.Regexp
}

// IsInsuranceLeader reports whether the employee is the insurance leader.
// An ID match short-circuits the name pattern.
func (l Leaders) IsInsuranceLeader(employeeID, rmName string) bool {
	return matchLeader(l.InsEmployeeID, l.InsName, employeeID, rmName)
}

// IsInvestmentLeader reports whether the employee is the investment leader.
func (l Leaders) IsInvestmentLeader(employeeID, rmName string) bool {
	return matchLeader(l.MFEmployeeID, l.MFName, employeeID, rmName)
}

func matchLeader(id string, pattern *regexp.Regexp, employeeID, rmName string) bool {
	if id != "" && employeeID == id {
		return true
	}
	return pattern != nil && pattern.MatchString(strings.ToLower(rmName))
}

// Snapshot is a consistent, compiled view of every scoring document.
type Snapshot struct {
	ScoringMode    scoring.Mode
	MF             scoring.MFScorer
	SIPTable       scoring.TierTable
	LumpsumTable   scoring.TierTable
	Slabs          scoring.SlabTable
	Badges         []scoring.BadgeRule
	InactiveMonths int
	RangeMode      string
	Leaders        Leaders

	// Source documents, for export and audit.
	SIP         *SIPConfig
	Insurance   *InsuranceConfig
	Referral    *ReferralConfig
	Leaderboard *LeaderboardConfig
}

// Snapshot loads every document and compiles it. Absent keys fall back to
// defaults key by key.
func (r *Resolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	sip, err := r.LoadSIP(ctx)
	if err != nil {
		return nil, err
	}
	ins, err := r.LoadInsurance(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := r.LoadReferral(ctx)
	if err != nil {
		return nil, err
	}
	lb, err := r.LoadLeaderboard(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{SIP: sip, Insurance: ins, Referral: ref, Leaderboard: lb}

	mode, err := scoring.ParseMode(sip.ScoringMode)
	if err != nil {
		return nil, &model.ConfigValidationError{DocID: sip.ID, Fields: []string{err.Error()}}
	}
	snap.ScoringMode = mode
	snap.SIPTable = tierTable(sip.TierThresholds, sip.TierFactors)
	snap.LumpsumTable = snap.SIPTable
	if mode == scoring.ModeIndividual {
		snap.LumpsumTable = tierTable(sip.LumpsumTierThresholds, sip.LumpsumTierFactors)
	}
	if err := snap.SIPTable.CheckMonotonic(); err != nil {
		r.logger.Warn("non-monotonic tier table", "error", err)
	}
	if mode == scoring.ModeIndividual {
		if err := snap.LumpsumTable.CheckMonotonic(); err != nil {
			r.logger.Warn("non-monotonic lumpsum tier table", "error", err)
		}
	}
	if snap.MF, err = scoring.NewMFScorer(mode, snap.SIPTable, snap.LumpsumTable); err != nil {
		return nil, err
	}

	if len(ins.Slabs) > 0 {
		snap.Slabs = scoring.NewSlabTable(toSlabs(ins.Slabs))
	} else {
		snap.Slabs = scoring.DefaultSlabTable()
	}

	badges := DefaultBadges()
	if ref.Gamification != nil {
		badges = ref.Gamification.Badges
	}
	for _, b := range badges {
		snap.Badges = append(snap.Badges, b.Rule())
	}
	snap.InactiveMonths = ref.Gating.Window()

	snap.RangeMode = lb.Defaults.RangeMode
	if snap.RangeMode == "" {
		snap.RangeMode = DefaultRangeMode
	}

	leaders, err := r.compileLeaders(lb.Leaders)
	if err != nil {
		return nil, &model.ConfigValidationError{DocID: lb.ID, Fields: []string{err.Error()}}
	}
	snap.Leaders = leaders

	return snap, nil
}

func tierTable(ts []TierThreshold, factors map[string]float64) scoring.TierTable {
	bounds := scoring.DefaultTierBounds()
	if len(ts) > 0 {
		bounds = toTierBounds(ts)
	}
	if factors == nil {
		factors = scoring.DefaultTierFactors()
	}
	return scoring.NewTierTable(bounds, factors)
}

// compileLeaders merges overrides over the stored identities and compiles
// the name patterns.
func (r *Resolver) compileLeaders(stored LeaderIdentities) (Leaders, error) {
	ids := stored
	if ids.InsNameRegex == "" {
		ids.InsNameRegex = DefaultInsLeaderRegex
	}
	if ids.MFNameRegex == "" {
		ids.MFNameRegex = DefaultMFLeaderRegex
	}
	if r.leaders.InsEmployeeID != "" {
		ids.InsEmployeeID = r.leaders.InsEmployeeID
	}
	if r.leaders.MFEmployeeID != "" {
		ids.MFEmployeeID = r.leaders.MFEmployeeID
	}
	if r.leaders.InsNameRegex != "" {
		ids.InsNameRegex = r.leaders.InsNameRegex
	}
	if r.leaders.MFNameRegex != "" {
		ids.MFNameRegex = r.leaders.MFNameRegex
	}

	ins, err := regexp.Compile(ids.InsNameRegex)
	if err != nil {
		return Leaders{}, fmt.Errorf("ins leader pattern: %w", err)
	}
	mf, err := regexp.Compile(ids.MFNameRegex)
	if err != nil {
		return Leaders{}, fmt.Errorf("mf leader pattern: %w", err)
	}
	return Leaders{
		InsEmployeeID: ids.InsEmployeeID,
		MFEmployeeID:  ids.MFEmployeeID,
		InsName:       ins,
		MFName:        mf,
	}, nil
}
