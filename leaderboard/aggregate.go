/*
aggregate.go - Point Aggregator

PURPOSE:
  Turns one month of source records into one PointBundle per employee.
  Each bucket comes from exactly one collection:

    MF         MF scores (SIP + lumpsum points, SIP flows, AUM)
    Insurance  Policy conversions dated inside the month window
    Referral   Current + legacy referral tables, summed

  Lumpsum records only enrich the breakdown; they never change points.

GROUPING:
  Records are grouped by employee_id. A record with no employee_id is
  grouped by its own name instead. After identity resolution, bundles
  that resolve to the same display name are summed into one row, since
  the output tables are keyed by (rm_name, period_month).

FILTERS (applied after the union):
  - Empty resolved name: dropped
  - Directory says inactive AND has no HR employee code: dropped
  Unmatched employees are kept and treated as active.

SEE ALSO:
  - leaderboard/identity.go: Name chain and directory flags
  - leaderboard/public.go: Turns bundles into PublicLeaderboardRows
*/
package leaderboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/warp/incentive-engine/model"
)

// PointBundle is one employee's unioned points for a month.
type PointBundle struct {
	Key         string // grouping key, "id:<employee_id>" or "name:<lowercase name>"
	EmployeeID  string
	EmployeeIDs []string // every contributing employee_id, sorted
	RecordName string // first non-empty name carried by a score record
	Month      model.Month

	MFSIPPoints     float64
	MFLumpsumPoints float64
	MFStoredPoints  float64 // as stored on the MF row, before recombination
	InsPoints       float64
	RefPoints       float64

	SIP        model.SIPBreakdown
	Lumpsum    model.LumpsumBreakdown
	Insurance  model.InsuranceBreakdown
	HasLumpsum bool

	TeamID             string
	ReportingManagerID string

	Stamps SourceStamps

	// Set by identity resolution.
	RMName        string
	IsActive      bool
	InactiveSince *time.Time
}

// SourceStamps holds the latest updated_at per contributing source.
type SourceStamps struct {
	MF           *time.Time
	MFDocID      string
	Lumpsum      *time.Time
	LumpsumDocID string
	Ins          *time.Time
	Ref          *time.Time
}

// SourceCounts is the per-month volume read from each source.
type SourceCounts struct {
	Employees       int
	MF              int
	Lumpsum         int
	Policies        int
	Referrals       int
	LegacyReferrals int
}

// Aggregator computes PointBundles from the source collections.
type Aggregator struct {
	sources model.SourceReader
	logger  *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger discards output.
func NewAggregator(sources model.SourceReader, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{sources: sources, logger: logger}
}

// Aggregate returns the month's bundles sorted by resolved name.
func (a *Aggregator) Aggregate(ctx context.Context, m model.Month) ([]PointBundle, SourceCounts, error) {
	var counts SourceCounts
	if a.sources == nil {
		return nil, counts, model.ErrStoreRequired
	}

	emps, err := a.sources.ListEmployees(ctx)
	if err != nil {
		return nil, counts, fmt.Errorf("list employees: %w", err)
	}
	mf, err := a.sources.ListMFScores(ctx, m)
	if err != nil {
		return nil, counts, fmt.Errorf("list mf scores: %w", err)
	}
	lumpsum, err := a.sources.ListLumpsum(ctx, m)
	if err != nil {
		return nil, counts, fmt.Errorf("list lumpsum: %w", err)
	}
	start, end := m.Window()
	policies, err := a.sources.ListInsurancePolicies(ctx, start, end)
	if err != nil {
		return nil, counts, fmt.Errorf("list insurance policies: %w", err)
	}
	refs, err := a.sources.ListReferrals(ctx, m)
	if err != nil {
		return nil, counts, fmt.Errorf("list referrals: %w", err)
	}
	legacy, err := a.sources.ListLegacyReferrals(ctx, m)
	if err != nil {
		return nil, counts, fmt.Errorf("list legacy referrals: %w", err)
	}

	counts = SourceCounts{
		Employees:       len(emps),
		MF:              len(mf),
		Lumpsum:         len(lumpsum),
		Policies:        len(policies),
		Referrals:       len(refs),
		LegacyReferrals: len(legacy),
	}
	a.logger.Debug("source counts", "month", m.String(),
		"employees", counts.Employees, "mf", counts.MF, "lumpsum", counts.Lumpsum,
		"policies", counts.Policies, "referrals", counts.Referrals, "legacy_referrals", counts.LegacyReferrals)

	g := newGrouper(m)
	for _, r := range mf {
		g.addMF(r)
	}
	for _, p := range policies {
		if strings.TrimSpace(p.EmployeeID) == "" {
			continue
		}
		g.addPolicy(p)
	}
	for _, r := range refs {
		g.addReferral(r, r.Points)
	}
	for _, r := range legacy {
		g.addReferral(r, r.LegacyPoints())
	}
	g.enrichLumpsum(lumpsum)

	dir := newDirectory(emps)
	byName := make(map[string]*PointBundle)
	var names []string
	dropped := 0
	for _, key := range g.order {
		b := g.bundles[key]
		id := dir.resolve(b.EmployeeID, b.RecordName)
		if id.Name == "" || id.Skip {
			dropped++
			a.logger.Debug("dropped from board", "month", m.String(),
				"employee_id", b.EmployeeID, "skip_inactive_no_code", id.Skip)
			continue
		}
		b.RMName = id.Name
		b.IsActive = id.IsActive
		b.InactiveSince = id.InactiveSince

		if prev, ok := byName[b.RMName]; ok {
			a.logger.Warn("resolved name collision, summing", "month", m.String(),
				"rm_name", b.RMName, "employee_id", prev.EmployeeID, "other_employee_id", b.EmployeeID)
			mergeBundle(prev, b)
			continue
		}
		byName[b.RMName] = b
		names = append(names, b.RMName)
	}

	sort.Strings(names)
	out := make([]PointBundle, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}

	if dropped > 0 {
		a.logger.Info("rows excluded from board", "month", m.String(), "count", dropped)
	}
	return out, counts, nil
}

// =============================================================================
// GROUPING
// =============================================================================

type grouper struct {
	month   model.Month
	bundles map[string]*PointBundle
	order   []string
	mfAUM   map[string]stampedValue
}

type stampedValue struct {
	value float64
	at    *time.Time
}

func newGrouper(m model.Month) *grouper {
	return &grouper{
		month:   m,
		bundles: make(map[string]*PointBundle),
		mfAUM:   make(map[string]stampedValue),
	}
}

func groupKey(employeeID, name string) string {
	if id := strings.TrimSpace(employeeID); id != "" {
		return "id:" + id
	}
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func (g *grouper) bundle(employeeID, name string) *PointBundle {
	key := groupKey(employeeID, name)
	b, ok := g.bundles[key]
	if !ok {
		b = &PointBundle{Key: key, EmployeeID: strings.TrimSpace(employeeID), Month: g.month}
		if b.EmployeeID != "" {
			b.EmployeeIDs = []string{b.EmployeeID}
		}
		g.bundles[key] = b
		g.order = append(g.order, key)
	}
	if b.RecordName == "" && strings.TrimSpace(name) != "" {
		b.RecordName = strings.TrimSpace(name)
	}
	return b
}

func (g *grouper) addMF(r model.MFScore) {
	b := g.bundle(r.EmployeeID, r.RMName)
	b.MFSIPPoints += r.SIPPoints
	b.MFLumpsumPoints += r.LumpsumPoints
	b.MFStoredPoints += r.Points()
	b.SIP.GrossSIP += r.GrossSIP
	b.SIP.NetSIP += r.NetSIP
	b.SIP.CancelSIP += r.CancelSIP
	b.SIP.SWPAdjRegistration += r.SWPAdjRegistration
	b.SIP.SWPAdjCancellation += r.SWPAdjCancellation

	cur := g.mfAUM[b.Key]
	if next, ok := latest(cur, stampedValue{value: r.AUMStart, at: r.UpdatedAt}); ok {
		g.mfAUM[b.Key] = next
		b.SIP.AUMStart = next.value
	}

	if laterThan(r.UpdatedAt, b.Stamps.MF) {
		b.Stamps.MF = r.UpdatedAt
		b.Stamps.MFDocID = r.ID
	}
	b.TeamID = maxNonEmpty(b.TeamID, r.TeamID)
	b.ReportingManagerID = maxNonEmpty(b.ReportingManagerID, r.ReportingManagerID)
}

func (g *grouper) addPolicy(p model.InsurancePolicy) {
	b := g.bundle(p.EmployeeID, p.EmployeeName)
	b.InsPoints += p.Points()
	b.Insurance.PolicyCount++
	b.Insurance.FreshPremium += p.FreshPremiumEligible
	b.Insurance.RenewalPremium += p.RenewalPremium()
	if p.IsLost() {
		b.Insurance.RenewalLostPremium += p.ThisYearPremium
	}
	if laterThan(p.UpdatedAt, b.Stamps.Ins) {
		b.Stamps.Ins = p.UpdatedAt
	}
	b.TeamID = maxNonEmpty(b.TeamID, p.TeamID)
	b.ReportingManagerID = maxNonEmpty(b.ReportingManagerID, p.ReportingManagerID)
}

func (g *grouper) addReferral(r model.ReferralScore, points float64) {
	b := g.bundle(r.EmployeeID, r.Name())
	b.RefPoints += points
	if laterThan(r.UpdatedAt, b.Stamps.Ref) {
		b.Stamps.Ref = r.UpdatedAt
	}
}

// enrichLumpsum attaches the latest lumpsum record per employee to bundles
// that already exist. It never creates a bundle or touches points.
func (g *grouper) enrichLumpsum(records []model.LumpsumRecord) {
	chosen := make(map[string]model.LumpsumRecord)
	for _, r := range records {
		key := groupKey(r.EmployeeID, "")
		if strings.TrimSpace(r.EmployeeID) == "" {
			continue
		}
		prev, ok := chosen[key]
		if !ok {
			chosen[key] = r
			continue
		}
		if _, newer := latest(
			stampedValue{value: prev.AUMStart, at: prev.UpdatedAt},
			stampedValue{value: r.AUMStart, at: r.UpdatedAt},
		); newer {
			chosen[key] = r
		}
	}

	for key, r := range chosen {
		b, ok := g.bundles[key]
		if !ok {
			continue
		}
		b.HasLumpsum = true
		b.Lumpsum = model.LumpsumBreakdown{
			DocID:          r.ID,
			GrossPurchase:  r.TotalPurchase,
			Redemption:     r.Redemption,
			NetPurchase:    r.TotalPurchase - r.Redemption,
			SwitchIn:       r.SwitchIn(),
			SwitchOut:      r.SwitchOut(),
			COBIn:          r.COBIn(),
			COBOut:         r.COBOut(),
			FinalIncentive: r.FinalIncentive,
			AUMStart:       r.AUMStart,
		}
		b.Stamps.Lumpsum = r.UpdatedAt
		b.Stamps.LumpsumDocID = r.ID
	}
}

// mergeBundle folds src into dst for two bundles sharing a display name.
func mergeBundle(dst, src *PointBundle) {
	dst.EmployeeIDs = mergeIDs(dst.EmployeeIDs, src.EmployeeIDs)
	if dst.EmployeeID == "" {
		dst.EmployeeID = src.EmployeeID
	}

	dst.MFSIPPoints += src.MFSIPPoints
	dst.MFLumpsumPoints += src.MFLumpsumPoints
	dst.MFStoredPoints += src.MFStoredPoints
	dst.InsPoints += src.InsPoints
	dst.RefPoints += src.RefPoints

	dst.SIP.GrossSIP += src.SIP.GrossSIP
	dst.SIP.NetSIP += src.SIP.NetSIP
	dst.SIP.CancelSIP += src.SIP.CancelSIP
	dst.SIP.SWPAdjRegistration += src.SIP.SWPAdjRegistration
	dst.SIP.SWPAdjCancellation += src.SIP.SWPAdjCancellation
	dst.SIP.AUMStart += src.SIP.AUMStart

	dst.Insurance.PolicyCount += src.Insurance.PolicyCount
	dst.Insurance.FreshPremium += src.Insurance.FreshPremium
	dst.Insurance.RenewalPremium += src.Insurance.RenewalPremium
	dst.Insurance.RenewalLostPremium += src.Insurance.RenewalLostPremium

	if !dst.HasLumpsum && src.HasLumpsum {
		dst.HasLumpsum = true
		dst.Lumpsum = src.Lumpsum
		dst.Stamps.Lumpsum = src.Stamps.Lumpsum
		dst.Stamps.LumpsumDocID = src.Stamps.LumpsumDocID
	}
	if laterThan(src.Stamps.MF, dst.Stamps.MF) {
		dst.Stamps.MF = src.Stamps.MF
		dst.Stamps.MFDocID = src.Stamps.MFDocID
	}
	if laterThan(src.Stamps.Ins, dst.Stamps.Ins) {
		dst.Stamps.Ins = src.Stamps.Ins
	}
	if laterThan(src.Stamps.Ref, dst.Stamps.Ref) {
		dst.Stamps.Ref = src.Stamps.Ref
	}

	dst.TeamID = maxNonEmpty(dst.TeamID, src.TeamID)
	dst.ReportingManagerID = maxNonEmpty(dst.ReportingManagerID, src.ReportingManagerID)
	// One active contributor keeps the merged row active.
	if src.IsActive && !dst.IsActive {
		dst.IsActive = true
		dst.InactiveSince = nil
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// latest picks the newer snapshot; on equal or missing timestamps the
// larger value wins. The bool reports whether next was chosen.
func latest(cur, next stampedValue) (stampedValue, bool) {
	switch {
	case cur.at == nil && next.at == nil:
		if next.value > cur.value {
			return next, true
		}
	case cur.at == nil:
		return next, true
	case next.at == nil:
	case next.at.After(*cur.at):
		return next, true
	case next.at.Equal(*cur.at) && next.value > cur.value:
		return next, true
	}
	return cur, false
}

// mergeIDs returns the sorted union of a and b.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, id := range append(append([]string(nil), a...), b...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func laterThan(t, than *time.Time) bool {
	if t == nil {
		return false
	}
	return than == nil || t.After(*than)
}

func maxNonEmpty(a, b string) string {
	if b > a {
		return b
	}
	return a
}
