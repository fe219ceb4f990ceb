package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/store/memory"
)

var nov2025 = model.MustParseMonth("2025-11")

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func f(v float64) *float64 { return &v }

func bundlesByName(t *testing.T, st *memory.Store, m model.Month) map[string]PointBundle {
	t.Helper()
	bundles, _, err := NewAggregator(st, nil).Aggregate(context.Background(), m)
	require.NoError(t, err)
	out := make(map[string]PointBundle, len(bundles))
	for _, b := range bundles {
		out[b.RMName] = b
	}
	return out
}

func TestAggregate_NameResolutionChain(t *testing.T) {
	// GIVEN: Four MF rows exercising each step of the name chain
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "1", FullName: "Directory Full", Status: "active"}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E2", Code: "2", FullName: "Second Full", Status: "active"}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E3", Code: "3", Name: "Alt Name", Status: "active"}))

	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E1", RMName: "Record Name", Month: nov2025, SIPPoints: 1}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E2", Month: nov2025, SIPPoints: 2}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E3", Month: nov2025, SIPPoints: 3}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E4", Month: nov2025, SIPPoints: 4}))

	// WHEN: Aggregating
	got := bundlesByName(t, st, nov2025)

	// THEN: Record name > full name > alternate name > Unmapped-<id>
	require.Len(t, got, 4)
	assert.Equal(t, "E1", got["Record Name"].EmployeeID)
	assert.Equal(t, "E2", got["Second Full"].EmployeeID)
	assert.Equal(t, "E3", got["Alt Name"].EmployeeID)
	assert.Equal(t, "E4", got["Unmapped-E4"].EmployeeID)
	assert.True(t, got["Unmapped-E4"].IsActive, "unmatched employees are active")
}

func TestAggregate_SkipsInactiveWithoutEmployeeCode(t *testing.T) {
	// GIVEN: Two inactive directory entries, one without an HR code
	st := memory.New()
	ctx := context.Background()
	since := at("2025-09-01T00:00:00Z")
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "", FullName: "Ghost", Status: "inactive", InactiveSince: since}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E2", Code: "EMP-2", FullName: "Departed", Status: "Inactive", InactiveSince: since}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E1", Month: nov2025, SIPPoints: 100}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E2", Month: nov2025, SIPPoints: 100}))

	// WHEN: Aggregating
	got := bundlesByName(t, st, nov2025)

	// THEN: Only the entry with a code survives, marked inactive
	require.Len(t, got, 1)
	departed, ok := got["Departed"]
	require.True(t, ok)
	assert.False(t, departed.IsActive)
	require.NotNil(t, departed.InactiveSince)
	assert.True(t, since.Equal(*departed.InactiveSince))
}

func TestAggregate_ActiveFlagVariants(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "1", FullName: "Legacy Flag", IsActiveLegacy: true}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E2", Code: "2", FullName: "No Flags"}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E1", Month: nov2025}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E2", Month: nov2025}))

	got := bundlesByName(t, st, nov2025)

	assert.True(t, got["Legacy Flag"].IsActive)
	assert.False(t, got["No Flags"].IsActive)
}

func TestAggregate_UnionsBucketsByEmployee(t *testing.T) {
	// GIVEN: MF, insurance and both referral sources for one employee
	st := memory.New()
	ctx := context.Background()
	start, end := nov2025.Window()
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "1", FullName: "Asha Rao", Status: "active"}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{
		EmployeeID: "E1", Month: nov2025, SIPPoints: 500, LumpsumPoints: 300,
		GrossSIP: 10000, NetSIP: 8000, CancelSIP: 2000, TeamID: "team-a",
	}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P1", EmployeeID: "E1", ConversionDate: start, TotalPoints: f(120), PointsPolicy: 999,
		ThisYearPremium: 50000, FreshPremiumEligible: 30000, TeamID: "team-b",
	}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P2", EmployeeID: "E1", ConversionDate: end.Add(-time.Minute), PointsPolicy: 80,
		ThisYearPremium: 20000, PolicyStatus: "Lapsed",
	}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P3", EmployeeID: "E1", ConversionDate: end, PointsPolicy: 1000,
	}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P4", EmployeeName: "Asha Rao", ConversionDate: start, PointsPolicy: 1000,
	}))
	require.NoError(t, st.SaveReferral(ctx, model.ReferralScore{EmployeeID: "E1", Month: nov2025, Points: 1.5}))
	require.NoError(t, st.SaveLegacyReferral(ctx, model.ReferralScore{EmployeeID: "E1", Month: nov2025, Points: 2.7}))

	// WHEN: Aggregating
	got := bundlesByName(t, st, nov2025)

	// THEN: One bundle with every bucket summed
	require.Len(t, got, 1)
	b := got["Asha Rao"]
	assert.Equal(t, 500.0, b.MFSIPPoints)
	assert.Equal(t, 300.0, b.MFLumpsumPoints)
	assert.Equal(t, 200.0, b.InsPoints, "total_points preferred, December and id-less policies excluded")
	assert.Equal(t, 3.5, b.RefPoints, "legacy referral points are truncated")
	assert.Equal(t, 2, b.Insurance.PolicyCount)
	assert.Equal(t, 30000.0, b.Insurance.FreshPremium)
	assert.Equal(t, 40000.0, b.Insurance.RenewalPremium)
	assert.Equal(t, 20000.0, b.Insurance.RenewalLostPremium)
	assert.Equal(t, 2000.0, b.SIP.CancelSIP)
	assert.Equal(t, "team-b", b.TeamID, "max non-empty hierarchy value")
}

func TestAggregate_LumpsumEnrichesWithoutChangingPoints(t *testing.T) {
	// GIVEN: An MF row and two lumpsum snapshots for the same employee
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{ID: "mf-1", EmployeeID: "E1", RMName: "Asha", Month: nov2025, SIPPoints: 100, LumpsumPoints: 50}))
	require.NoError(t, st.SaveLumpsum(ctx, model.LumpsumRecord{
		ID: "ls-old", EmployeeID: "E1", Month: nov2025, FinalIncentive: 9999, AUMStart: 1,
		UpdatedAt: at("2025-11-10T00:00:00Z"),
	}))
	require.NoError(t, st.SaveLumpsum(ctx, model.LumpsumRecord{
		ID: "ls-new", EmployeeID: "E1", Month: nov2025,
		TotalPurchase: 1000, Redemption: 200, SwitchIn90: 90, SwitchIn120: 120,
		COBIn50: 50, COBIn55: 55, COBOut120: 120, FinalIncentive: 9999, AUMStart: 400000,
		UpdatedAt: at("2025-11-20T00:00:00Z"),
	}))
	require.NoError(t, st.SaveLumpsum(ctx, model.LumpsumRecord{ID: "ls-orphan", EmployeeID: "E9", Month: nov2025, TotalPurchase: 1}))

	// WHEN: Aggregating
	got := bundlesByName(t, st, nov2025)

	// THEN: The newest lumpsum record is attached and points are untouched
	require.Len(t, got, 1, "lumpsum alone never creates a row")
	b := got["Asha"]
	assert.Equal(t, 50.0, b.MFLumpsumPoints)
	assert.True(t, b.HasLumpsum)
	assert.Equal(t, "ls-new", b.Lumpsum.DocID)
	assert.Equal(t, 800.0, b.Lumpsum.NetPurchase)
	assert.Equal(t, 210.0, b.Lumpsum.SwitchIn)
	assert.InDelta(t, 200.0, b.Lumpsum.COBIn, 0.0001)
	assert.InDelta(t, 100.0, b.Lumpsum.COBOut, 0.0001)
	assert.Equal(t, 400000.0, b.Lumpsum.AUMStart)
}

func TestAggregate_NameCollisionsAreSummed(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E1", RMName: "Asha", Month: nov2025, SIPPoints: 100}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E2", RMName: "Asha", Month: nov2025, SIPPoints: 50}))

	got := bundlesByName(t, st, nov2025)

	require.Len(t, got, 1)
	assert.Equal(t, 150.0, got["Asha"].MFSIPPoints)
	assert.Equal(t, "E1", got["Asha"].EmployeeID)
	assert.Equal(t, []string{"E1", "E2"}, got["Asha"].EmployeeIDs)
}

func TestAggregate_EmptyMonthIsNotAnError(t *testing.T) {
	bundles, counts, err := NewAggregator(memory.New(), nil).Aggregate(context.Background(), nov2025)
	require.NoError(t, err)
	assert.Empty(t, bundles)
	assert.Equal(t, SourceCounts{}, counts)
}

func TestAggregate_DropsRowsWithoutAnyName(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.SaveMFScore(context.Background(), model.MFScore{ID: "orphan", Month: nov2025, SIPPoints: 10}))

	got := bundlesByName(t, st, nov2025)
	assert.Empty(t, got)
}
