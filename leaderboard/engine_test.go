/*
engine_test.go - Month pipeline tests

Tests for:
- End-to-end scenario (points -> public board -> incentives)
- Idempotence of reruns
- Row correspondence and total decomposition
- Partial write failures
- Badge skips surfaced in the month result
*/
package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/scoring"
	"github.com/warp/incentive-engine/store/memory"
	"github.com/warp/incentive-engine/store/sqlite"
)

func newEngine(st Store) *Engine {
	cfg, _ := st.(model.ConfigStore)
	return NewEngine(st, config.NewResolver(cfg, nil), nil)
}

// seedMixedMonth writes a month with every bucket populated.
func seedMixedMonth(t *testing.T, st model.SourceWriter, m model.Month) {
	t.Helper()
	ctx := context.Background()
	start, _ := m.Window()
	since := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "1", FullName: "Asha Rao", Status: "active"}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E2", Code: "2", FullName: "Ravi Kumar", Status: "active"}))
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E3", Code: "3", FullName: "Zoya Khan", Status: "inactive", InactiveSince: &since}))

	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{ID: "mf-1", EmployeeID: "E1", Month: m, SIPPoints: 9000, LumpsumPoints: 2500, AUMStart: 1200000, UpdatedAt: at("2025-11-03T10:00:00Z")}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{ID: "mf-2", EmployeeID: "E2", Month: m, SIPPoints: 300, AUMStart: 50000}))
	require.NoError(t, st.SaveLumpsum(ctx, model.LumpsumRecord{ID: "ls-1", EmployeeID: "E1", Month: m, TotalPurchase: 5000, AUMStart: 400000, UpdatedAt: at("2025-11-04T10:00:00Z")}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P1", EmployeeID: "E2", ConversionDate: start.Add(48 * time.Hour),
		PointsPolicy: 1200, ThisYearPremium: 80000, FreshPremiumEligible: 80000,
	}))
	require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
		PolicyNumber: "P2", EmployeeID: "E3", ConversionDate: start.Add(72 * time.Hour),
		PointsPolicy: 2600, ThisYearPremium: 100000, FreshPremiumEligible: 100000,
	}))
	require.NoError(t, st.SaveReferral(ctx, model.ReferralScore{EmployeeID: "E2", Month: m, Points: 120}))
}

func TestRunMonth_EndToEndScenario(t *testing.T) {
	// GIVEN: One active employee with 500 SIP and 300 lumpsum points in 2025-11
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: "E1", Code: "1", FullName: "Asha Rao", Status: "active"}))
	require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: "E1", Month: nov2025, SIPPoints: 500, LumpsumPoints: 300, AUMStart: 5000000}))

	// WHEN: The month is run with default configuration
	res, err := newEngine(st).RunMonth(ctx, nov2025)
	require.NoError(t, err)

	// THEN: The public row totals 800
	assert.Equal(t, 1, res.PublicRows)
	pub, err := st.GetPublicRow(ctx, "Asha Rao", nov2025)
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, 800.0, pub.MFPoints)
	assert.Equal(t, 800.0, pub.TotalPointsPublic)
	assert.Equal(t, 0.0, pub.InsPoints)
	assert.Equal(t, 0.0, pub.RefPoints)
	assert.Nil(t, pub.UpdatedAt)
	assert.Equal(t, model.SourceFallback, pub.UpdatedAtAudit)

	// AND: 800 points is T0, so no MF payout regardless of AUM
	inc, err := st.GetIncentiveRow(ctx, "Asha Rao", nov2025)
	require.NoError(t, err)
	require.NotNil(t, inc)
	assert.Equal(t, "T0", inc.MFTier)
	assert.Equal(t, 0.0, inc.MFFactor)
	assert.Equal(t, 0.0, inc.MFRupees)
	assert.Equal(t, 0.0, inc.TotalIncentive)
	assert.Equal(t, 5000000.0, inc.AUMFirst)
}

func TestRunMonth_IsIdempotent(t *testing.T) {
	// GIVEN: A populated month that has been run once
	st := memory.New()
	ctx := context.Background()
	seedMixedMonth(t, st, nov2025)
	engine := newEngine(st)
	_, err := engine.RunMonth(ctx, nov2025)
	require.NoError(t, err)
	pub1, _ := st.ListPublicRows(ctx, nov2025)
	inc1, _ := st.ListIncentiveRows(ctx, nov2025)

	// WHEN: It is run again
	_, err = engine.RunMonth(ctx, nov2025)
	require.NoError(t, err)
	pub2, _ := st.ListPublicRows(ctx, nov2025)
	inc2, _ := st.ListIncentiveRows(ctx, nov2025)

	// THEN: Both tables are identical
	assert.Equal(t, pub1, pub2)
	assert.Equal(t, inc1, inc2)
}

func TestRunMonth_CorrespondenceAndDecomposition(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedMixedMonth(t, st, nov2025)

	_, err := newEngine(st).RunMonth(ctx, nov2025)
	require.NoError(t, err)

	pub, err := st.ListPublicRows(ctx, nov2025)
	require.NoError(t, err)
	inc, err := st.ListIncentiveRows(ctx, nov2025)
	require.NoError(t, err)

	// One incentive row per public row, regardless of eligibility
	require.Len(t, pub, 3)
	require.Len(t, inc, len(pub))
	for i := range pub {
		assert.Equal(t, pub[i].Key(), inc[i].Key())
		assert.Equal(t, pub[i].MFPoints+pub[i].InsPoints+pub[i].RefPoints, pub[i].TotalPointsPublic)
		assert.Equal(t, pub[i].MFSIPPoints+pub[i].MFLumpsumPoints, pub[i].MFPoints)
		assert.InDelta(t, scoring.Round2(inc[i].InsRupeesTotal+inc[i].MFRupees+inc[i].RefRupees), inc[i].TotalIncentive, 0.01)
	}
}

func TestRunMonth_MixedMonthValues(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	seedMixedMonth(t, st, nov2025)

	_, err := newEngine(st).RunMonth(ctx, nov2025)
	require.NoError(t, err)

	// Asha: unified T2 on 1.2M AUM, lumpsum record is the latest source
	asha, _ := st.GetIncentiveRow(ctx, "Asha Rao", nov2025)
	require.NotNil(t, asha)
	assert.Equal(t, "T2", asha.MFTier)
	assert.InDelta(t, 25.0, asha.MFRupees, 0.001)
	assert.Equal(t, 800000.0, asha.SIPAUMDerived)
	ashaPub, _ := st.GetPublicRow(ctx, "Asha Rao", nov2025)
	require.NotNil(t, ashaPub)
	assert.Equal(t, model.SourceLumpsum, ashaPub.Audit.LatestSource.Collection)
	assert.Equal(t, "ls-1", ashaPub.Audit.LatestSource.DocID)

	// Ravi: 1200 insurance points on 80k fresh premium, 120 referral points
	ravi, _ := st.GetIncentiveRow(ctx, "Ravi Kumar", nov2025)
	require.NotNil(t, ravi)
	assert.Equal(t, "1000–1499", ravi.InsSlabLabel)
	assert.InDelta(t, 800.0, ravi.InsRupeesTotal, 0.001)
	assert.Equal(t, 0.0, ravi.RefRupees)

	// Zoya: inactive since September, still inside the window in November
	zoya, _ := st.GetIncentiveRow(ctx, "Zoya Khan", nov2025)
	require.NotNil(t, zoya)
	assert.False(t, zoya.IsActive)
	assert.True(t, zoya.Eligible)
	assert.InDelta(t, 3750.0, zoya.TotalIncentive, 0.001)
}

func TestRunMonth_PartialPublicWrite(t *testing.T) {
	// GIVEN: A store that always fails Ravi's public row
	st := memory.New()
	ctx := context.Background()
	seedMixedMonth(t, st, nov2025)
	st.FailWrite = func(table string, k model.RowKey, attempt int) error {
		if table == TablePublic && k.RMName == "Ravi Kumar" {
			return errors.New("write conflict")
		}
		return nil
	}

	// WHEN: The month runs
	res, err := newEngine(st).RunMonth(ctx, nov2025)

	// THEN: The failure is reported and the other rows still flow through
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPartialWrite)
	var merr *model.MonthError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, PhasePublic, merr.Phase)
	var pw *model.PartialWriteError
	require.True(t, errors.As(err, &pw))
	require.Len(t, pw.Failures, 1)
	assert.Equal(t, "Ravi Kumar", pw.Failures[0].RMName)

	assert.Equal(t, 2, res.PublicRows)
	assert.Equal(t, 2, res.IncentiveRows)
	assert.Equal(t, 1, res.WriteFailures)

	inc, _ := st.ListIncentiveRows(ctx, nov2025)
	pub, _ := st.ListPublicRows(ctx, nov2025)
	assert.Len(t, inc, len(pub))
}

func TestRunMonth_ReportsSkippedBadges(t *testing.T) {
	st := memory.New()
	seedMixedMonth(t, st, nov2025)

	res, err := newEngine(st).RunMonth(context.Background(), nov2025)
	require.NoError(t, err)
	assert.Equal(t, []string{"shield", "trophy"}, res.SkippedBadges)
}

func TestRunMonth_NoConfigStoreIsFatal(t *testing.T) {
	st := memory.New()
	engine := NewEngine(st, config.NewResolver(nil, nil), nil)

	_, err := engine.RunMonth(context.Background(), nov2025)

	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
	assert.True(t, model.IsFatal(err))
	rows, _ := st.ListPublicRows(context.Background(), nov2025)
	assert.Empty(t, rows)
}

func TestRunMonth_SQLiteMatchesMemory(t *testing.T) {
	// GIVEN: The same month seeded into both stores
	ctx := context.Background()
	mem := memory.New()
	seedMixedMonth(t, mem, nov2025)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	seedMixedMonth(t, db, nov2025)

	// WHEN: Both are run
	_, err = newEngine(mem).RunMonth(ctx, nov2025)
	require.NoError(t, err)
	_, err = newEngine(db).RunMonth(ctx, nov2025)
	require.NoError(t, err)

	// THEN: Incentive totals agree row by row
	memRows, _ := mem.ListIncentiveRows(ctx, nov2025)
	dbRows, _ := db.ListIncentiveRows(ctx, nov2025)
	require.Len(t, dbRows, len(memRows))
	for i := range memRows {
		assert.Equal(t, memRows[i].RMName, dbRows[i].RMName)
		assert.InDelta(t, memRows[i].TotalIncentive, dbRows[i].TotalIncentive, 0.01)
		assert.Equal(t, memRows[i].MFTier, dbRows[i].MFTier)
		assert.Equal(t, memRows[i].InsSlabLabel, dbRows[i].InsSlabLabel)
	}
}

func TestRunMonth_MergedNamesPriceEveryContributor(t *testing.T) {
	// GIVEN: Two directory entries that resolve to the same name, each with
	// a 600-point fresh policy and 1M of MF AUM
	st := memory.New()
	ctx := context.Background()
	start, _ := nov2025.Window()
	for i, id := range []string{"E1", "E2"} {
		require.NoError(t, st.SaveEmployee(ctx, model.Employee{ID: id, Code: id, FullName: "Asha", Status: "active"}))
		require.NoError(t, st.SaveMFScore(ctx, model.MFScore{EmployeeID: id, Month: nov2025, SIPPoints: 100, AUMStart: 1000000}))
		require.NoError(t, st.SaveInsurancePolicy(ctx, model.InsurancePolicy{
			PolicyNumber: "P" + id, EmployeeID: id, ConversionDate: start.Add(time.Duration(i+1) * 24 * time.Hour),
			PointsPolicy: 600, ThisYearPremium: 100000, FreshPremiumEligible: 100000,
		}))
	}

	// WHEN: The month is run
	res, err := newEngine(st).RunMonth(ctx, nov2025)
	require.NoError(t, err)
	require.Equal(t, 1, res.PublicRows)

	// THEN: The board row carries both contributors
	pub, err := st.GetPublicRow(ctx, "Asha", nov2025)
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, []string{"E1", "E2"}, pub.Audit.EmployeeIDs)
	assert.Equal(t, 1200.0, pub.InsPoints)
	assert.Equal(t, 200000.0, pub.Insurance.FreshPremium)

	// AND: The incentive is priced on the combined premiums and AUM
	inc, err := st.GetIncentiveRow(ctx, "Asha", nov2025)
	require.NoError(t, err)
	require.NotNil(t, inc)
	assert.Equal(t, "1000–1499", inc.InsSlabLabel)
	assert.Equal(t, pub.Insurance.FreshPremium, inc.FreshPremium)
	assert.InDelta(t, 2000.0, inc.InsRupeesTotal, 0.01)
	assert.Equal(t, pub.SIP.AUMStart, inc.AUMFirst)
	assert.Equal(t, 2000000.0, inc.AUMFirst)
}
