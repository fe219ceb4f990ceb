package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/scoring"
	"github.com/warp/incentive-engine/store/memory"
)

type failingConfigStore struct{}

func (failingConfigStore) GetConfigDoc(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingConfigStore) PutConfigDoc(context.Context, string, []byte) error {
	return errors.New("connection refused")
}

func TestLoad_BootstrapsMissingDocument(t *testing.T) {
	// GIVEN: An empty config store
	st := memory.New()
	r := NewResolver(st, nil)
	ctx := context.Background()

	// WHEN: The SIP document is loaded
	sip, err := r.LoadSIP(ctx)
	require.NoError(t, err)

	// THEN: Defaults are returned and persisted
	assert.Equal(t, string(scoring.ModeUnified), sip.ScoringMode)
	raw, err := st.GetConfigDoc(ctx, string(DomainSIP))
	require.NoError(t, err)
	require.NotNil(t, raw)

	var stored SIPConfig
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "Leaderboard_SIP", stored.ID)
	assert.Len(t, stored.TierThresholds, 7)
}

func TestLoad_CachesUntilInvalidated(t *testing.T) {
	// GIVEN: A resolver that has loaded the SIP document once
	st := memory.New()
	r := NewResolver(st, nil)
	ctx := context.Background()
	_, err := r.LoadSIP(ctx)
	require.NoError(t, err)

	// WHEN: The store changes underneath it
	require.NoError(t, st.PutConfigDoc(ctx, string(DomainSIP),
		[]byte(`{"_id":"Leaderboard_SIP","scoring_mode":"individual"}`)))

	// THEN: The cached copy is still served
	sip, err := r.LoadSIP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unified", sip.ScoringMode)

	// AND: After Invalidate the new document is read
	r.Invalidate()
	sip, err = r.LoadSIP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "individual", sip.ScoringMode)
}

func TestLoad_InvalidStoredDocument(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.PutConfigDoc(ctx, string(DomainSIP),
		[]byte(`{"_id":"Leaderboard_SIP","scoring_mode":"blended"}`)))

	_, err := NewResolver(st, nil).LoadSIP(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	var verr *model.ConfigValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Leaderboard_SIP", verr.DocID)
}

func TestLoad_NoStoreIsConfigurationMissing(t *testing.T) {
	_, err := NewResolver(nil, nil).Snapshot(context.Background())
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
}

func TestLoad_UnreachableStoreIsConfigurationMissing(t *testing.T) {
	_, err := NewResolver(failingConfigStore{}, nil).LoadInsurance(context.Background())
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
	assert.True(t, model.IsFatal(err))
}

func TestLoad_ShortDomainNames(t *testing.T) {
	r := NewResolver(memory.New(), nil)
	doc, err := r.Load(context.Background(), "ins")
	require.NoError(t, err)
	_, ok := doc.(*InsuranceConfig)
	assert.True(t, ok)

	_, err = r.Load(context.Background(), "payroll")
	assert.Error(t, err)
}

func TestSnapshot_Defaults(t *testing.T) {
	// GIVEN: An empty store
	r := NewResolver(memory.New(), nil)

	// WHEN: A snapshot is compiled
	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	// THEN: Unified mode, default slabs, eight badges, six-month window
	assert.Equal(t, scoring.ModeUnified, snap.MF.Mode())
	assert.Equal(t, "1000–1499", snap.Slabs.SlabFor(1000).Label)
	assert.Len(t, snap.Badges, 8)
	assert.Equal(t, 6, snap.InactiveMonths)
	assert.Equal(t, RangeTwoMonths, snap.RangeMode)
	assert.True(t, snap.Leaders.IsInsuranceLeader("", "Sumit Chakraborty"))
	assert.True(t, snap.Leaders.IsInvestmentLeader("", "sagar maini"))
	assert.False(t, snap.Leaders.IsInvestmentLeader("", "Asha Rao"))
}

func TestSnapshot_IndividualModeUsesLumpsumTable(t *testing.T) {
	// GIVEN: An individual-mode document with its own lumpsum table
	st := memory.New()
	r := NewResolver(st, nil)
	ctx := context.Background()
	zero, hundred := 0.0, 100.0
	sip := DefaultSIPConfig(r.now())
	sip.ScoringMode = "individual"
	sip.LumpsumTierThresholds = []TierThreshold{
		{Tier: "L1", MinVal: &hundred},
		{Tier: "L0", MinVal: &zero},
	}
	sip.LumpsumTierFactors = map[string]float64{"L1": 0.5, "L0": 0}
	require.NoError(t, r.Save(ctx, sip))

	// WHEN: A snapshot is compiled
	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)

	// THEN: The lumpsum table is the configured one
	assert.Equal(t, scoring.ModeIndividual, snap.MF.Mode())
	tier, factor := snap.LumpsumTable.Lookup(150)
	assert.Equal(t, "L1", tier)
	assert.Equal(t, 0.5, factor)
	assert.Equal(t, "T0", snap.SIPTable.TierFor(150))
}

func TestSnapshot_LeaderOverridesWin(t *testing.T) {
	r := NewResolver(memory.New(), nil, WithLeaderOverrides(LeaderIdentities{
		InsEmployeeID: "E-77",
		MFNameRegex:   `(?i)^asha`,
	}))

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Leaders.IsInsuranceLeader("E-77", "Anyone"))
	assert.True(t, snap.Leaders.IsInvestmentLeader("", "Asha Rao"))
	assert.False(t, snap.Leaders.IsInvestmentLeader("", "Sagar Maini"))
}

func TestSnapshot_BadLeaderPattern(t *testing.T) {
	r := NewResolver(memory.New(), nil, WithLeaderOverrides(LeaderIdentities{InsNameRegex: `(`}))
	_, err := r.Snapshot(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestSave_RejectsInvalidSlab(t *testing.T) {
	r := NewResolver(memory.New(), nil)
	doc := DefaultInsuranceConfig(r.now())
	doc.Slabs[1].FreshPct = 3

	err := r.Save(context.Background(), doc)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestYAML_ExportImportRoundTrip(t *testing.T) {
	// GIVEN: Exported defaults with the top slab bonus changed
	ctx := context.Background()
	src := NewResolver(memory.New(), nil)
	var buf bytes.Buffer
	require.NoError(t, ExportYAML(ctx, src, &buf))
	text := strings.Replace(buf.String(), "bonus_rupees: 2000", "bonus_rupees: 3000", 1)
	require.NotEqual(t, buf.String(), text)

	// WHEN: It is imported into a fresh store
	dst := NewResolver(memory.New(), nil)
	n, err := ImportYAML(ctx, dst, strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// THEN: The new bonus is in effect
	snap, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, snap.Slabs.SlabFor(5000).BonusRupees)
}

func TestYAML_ImportIsAllOrNothing(t *testing.T) {
	st := memory.New()
	r := NewResolver(st, nil)
	in := `
insurance:
  slabs:
    - label: "<500"
      max_points: 500
sip:
  scoring_mode: blended
`
	_, err := ImportYAML(context.Background(), r, strings.NewReader(in))
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	raw, err := st.GetConfigDoc(context.Background(), string(DomainInsurance))
	require.NoError(t, err)
	assert.Nil(t, raw)
}
