package scoring

import "fmt"

// =============================================================================
// MF SCORING MODES
// =============================================================================

// Mode selects how MF points turn into rupees.
type Mode string

const (
	// ModeUnified applies one tier table to SIP + lumpsum points and pays
	// factor x total AUM.
	ModeUnified Mode = "unified"

	// ModeIndividual tiers SIP and lumpsum points separately and pays
	// sip_factor x SIP AUM + lumpsum_factor x lumpsum AUM.
	ModeIndividual Mode = "individual"
)

// ParseMode maps a config string to a Mode. Empty means unified.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeUnified:
		return ModeUnified, nil
	case ModeIndividual:
		return ModeIndividual, nil
	default:
		return "", fmt.Errorf("unknown scoring mode %q", s)
	}
}

// MFInput carries the per-row values both modes need.
type MFInput struct {
	EffectivePoints float64 // mf points including any leader bonus
	SIPPoints       float64
	LumpsumPoints   float64
	TotalAUM        float64
	LumpsumAUM      float64
	SIPAUM          float64 // max(0, TotalAUM - LumpsumAUM)
}

// MFResult is the tier and rupee breakdown for one row.
type MFResult struct {
	Tier       string
	Factor     float64
	SIPTier    string
	SIPFactor  float64
	LumpTier   string
	LumpFactor float64
	SIPRupees  float64
	LumpRupees float64
	Rupees     float64
}

// MFScorer computes the MF payout for one row.
type MFScorer interface {
	Mode() Mode
	Score(in MFInput) MFResult
}

// NewMFScorer returns the scorer for mode. The unified scorer uses sip as
// its single table.
func NewMFScorer(mode Mode, sip, lumpsum TierTable) (MFScorer, error) {
	switch mode {
	case ModeUnified:
		return UnifiedScorer{Table: sip}, nil
	case ModeIndividual:
		return IndividualScorer{SIP: sip, Lumpsum: lumpsum}, nil
	default:
		return nil, fmt.Errorf("unknown scoring mode %q", mode)
	}
}

// SIPAUM derives SIP-only AUM, floored at zero.
func SIPAUM(total, lumpsum float64) float64 {
	if d := total - lumpsum; d > 0 {
		return d
	}
	return 0
}

// UnifiedScorer pays one factor on total AUM.
type UnifiedScorer struct {
	Table TierTable
}

func (UnifiedScorer) Mode() Mode { return ModeUnified }

// Score tiers effective points with the single table. The SIP and lumpsum
// tiers are still reported for badges and the audit trail.
func (s UnifiedScorer) Score(in MFInput) MFResult {
	r := MFResult{}
	r.Tier, r.Factor = s.Table.Lookup(in.EffectivePoints)
	r.SIPTier, r.SIPFactor = s.Table.Lookup(in.SIPPoints)
	r.LumpTier, r.LumpFactor = s.Table.Lookup(in.LumpsumPoints)
	r.SIPRupees = Mul2(in.SIPAUM, r.SIPFactor)
	r.LumpRupees = Mul2(in.LumpsumAUM, r.LumpFactor)
	r.Rupees = Mul2(in.TotalAUM, r.Factor)
	return r
}

// IndividualScorer pays SIP and lumpsum on separate tables and AUMs.
type IndividualScorer struct {
	SIP     TierTable
	Lumpsum TierTable
}

func (IndividualScorer) Mode() Mode { return ModeIndividual }

// Score sums the SIP and lumpsum payouts. The headline tier uses the SIP table.
func (s IndividualScorer) Score(in MFInput) MFResult {
	r := MFResult{}
	r.Tier, r.Factor = s.SIP.Lookup(in.EffectivePoints)
	r.SIPTier, r.SIPFactor = s.SIP.Lookup(in.SIPPoints)
	r.LumpTier, r.LumpFactor = s.Lumpsum.Lookup(in.LumpsumPoints)
	r.SIPRupees = Mul2(in.SIPAUM, r.SIPFactor)
	r.LumpRupees = Mul2(in.LumpsumAUM, r.LumpFactor)
	r.Rupees = Sum2(r.SIPRupees, r.LumpRupees)
	return r
}
