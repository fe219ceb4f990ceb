/*
Package scoring holds the pure lookup and payout functions of the engine.

PURPOSE:
  Everything in this package is a function of its inputs: no storage, no
  logging, no configuration loading. Tables are built once per run from
  the resolved configuration and closed over by the lookups.

KEY CONCEPTS:
  TierTable:  points -> tier label -> rupee factor (MF payout)
  SlabTable:  points -> (fresh %, renewal %, flat bonus) (insurance payout)
  MFScorer:   unified or individual MF payout, selected once per run
  Badges:     threshold conditions over incentive metrics

ROUNDING:
  Money is rounded to 2 decimal places at every sub-computation using
  decimal arithmetic with half-to-even rounding. Totals are summed from
  the already-rounded parts so a rerun reproduces the same cents.

SEE ALSO:
  - config/resolver.go: Builds tables from scoring documents
  - leaderboard/incentive.go: Applies them per row
*/
package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds to 2 decimal places, half to even. NaN and infinities become 0.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(x).RoundBank(2).Float64()
	return f
}

// Mul2 returns round2(a * b) computed in decimal.
func Mul2(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).RoundBank(2).Float64()
	return f
}

// Sum2 adds values in decimal and rounds the result to 2 places.
func Sum2(xs ...float64) float64 {
	total := decimal.Zero
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(x))
	}
	f, _ := total.RoundBank(2).Float64()
	return f
}
