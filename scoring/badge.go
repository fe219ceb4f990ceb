package scoring

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// BADGES
// =============================================================================

// Badge operators.
const (
	OpGTE    = "gte"
	OpEquals = "equals"
)

// Badge metrics computable at the incentive stage.
const (
	MetricRefPoints       = "ref_points"
	MetricInsEffective    = "ins_points_effective"
	MetricMFSIPTier       = "mf_sip_tier"
	MetricTotalEffective  = "total_effective_points"
	MetricPoliciesActive  = "policies_active"
	MetricConsistency     = "consistency_score"
	metricInsuranceAlias  = "insurance_points"
	metricTotalPointAlias = "total_points"
)

// BadgeRule is a normalized badge condition.
type BadgeRule struct {
	ID          string
	Label       string
	Icon        string
	Color       string
	Description string
	Metric      string
	Operator    string
	Value       any
}

// BadgeMetrics are the row values badge conditions can reference.
type BadgeMetrics struct {
	RefPoints          float64
	InsPointsEffective float64
	MFPointsEffective  float64
	MFSIPTier          string
	SIPTiers           TierTable // ranks mf_sip_tier for "gte"
}

// SkippedBadge is a badge that could not be evaluated.
type SkippedBadge struct {
	ID     string
	Metric string
	Err    error
}

// NormalizeOperator maps operator aliases; anything unrecognized is ">=".
func NormalizeOperator(op string) string {
	switch op {
	case "equals", "eq":
		return OpEquals
	default:
		return OpGTE
	}
}

// metricValue resolves a metric name to a number or string.
func (m BadgeMetrics) metricValue(metric string) (any, error) {
	switch metric {
	case MetricRefPoints:
		return m.RefPoints, nil
	case MetricInsEffective, metricInsuranceAlias:
		return m.InsPointsEffective, nil
	case MetricMFSIPTier:
		return m.MFSIPTier, nil
	case MetricTotalEffective, metricTotalPointAlias:
		return m.MFPointsEffective + m.InsPointsEffective + m.RefPoints, nil
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrBadgeMetricUnavailable, metric)
	}
}

// EvaluateBadges returns the badges whose conditions hold, in rule order,
// and the rules that reference metrics unavailable at this stage.
func EvaluateBadges(rules []BadgeRule, m BadgeMetrics) ([]model.EarnedBadge, []SkippedBadge) {
	earned := []model.EarnedBadge{}
	var skipped []SkippedBadge

	for _, rule := range rules {
		actual, err := m.metricValue(rule.Metric)
		if err != nil {
			skipped = append(skipped, SkippedBadge{ID: rule.ID, Metric: rule.Metric, Err: err})
			continue
		}
		if compare(actual, NormalizeOperator(rule.Operator), rule.Value, m.SIPTiers) {
			earned = append(earned, model.EarnedBadge{
				ID:          rule.ID,
				Label:       rule.Label,
				Icon:        rule.Icon,
				Color:       rule.Color,
				Description: rule.Description,
			})
		}
	}
	return earned, skipped
}

// compare applies op. Strings are tier labels: "gte" compares their rank
// in tiers, never the text.
func compare(actual any, op string, expected any, tiers TierTable) bool {
	switch a := actual.(type) {
	case float64:
		e, ok := toFloat(expected)
		if !ok {
			return false
		}
		if op == OpEquals {
			return a == e
		}
		return a >= e
	case string:
		e := fmt.Sprint(expected)
		if op == OpEquals {
			return a == e
		}
		rankA, okA := tiers.Rank(a)
		rankE, okE := tiers.Rank(e)
		return okA && okE && rankA >= rankE
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
