/*
range.go - Which months a run covers

PURPOSE:
  Turns an anchor month and a range policy into the ordered list of
  months to (re)compute.

POLICIES:
  single     [anchor]
  twomonths  [anchor-1, anchor]
  fy         April of the anchor's financial year through anchor

  A January-March anchor belongs to the financial year that started the
  previous April, so "fy" for 2026-02 is 2025-04 ... 2026-02.

SEE ALSO:
  - model/month.go: Financial year helpers
  - runner.go: Runs each resolved month
*/
package schedule

import (
	"fmt"
	"strings"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/model"
)

// ResolveMonths returns the months the range policy covers for anchor,
// oldest first. An empty mode means the default policy; an unknown mode is
// an error rather than a fallback to the anchor month.
func ResolveMonths(mode string, anchor model.Month) ([]model.Month, error) {
	if anchor.IsZero() {
		return nil, fmt.Errorf("%w: zero anchor", model.ErrInvalidMonth)
	}

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case config.RangeSingle:
		return []model.Month{anchor}, nil
	case config.RangeTwoMonths, "":
		return []model.Month{anchor.Prev(), anchor}, nil
	case config.RangeFY:
		return anchor.FYToDate(), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidRangeMode, mode)
	}
}

// AnchorMonth returns the override month when one is set, else the month
// containing now.
func AnchorMonth(override string, now func() model.Month) (model.Month, error) {
	override = strings.TrimSpace(override)
	if override == "" {
		return now(), nil
	}
	return model.ParseMonth(override)
}
