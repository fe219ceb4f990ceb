package leaderboard

import (
	"time"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// PUBLIC LEADERBOARD BUILDER
// =============================================================================

// BuildPublicBoard turns bundles into public board rows. MF points are
// recombined from the SIP and lumpsum parts rather than taken from the
// stored MF total.
func BuildPublicBoard(m model.Month, bundles []PointBundle) []model.PublicLeaderboardRow {
	rows := make([]model.PublicLeaderboardRow, 0, len(bundles))
	for _, b := range bundles {
		rows = append(rows, publicRow(m, b))
	}
	return rows
}

func publicRow(m model.Month, b PointBundle) model.PublicLeaderboardRow {
	mf := b.MFSIPPoints + b.MFLumpsumPoints
	total := mf + b.InsPoints + b.RefPoints

	row := model.PublicLeaderboardRow{
		RMName:        b.RMName,
		PeriodMonth:   m,
		EmployeeID:    b.EmployeeID,
		IsActive:      b.IsActive,
		InactiveSince: b.InactiveSince,

		MFPoints:          mf,
		MFSIPPoints:       b.MFSIPPoints,
		MFLumpsumPoints:   b.MFLumpsumPoints,
		InsPoints:         b.InsPoints,
		RefPoints:         b.RefPoints,
		TotalPointsPublic: total,

		TeamID:             b.TeamID,
		ReportingManagerID: b.ReportingManagerID,

		SIP:       b.SIP,
		Lumpsum:   b.Lumpsum,
		Insurance: b.Insurance,

		Audit: model.PublicAudit{
			Buckets: model.BucketAudit{MF: mf, Ins: b.InsPoints, Ref: b.RefPoints, Total: total},
			Sources: model.SourceAudit{
				MF:      model.SourceMF,
				Lumpsum: model.SourceLumpsum,
				Ins:     model.SourceInsurance,
				Ref:     model.SourceReferral,
			},
		},
	}

	row.Audit.EmployeeIDs = b.EmployeeIDs
	row.UpdatedAt, row.Audit.LatestSource = latestSource(b.Stamps)
	row.UpdatedAtAudit = row.Audit.LatestSource.Collection
	return row
}

// latestSource returns the newest contributing timestamp and the source
// that owns it. Ties go to lumpsum, then MF, insurance, referral.
func latestSource(s SourceStamps) (*time.Time, model.LatestSource) {
	var newest *time.Time
	for _, t := range []*time.Time{s.Lumpsum, s.MF, s.Ins, s.Ref} {
		if laterThan(t, newest) {
			newest = t
		}
	}
	if newest == nil {
		return nil, model.LatestSource{Collection: model.SourceFallback}
	}

	at := newest.UTC()
	switch {
	case equalTime(s.Lumpsum, newest):
		return &at, model.LatestSource{Collection: model.SourceLumpsum, DocID: s.LumpsumDocID}
	case equalTime(s.MF, newest):
		return &at, model.LatestSource{Collection: model.SourceMF, DocID: s.MFDocID}
	case equalTime(s.Ins, newest):
		return &at, model.LatestSource{Collection: model.SourceInsurance, DocID: "aggregated"}
	case equalTime(s.Ref, newest):
		return &at, model.LatestSource{Collection: model.SourceReferral, DocID: "aggregated"}
	}
	return &at, model.LatestSource{Collection: model.SourceFallback}
}

func equalTime(a, b *time.Time) bool {
	return a != nil && b != nil && a.Equal(*b)
}
