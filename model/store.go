/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the engine and its storage. Source data is
  read-only to the engine; output tables are written with whole-document
  upserts keyed by (rm_name, period_month).

KEY INTERFACES:
  SourceReader: Upstream collections (directory, MF, lumpsum, insurance,
                referrals, leader bonuses)
  SourceWriter: Seeding hook for scenarios and tests
  BoardStore:   Public_Leaderboard and Rupee_Incentives
  ConfigStore:  Raw scoring configuration documents by id
  RunStore:     Pipeline run records

UPSERT CONTRACT:
  Upsert*Rows writes each document independently. A failing document is
  retried, then reported in BatchResult.Failures; it never rolls back
  documents already written. The returned error is reserved for failures
  that stop the whole batch (closed store, cancelled context).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for tests

SEE ALSO:
  - store/batch.go: Shared per-document retry loop
*/
package model

import (
	"context"
	"time"
)

// SourceReader reads the upstream collections.
type SourceReader interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListMFScores(ctx context.Context, m Month) ([]MFScore, error)
	ListLumpsum(ctx context.Context, m Month) ([]LumpsumRecord, error)
	// ListInsurancePolicies returns conversions with start <= conversion_date < end.
	ListInsurancePolicies(ctx context.Context, start, end time.Time) ([]InsurancePolicy, error)
	ListReferrals(ctx context.Context, m Month) ([]ReferralScore, error)
	ListLegacyReferrals(ctx context.Context, m Month) ([]ReferralScore, error)
	ListLeaderBonuses(ctx context.Context, m Month) ([]LeaderBonus, error)
}

// SourceWriter populates the upstream collections.
type SourceWriter interface {
	SaveEmployee(ctx context.Context, e Employee) error
	SaveMFScore(ctx context.Context, r MFScore) error
	SaveLumpsum(ctx context.Context, r LumpsumRecord) error
	SaveInsurancePolicy(ctx context.Context, p InsurancePolicy) error
	SaveReferral(ctx context.Context, r ReferralScore) error
	SaveLegacyReferral(ctx context.Context, r ReferralScore) error
	SaveLeaderBonus(ctx context.Context, b LeaderBonus) error
}

// BatchResult summarizes a per-document batch upsert.
type BatchResult struct {
	Written  int
	Failures []DocFailure
}

// Err returns a PartialWriteError when any document failed.
func (r BatchResult) Err(table string) error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &PartialWriteError{Table: table, Written: r.Written, Failures: r.Failures}
}

// BoardStore persists the two output tables.
type BoardStore interface {
	UpsertPublicRows(ctx context.Context, rows []PublicLeaderboardRow) (BatchResult, error)
	ListPublicRows(ctx context.Context, m Month) ([]PublicLeaderboardRow, error)
	// GetPublicRow returns nil, nil when the row has not been computed.
	GetPublicRow(ctx context.Context, rmName string, m Month) (*PublicLeaderboardRow, error)

	UpsertIncentiveRows(ctx context.Context, rows []RupeeIncentiveRow) (BatchResult, error)
	ListIncentiveRows(ctx context.Context, m Month) ([]RupeeIncentiveRow, error)
	// GetIncentiveRow returns nil, nil when the row has not been computed.
	GetIncentiveRow(ctx context.Context, rmName string, m Month) (*RupeeIncentiveRow, error)
}

// ConfigStore holds raw configuration documents keyed by id.
type ConfigStore interface {
	// GetConfigDoc returns nil, nil when the document does not exist.
	GetConfigDoc(ctx context.Context, id string) ([]byte, error)
	PutConfigDoc(ctx context.Context, id string, doc []byte) error
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// RunRecord is one month's pipeline execution.
type RunRecord struct {
	ID            string     `json:"id"`
	Month         Month      `json:"period_month"`
	Trigger       string     `json:"trigger"`
	Status        string     `json:"status"`
	PublicRows    int        `json:"public_rows"`
	IncentiveRows int        `json:"incentive_rows"`
	WriteFailures int        `json:"write_failures"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
