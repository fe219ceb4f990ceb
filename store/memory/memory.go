// Package memory provides an in-memory implementation of every storage
// interface, for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	employees       map[string]model.Employee
	mfScores        map[string]model.MFScore
	lumpsum         map[string]model.LumpsumRecord
	policies        map[string]model.InsurancePolicy
	referrals       map[string]model.ReferralScore
	legacyReferrals map[string]model.ReferralScore
	leaders         map[string]model.LeaderBonus

	public     map[model.RowKey]model.PublicLeaderboardRow
	incentives map[model.RowKey]model.RupeeIncentiveRow
	configs    map[string][]byte
	runs       map[string]model.RunRecord

	// Retry bounds per-document retries on output writes.
	Retry store.RetryPolicy

	// FailWrite, when set, is consulted before each output document write;
	// a non-nil error fails that attempt. Used to exercise partial writes.
	FailWrite func(table string, key model.RowKey, attempt int) error
	attempts  map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		employees:       make(map[string]model.Employee),
		mfScores:        make(map[string]model.MFScore),
		lumpsum:         make(map[string]model.LumpsumRecord),
		policies:        make(map[string]model.InsurancePolicy),
		referrals:       make(map[string]model.ReferralScore),
		legacyReferrals: make(map[string]model.ReferralScore),
		leaders:         make(map[string]model.LeaderBonus),
		public:          make(map[model.RowKey]model.PublicLeaderboardRow),
		incentives:      make(map[model.RowKey]model.RupeeIncentiveRow),
		configs:         make(map[string][]byte),
		runs:            make(map[string]model.RunRecord),
		Retry:           store.RetryPolicy{Attempts: 3},
		attempts:        make(map[string]int),
	}
}

// Reset clears source, output and run data. Configuration documents are kept.
func (s *Store) Reset(_ context.Context) error {
	fresh := New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = fresh.employees
	s.mfScores = fresh.mfScores
	s.lumpsum = fresh.lumpsum
	s.policies = fresh.policies
	s.referrals = fresh.referrals
	s.legacyReferrals = fresh.legacyReferrals
	s.leaders = fresh.leaders
	s.public = fresh.public
	s.incentives = fresh.incentives
	s.runs = fresh.runs
	s.attempts = fresh.attempts
	return nil
}

// =============================================================================
// SOURCES
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, e model.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

func (s *Store) ListEmployees(_ context.Context) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.employees), nil
}

func (s *Store) SaveMFScore(_ context.Context, r model.MFScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mfScores[store.SourceKey(r.ID, r.EmployeeID, r.Month.String())] = r
	return nil
}

func (s *Store) ListMFScores(_ context.Context, m model.Month) ([]model.MFScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.mfScores, func(r model.MFScore) bool { return r.Month == m }), nil
}

func (s *Store) SaveLumpsum(_ context.Context, r model.LumpsumRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lumpsum[store.SourceKey(r.ID, r.EmployeeID, r.Month.String())] = r
	return nil
}

func (s *Store) ListLumpsum(_ context.Context, m model.Month) ([]model.LumpsumRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.lumpsum, func(r model.LumpsumRecord) bool { return r.Month == m }), nil
}

func (s *Store) SaveInsurancePolicy(_ context.Context, p model.InsurancePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[store.SourceKey(p.PolicyNumber, p.EmployeeID, p.ConversionDate.UTC().Format(time.RFC3339Nano))] = p
	return nil
}

func (s *Store) ListInsurancePolicies(_ context.Context, start, end time.Time) ([]model.InsurancePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.policies, func(p model.InsurancePolicy) bool {
		return !p.ConversionDate.Before(start) && p.ConversionDate.Before(end)
	}), nil
}

func referralKey(r model.ReferralScore) string {
	return store.SourceKey(r.ID, r.EmployeeID, r.Name(), r.Month.String())
}

func (s *Store) SaveReferral(_ context.Context, r model.ReferralScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals[referralKey(r)] = r
	return nil
}

func (s *Store) ListReferrals(_ context.Context, m model.Month) ([]model.ReferralScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.referrals, func(r model.ReferralScore) bool { return r.Month == m }), nil
}

func (s *Store) SaveLegacyReferral(_ context.Context, r model.ReferralScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacyReferrals[referralKey(r)] = r
	return nil
}

func (s *Store) ListLegacyReferrals(_ context.Context, m model.Month) ([]model.ReferralScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.legacyReferrals, func(r model.ReferralScore) bool { return r.Month == m }), nil
}

func (s *Store) SaveLeaderBonus(_ context.Context, b model.LeaderBonus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaders[store.SourceKey("", b.RMName, b.Month.String(), string(b.Bucket))] = b
	return nil
}

func (s *Store) ListLeaderBonuses(_ context.Context, m model.Month) ([]model.LeaderBonus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.leaders, func(b model.LeaderBonus) bool { return b.Month == m }), nil
}

// =============================================================================
// OUTPUTS
// =============================================================================

func (s *Store) writeAttempt(table string, k model.RowKey) error {
	if s.FailWrite == nil {
		return nil
	}
	id := table + "|" + k.String()
	s.attempts[id]++
	return s.FailWrite(table, k, s.attempts[id])
}

// UpsertPublicRows replaces or inserts each row by (rm_name, period_month).
func (s *Store) UpsertPublicRows(ctx context.Context, rows []model.PublicLeaderboardRow) (model.BatchResult, error) {
	return store.WriteEach(ctx, rows, model.PublicLeaderboardRow.Key, s.Retry,
		func(_ context.Context, r model.PublicLeaderboardRow) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if err := s.writeAttempt("public_leaderboard", r.Key()); err != nil {
				return err
			}
			s.public[r.Key()] = r
			return nil
		})
}

func (s *Store) ListPublicRows(_ context.Context, m model.Month) ([]model.PublicLeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []model.PublicLeaderboardRow
	for k, r := range s.public {
		if k.Month == m {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RMName < rows[j].RMName })
	return rows, nil
}

func (s *Store) GetPublicRow(_ context.Context, rmName string, m model.Month) (*model.PublicLeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.public[model.RowKey{RMName: rmName, Month: m}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// UpsertIncentiveRows replaces or inserts each row by (rm_name, period_month).
func (s *Store) UpsertIncentiveRows(ctx context.Context, rows []model.RupeeIncentiveRow) (model.BatchResult, error) {
	return store.WriteEach(ctx, rows, model.RupeeIncentiveRow.Key, s.Retry,
		func(_ context.Context, r model.RupeeIncentiveRow) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if err := s.writeAttempt("rupee_incentives", r.Key()); err != nil {
				return err
			}
			s.incentives[r.Key()] = r
			return nil
		})
}

func (s *Store) ListIncentiveRows(_ context.Context, m model.Month) ([]model.RupeeIncentiveRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []model.RupeeIncentiveRow
	for k, r := range s.incentives {
		if k.Month == m {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RMName < rows[j].RMName })
	return rows, nil
}

func (s *Store) GetIncentiveRow(_ context.Context, rmName string, m model.Month) (*model.RupeeIncentiveRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.incentives[model.RowKey{RMName: rmName, Month: m}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// =============================================================================
// CONFIG & RUNS
// =============================================================================

func (s *Store) GetConfigDoc(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.configs[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *Store) PutConfigDoc(_ context.Context, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[id] = append([]byte(nil), doc...)
	return nil
}

func (s *Store) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortedValues[T any](m map[string]T) []T {
	return filterSorted(m, func(T) bool { return true })
}

func filterSorted[T any](m map[string]T, keep func(T) bool) []T {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
