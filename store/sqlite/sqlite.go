/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface (SourceReader, SourceWriter,
  BoardStore, ConfigStore, RunStore) using SQLite. Records are stored as
  JSON documents next to the columns used for lookup, so a row is always
  read back exactly as it was written.

INTERFACES IMPLEMENTED:
  model.SourceReader / SourceWriter: Upstream collections
  model.BoardStore:                  Public_Leaderboard, Rupee_Incentives
  model.ConfigStore:                 Scoring configuration documents
  model.RunStore:                    Pipeline run records

KEY TABLES:
  employees, mf_scores, lumpsum_records, insurance_policies,
  referrals, legacy_referrals, leader_bonuses   Sources (read-only to the engine)
  public_leaderboard, rupee_incentives          Outputs, PK (rm_name, period_month)
  scoring_config                                Config documents by _id
  pipeline_runs                                 One row per month run

UPSERT SEMANTICS:
  Output rows are written with INSERT ... ON CONFLICT(rm_name, period_month)
  DO UPDATE, replacing the whole document. Each document is its own
  statement, so one failure never rolls back the others; failures are
  retried per document and reported in model.BatchResult.

INDEXES:
  - idx_public_month / idx_incentive_month: Per-month reads (hot path)
  - idx_public_employee / idx_incentive_employee: Lookups by employee
  - idx_policies_conversion: Insurance month window scans

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to
  a single connection so every query sees the same schema.

USAGE:
  store, err := sqlite.New("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - model/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
  - store/batch.go: Per-document retry loop
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/store"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// Retry bounds per-document retries on output writes.
	Retry store.RetryPolicy
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, Retry: store.DefaultRetry}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employee directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		status TEXT,
		doc_json TEXT NOT NULL
	);

	-- MF scores, one per employee-month
	CREATE TABLE IF NOT EXISTS mf_scores (
		doc_key TEXT PRIMARY KEY,
		employee_id TEXT,
		period_month TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mf_scores_month
		ON mf_scores(period_month, employee_id);

	-- Lumpsum enrichment, one per employee-month
	CREATE TABLE IF NOT EXISTS lumpsum_records (
		doc_key TEXT PRIMARY KEY,
		employee_id TEXT,
		period_month TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lumpsum_month
		ON lumpsum_records(period_month, employee_id);

	-- Insurance policy conversions
	CREATE TABLE IF NOT EXISTS insurance_policies (
		doc_key TEXT PRIMARY KEY,
		employee_id TEXT,
		conversion_date TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_policies_conversion
		ON insurance_policies(conversion_date);

	-- Referrals (current and legacy)
	CREATE TABLE IF NOT EXISTS referrals (
		doc_key TEXT PRIMARY KEY,
		period_month TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_referrals_month ON referrals(period_month);

	CREATE TABLE IF NOT EXISTS legacy_referrals (
		doc_key TEXT PRIMARY KEY,
		period_month TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_legacy_referrals_month ON legacy_referrals(period_month);

	-- Leader bonuses
	CREATE TABLE IF NOT EXISTS leader_bonuses (
		rm_name TEXT NOT NULL,
		period_month TEXT NOT NULL,
		bucket TEXT NOT NULL,
		doc_json TEXT NOT NULL,
		PRIMARY KEY (rm_name, period_month, bucket)
	);

	-- Public leaderboard (output)
	CREATE TABLE IF NOT EXISTS public_leaderboard (
		rm_name TEXT NOT NULL,
		period_month TEXT NOT NULL,
		employee_id TEXT,
		total_points_public REAL NOT NULL DEFAULT 0,
		doc_json TEXT NOT NULL,
		PRIMARY KEY (rm_name, period_month)
	);
	CREATE INDEX IF NOT EXISTS idx_public_month ON public_leaderboard(period_month);
	CREATE INDEX IF NOT EXISTS idx_public_employee ON public_leaderboard(employee_id);

	-- Rupee incentives (output)
	CREATE TABLE IF NOT EXISTS rupee_incentives (
		rm_name TEXT NOT NULL,
		period_month TEXT NOT NULL,
		employee_id TEXT,
		total_incentive REAL NOT NULL DEFAULT 0,
		doc_json TEXT NOT NULL,
		PRIMARY KEY (rm_name, period_month)
	);
	CREATE INDEX IF NOT EXISTS idx_incentive_month ON rupee_incentives(period_month);
	CREATE INDEX IF NOT EXISTS idx_incentive_employee ON rupee_incentives(employee_id);

	-- Scoring configuration documents
	CREATE TABLE IF NOT EXISTS scoring_config (
		id TEXT PRIMARY KEY,
		doc_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Pipeline runs
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		period_month TEXT NOT NULL,
		run_trigger TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		public_rows INTEGER DEFAULT 0,
		incentive_rows INTEGER DEFAULT 0,
		write_failures INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_month ON pipeline_runs(period_month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SOURCES (model.SourceWriter)
// =============================================================================

// SaveEmployee inserts or replaces a directory entry.
func (s *Store) SaveEmployee(ctx context.Context, e model.Employee) error {
	return s.putDoc(ctx, `
		INSERT INTO employees (id, status, doc_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, doc_json = excluded.doc_json`,
		e, e.ID, e.Status)
}

// SaveMFScore inserts or replaces an MF score row.
func (s *Store) SaveMFScore(ctx context.Context, r model.MFScore) error {
	return s.putDoc(ctx, `
		INSERT INTO mf_scores (doc_key, employee_id, period_month, doc_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET employee_id = excluded.employee_id,
			period_month = excluded.period_month, doc_json = excluded.doc_json`,
		r, store.SourceKey(r.ID, r.EmployeeID, r.Month.String()), r.EmployeeID, r.Month.String())
}

// SaveLumpsum inserts or replaces a lumpsum enrichment row.
func (s *Store) SaveLumpsum(ctx context.Context, r model.LumpsumRecord) error {
	return s.putDoc(ctx, `
		INSERT INTO lumpsum_records (doc_key, employee_id, period_month, doc_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET employee_id = excluded.employee_id,
			period_month = excluded.period_month, doc_json = excluded.doc_json`,
		r, store.SourceKey(r.ID, r.EmployeeID, r.Month.String()), r.EmployeeID, r.Month.String())
}

// SaveInsurancePolicy inserts or replaces a policy conversion.
func (s *Store) SaveInsurancePolicy(ctx context.Context, p model.InsurancePolicy) error {
	converted := p.ConversionDate.UTC().Format(timeLayout)
	return s.putDoc(ctx, `
		INSERT INTO insurance_policies (doc_key, employee_id, conversion_date, doc_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET employee_id = excluded.employee_id,
			conversion_date = excluded.conversion_date, doc_json = excluded.doc_json`,
		p, store.SourceKey(p.PolicyNumber, p.EmployeeID, converted), p.EmployeeID, converted)
}

// SaveReferral inserts or replaces a current referral row.
func (s *Store) SaveReferral(ctx context.Context, r model.ReferralScore) error {
	return s.saveReferral(ctx, "referrals", r)
}

// SaveLegacyReferral inserts or replaces a legacy referral row.
func (s *Store) SaveLegacyReferral(ctx context.Context, r model.ReferralScore) error {
	return s.saveReferral(ctx, "legacy_referrals", r)
}

func (s *Store) saveReferral(ctx context.Context, table string, r model.ReferralScore) error {
	return s.putDoc(ctx, `
		INSERT INTO `+table+` (doc_key, period_month, doc_json) VALUES (?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET period_month = excluded.period_month, doc_json = excluded.doc_json`,
		r, store.SourceKey(r.ID, r.EmployeeID, r.Name(), r.Month.String()), r.Month.String())
}

// SaveLeaderBonus inserts or replaces a leader bonus row.
func (s *Store) SaveLeaderBonus(ctx context.Context, b model.LeaderBonus) error {
	return s.putDoc(ctx, `
		INSERT INTO leader_bonuses (rm_name, period_month, bucket, doc_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(rm_name, period_month, bucket) DO UPDATE SET doc_json = excluded.doc_json`,
		b, b.RMName, b.Month.String(), string(b.Bucket))
}

// putDoc executes an upsert whose last placeholder is the JSON document.
func (s *Store) putDoc(ctx context.Context, query string, doc any, keys ...any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	args := append(keys, string(raw))
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// =============================================================================
// SOURCES (model.SourceReader)
// =============================================================================

// ListEmployees returns the whole directory.
func (s *Store) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return queryDocs[model.Employee](ctx, s, "SELECT doc_json FROM employees ORDER BY id")
}

// ListMFScores returns the MF rows for month m.
func (s *Store) ListMFScores(ctx context.Context, m model.Month) ([]model.MFScore, error) {
	return queryDocs[model.MFScore](ctx, s,
		"SELECT doc_json FROM mf_scores WHERE period_month = ? ORDER BY doc_key", m.String())
}

// ListLumpsum returns the lumpsum rows for month m.
func (s *Store) ListLumpsum(ctx context.Context, m model.Month) ([]model.LumpsumRecord, error) {
	return queryDocs[model.LumpsumRecord](ctx, s,
		"SELECT doc_json FROM lumpsum_records WHERE period_month = ? ORDER BY doc_key", m.String())
}

// ListInsurancePolicies returns conversions in [start, end).
func (s *Store) ListInsurancePolicies(ctx context.Context, start, end time.Time) ([]model.InsurancePolicy, error) {
	return queryDocs[model.InsurancePolicy](ctx, s, `
		SELECT doc_json FROM insurance_policies
		WHERE conversion_date >= ? AND conversion_date < ?
		ORDER BY doc_key`,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
}

// ListReferrals returns the current referral rows for month m.
func (s *Store) ListReferrals(ctx context.Context, m model.Month) ([]model.ReferralScore, error) {
	return queryDocs[model.ReferralScore](ctx, s,
		"SELECT doc_json FROM referrals WHERE period_month = ? ORDER BY doc_key", m.String())
}

// ListLegacyReferrals returns the legacy referral rows for month m.
func (s *Store) ListLegacyReferrals(ctx context.Context, m model.Month) ([]model.ReferralScore, error) {
	return queryDocs[model.ReferralScore](ctx, s,
		"SELECT doc_json FROM legacy_referrals WHERE period_month = ? ORDER BY doc_key", m.String())
}

// ListLeaderBonuses returns the leader bonus rows for month m.
func (s *Store) ListLeaderBonuses(ctx context.Context, m model.Month) ([]model.LeaderBonus, error) {
	return queryDocs[model.LeaderBonus](ctx, s,
		"SELECT doc_json FROM leader_bonuses WHERE period_month = ? ORDER BY rm_name, bucket", m.String())
}

// queryDocs decodes the single doc_json column of every returned row.
func queryDocs[T any](ctx context.Context, s *Store, query string, args ...any) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// getDoc decodes one doc_json row; it returns nil, nil on no rows.
func getDoc[T any](ctx context.Context, s *Store, query string, args ...any) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc T
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// =============================================================================
// OUTPUTS (model.BoardStore)
// =============================================================================

// UpsertPublicRows replaces or inserts each row by (rm_name, period_month).
func (s *Store) UpsertPublicRows(ctx context.Context, rows []model.PublicLeaderboardRow) (model.BatchResult, error) {
	return store.WriteEach(ctx, rows, model.PublicLeaderboardRow.Key, s.Retry,
		func(ctx context.Context, r model.PublicLeaderboardRow) error {
			return s.putDoc(ctx, `
				INSERT INTO public_leaderboard (rm_name, period_month, employee_id, total_points_public, doc_json)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(rm_name, period_month) DO UPDATE SET
					employee_id = excluded.employee_id,
					total_points_public = excluded.total_points_public,
					doc_json = excluded.doc_json`,
				r, r.RMName, r.PeriodMonth.String(), r.EmployeeID, r.TotalPointsPublic)
		})
}

// ListPublicRows returns the public board for month m ordered by name.
func (s *Store) ListPublicRows(ctx context.Context, m model.Month) ([]model.PublicLeaderboardRow, error) {
	return queryDocs[model.PublicLeaderboardRow](ctx, s,
		"SELECT doc_json FROM public_leaderboard WHERE period_month = ? ORDER BY rm_name", m.String())
}

// GetPublicRow returns one public board row, or nil if not computed.
func (s *Store) GetPublicRow(ctx context.Context, rmName string, m model.Month) (*model.PublicLeaderboardRow, error) {
	return getDoc[model.PublicLeaderboardRow](ctx, s,
		"SELECT doc_json FROM public_leaderboard WHERE rm_name = ? AND period_month = ?", rmName, m.String())
}

// UpsertIncentiveRows replaces or inserts each row by (rm_name, period_month).
func (s *Store) UpsertIncentiveRows(ctx context.Context, rows []model.RupeeIncentiveRow) (model.BatchResult, error) {
	return store.WriteEach(ctx, rows, model.RupeeIncentiveRow.Key, s.Retry,
		func(ctx context.Context, r model.RupeeIncentiveRow) error {
			return s.putDoc(ctx, `
				INSERT INTO rupee_incentives (rm_name, period_month, employee_id, total_incentive, doc_json)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(rm_name, period_month) DO UPDATE SET
					employee_id = excluded.employee_id,
					total_incentive = excluded.total_incentive,
					doc_json = excluded.doc_json`,
				r, r.RMName, r.PeriodMonth.String(), r.EmployeeID, r.TotalIncentive)
		})
}

// ListIncentiveRows returns the incentive rows for month m ordered by name.
func (s *Store) ListIncentiveRows(ctx context.Context, m model.Month) ([]model.RupeeIncentiveRow, error) {
	return queryDocs[model.RupeeIncentiveRow](ctx, s,
		"SELECT doc_json FROM rupee_incentives WHERE period_month = ? ORDER BY rm_name", m.String())
}

// GetIncentiveRow returns one incentive row, or nil if not computed.
func (s *Store) GetIncentiveRow(ctx context.Context, rmName string, m model.Month) (*model.RupeeIncentiveRow, error) {
	return getDoc[model.RupeeIncentiveRow](ctx, s,
		"SELECT doc_json FROM rupee_incentives WHERE rm_name = ? AND period_month = ?", rmName, m.String())
}

// =============================================================================
// CONFIG (model.ConfigStore)
// =============================================================================

// GetConfigDoc returns the raw document, or nil if absent.
func (s *Store) GetConfigDoc(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT doc_json FROM scoring_config WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// PutConfigDoc inserts or replaces a raw document.
func (s *Store) PutConfigDoc(ctx context.Context, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_config (id, doc_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc_json = excluded.doc_json, updated_at = excluded.updated_at`,
		id, string(doc), time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// RUNS (model.RunStore)
// =============================================================================

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, r model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO pipeline_runs (id, period_month, run_trigger, status, public_rows, incentive_rows,
			write_failures, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			public_rows = excluded.public_rows,
			incentive_rows = excluded.incentive_rows,
			write_failures = excluded.write_failures,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		c := r.CompletedAt.UTC().Format(timeLayout)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Month.String(), r.Trigger, r.Status,
		r.PublicRows, r.IncentiveRows, r.WriteFailures, nullString(r.Error),
		r.StartedAt.UTC().Format(timeLayout), completedAt,
	)
	return err
}

// ListRuns returns runs newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, period_month, run_trigger, status, public_rows, incentive_rows,
			write_failures, error, started_at, completed_at
		FROM pipeline_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var month, startedAt string
		var errText, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &month, &r.Trigger, &r.Status, &r.PublicRows, &r.IncentiveRows,
			&r.WriteFailures, &errText, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		r.Month, _ = model.ParseMonth(month)
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(timeLayout, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears source, output and run data (for testing/demo). Configuration documents are kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"employees", "mf_scores", "lumpsum_records", "insurance_policies",
		"referrals", "legacy_referrals", "leader_bonuses",
		"public_leaderboard", "rupee_incentives", "pipeline_runs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
