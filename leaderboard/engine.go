package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/metrics"
	"github.com/warp/incentive-engine/model"
)

// Output table names, as reported in partial write errors.
const (
	TablePublic     = "public_leaderboard"
	TableIncentives = "rupee_incentives"
)

// Pipeline phases, as reported in MonthError.
const (
	PhaseConfig     = "config"
	PhaseAggregate  = "aggregate"
	PhasePublic     = "public_board"
	PhaseIncentives = "incentives"
)

// Store is everything the engine reads and writes.
type Store interface {
	model.SourceReader
	model.BoardStore
}

// MonthResult summarizes one month's run.
type MonthResult struct {
	Month         model.Month   `json:"period_month"`
	Counts        SourceCounts  `json:"source_counts"`
	PublicRows    int           `json:"public_rows"`
	IncentiveRows int           `json:"incentive_rows"`
	WriteFailures int           `json:"write_failures"`
	SkippedBadges []string      `json:"skipped_badges,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Engine runs the two-phase pipeline for one month: public board first,
// then incentives computed from what was just written.
type Engine struct {
	store      Store
	resolver   *config.Resolver
	aggregator *Aggregator
	calculator *Calculator
	logger     *slog.Logger
}

// NewEngine wires an engine. A nil logger discards output.
func NewEngine(store Store, resolver *config.Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "leaderboard")
	return &Engine{
		store:      store,
		resolver:   resolver,
		aggregator: NewAggregator(store, logger),
		calculator: NewCalculator(store, logger),
		logger:     logger,
	}
}

// Snapshot compiles the configuration a run should use.
func (e *Engine) Snapshot(ctx context.Context) (*config.Snapshot, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver", model.ErrConfigurationMissing)
	}
	return e.resolver.Snapshot(ctx)
}

// RunMonth loads the configuration and runs month m.
func (e *Engine) RunMonth(ctx context.Context, m model.Month) (MonthResult, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return MonthResult{Month: m}, &model.MonthError{Month: m, Phase: PhaseConfig, Err: err}
	}
	return e.Run(ctx, m, snap)
}

// Run executes month m with a fixed configuration snapshot. Partial write
// failures do not stop the month; they are returned joined after both
// phases have run. Any other failure aborts the month.
func (e *Engine) Run(ctx context.Context, m model.Month, snap *config.Snapshot) (MonthResult, error) {
	start := time.Now()
	res := MonthResult{Month: m}
	if e.store == nil {
		return res, &model.MonthError{Month: m, Phase: PhaseAggregate, Err: model.ErrStoreRequired}
	}
	log := e.logger.With("month", m.String())
	log.Info("month run started", "scoring_mode", string(snap.MF.Mode()))

	var partial []error

	// Phase 1: public board
	bundles, counts, err := e.aggregator.Aggregate(ctx, m)
	if err != nil {
		return e.fail(res, start, &model.MonthError{Month: m, Phase: PhaseAggregate, Err: err})
	}
	res.Counts = counts

	rows := BuildPublicBoard(m, bundles)
	e.logTopRows(log, rows)

	pub, err := e.store.UpsertPublicRows(ctx, rows)
	if err != nil {
		return e.fail(res, start, &model.MonthError{Month: m, Phase: PhasePublic, Err: err})
	}
	res.PublicRows = pub.Written
	res.WriteFailures += len(pub.Failures)
	metrics.RowsWritten.WithLabelValues(TablePublic).Add(float64(pub.Written))
	if werr := pub.Err(TablePublic); werr != nil {
		metrics.WriteFailures.WithLabelValues(TablePublic).Add(float64(len(pub.Failures)))
		for _, f := range pub.Failures {
			log.Warn("public row write failed", "rm_name", f.RMName, "attempts", f.Attempts, "error", f.Err)
		}
		partial = append(partial, &model.MonthError{Month: m, Phase: PhasePublic, Err: werr})
	}

	// Phase 2: incentives, driven by the rows now in the store
	spine, err := e.store.ListPublicRows(ctx, m)
	if err != nil {
		return e.fail(res, start, &model.MonthError{Month: m, Phase: PhaseIncentives, Err: err})
	}
	incRows, skipped, err := e.calculator.Build(ctx, m, spine, snap)
	if err != nil {
		return e.fail(res, start, &model.MonthError{Month: m, Phase: PhaseIncentives, Err: err})
	}
	for _, s := range skipped {
		res.SkippedBadges = append(res.SkippedBadges, s.ID)
		metrics.BadgesSkipped.WithLabelValues(s.ID).Inc()
	}

	inc, err := e.store.UpsertIncentiveRows(ctx, incRows)
	if err != nil {
		return e.fail(res, start, &model.MonthError{Month: m, Phase: PhaseIncentives, Err: err})
	}
	res.IncentiveRows = inc.Written
	res.WriteFailures += len(inc.Failures)
	metrics.RowsWritten.WithLabelValues(TableIncentives).Add(float64(inc.Written))
	if werr := inc.Err(TableIncentives); werr != nil {
		metrics.WriteFailures.WithLabelValues(TableIncentives).Add(float64(len(inc.Failures)))
		for _, f := range inc.Failures {
			log.Warn("incentive row write failed", "rm_name", f.RMName, "attempts", f.Attempts, "error", f.Err)
		}
		partial = append(partial, &model.MonthError{Month: m, Phase: PhaseIncentives, Err: werr})
	}

	recordPayout(incRows)
	res.Duration = time.Since(start)
	metrics.MonthDuration.Observe(res.Duration.Seconds())

	if len(partial) > 0 {
		metrics.MonthRuns.WithLabelValues(model.RunPartial).Inc()
		log.Warn("month run finished with write failures",
			"public_rows", res.PublicRows, "incentive_rows", res.IncentiveRows, "write_failures", res.WriteFailures)
		return res, errors.Join(partial...)
	}

	metrics.MonthRuns.WithLabelValues(model.RunCompleted).Inc()
	log.Info("month run completed",
		"public_rows", res.PublicRows, "incentive_rows", res.IncentiveRows, "duration", res.Duration)
	return res, nil
}

func (e *Engine) fail(res MonthResult, start time.Time, err error) (MonthResult, error) {
	res.Duration = time.Since(start)
	metrics.MonthRuns.WithLabelValues(model.RunFailed).Inc()
	metrics.MonthDuration.Observe(res.Duration.Seconds())
	e.logger.Error("month run failed", "month", res.Month.String(), "error", err)
	return res, err
}

// logTopRows emits the ten highest public totals and insurance
// contributors at debug level.
func (e *Engine) logTopRows(log *slog.Logger, rows []model.PublicLeaderboardRow) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for i, r := range topRows(rows, func(r model.PublicLeaderboardRow) float64 { return r.TotalPointsPublic }) {
		log.Debug("top public row", "rank", i+1, "rm_name", r.RMName,
			"total", r.TotalPointsPublic, "mf", r.MFPoints, "ins", r.InsPoints, "ref", r.RefPoints)
	}
	for i, r := range topRows(rows, func(r model.PublicLeaderboardRow) float64 { return r.InsPoints }) {
		if r.InsPoints == 0 {
			break
		}
		log.Debug("top insurance contributor", "rank", i+1, "rm_name", r.RMName,
			"ins", r.InsPoints, "policies", r.Insurance.PolicyCount, "fresh_premium", r.Insurance.FreshPremium)
	}
}

func topRows(rows []model.PublicLeaderboardRow, by func(model.PublicLeaderboardRow) float64) []model.PublicLeaderboardRow {
	top := make([]model.PublicLeaderboardRow, len(rows))
	copy(top, rows)
	sort.SliceStable(top, func(i, j int) bool { return by(top[i]) > by(top[j]) })
	if len(top) > 10 {
		top = top[:10]
	}
	return top
}

func recordPayout(rows []model.RupeeIncentiveRow) {
	var ins, mf, total float64
	for _, r := range rows {
		ins += r.InsRupeesTotal
		mf += r.MFRupees
		total += r.TotalIncentive
	}
	metrics.LastMonthPayout.WithLabelValues("insurance").Set(ins)
	metrics.LastMonthPayout.WithLabelValues("mf").Set(mf)
	metrics.LastMonthPayout.WithLabelValues("total").Set(total)
}
