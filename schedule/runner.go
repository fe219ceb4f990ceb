/*
runner.go - Multi-month pipeline runs

PURPOSE:
  Runs the leaderboard engine over a list of months with one
  configuration snapshot, recording a run record per month.

FAILURE POLICY:
  - Configuration errors are fatal: no month runs.
  - A failing month is logged and recorded; the next month still runs.
  - Every month failure is returned joined after the last month, so the
    caller still observes the run as failed.

RUN RECORDS:
  running -> completed   all rows written
          -> partial     some documents failed after retries
          -> failed      the month aborted

SEE ALSO:
  - range.go: Month lists per policy
  - scheduler.go: Periodic trigger
  - leaderboard/engine.go: One month's pipeline
*/
package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/leaderboard"
	"github.com/warp/incentive-engine/model"
)

// Run triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Summary is the outcome of a multi-month run.
type Summary struct {
	RangeMode string                    `json:"range_mode,omitempty"`
	Months    []leaderboard.MonthResult `json:"months"`
	RunIDs    []string                  `json:"run_ids"`
	Failed    []model.Month             `json:"failed,omitempty"`
}

// Runner executes month lists through the engine.
type Runner struct {
	engine *leaderboard.Engine
	runs   model.RunStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a runner. runs may be nil to skip run records.
func NewRunner(engine *leaderboard.Engine, runs model.RunStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		engine: engine,
		runs:   runs,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// Run processes month m, or every month of m's financial year when fullFY is set.
func (r *Runner) Run(ctx context.Context, m model.Month, fullFY bool) (Summary, error) {
	months := []model.Month{m}
	if fullFY {
		months = m.FYMonths()
	}
	return r.runMonths(ctx, TriggerManual, "", months)
}

// RunFYToDate processes April of anchor's financial year through anchor.
func (r *Runner) RunFYToDate(ctx context.Context, anchor model.Month) (Summary, error) {
	return r.runMonths(ctx, TriggerManual, config.RangeFY, anchor.FYToDate())
}

// RunForConfiguredRange resolves the months from the stored range mode.
func (r *Runner) RunForConfiguredRange(ctx context.Context, anchor model.Month) (Summary, error) {
	return r.runConfigured(ctx, TriggerManual, anchor)
}

// RunRange processes the months an explicit range mode resolves to for anchor.
func (r *Runner) RunRange(ctx context.Context, mode string, anchor model.Month) (Summary, error) {
	months, err := ResolveMonths(mode, anchor)
	if err != nil {
		return Summary{}, err
	}
	return r.runMonths(ctx, TriggerManual, strings.ToLower(strings.TrimSpace(mode)), months)
}

func (r *Runner) runConfigured(ctx context.Context, trigger string, anchor model.Month) (Summary, error) {
	snap, err := r.engine.Snapshot(ctx)
	if err != nil {
		r.logger.Error("configuration unavailable", "error", err)
		return Summary{}, err
	}
	months, err := ResolveMonths(snap.RangeMode, anchor)
	if err != nil {
		return Summary{}, err
	}
	return r.runWith(ctx, trigger, snap.RangeMode, months, snap)
}

func (r *Runner) runMonths(ctx context.Context, trigger, mode string, months []model.Month) (Summary, error) {
	snap, err := r.engine.Snapshot(ctx)
	if err != nil {
		r.logger.Error("configuration unavailable", "error", err)
		return Summary{}, err
	}
	return r.runWith(ctx, trigger, mode, months, snap)
}

func (r *Runner) runWith(ctx context.Context, trigger, mode string, months []model.Month, snap *config.Snapshot) (Summary, error) {
	sum := Summary{RangeMode: mode}
	var errs []error

	r.logger.Info("run started", "trigger", trigger, "months", len(months), "range_mode", mode)
	for _, m := range months {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		run := model.RunRecord{
			ID:        uuid.NewString(),
			Month:     m,
			Trigger:   trigger,
			Status:    model.RunRunning,
			StartedAt: r.now().UTC(),
		}
		r.saveRun(ctx, run)
		sum.RunIDs = append(sum.RunIDs, run.ID)

		res, err := r.engine.Run(ctx, m, snap)
		sum.Months = append(sum.Months, res)

		run.PublicRows = res.PublicRows
		run.IncentiveRows = res.IncentiveRows
		run.WriteFailures = res.WriteFailures
		completed := r.now().UTC()
		run.CompletedAt = &completed

		switch {
		case err == nil:
			run.Status = model.RunCompleted
		case errors.Is(err, model.ErrPartialWrite):
			run.Status = model.RunPartial
			run.Error = err.Error()
		default:
			run.Status = model.RunFailed
			run.Error = err.Error()
		}
		r.saveRun(ctx, run)

		if err != nil {
			sum.Failed = append(sum.Failed, m)
			errs = append(errs, err)
			r.logger.Error("month failed, continuing", "month", m.String(), "status", run.Status, "error", err)
		}
	}

	if len(errs) > 0 {
		r.logger.Warn("run finished with failures", "trigger", trigger, "failed", len(sum.Failed))
		return sum, errors.Join(errs...)
	}
	r.logger.Info("run finished", "trigger", trigger, "months", len(sum.Months))
	return sum, nil
}

// saveRun records progress; a failing run store never fails the month.
func (r *Runner) saveRun(ctx context.Context, run model.RunRecord) {
	if r.runs == nil {
		return
	}
	if err := r.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn("failed to save run record", "run_id", run.ID, "month", run.Month.String(), "error", err)
	}
}
