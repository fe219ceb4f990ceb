// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Month pipeline runs by outcome (completed, partial, failed)
	MonthRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incentive_month_runs_total",
		Help: "Month pipeline runs by outcome",
	}, []string{"status"})

	// Wall time of one month's two-phase pipeline
	MonthDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "incentive_month_duration_seconds",
		Help:    "Duration of one month's leaderboard and incentive pipeline",
		Buckets: prometheus.DefBuckets,
	})

	// Output documents written, by table
	RowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incentive_rows_written_total",
		Help: "Output documents upserted by table",
	}, []string{"table"})

	// Output documents that failed after retries, by table
	WriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incentive_write_failures_total",
		Help: "Output documents that failed after retries by table",
	}, []string{"table"})

	// Badge rules skipped because their metric is unavailable
	BadgesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incentive_badges_skipped_total",
		Help: "Badge rules skipped because their metric is unavailable",
	}, []string{"badge"})

	// Incentive paid for the most recently computed month, by stream
	LastMonthPayout = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "incentive_last_month_payout_rupees",
		Help: "Total rupees computed for the most recently processed month by stream",
	}, []string{"stream"})
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			MonthRuns,
			MonthDuration,
			RowsWritten,
			WriteFailures,
			BadgesSkipped,
			LastMonthPayout,
		)
	})
}
