/*
main.go - Application entry point

PURPOSE:
  Starts the incentive engine either as a long-running server (HTTP API
  plus periodic scheduler) or as a one-shot batch run.

STARTUP SEQUENCE:
  1. Load settings (.env, environment), then parse flags
  2. Initialize logger and metrics
  3. Open the SQLite store
  4. Optionally import scoring config from YAML
  5. Wire resolver, engine, runner
  6. -once: run and exit; otherwise start scheduler and HTTP server

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: $PORT or 8080)
  -db           SQLite database path (default: $PLI_DB_PATH)
                Use ":memory:" for an in-memory database
  -once         Run once and exit (non-zero exit on any month failure)
  -month        Anchor month "YYYY-MM" (default: env override, else current)
  -fy           With -once, process every month of the anchor's financial year
  -seed-config  YAML file of scoring documents to import at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Server with scheduler
  PLI_DB_PATH=./data/pli.db ./server

  # Recompute the configured range once
  ./server -db=./data/pli.db -once

  # Recompute a whole financial year
  ./server -db=./data/pli.db -once -fy -month=2025-11

SEE ALSO:
  - settings/settings.go: Environment variables
  - api/server.go: Router configuration
  - schedule/: Runner and scheduler
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/leaderboard"
	"github.com/warp/incentive-engine/metrics"
	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/schedule"
	"github.com/warp/incentive-engine/settings"
	"github.com/warp/incentive-engine/store/sqlite"
)

const defaultServerDB = "incentives.db"

func main() {
	os.Exit(run())
}

func run() int {
	s, err := settings.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		return 2
	}

	// Flags
	port := flag.Int("port", s.Port, "HTTP server port")
	dbPath := flag.String("db", s.DBPath, "SQLite database path")
	once := flag.Bool("once", false, "Run once and exit")
	month := flag.String("month", s.AnchorOverride, "Anchor month YYYY-MM")
	fullFY := flag.Bool("fy", false, "With -once, process the anchor's whole financial year")
	seedConfig := flag.String("seed-config", "", "YAML file of scoring documents to import")
	flag.Parse()

	logger := settings.NewLogger(os.Stdout, s.LogLevel)
	slog.SetDefault(logger)
	metrics.Init()

	s.DBPath = *dbPath
	if *once {
		if err := s.RequireDB(); err != nil {
			logger.Error("cannot run", "error", err)
			return 1
		}
	} else if s.DBPath == "" {
		s.DBPath = defaultServerDB
	}

	anchor := func() (model.Month, error) {
		return schedule.AnchorMonth(*month, model.CurrentMonth)
	}
	if _, err := anchor(); err != nil {
		logger.Error("invalid anchor month", "error", err)
		return 2
	}

	// Initialize store
	store, err := sqlite.New(s.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "path", s.DBPath, "error", err)
		return 1
	}
	defer store.Close()

	resolver := config.NewResolver(store, logger, config.WithLeaderOverrides(s.Leaders))
	if *seedConfig != "" {
		if err := importConfig(resolver, *seedConfig); err != nil {
			logger.Error("failed to import config", "file", *seedConfig, "error", err)
			return 1
		}
	}

	engine := leaderboard.NewEngine(store, resolver, logger)
	runner := schedule.NewRunner(engine, store, logger)

	if *once {
		return runOnce(logger, runner, anchor, *fullFY)
	}
	return serve(logger, s, *port, store, resolver, runner, anchor)
}

func importConfig(resolver *config.Resolver, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = config.ImportYAML(context.Background(), resolver, f)
	return err
}

func runOnce(logger *slog.Logger, runner *schedule.Runner, anchor func() (model.Month, error), fullFY bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, _ := anchor()
	var sum schedule.Summary
	var err error
	if fullFY {
		sum, err = runner.Run(ctx, m, true)
	} else {
		sum, err = runner.RunForConfiguredRange(ctx, m)
	}

	if err != nil {
		logger.Error("run failed", "anchor", m.String(), "failed_months", len(sum.Failed), "error", err)
		return 1
	}
	logger.Info("run complete", "anchor", m.String(), "months", len(sum.Months))
	return 0
}

func serve(
	logger *slog.Logger,
	s *settings.Settings,
	port int,
	store *sqlite.Store,
	resolver *config.Resolver,
	runner *schedule.Runner,
	anchor func() (model.Month, error),
) int {
	handler := api.NewHandler(store, resolver, runner, logger)
	handler.Anchor = anchor
	router := api.NewRouter(handler, s.CORSOrigins)

	scheduler := schedule.NewScheduler(runner, anchor, logger)
	scheduler.Interval = s.SchedulerInterval
	scheduler.Enabled = s.SchedulerEnabled
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", s.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	code := 0
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		code = 1
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return code
}
