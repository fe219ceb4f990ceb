/*
settings.go - Process settings

PURPOSE:
  Reads the process configuration from a .env file (optional) and the
  environment. cmd/server applies its flags on top.

ENVIRONMENT:
  PLI_DB_PATH                SQLite database path (required in batch mode)
  PORT                       HTTP port (default: 8080)
  LOG_LEVEL                  DEBUG, INFO, WARN, ERROR (default: INFO)
  PLI_LEADERBOARD_MONTH      Anchor month override, "YYYY-MM"
  LEADERBOARD_MONTH, MONTH   Older names for the anchor override
  PLI_INS_LEADER_EMP_ID      Insurance leader employee id
  PLI_MF_LEADER_EMP_ID       Investment leader employee id
  PLI_INS_LEADER_EMP_REGEX   Insurance leader name pattern
  PLI_MF_LEADER_EMP_REGEX    Investment leader name pattern
  SCHEDULER_INTERVAL         Go duration (default: 1h)
  SCHEDULER_ENABLED          Boolean (default: true)
  CORS_ALLOWED_ORIGINS       Comma separated (default: *)

SEE ALSO:
  - cmd/server/main.go: Flag overrides
  - config/resolver.go: Leader overrides consumer
*/
package settings

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/model"
)

// Settings is the resolved process configuration.
type Settings struct {
	DBPath   string
	Port     int
	LogLevel slog.Level

	AnchorOverride string
	Leaders        config.LeaderIdentities

	SchedulerInterval time.Duration
	SchedulerEnabled  bool

	CORSOrigins []string
}

// Load reads .env (if present) and the environment.
func Load() (*Settings, error) {
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup builds settings from an environment lookup function.
func FromLookup(getenv func(string) string) (*Settings, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	s := &Settings{
		DBPath:         env("PLI_DB_PATH", ""),
		AnchorOverride: env("PLI_LEADERBOARD_MONTH", env("LEADERBOARD_MONTH", env("MONTH", ""))),
		Leaders: config.LeaderIdentities{
			InsEmployeeID: env("PLI_INS_LEADER_EMP_ID", ""),
			MFEmployeeID:  env("PLI_MF_LEADER_EMP_ID", ""),
			InsNameRegex:  env("PLI_INS_LEADER_EMP_REGEX", ""),
			MFNameRegex:   env("PLI_MF_LEADER_EMP_REGEX", ""),
		},
		CORSOrigins: splitList(env("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if s.Port, err = strconv.Atoi(env("PORT", "8080")); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if s.LogLevel, err = ParseLevel(env("LOG_LEVEL", "INFO")); err != nil {
		return nil, err
	}
	if s.SchedulerInterval, err = time.ParseDuration(env("SCHEDULER_INTERVAL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}
	if s.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: must be positive")
	}
	if s.SchedulerEnabled, err = strconv.ParseBool(env("SCHEDULER_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_ENABLED: %w", err)
	}
	if s.AnchorOverride != "" {
		if _, err := model.ParseMonth(s.AnchorOverride); err != nil {
			return nil, fmt.Errorf("invalid anchor month override: %w", err)
		}
	}
	return s, nil
}

// RequireDB returns ErrConfigurationMissing when no database path is set.
func (s *Settings) RequireDB() error {
	if s.DBPath == "" {
		return fmt.Errorf("%w: PLI_DB_PATH not set", model.ErrConfigurationMissing)
	}
	return nil
}

// ParseLevel parses DEBUG, INFO, WARN (or WARNING) and ERROR, case insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
}

// NewLogger returns a text logger at level writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
