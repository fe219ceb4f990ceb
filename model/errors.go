/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these errors with additional context using %w.

ERROR CATEGORIES:
  1. Configuration errors - Missing or invalid scoring documents (fatal)
  2. Write errors - Per-document batch upsert failures (reported, not fatal)
  3. Run errors - A month's pipeline failed; later months still run

NOT ERRORS:
  A source returning zero rows for a month is normal and yields zero
  points for that bucket. A score row whose employee has no directory
  match is kept and treated as active.

USAGE:
  if errors.Is(err, model.ErrConfigurationMissing) {
      // abort: no tier or slab tables
  }

  var pw *model.PartialWriteError
  if errors.As(err, &pw) {
      for _, f := range pw.Failures { ... }
  }

SEE ALSO:
  - config/resolver.go: Raises configuration errors
  - store/sqlite/sqlite.go: Raises partial write errors
  - schedule/runner.go: Wraps per-month failures in MonthError
*/
package model

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigurationMissing is returned when the scoring configuration
	// store is unreachable or not configured. Runs cannot proceed without it.
	ErrConfigurationMissing = errors.New("scoring configuration missing")

	// ErrInvalidConfig is returned when a stored scoring document fails validation.
	ErrInvalidConfig = errors.New("invalid scoring configuration")

	// ErrBadgeMetricUnavailable marks a badge whose metric cannot be
	// computed at the incentive stage. The badge is skipped.
	ErrBadgeMetricUnavailable = errors.New("badge metric unavailable")

	// ErrPartialWrite is returned when some documents of a batch upsert failed.
	ErrPartialWrite = errors.New("partial write failure")

	// ErrInvalidMonth is returned for malformed "YYYY-MM" keys.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidRangeMode is returned for an unknown range policy.
	ErrInvalidRangeMode = errors.New("invalid range mode")

	// ErrStoreRequired is returned when a dependency was not supplied.
	ErrStoreRequired = errors.New("store is required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DocFailure records one document that could not be written.
type DocFailure struct {
	RMName   string `json:"rm_name"`
	Month    Month  `json:"period_month"`
	Attempts int    `json:"attempts"`
	Err      string `json:"error"`
}

// PartialWriteError lists the documents of a batch that failed after retries.
// Documents not listed were written.
type PartialWriteError struct {
	Table    string
	Written  int
	Failures []DocFailure
}

func (e *PartialWriteError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		keys = append(keys, f.RMName+"/"+f.Month.String())
	}
	return fmt.Sprintf("%s: %d written, %d failed (%s)",
		e.Table, e.Written, len(e.Failures), strings.Join(keys, ", "))
}

func (e *PartialWriteError) Unwrap() error {
	return ErrPartialWrite
}

// MonthError wraps a failure of one month's pipeline.
type MonthError struct {
	Month Month
	Phase string // "public_board" or "incentives"
	Err   error
}

func (e *MonthError) Error() string {
	return fmt.Sprintf("month %s: %s: %v", e.Month, e.Phase, e.Err)
}

func (e *MonthError) Unwrap() error {
	return e.Err
}

// ConfigValidationError carries the failing document and field messages.
type ConfigValidationError struct {
	DocID  string
	Fields []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.DocID, strings.Join(e.Fields, "; "))
}

func (e *ConfigValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal reports whether err must abort a run instead of being logged.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfigurationMissing) || errors.Is(err, ErrInvalidConfig)
}
