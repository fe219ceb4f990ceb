/*
month.go - Calendar months and financial years

PURPOSE:
  Every score, board row and incentive row is keyed by a calendar month
  ("YYYY-MM"). Month is the typed form of that key, with helpers for the
  query window and the April-March financial year.

KEY CONCEPTS:
  Window:         [first instant of month, first instant of next month), UTC
  Financial year: April of year Y through March of year Y+1. January to
                  March belong to the FY that started the previous year.

EXAMPLE:
  m, _ := model.ParseMonth("2026-02")
  m.FYStart()        // 2025-04
  m.FYMonths()       // 2025-04 ... 2026-03
  start, end := m.Window()

SEE ALSO:
  - schedule/range.go: Range policies built on these helpers
*/
package model

import (
	"fmt"
	"time"
)

// FiscalYearStartMonth is the first month of the financial year.
const FiscalYearStartMonth = time.April

// Month identifies one calendar month.
type Month struct {
	Year int
	Mon  time.Month
}

// NewMonth builds a Month, normalizing out-of-range month numbers.
func NewMonth(year int, mon time.Month) Month {
	return MonthOf(time.Date(year, mon, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf returns the month containing t (in UTC).
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Mon: t.Month()}
}

// CurrentMonth returns the current UTC month.
func CurrentMonth() Month {
	return MonthOf(time.Now())
}

// ParseMonth parses a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// MustParseMonth is ParseMonth for literals; it panics on malformed input.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the "YYYY-MM" key.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

// Start returns the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// Window returns the half-open interval [start, next month start).
func (m Month) Window() (time.Time, time.Time) {
	return m.Start(), m.Next().Start()
}

// Contains reports whether t falls inside the month window.
func (m Month) Contains(t time.Time) bool {
	start, end := m.Window()
	return !t.Before(start) && t.Before(end)
}

// AddMonths returns the month n months away (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Start().AddDate(0, n, 0))
}

// Next returns the following month.
func (m Month) Next() Month { return m.AddMonths(1) }

// Prev returns the preceding month.
func (m Month) Prev() Month { return m.AddMonths(-1) }

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Mon < o.Mon
}

// FYStart returns the April that opens the financial year containing m.
func (m Month) FYStart() Month {
	year := m.Year
	if m.Mon < FiscalYearStartMonth {
		year--
	}
	return Month{Year: year, Mon: FiscalYearStartMonth}
}

// FYMonths returns all twelve months of the financial year containing m.
func (m Month) FYMonths() []Month {
	start := m.FYStart()
	months := make([]Month, 12)
	for i := range months {
		months[i] = start.AddMonths(i)
	}
	return months
}

// FYToDate returns the financial-year months from April through m inclusive.
func (m Month) FYToDate() []Month {
	var months []Month
	for cur := m.FYStart(); !m.Before(cur); cur = cur.Next() {
		months = append(months, cur)
	}
	return months
}

// MarshalText encodes the month as "YYYY-MM".
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a "YYYY-MM" key.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
