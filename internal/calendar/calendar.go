// Package calendar holds the month and due-date arithmetic shared by the
// accrual processor, the carryover job and the projections.
package calendar

import (
	"fmt"
	"time"
)

const (
	// GraceDays is how long a missed cycle stays "overdue" before it accrues.
	GraceDays = 5
	// DefaultPayDay is used when a plan has no pay date configured.
	DefaultPayDay = 27
)

// MonthKey identifies a calendar month. The zero value means "unset".
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// NewMonthKey normalizes year/month (month 13 rolls into the next year).
func NewMonthKey(year int, month time.Month) MonthKey {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return MonthOf(t)
}

// ParseMonthKey parses "YYYY-MM".
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// String formats the key as "YYYY-MM", or "" for the zero key.
func (k MonthKey) String() string {
	if k.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// IsZero reports whether the key is unset.
func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// AddMonths shifts the key by n months.
func (k MonthKey) AddMonths(n int) MonthKey {
	return NewMonthKey(k.Year, k.Month+time.Month(n))
}

// Prev returns the month before k.
func (k MonthKey) Prev() MonthKey {
	return k.AddMonths(-1)
}

// Before reports whether k is strictly earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	return MonthsBetween(k, o) > 0
}

// MarshalText implements encoding.TextMarshaler.
func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MonthKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = MonthKey{}
		return nil
	}
	parsed, err := ParseMonthKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MonthsBetween returns the number of whole months from "from" to "to".
func MonthsBetween(from, to MonthKey) int {
	return (to.Year-from.Year)*12 + int(to.Month-from.Month)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay keeps day within 1..DaysIn(year, month).
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}

// AddMonths moves t by n months keeping the day of month, clamped to the
// length of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	day := ClampDay(first.Year(), first.Month(), t.Day())
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays adds n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ExpenseDueDate resolves the due date of an obligation in period (year, month):
// the explicit due date when set, otherwise payDay clamped to the month.
func ExpenseDueDate(year int, month time.Month, due *time.Time, payDay int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if due != nil && !due.IsZero() {
		// stored as a calendar date; keep its day rather than converting the instant
		return time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc)
	}
	if payDay <= 0 {
		payDay = DefaultPayDay
	}
	return time.Date(year, month, ClampDay(year, month, payDay), 0, 0, 0, 0, loc)
}

// LocalDate reads a stored calendar date as midnight in loc
func LocalDate(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// FormatDMY renders a date as DD/MM/YYYY.
func FormatDMY(t time.Time) string {
	return t.Format("02/01/2006")
}
