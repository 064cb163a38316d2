package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day used by every day-granularity comparison
// =============================================================================

// TimePoint is a calendar day. Construct it through Day or NewTimePoint so the
// time-of-day is always stripped and equality between two days is exact.
type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// NewTimePoint returns midnight UTC of the given date.
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Day normalizes a full timestamp to its calendar day. The date is read in the
// timestamp's own location, then pinned to UTC midnight.
func Day(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDay parses a YYYY-MM-DD string (or an RFC3339 timestamp) into a day.
func ParseDay(s string) (TimePoint, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Day(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return Day(t), nil
}

func Today() TimePoint {
	return Day(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return Day(tp.normalize().AddDate(0, 0, n)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (tp TimePoint) IsZero() bool { return tp.Time.IsZero() }

// Key returns the YYYY-MM-DD form, usable as a map key.
func (tp TimePoint) Key() string { return tp.normalize().Format(dateLayout) }

func (tp TimePoint) String() string { return tp.Key() }

// MarshalText renders the day as YYYY-MM-DD in JSON and logs.
func (tp TimePoint) MarshalText() ([]byte, error) {
	if tp.IsZero() {
		return []byte{}, nil
	}
	return []byte(tp.Key()), nil
}

// =============================================================================
// RANGE ARITHMETIC
// =============================================================================

// DaysBetween is the signed whole-day distance from one day to another.
// It counts in Unix seconds so spans beyond time.Duration's range still work.
func DaysBetween(from, to TimePoint) int {
	return int((to.normalize().Unix() - from.normalize().Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// DaysInRange is the inclusive day count of [start, end]. An inverted range
// fails with ErrInvalidPeriod instead of returning a non-positive count.
func DaysInRange(start, end TimePoint) (int, error) {
	if end.Before(start) {
		return 0, &ValidationError{Field: "endDate", Message: "end date is before start date", Err: ErrInvalidPeriod}
	}
	return DaysBetween(start, end) + 1, nil
}

// RangesOverlap reports whether two inclusive ranges share at least one day.
func RangesOverlap(aStart, aEnd, bStart, bEnd TimePoint) bool {
	return aStart.BeforeOrEqual(bEnd) && aEnd.AfterOrEqual(bStart)
}

// =============================================================================
// PERIOD KEYS - Bucket labels that sort chronologically as strings
// =============================================================================

// ISOWeekKey returns the ISO-8601 week label, e.g. "2025-W03".
func ISOWeekKey(tp TimePoint) string {
	year, week := tp.normalize().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey returns the calendar month label, e.g. "2025-03".
func MonthKey(tp TimePoint) string {
	return fmt.Sprintf("%04d-%02d", tp.Year(), int(tp.Month()))
}
