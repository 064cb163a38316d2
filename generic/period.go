package generic

import "iter"

// =============================================================================
// PERIOD - Inclusive [Start, End] window of calendar days
// =============================================================================

// Period is a query window or an allocation span. Both ends are inclusive.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod normalizes both ends to calendar days.
func NewPeriod(start, end TimePoint) Period {
	return Period{Start: Day(start.Time), End: Day(end.Time)}
}

// Validate fails when either end is missing or the range is inverted.
func (p Period) Validate() error {
	if p.Start.IsZero() {
		return Required("startDate")
	}
	if p.End.IsZero() {
		return Required("endDate")
	}
	_, err := DaysInRange(p.Start, p.End)
	return err
}

// Contains returns true if the day is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps uses the inclusive overlap test.
func (p Period) Overlaps(other Period) bool {
	return RangesOverlap(p.Start, p.End, other.Start, other.End)
}

// TotalDays is the inclusive day count, 0 for an inverted period.
func (p Period) TotalDays() int {
	n, err := DaysInRange(p.Start, p.End)
	if err != nil {
		return 0
	}
	return n
}

// Each yields every day from Start to End. The sequence is lazy and can be
// ranged over any number of times.
func (p Period) Each() iter.Seq[TimePoint] {
	return func(yield func(TimePoint) bool) {
		for current := Day(p.Start.Time); current.BeforeOrEqual(p.End); current = current.AddDays(1) {
			if !yield(current) {
				return
			}
		}
	}
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.TotalDays())
	for d := range p.Each() {
		days = append(days, d)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
