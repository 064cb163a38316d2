package resource

import "github.com/warp/project-control/generic"

// DailyShare splits an allocation's total hours evenly over every day it
// spans. There is no weekday or working-calendar weighting. An inverted span
// contributes nothing.
func DailyShare(a Allocation) float64 {
	n, err := generic.DaysInRange(a.StartDate, a.EndDate)
	if err != nil {
		return 0
	}
	return a.AllocatedHours / float64(n)
}

// ContributesOn reports whether the day falls inside the allocation's span.
// An allocation straddling a query window still contributes its full daily
// share on each in-window day; nothing is pro-rated at the boundary.
func ContributesOn(a Allocation, day generic.TimePoint) bool {
	return a.Span().Contains(day)
}
