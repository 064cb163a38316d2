/*
utilization.go - Day-by-day allocated vs. available hours

PURPOSE:
  Answers "how loaded is this resource between two dates?". Every day in the
  query window is resolved independently:

    available = AvailableHoursOn(profile, day, overrides)
    allocated = sum of DailyShare(a) for allocations a covering the day

  The same loop serves the single-resource endpoint and the project-wide
  rebalance analysis.

SUMMARY FORMULAS:
  averageUtilization       = totalAllocated / totalAvailable * 100 (0 if no capacity)
  overAllocationPercentage = overAllocatedDays / totalDays * 100

WARNINGS:
  - at least one over-allocated day
  - average utilization above 100%
  - average utilization below 50% while some hours are allocated

SEE ALSO:
  - availability.go: AvailableHoursOn
  - slicer.go: DailyShare / ContributesOn
  - rebalance.go: consumes ResourceUtilization
*/
package resource

import (
	"fmt"

	"github.com/warp/project-control/generic"
)

// Status thresholds, in percent.
const (
	FullyUtilizedThreshold = 90.0
	WellUtilizedThreshold  = 70.0
	UnderUtilizedWarning   = 50.0
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// ProjectHours is one project's contribution to a day.
type ProjectHours struct {
	ProjectID   string
	ProjectName string
	Hours       float64
}

// DayUtilization is the breakdown for a single calendar day.
type DayUtilization struct {
	Date                  generic.TimePoint
	AllocatedHours        float64
	AvailableHours        float64
	UtilizationPercentage float64
	IsOverAllocated       bool
	Projects              []ProjectHours
}

// Summary aggregates a window of DayUtilization.
type Summary struct {
	TotalDays                int
	TotalAllocatedHours      float64
	TotalAvailableHours      float64
	AverageUtilization       float64
	OverAllocatedDays        int
	OverAllocationPercentage float64
}

// Result is the output of ComputeUtilization.
type Result struct {
	Profile  Profile
	Period   generic.Period
	Summary  Summary
	Days     []DayUtilization
	Warnings []string
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// ComputeUtilization walks every day of the window. Allocations outside the
// window are harmless: they simply never contribute.
func ComputeUtilization(p Profile, window generic.Period, allocations []Allocation, overrides OverrideIndex) Result {
	days := make([]DayUtilization, 0, window.TotalDays())
	var s Summary

	for day := range window.Each() {
		du := DayUtilization{
			Date:           day,
			AvailableHours: AvailableHoursOn(p, day, overrides),
		}

		byProject := make(map[string]int)
		for _, a := range allocations {
			if !ContributesOn(a, day) {
				continue
			}
			share := DailyShare(a)
			du.AllocatedHours += share

			i, seen := byProject[a.ProjectID]
			if !seen {
				i = len(du.Projects)
				byProject[a.ProjectID] = i
				du.Projects = append(du.Projects, ProjectHours{ProjectID: a.ProjectID, ProjectName: a.ProjectName})
			}
			du.Projects[i].Hours += share
		}

		du.UtilizationPercentage = percentOf(du.AllocatedHours, du.AvailableHours)
		du.IsOverAllocated = du.AllocatedHours > du.AvailableHours

		s.TotalDays++
		s.TotalAllocatedHours += du.AllocatedHours
		s.TotalAvailableHours += du.AvailableHours
		if du.IsOverAllocated {
			s.OverAllocatedDays++
		}
		days = append(days, du)
	}

	s.AverageUtilization = percentOf(s.TotalAllocatedHours, s.TotalAvailableHours)
	if s.TotalDays > 0 {
		s.OverAllocationPercentage = float64(s.OverAllocatedDays) / float64(s.TotalDays) * 100
	}

	return Result{
		Profile:  p,
		Period:   window,
		Summary:  s,
		Days:     days,
		Warnings: warningsFor(s),
	}
}

func warningsFor(s Summary) []string {
	warnings := []string{}
	if s.OverAllocatedDays > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"Resource is over-allocated on %d of %d days (%.1f%%)",
			s.OverAllocatedDays, s.TotalDays, s.OverAllocationPercentage))
	}
	if s.AverageUtilization > 100 {
		warnings = append(warnings, fmt.Sprintf(
			"Average utilization of %.1f%% exceeds available capacity", s.AverageUtilization))
	}
	if s.AverageUtilization < UnderUtilizedWarning && s.TotalAllocatedHours > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"Resource is underutilized at %.1f%% average utilization", s.AverageUtilization))
	}
	return warnings
}

func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// =============================================================================
// PER-RESOURCE RECORD - Input of the rebalancing engine
// =============================================================================

type Status string

const (
	StatusOverAllocated Status = "over-allocated"
	StatusFullyUtilized Status = "fully-utilized"
	StatusWellUtilized  Status = "well-utilized"
	StatusUnderUtilized Status = "under-utilized"
)

// ResourceUtilization is one row of the project-wide resource table.
type ResourceUtilization struct {
	Profile     Profile
	Summary     Summary
	Allocations []Allocation
	Status      Status
}

// Classify maps a summary to its status label. Over-allocation on any single
// day dominates the average.
func Classify(s Summary) Status {
	switch {
	case s.OverAllocatedDays > 0:
		return StatusOverAllocated
	case s.AverageUtilization > FullyUtilizedThreshold:
		return StatusFullyUtilized
	case s.AverageUtilization > WellUtilizedThreshold:
		return StatusWellUtilized
	default:
		return StatusUnderUtilized
	}
}

// NewResourceUtilization runs the day loop for one resource group.
func NewResourceUtilization(p Profile, window generic.Period, allocations []Allocation, overrides OverrideIndex) ResourceUtilization {
	res := ComputeUtilization(p, window, allocations, overrides)
	return ResourceUtilization{
		Profile:     p,
		Summary:     res.Summary,
		Allocations: allocations,
		Status:      Classify(res.Summary),
	}
}
