/*
rebalance.go - Greedy rebalancing suggestions

PURPOSE:
  Turns the project-wide utilization table into actionable suggestions that
  move or delay non-critical work away from over-allocated resources.

ALGORITHM (greedy, not optimal):
  1. over  = resources with any over-allocated day, most over-allocated days first
     under = resources below 70% average utilization that have some hours, least utilized first
  2. For each over-allocated resource, candidates are its tasks that are neither
     on the critical path nor CRITICAL priority, lowest priority first.
  3. Each candidate moves to the first same-type under-utilized resource below 80%
     (move_task), or is delayed by ceil(overAllocatedDays/2) days when no such
     target exists.
  4. An over-allocated resource with no candidates gets one redistribute_hours
     suggestion instead.
  5. If nothing was suggested at all, up to 3 adjust_allocation hints name idle
     capacity.

  Targets are not re-scored after a proposed move, so several tasks may be
  proposed for the same target in a single run.

SEE ALSO:
  - utilization.go: ResourceUtilization input records
*/
package resource

import (
	"fmt"
	"sort"

	"github.com/warp/project-control/generic"
)

const (
	UnderUtilizedThreshold = 70.0
	MoveTargetThreshold    = 80.0
	MaxAdjustSuggestions   = 3
	HighPriorityOverDays   = 3
)

// =============================================================================
// SUGGESTION TYPES
// =============================================================================

type SuggestionType string

const (
	SuggestMoveTask          SuggestionType = "move_task"
	SuggestRedistributeHours SuggestionType = "redistribute_hours"
	SuggestAdjustAllocation  SuggestionType = "adjust_allocation"
)

type SuggestionPriority string

const (
	SuggestionHigh   SuggestionPriority = "HIGH"
	SuggestionMedium SuggestionPriority = "MEDIUM"
	SuggestionLow    SuggestionPriority = "LOW"
)

type ActionKind string

const (
	ActionMove         ActionKind = "move"
	ActionDelay        ActionKind = "delay"
	ActionRedistribute ActionKind = "redistribute"
	ActionIncrease     ActionKind = "increase_allocation"
)

// Action is the machine-readable payload of a suggestion. Only the fields
// relevant to Kind are set.
type Action struct {
	Kind ActionKind

	TaskID    string
	TaskTitle string

	From     *generic.Handle
	FromName string
	To       *generic.Handle
	ToName   string

	EstimatedHours  float64
	EstimatedImpact float64 // percent of the source's available hours

	CurrentStartDate   generic.TimePoint
	SuggestedStartDate generic.TimePoint
	DelayDays          int

	IdleHours       float64
	Recommendations []string
}

type Suggestion struct {
	Type        SuggestionType
	Priority    SuggestionPriority
	Description string
	Action      Action
}

// =============================================================================
// REBALANCER
// =============================================================================

// Rebalancer produces suggestions. It holds no state between runs.
type Rebalancer struct{}

// Suggest runs the greedy heuristic over a utilization table and the
// project's open tasks.
func (rb *Rebalancer) Suggest(resources []ResourceUtilization, tasks []generic.Task) []Suggestion {
	over, under := Partition(resources)
	suggestions := []Suggestion{}

	for _, src := range over {
		candidates := movableTasks(src.Profile.Handle, tasks)
		if len(candidates) == 0 {
			suggestions = append(suggestions, redistribute(src))
			continue
		}

		target, hasTarget := findTarget(src, under)
		for _, task := range candidates {
			if hasTarget {
				suggestions = append(suggestions, moveTask(src, target, task))
			} else {
				suggestions = append(suggestions, delayTask(src, task))
			}
		}
	}

	if len(suggestions) == 0 {
		for i, r := range under {
			if i == MaxAdjustSuggestions {
				break
			}
			suggestions = append(suggestions, adjustAllocation(r))
		}
	}
	return suggestions
}

// Partition splits resources into over-allocated (most over-allocated days
// first) and under-utilized (lowest utilization first). Sorting is stable so
// ties keep their input order.
func Partition(resources []ResourceUtilization) (over, under []ResourceUtilization) {
	for _, r := range resources {
		if r.Summary.OverAllocatedDays > 0 {
			over = append(over, r)
		}
		if r.Summary.AverageUtilization < UnderUtilizedThreshold && r.Summary.TotalAllocatedHours > 0 {
			under = append(under, r)
		}
	}
	sort.SliceStable(over, func(i, j int) bool {
		return over[i].Summary.OverAllocatedDays > over[j].Summary.OverAllocatedDays
	})
	sort.SliceStable(under, func(i, j int) bool {
		return under[i].Summary.AverageUtilization < under[j].Summary.AverageUtilization
	})
	return over, under
}

// movableTasks returns the tasks assigned to h that may be touched, lowest
// priority first. Critical-path and CRITICAL tasks are never candidates.
func movableTasks(h generic.Handle, tasks []generic.Task) []generic.Task {
	var out []generic.Task
	for _, t := range tasks {
		assignee, ok := t.Assignee()
		if !ok || assignee != h {
			continue
		}
		if t.IsCriticalPath || t.Priority == generic.PriorityCritical {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

func findTarget(src ResourceUtilization, under []ResourceUtilization) (ResourceUtilization, bool) {
	for _, r := range under {
		if r.Profile.Handle == src.Profile.Handle {
			continue
		}
		if r.Profile.Type == src.Profile.Type && r.Summary.AverageUtilization < MoveTargetThreshold {
			return r, true
		}
	}
	return ResourceUtilization{}, false
}

func moveTask(src, dst ResourceUtilization, task generic.Task) Suggestion {
	priority := SuggestionMedium
	if src.Summary.OverAllocatedDays > HighPriorityOverDays {
		priority = SuggestionHigh
	}
	from, to := src.Profile.Handle, dst.Profile.Handle

	return Suggestion{
		Type:     SuggestMoveTask,
		Priority: priority,
		Description: fmt.Sprintf("Move task %q from %s (over-allocated on %d days) to %s (%.1f%% utilized)",
			task.Title, src.Profile.Name, src.Summary.OverAllocatedDays,
			dst.Profile.Name, dst.Summary.AverageUtilization),
		Action: Action{
			Kind:             ActionMove,
			TaskID:           task.ID,
			TaskTitle:        task.Title,
			From:             &from,
			FromName:         src.Profile.Name,
			To:               &to,
			ToName:           dst.Profile.Name,
			EstimatedHours:   task.EstimatedHours,
			EstimatedImpact:  percentOf(task.EstimatedHours, src.Summary.TotalAvailableHours),
			CurrentStartDate: task.StartDate,
		},
	}
}

func delayTask(src ResourceUtilization, task generic.Task) Suggestion {
	delay := (src.Summary.OverAllocatedDays + 1) / 2
	from := src.Profile.Handle

	var suggested generic.TimePoint
	if !task.StartDate.IsZero() {
		suggested = task.StartDate.AddDays(delay)
	}

	return Suggestion{
		Type:     SuggestMoveTask,
		Priority: SuggestionMedium,
		Description: fmt.Sprintf("Delay task %q by %d day(s): no under-utilized %s resource is available to take it from %s",
			task.Title, delay, src.Profile.Type, src.Profile.Name),
		Action: Action{
			Kind:               ActionDelay,
			TaskID:             task.ID,
			TaskTitle:          task.Title,
			From:               &from,
			FromName:           src.Profile.Name,
			EstimatedHours:     task.EstimatedHours,
			CurrentStartDate:   task.StartDate,
			SuggestedStartDate: suggested,
			DelayDays:          delay,
		},
	}
}

func redistribute(src ResourceUtilization) Suggestion {
	from := src.Profile.Handle
	return Suggestion{
		Type:     SuggestRedistributeHours,
		Priority: SuggestionHigh,
		Description: fmt.Sprintf("%s is over-allocated on %d days and has no movable non-critical tasks",
			src.Profile.Name, src.Summary.OverAllocatedDays),
		Action: Action{
			Kind:     ActionRedistribute,
			From:     &from,
			FromName: src.Profile.Name,
			Recommendations: []string{
				"Extend the timeline of the critical work assigned to " + src.Profile.Name,
				"Add capacity (overtime, extra crew or equipment) for the over-allocated days",
			},
		},
	}
}

func adjustAllocation(r ResourceUtilization) Suggestion {
	to := r.Profile.Handle
	idle := r.Summary.TotalAvailableHours - r.Summary.TotalAllocatedHours
	return Suggestion{
		Type:     SuggestAdjustAllocation,
		Priority: SuggestionLow,
		Description: fmt.Sprintf("%s is %.1f%% utilized with %.1f idle hours; consider assigning more work",
			r.Profile.Name, r.Summary.AverageUtilization, idle),
		Action: Action{
			Kind:      ActionIncrease,
			To:        &to,
			ToName:    r.Profile.Name,
			IdleHours: idle,
		},
	}
}
