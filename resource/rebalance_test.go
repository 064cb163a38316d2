package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/generic"
)

func row(id string, typ Type, avg float64, overDays int, allocated, available float64) ResourceUtilization {
	return ResourceUtilization{
		Profile: Profile{Handle: generic.ResourceHandle(id), Name: id, Type: typ, MaxHoursPerDay: 8},
		Summary: Summary{
			TotalDays:           10,
			AverageUtilization:  avg,
			OverAllocatedDays:   overDays,
			TotalAllocatedHours: allocated,
			TotalAvailableHours: available,
		},
	}
}

func task(id, resourceID string, priority generic.TaskPriority, critical bool) generic.Task {
	return generic.Task{
		ID: id, Title: "Task " + id, Status: generic.TaskTodo, Priority: priority,
		IsCriticalPath: critical, AssignedResourceID: resourceID, EstimatedHours: 16,
		StartDate: mon,
	}
}

func TestPartition_OrdersAndFilters(t *testing.T) {
	rows := []ResourceUtilization{
		row("a", TypeLabour, 120, 2, 96, 80),
		row("b", TypeLabour, 40, 0, 32, 80),
		row("c", TypeLabour, 150, 6, 120, 80),
		row("d", TypeLabour, 0, 0, 0, 80), // nothing allocated: not a target
		row("e", TypeLabour, 10, 0, 8, 80),
	}

	over, under := Partition(rows)

	require.Len(t, over, 2)
	assert.Equal(t, "c", over[0].Profile.Name)
	assert.Equal(t, "a", over[1].Profile.Name)
	require.Len(t, under, 2)
	assert.Equal(t, "e", under[0].Profile.Name)
	assert.Equal(t, "b", under[1].Profile.Name)
}

func TestSuggest_MovesToSameTypeTarget(t *testing.T) {
	// GIVEN: an over-allocated labourer, an idle excavator and an idle labourer
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 130, 4, 104, 80),
		row("excavator", TypeEquipment, 10, 0, 8, 80),
		row("crew-b", TypeLabour, 30, 0, 24, 80),
	}
	tasks := []generic.Task{
		task("t-high", "crew-a", generic.PriorityHigh, false),
		task("t-low", "crew-a", generic.PriorityLow, false),
	}

	// WHEN
	got := (&Rebalancer{}).Suggest(rows, tasks)

	// THEN: lowest priority first, both go to crew-b with HIGH priority (> 3 over days)
	require.Len(t, got, 2)
	assert.Equal(t, "t-low", got[0].Action.TaskID)
	assert.Equal(t, "t-high", got[1].Action.TaskID)
	for _, s := range got {
		assert.Equal(t, SuggestMoveTask, s.Type)
		assert.Equal(t, SuggestionHigh, s.Priority)
		assert.Equal(t, ActionMove, s.Action.Kind)
		require.NotNil(t, s.Action.To)
		assert.Equal(t, generic.ResourceHandle("crew-b"), *s.Action.To)
		assert.Equal(t, 20.0, s.Action.EstimatedImpact) // 16h of 80h available
	}
}

func TestSuggest_MediumPriorityAtThreeOverDays(t *testing.T) {
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 110, 3, 88, 80),
		row("crew-b", TypeLabour, 30, 0, 24, 80),
	}
	got := (&Rebalancer{}).Suggest(rows, []generic.Task{task("t1", "crew-a", generic.PriorityMedium, false)})

	require.Len(t, got, 1)
	assert.Equal(t, SuggestionMedium, got[0].Priority)
}

func TestSuggest_NeverTouchesCriticalWork(t *testing.T) {
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 140, 5, 112, 80),
		row("crew-b", TypeLabour, 20, 0, 16, 80),
	}
	tasks := []generic.Task{
		task("cp", "crew-a", generic.PriorityLow, true),
		task("crit", "crew-a", generic.PriorityCritical, false),
		task("ok", "crew-a", generic.PriorityMedium, false),
	}

	got := (&Rebalancer{}).Suggest(rows, tasks)

	require.Len(t, got, 1)
	for _, s := range got {
		assert.NotEqual(t, "cp", s.Action.TaskID)
		assert.NotEqual(t, "crit", s.Action.TaskID)
	}
}

func TestSuggest_DelaysWhenNoTarget(t *testing.T) {
	// GIVEN: no under-utilized labourer, 5 over-allocated days
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 140, 5, 112, 80),
		row("crane", TypeEquipment, 20, 0, 16, 80),
	}
	tasks := []generic.Task{task("t1", "crew-a", generic.PriorityLow, false)}

	// WHEN
	got := (&Rebalancer{}).Suggest(rows, tasks)

	// THEN: delayed by ceil(5/2) = 3 days
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, SuggestMoveTask, s.Type)
	assert.Equal(t, SuggestionMedium, s.Priority)
	assert.Equal(t, ActionDelay, s.Action.Kind)
	assert.Equal(t, 3, s.Action.DelayDays)
	assert.True(t, s.Action.SuggestedStartDate.Equal(mon.AddDays(3)))
	assert.Nil(t, s.Action.To)
}

func TestSuggest_SourceIsNeverItsOwnTarget(t *testing.T) {
	// Over-allocated on one day but under-utilized on average.
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 60, 1, 48, 80),
	}
	got := (&Rebalancer{}).Suggest(rows, []generic.Task{task("t1", "crew-a", generic.PriorityLow, false)})

	require.Len(t, got, 1)
	assert.Equal(t, ActionDelay, got[0].Action.Kind)
	assert.Equal(t, 1, got[0].Action.DelayDays)
}

func TestSuggest_RedistributeWhenOnlyCriticalTasks(t *testing.T) {
	rows := []ResourceUtilization{
		row("crew-a", TypeLabour, 140, 5, 112, 80),
		row("crew-b", TypeLabour, 20, 0, 16, 80),
	}
	tasks := []generic.Task{task("cp", "crew-a", generic.PriorityHigh, true)}

	got := (&Rebalancer{}).Suggest(rows, tasks)

	require.Len(t, got, 1)
	assert.Equal(t, SuggestRedistributeHours, got[0].Type)
	assert.Equal(t, SuggestionHigh, got[0].Priority)
	assert.Empty(t, got[0].Action.TaskID)
	assert.Len(t, got[0].Action.Recommendations, 2)
}

func TestSuggest_AdjustAllocationCappedAtThree(t *testing.T) {
	rows := []ResourceUtilization{
		row("a", TypeLabour, 50, 0, 40, 80),
		row("b", TypeLabour, 10, 0, 8, 80),
		row("c", TypeLabour, 30, 0, 24, 80),
		row("d", TypeLabour, 20, 0, 16, 80),
	}

	got := (&Rebalancer{}).Suggest(rows, nil)

	require.Len(t, got, MaxAdjustSuggestions)
	assert.Equal(t, "b", got[0].Action.ToName)
	assert.Equal(t, 72.0, got[0].Action.IdleHours)
	assert.Equal(t, "d", got[1].Action.ToName)
	assert.Equal(t, "c", got[2].Action.ToName)
	for _, s := range got {
		assert.Equal(t, SuggestAdjustAllocation, s.Type)
		assert.Equal(t, SuggestionLow, s.Priority)
	}
}

func TestSuggest_UserAssigneeMatchesUserHandle(t *testing.T) {
	over := row("u1", TypeLabour, 150, 2, 120, 80)
	over.Profile.Handle = generic.UserHandle("u1")
	target := row("r1", TypeLabour, 20, 0, 16, 80)

	tk := task("t1", "", generic.PriorityLow, false)
	tk.AssignedToID = "u1"
	// Same id on the resource side must not be mistaken for the user.
	other := task("t2", "u1", generic.PriorityLow, false)

	got := (&Rebalancer{}).Suggest([]ResourceUtilization{over, target}, []generic.Task{tk, other})

	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].Action.TaskID)
	assert.Equal(t, generic.UserHandle("u1"), *got[0].Action.From)
}

func TestSuggest_EmptyInputs(t *testing.T) {
	got := (&Rebalancer{}).Suggest(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
