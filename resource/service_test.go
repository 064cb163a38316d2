package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/generic"
)

// fakeStore serves fixed slices and records whether it was queried.
type fakeStore struct {
	resources    []Resource
	users        []User
	allocations  []Allocation
	availability []Availability
	tasks        []generic.Task
	calls        int
}

func (f *fakeStore) GetResource(_ context.Context, id string) (*Resource, error) {
	f.calls++
	for _, r := range f.resources {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetResources(_ context.Context, ids []string) ([]Resource, error) {
	f.calls++
	var out []Resource
	for _, r := range f.resources {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) GetUsers(_ context.Context, ids []string) ([]User, error) {
	f.calls++
	var out []User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) AllocationsForResource(_ context.Context, resourceID string, window generic.Period) ([]Allocation, error) {
	f.calls++
	var out []Allocation
	for _, a := range f.allocations {
		if a.ResourceID == resourceID && a.Span().Overlaps(window) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AllocationsForProject(_ context.Context, projectID string, window generic.Period) ([]Allocation, error) {
	f.calls++
	var out []Allocation
	for _, a := range f.allocations {
		if a.ProjectID == projectID && a.Span().Overlaps(window) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AvailabilityInRange(_ context.Context, resourceIDs []string, window generic.Period) ([]Availability, error) {
	f.calls++
	var out []Availability
	for _, rec := range f.availability {
		for _, id := range resourceIDs {
			if rec.ResourceID == id && window.Contains(rec.Date) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) TasksForProject(_ context.Context, projectID string) ([]generic.Task, error) {
	f.calls++
	var out []generic.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestService_Utilization_Validation(t *testing.T) {
	store := &fakeStore{resources: []Resource{labourer("r1")}}
	svc := NewService(store)
	ctx := context.Background()

	cases := []struct {
		name  string
		query UtilizationQuery
		field string
	}{
		{"missing resource", UtilizationQuery{Window: generic.NewPeriod(mon, fri)}, "resourceId"},
		{"missing start", UtilizationQuery{ResourceID: "r1", Window: generic.Period{End: fri}}, "startDate"},
		{"missing end", UtilizationQuery{ResourceID: "r1", Window: generic.Period{Start: mon}}, "endDate"},
		{"inverted", UtilizationQuery{ResourceID: "r1", Window: generic.NewPeriod(fri, mon)}, "endDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Utilization(ctx, tc.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, generic.ErrValidation))

			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
	assert.Zero(t, store.calls, "validation runs before any fetch")
}

func TestService_Utilization_UnknownResource(t *testing.T) {
	svc := NewService(&fakeStore{})

	_, err := svc.Utilization(context.Background(), UtilizationQuery{ResourceID: "ghost", Window: generic.NewPeriod(mon, fri)})

	assert.True(t, generic.IsNotFound(err))
}

func TestService_Utilization(t *testing.T) {
	// GIVEN: a 40h allocation in-window, one out of window, and a half-day override
	store := &fakeStore{
		resources: []Resource{labourer("r1")},
		allocations: []Allocation{
			alloc("a1", "r1", mon, fri, 40),
			alloc("a2", "r1", mon.AddDays(14), fri.AddDays(14), 40),
		},
		availability: []Availability{{ResourceID: "r1", Date: mon, IsAvailable: true, AvailableHours: 4}},
	}
	svc := NewService(store)

	// WHEN
	rep, err := svc.Utilization(context.Background(), UtilizationQuery{ResourceID: "r1", Window: generic.NewPeriod(mon, fri)})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalAllocations)
	assert.Equal(t, "r1", rep.Resource.ID)
	assert.Equal(t, 36.0, rep.Result.Summary.TotalAvailableHours)
	assert.Equal(t, 1, rep.Result.Summary.OverAllocatedDays)
	assert.True(t, rep.Result.Days[0].IsOverAllocated)
}

func TestService_Rebalance(t *testing.T) {
	// GIVEN: crew-a double-booked, crew-b mostly idle, and a user scheduled directly
	crewA, crewB := labourer("crew-a"), labourer("crew-b")
	userAlloc := Allocation{ID: "a4", UserID: "u1", ProjectID: "proj-1", StartDate: mon, EndDate: fri,
		AllocatedHours: 20, ResourceType: TypeLabour}
	store := &fakeStore{
		resources: []Resource{crewA, crewB},
		users:     []User{{ID: "u1", Name: "Site Engineer"}},
		allocations: []Allocation{
			alloc("a1", "crew-a", mon, fri, 60),
			alloc("a2", "crew-b", mon, fri, 10),
			alloc("a3", "crew-a", mon, fri, 20),
			userAlloc,
			{ID: "orphan", ProjectID: "proj-1", StartDate: mon, EndDate: fri, AllocatedHours: 8},
		},
		tasks: []generic.Task{
			task("t-move", "crew-a", generic.PriorityLow, false),
			task("t-cp", "crew-a", generic.PriorityHigh, true),
			{ID: "t-done", AssignedResourceID: "crew-a", Status: generic.TaskDone},
		},
	}
	for i := range store.tasks {
		store.tasks[i].ProjectID = "proj-1"
	}
	svc := NewService(store)

	// WHEN
	rep, err := svc.Rebalance(context.Background(), RebalanceQuery{ProjectID: "proj-1", Window: generic.NewPeriod(mon, fri)})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, Analysis{
		TotalResources:         3,
		OverAllocatedResources: 1,
		UnderUtilizedResources: 2,
		TotalTasks:             2,
		CriticalPathTasks:      1,
		NonCriticalTasks:       1,
	}, rep.Analysis)

	require.Len(t, rep.ResourceSummary, 3)
	assert.Equal(t, generic.ResourceHandle("crew-a"), rep.ResourceSummary[0].Profile.Handle)
	assert.Len(t, rep.ResourceSummary[0].Allocations, 2)
	assert.Equal(t, StatusOverAllocated, rep.ResourceSummary[0].Status)

	user := rep.ResourceSummary[2]
	assert.Equal(t, generic.UserHandle("u1"), user.Profile.Handle)
	assert.Equal(t, "Site Engineer", user.Profile.Name)
	assert.Equal(t, DefaultUserHoursPerDay, user.Profile.MaxHoursPerDay)
	assert.Equal(t, 50.0, user.Summary.AverageUtilization)

	require.Len(t, rep.Suggestions, 1)
	assert.Equal(t, "t-move", rep.Suggestions[0].Action.TaskID)
	assert.Equal(t, "crew-b", rep.Suggestions[0].Action.To.ID)
}

func TestService_Rebalance_MissingProject(t *testing.T) {
	_, err := NewService(&fakeStore{}).Rebalance(context.Background(), RebalanceQuery{Window: generic.NewPeriod(mon, fri)})
	assert.True(t, generic.IsClientError(err))
}
