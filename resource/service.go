package resource

import (
	"context"
	"fmt"

	"github.com/warp/project-control/generic"
)

// =============================================================================
// STORE - Read contract of the persistence layer
// =============================================================================

// Store is what the engine reads. Implementations: store/sqlite,
// store/postgres, store/memory. Getters return (nil, nil) for a missing row.
type Store interface {
	GetResource(ctx context.Context, id string) (*Resource, error)
	GetResources(ctx context.Context, ids []string) ([]Resource, error)
	GetUsers(ctx context.Context, ids []string) ([]User, error)

	// AllocationsForResource returns allocations overlapping window (inclusive).
	AllocationsForResource(ctx context.Context, resourceID string, window generic.Period) ([]Allocation, error)
	// AllocationsForProject returns allocations overlapping window (inclusive).
	AllocationsForProject(ctx context.Context, projectID string, window generic.Period) ([]Allocation, error)
	// AvailabilityInRange returns overrides for the resources dated inside window.
	AvailabilityInRange(ctx context.Context, resourceIDs []string, window generic.Period) ([]Availability, error)

	TasksForProject(ctx context.Context, projectID string) ([]generic.Task, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service fetches records through Store and runs the pure engines on them.
type Service struct {
	Store      Store
	Rebalancer *Rebalancer
}

func NewService(store Store) *Service {
	return &Service{Store: store, Rebalancer: &Rebalancer{}}
}

type UtilizationQuery struct {
	ResourceID string
	Window     generic.Period
}

func (q UtilizationQuery) Validate() error {
	if q.ResourceID == "" {
		return generic.Required("resourceId")
	}
	return q.Window.Validate()
}

// UtilizationReport is the single-resource response.
type UtilizationReport struct {
	Resource         Resource
	Result           Result
	TotalAllocations int
}

// Utilization computes the day-by-day load of one resource.
func (s *Service) Utilization(ctx context.Context, q UtilizationQuery) (*UtilizationReport, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	res, err := s.Store.GetResource(ctx, q.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("load resource: %w", err)
	}
	if res == nil {
		return nil, &generic.NotFoundError{Kind: "resource", ID: q.ResourceID}
	}

	allocations, err := s.Store.AllocationsForResource(ctx, res.ID, q.Window)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	overrides, err := s.Store.AvailabilityInRange(ctx, []string{res.ID}, q.Window)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	return &UtilizationReport{
		Resource:         *res,
		Result:           ComputeUtilization(ProfileOf(*res), q.Window, allocations, NewOverrideIndex(overrides)),
		TotalAllocations: len(allocations),
	}, nil
}

type RebalanceQuery struct {
	ProjectID string
	Window    generic.Period
}

func (q RebalanceQuery) Validate() error {
	if q.ProjectID == "" {
		return generic.Required("projectId")
	}
	return q.Window.Validate()
}

// Analysis holds the aggregate counts of a rebalance run.
type Analysis struct {
	TotalResources         int
	OverAllocatedResources int
	UnderUtilizedResources int
	TotalTasks             int
	CriticalPathTasks      int
	NonCriticalTasks       int
}

type RebalanceReport struct {
	ProjectID       string
	Window          generic.Period
	Analysis        Analysis
	Suggestions     []Suggestion
	ResourceSummary []ResourceUtilization
}

// ProjectUtilization builds the per-resource table for a project and returns
// it together with the project's open tasks.
func (s *Service) ProjectUtilization(ctx context.Context, q RebalanceQuery) ([]ResourceUtilization, []generic.Task, error) {
	if err := q.Validate(); err != nil {
		return nil, nil, err
	}

	allocations, err := s.Store.AllocationsForProject(ctx, q.ProjectID, q.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("load allocations: %w", err)
	}
	tasks, err := s.Store.TasksForProject(ctx, q.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	open := make([]generic.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsOpen() {
			open = append(open, t)
		}
	}

	groups := groupByHandle(allocations)

	var resourceIDs, userIDs []string
	for _, g := range groups {
		if g.handle.IsResource() {
			resourceIDs = append(resourceIDs, g.handle.ID)
		} else {
			userIDs = append(userIDs, g.handle.ID)
		}
	}

	profiles, err := s.profiles(ctx, resourceIDs, userIDs, groups)
	if err != nil {
		return nil, nil, err
	}
	overrides, err := s.Store.AvailabilityInRange(ctx, resourceIDs, q.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("load availability: %w", err)
	}
	idx := NewOverrideIndex(overrides)

	table := make([]ResourceUtilization, 0, len(groups))
	for _, g := range groups {
		table = append(table, NewResourceUtilization(profiles[g.handle], q.Window, g.allocations, idx))
	}
	return table, open, nil
}

// Rebalance runs the project-wide analysis and the greedy suggestion engine.
func (s *Service) Rebalance(ctx context.Context, q RebalanceQuery) (*RebalanceReport, error) {
	table, tasks, err := s.ProjectUtilization(ctx, q)
	if err != nil {
		return nil, err
	}

	over, under := Partition(table)
	analysis := Analysis{
		TotalResources:         len(table),
		OverAllocatedResources: len(over),
		UnderUtilizedResources: len(under),
		TotalTasks:             len(tasks),
	}
	for _, t := range tasks {
		if t.IsCriticalPath {
			analysis.CriticalPathTasks++
		}
	}
	analysis.NonCriticalTasks = analysis.TotalTasks - analysis.CriticalPathTasks

	return &RebalanceReport{
		ProjectID:       q.ProjectID,
		Window:          q.Window,
		Analysis:        analysis,
		Suggestions:     s.Rebalancer.Suggest(table, tasks),
		ResourceSummary: table,
	}, nil
}

type allocationGroup struct {
	handle      generic.Handle
	allocations []Allocation
}

// groupByHandle keeps the order in which handles first appear. Allocations
// with neither a resource nor a user are dropped.
func groupByHandle(allocations []Allocation) []*allocationGroup {
	index := make(map[generic.Handle]*allocationGroup)
	var groups []*allocationGroup
	for _, a := range allocations {
		h, ok := a.Handle()
		if !ok {
			continue
		}
		g, seen := index[h]
		if !seen {
			g = &allocationGroup{handle: h}
			index[h] = g
			groups = append(groups, g)
		}
		g.allocations = append(g.allocations, a)
	}
	return groups
}

func (s *Service) profiles(ctx context.Context, resourceIDs, userIDs []string, groups []*allocationGroup) (map[generic.Handle]Profile, error) {
	out := make(map[generic.Handle]Profile, len(groups))

	if len(resourceIDs) > 0 {
		rows, err := s.Store.GetResources(ctx, resourceIDs)
		if err != nil {
			return nil, fmt.Errorf("load resources: %w", err)
		}
		for _, r := range rows {
			out[generic.ResourceHandle(r.ID)] = ProfileOf(r)
		}
	}

	users := make(map[string]User)
	if len(userIDs) > 0 {
		rows, err := s.Store.GetUsers(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}

	for _, g := range groups {
		if _, ok := out[g.handle]; ok {
			continue
		}
		t := g.allocations[0].ResourceType
		if g.handle.IsResource() {
			// Allocation references a resource row that no longer exists.
			out[g.handle] = Profile{Handle: g.handle, Name: g.handle.ID, Type: t,
				MaxHoursPerDay: DefaultUserHoursPerDay, MaxHoursPerWeek: DefaultUserHoursPerWeek}
			continue
		}
		u, ok := users[g.handle.ID]
		if !ok {
			u = User{ID: g.handle.ID}
		}
		out[g.handle] = UserProfile(u, t)
	}
	return out, nil
}
