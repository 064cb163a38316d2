// Package memory provides an in-memory store for tests and local runs. It
// satisfies both resource.Store and costcontrol.Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// table keeps rows by id in insertion order. Saving an existing id replaces
// the row in place.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, id := range t.order {
		if v := t.rows[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	resources    *table[resource.Resource]
	users        *table[resource.User]
	availability *table[resource.Availability]
	allocations  *table[resource.Allocation]
	tasks        *table[generic.Task]
	projects     *table[costcontrol.Project]
	budgetLines  *table[costcontrol.BudgetLine]
	changes      *table[costcontrol.ChangeOrder]
	cashflows    *table[costcontrol.Cashflow]
	alerts       *table[costcontrol.CostAlert]
	snapshots    []costcontrol.EACSnapshot
}

func New() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.resources = newTable[resource.Resource]()
	m.users = newTable[resource.User]()
	m.availability = newTable[resource.Availability]()
	m.allocations = newTable[resource.Allocation]()
	m.tasks = newTable[generic.Task]()
	m.projects = newTable[costcontrol.Project]()
	m.budgetLines = newTable[costcontrol.BudgetLine]()
	m.changes = newTable[costcontrol.ChangeOrder]()
	m.cashflows = newTable[costcontrol.Cashflow]()
	m.alerts = newTable[costcontrol.CostAlert]()
	m.snapshots = nil
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) SaveResource(_ context.Context, r resource.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources.put(r.ID, r)
	return nil
}

func (m *Memory) SaveUser(_ context.Context, u resource.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users.put(u.ID, u)
	return nil
}

// SaveAvailability keeps one override per (resource, day); a second save for
// the same day replaces the first.
func (m *Memory) SaveAvailability(_ context.Context, a resource.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Date = generic.Day(a.Date.Time)
	m.availability.put(a.ResourceID+"|"+a.Date.Key(), a)
	return nil
}

func (m *Memory) SaveAllocation(_ context.Context, a resource.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations.put(a.ID, a)
	return nil
}

func (m *Memory) SaveTask(_ context.Context, t generic.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks.put(t.ID, t)
	return nil
}

func (m *Memory) SaveProject(_ context.Context, p costcontrol.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects.put(p.ID, p)
	return nil
}

func (m *Memory) SaveBudgetLine(_ context.Context, l costcontrol.BudgetLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgetLines.put(l.ID, l)
	return nil
}

func (m *Memory) SaveChangeOrder(_ context.Context, c costcontrol.ChangeOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes.put(c.ID, c)
	return nil
}

// =============================================================================
// RESOURCE READS
// =============================================================================

func (m *Memory) GetResource(_ context.Context, id string) (*resource.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources.get(id)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) GetResources(_ context.Context, ids []string) ([]resource.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := set(ids)
	return m.resources.filter(func(r resource.Resource) bool { return want[r.ID] }), nil
}

// ListResources returns every resource ordered by name.
func (m *Memory) ListResources(_ context.Context) ([]resource.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.resources.filter(func(resource.Resource) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetUsers(_ context.Context, ids []string) ([]resource.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := set(ids)
	return m.users.filter(func(u resource.User) bool { return want[u.ID] }), nil
}

func (m *Memory) AllocationsForResource(_ context.Context, resourceID string, window generic.Period) ([]resource.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocations.filter(func(a resource.Allocation) bool {
		return a.ResourceID == resourceID && a.Span().Overlaps(window)
	}), nil
}

func (m *Memory) AllocationsForProject(_ context.Context, projectID string, window generic.Period) ([]resource.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocations.filter(func(a resource.Allocation) bool {
		return a.ProjectID == projectID && a.Span().Overlaps(window)
	}), nil
}

func (m *Memory) AvailabilityInRange(_ context.Context, resourceIDs []string, window generic.Period) ([]resource.Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := set(resourceIDs)
	return m.availability.filter(func(a resource.Availability) bool {
		return want[a.ResourceID] && window.Contains(a.Date)
	}), nil
}

func (m *Memory) TasksForProject(_ context.Context, projectID string) ([]generic.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks.filter(func(t generic.Task) bool { return t.ProjectID == projectID }), nil
}

// =============================================================================
// COST READS AND WRITES
// =============================================================================

func (m *Memory) GetProject(_ context.Context, id string) (*costcontrol.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects.get(id)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]costcontrol.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects.filter(func(costcontrol.Project) bool { return true }), nil
}

func (m *Memory) BudgetLines(_ context.Context, projectID string) ([]costcontrol.BudgetLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budgetLines.filter(func(l costcontrol.BudgetLine) bool { return l.ProjectID == projectID }), nil
}

func (m *Memory) ChangeOrders(_ context.Context, projectID string) ([]costcontrol.ChangeOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changes.filter(func(c costcontrol.ChangeOrder) bool { return c.ProjectID == projectID }), nil
}

func (m *Memory) Cashflows(_ context.Context, projectID string) ([]costcontrol.Cashflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.cashflows.filter(func(c costcontrol.Cashflow) bool { return c.ProjectID == projectID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) GetCashflow(_ context.Context, id string) (*costcontrol.Cashflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cashflows.get(id)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) InsertCashflow(_ context.Context, c costcontrol.Cashflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cashflows.put(c.ID, c)
	return nil
}

func (m *Memory) UpdateCashflow(_ context.Context, c costcontrol.Cashflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cashflows.get(c.ID); !ok {
		return &generic.NotFoundError{Kind: "cashflow", ID: c.ID}
	}
	m.cashflows.put(c.ID, c)
	return nil
}

func (m *Memory) Alerts(_ context.Context, projectID string, statuses ...costcontrol.AlertStatus) ([]costcontrol.CostAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.alerts.filter(func(a costcontrol.CostAlert) bool {
		return a.ProjectID == projectID && statusIn(a.Status, statuses)
	})
	// Newest first, matching the SQL stores.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (*costcontrol.CostAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts.get(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// InsertAlertIfNoActive checks and inserts under one write lock.
func (m *Memory) InsertAlertIfNoActive(_ context.Context, a costcontrol.CostAlert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.alerts.filter(func(x costcontrol.CostAlert) bool {
		return x.ProjectID == a.ProjectID && x.Type == a.Type && x.Status == costcontrol.AlertActive
	})
	if len(active) > 0 {
		return false, nil
	}
	m.alerts.put(a.ID, a)
	return true, nil
}

func (m *Memory) UpdateAlert(_ context.Context, a costcontrol.CostAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts.get(a.ID); !ok {
		return &generic.NotFoundError{Kind: "alert", ID: a.ID}
	}
	m.alerts.put(a.ID, a)
	return nil
}

func (m *Memory) InsertSnapshot(_ context.Context, s costcontrol.EACSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *Memory) Snapshots(_ context.Context, projectID string) ([]costcontrol.EACSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costcontrol.EACSnapshot
	for _, s := range m.snapshots {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func set(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func statusIn(s costcontrol.AlertStatus, statuses []costcontrol.AlertStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, x := range statuses {
		if s == x {
			return true
		}
	}
	return false
}

var (
	_ resource.Store    = (*Memory)(nil)
	_ costcontrol.Store = (*Memory)(nil)
)
