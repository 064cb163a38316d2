package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

var (
	mon = generic.NewTimePoint(2025, time.March, 3)
	fri = generic.NewTimePoint(2025, time.March, 7)
)

func TestAllocations_InclusiveOverlap(t *testing.T) {
	// GIVEN: allocations touching each end of the window and one outside it
	ctx := context.Background()
	m := New()
	for _, a := range []resource.Allocation{
		{ID: "before", ResourceID: "r1", ProjectID: "p1", StartDate: mon.AddDays(-7), EndDate: mon.AddDays(-1)},
		{ID: "touch-start", ResourceID: "r1", ProjectID: "p1", StartDate: mon.AddDays(-3), EndDate: mon},
		{ID: "touch-end", ResourceID: "r1", ProjectID: "p1", StartDate: fri, EndDate: fri.AddDays(3)},
		{ID: "user", UserID: "u1", ProjectID: "p1", StartDate: mon, EndDate: fri},
	} {
		require.NoError(t, m.SaveAllocation(ctx, a))
	}
	window := generic.NewPeriod(mon, fri)

	// WHEN
	byResource, err := m.AllocationsForResource(ctx, "r1", window)
	require.NoError(t, err)
	byProject, err := m.AllocationsForProject(ctx, "p1", window)
	require.NoError(t, err)

	// THEN
	assert.Len(t, byResource, 2)
	assert.Len(t, byProject, 3)
}

func TestInsertAlertIfNoActive(t *testing.T) {
	ctx := context.Background()
	m := New()
	alert := func(id string) costcontrol.CostAlert {
		return costcontrol.CostAlert{ID: id, ProjectID: "p1", Type: costcontrol.AlertMarginBelowThreshold,
			Status: costcontrol.AlertActive, CreatedAt: time.Now()}
	}

	created, err := m.InsertAlertIfNoActive(ctx, alert("a1"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.InsertAlertIfNoActive(ctx, alert("a2"))
	require.NoError(t, err)
	assert.False(t, created, "second ACTIVE alert of the same type is skipped")

	a1, err := m.GetAlert(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, a1.Acknowledge(time.Now()))
	require.NoError(t, m.UpdateAlert(ctx, *a1))

	created, err = m.InsertAlertIfNoActive(ctx, alert("a3"))
	require.NoError(t, err)
	assert.True(t, created, "acknowledging frees the active slot")

	active, err := m.Alerts(ctx, "p1", costcontrol.AlertActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	all, err := m.Alerts(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAlerts_NewestFirst(t *testing.T) {
	// GIVEN: alerts inserted oldest first, two sharing a timestamp
	ctx := context.Background()
	m := New()
	now := time.Now()
	for _, a := range []costcontrol.CostAlert{
		{ID: "old", ProjectID: "p1", Type: costcontrol.AlertMarginBelowThreshold, Status: costcontrol.AlertResolved, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "tie-b", ProjectID: "p1", Type: costcontrol.AlertMarginBelowThreshold, Status: costcontrol.AlertAcknowledged, CreatedAt: now},
		{ID: "tie-a", ProjectID: "p1", Type: costcontrol.AlertMarginBelowThreshold, Status: costcontrol.AlertActive, CreatedAt: now},
	} {
		created, err := m.InsertAlertIfNoActive(ctx, a)
		require.NoError(t, err)
		require.True(t, created)
	}

	// WHEN
	alerts, err := m.Alerts(ctx, "p1")

	// THEN: created_at descending, then id
	require.NoError(t, err)
	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"tie-a", "tie-b", "old"}, ids)
}

func TestUpdateMissingRows(t *testing.T) {
	ctx := context.Background()
	m := New()

	err := m.UpdateCashflow(ctx, costcontrol.Cashflow{ID: "ghost"})
	assert.True(t, generic.IsNotFound(err))

	err = m.UpdateAlert(ctx, costcontrol.CostAlert{ID: "ghost"})
	assert.True(t, generic.IsNotFound(err))

	p, err := m.GetProject(ctx, "ghost")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSnapshotsAndReset(t *testing.T) {
	ctx := context.Background()
	m := New()
	now := time.Now()
	for _, s := range []costcontrol.EACSnapshot{
		{ID: "late", ProjectID: "p1", RecordedAt: now.Add(time.Hour), EAC: decimal.NewFromInt(3)},
		{ID: "early", ProjectID: "p1", RecordedAt: now, EAC: decimal.NewFromInt(1)},
		{ID: "other", ProjectID: "p2", RecordedAt: now},
	} {
		require.NoError(t, m.InsertSnapshot(ctx, s))
	}
	require.NoError(t, m.SaveResource(ctx, resource.Resource{ID: "r1", Name: "Crew"}))

	history, err := m.Snapshots(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "early", history[0].ID)

	require.NoError(t, m.Reset(ctx))
	history, _ = m.Snapshots(ctx, "p1")
	assert.Empty(t, history)
	resources, _ := m.ListResources(ctx)
	assert.Empty(t, resources)
}
