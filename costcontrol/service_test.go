package costcontrol_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/store/memory"
)

func setupService(t *testing.T) (*costcontrol.Service, *memory.Memory, *time.Time) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SaveProject(ctx, costcontrol.Project{
		ID:              "proj-tower",
		Name:            "Riverside Tower",
		Currency:        "GBP",
		Budget:          decimal.NewFromInt(100000),
		ActualCost:      decimal.NewFromInt(50000),
		MarginThreshold: 10,
		StartDate:       generic.NewTimePoint(2025, 1, 1),
		EndDate:         generic.NewTimePoint(2025, 12, 31),
	}))

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	svc := costcontrol.NewService(store)
	svc.Now = func() time.Time { return now }
	return svc, store, &now
}

func TestAnalytics_Validation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Analytics(ctx, costcontrol.AnalyticsQuery{})
	assert.True(t, generic.IsClientError(err))

	_, err = svc.Analytics(ctx, costcontrol.AnalyticsQuery{ProjectID: "nope"})
	assert.True(t, generic.IsNotFound(err))
}

func TestAnalytics_AlertIsIdempotent(t *testing.T) {
	// GIVEN: a project whose analytics margin is 0% against a 10% threshold
	svc, store, _ := setupService(t)
	ctx := context.Background()
	q := costcontrol.AnalyticsQuery{ProjectID: "proj-tower"}

	// WHEN: analytics runs twice with no change in between
	first, err := svc.Analytics(ctx, q)
	require.NoError(t, err)
	second, err := svc.Analytics(ctx, q)
	require.NoError(t, err)

	// THEN: one ACTIVE alert exists
	assert.True(t, first.AlertCreated)
	assert.False(t, second.AlertCreated)
	active, err := store.Alerts(ctx, "proj-tower", costcontrol.AlertActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, costcontrol.SeverityCritical, active[0].Severity)
	assert.Len(t, second.Alerts, 1)
}

func TestAnalytics_AcknowledgedAlertStillListed(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	q := costcontrol.AnalyticsQuery{ProjectID: "proj-tower"}

	report, err := svc.Analytics(ctx, q)
	require.NoError(t, err)
	require.Len(t, report.Alerts, 1)

	acked, err := svc.AcknowledgeAlert(ctx, report.Alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, costcontrol.AlertAcknowledged, acked.Status)

	// No ACTIVE alert remains, so the next run raises a fresh one.
	report, err = svc.Analytics(ctx, q)
	require.NoError(t, err)
	assert.True(t, report.AlertCreated)
	assert.Len(t, report.Alerts, 2)

	_, err = svc.ResolveAlert(ctx, acked.ID)
	require.NoError(t, err)
	listed, err := store.Alerts(ctx, "proj-tower", costcontrol.AlertActive, costcontrol.AlertAcknowledged)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = svc.ResolveAlert(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestAnalytics_HealthyMarginRaisesNothing(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveChangeOrder(ctx, costcontrol.ChangeOrder{
		ID: "co-1", ProjectID: "proj-tower", Status: costcontrol.ChangeApproved, CostImpact: decimal.NewFromInt(25000),
	}))

	report, err := svc.Analytics(ctx, costcontrol.AnalyticsQuery{ProjectID: "proj-tower"})

	require.NoError(t, err)
	assert.InDelta(t, 20.0, report.Summary.MarginPercentage, 1e-9)
	assert.False(t, report.AlertCreated)
	assert.Empty(t, report.Alerts)
}

func TestAnalytics_CashflowAndTrend(t *testing.T) {
	svc, _, now := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateCashflow(ctx, costcontrol.Cashflow{
		ProjectID: "proj-tower", Date: generic.NewTimePoint(2025, 1, 10), Type: costcontrol.Inflow,
		Forecast: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = svc.CreateCashflow(ctx, costcontrol.Cashflow{
		ProjectID: "proj-tower", Date: generic.NewTimePoint(2025, 2, 3), Type: costcontrol.Outflow,
		Forecast: decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		*now = now.Add(24 * time.Hour)
		_, err := svc.RecordSnapshot(ctx, "proj-tower")
		require.NoError(t, err)
	}

	report, err := svc.Analytics(ctx, costcontrol.AnalyticsQuery{ProjectID: "proj-tower", Granularity: costcontrol.Weekly})
	require.NoError(t, err)

	require.Len(t, report.Cashflow.SCurve, 2)
	assert.True(t, decimal.NewFromInt(70).Equal(report.Cashflow.SCurve[1].CumulativeForecast))
	require.Len(t, report.Cashflow.Aggregated, 2)
	assert.Equal(t, "2025-W02", report.Cashflow.Aggregated[0].Period)

	require.Len(t, report.EACTrend, costcontrol.TrendLength)
	for i := 1; i < len(report.EACTrend); i++ {
		assert.True(t, report.EACTrend[i-1].RecordedAt.Before(report.EACTrend[i].RecordedAt))
	}
}

func TestRecordSnapshot_UsesSnapshotFormulas(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveBudgetLine(ctx, costcontrol.BudgetLine{
		ID: "bl-1", ProjectID: "proj-tower", CostCode: "03-300", Committed: decimal.NewFromInt(20000),
	}))
	require.NoError(t, store.SaveTask(ctx, generic.Task{ID: "t1", ProjectID: "proj-tower", Progress: 40}))
	require.NoError(t, store.SaveTask(ctx, generic.Task{ID: "t2", ProjectID: "proj-tower", Progress: 60}))

	snap, err := svc.RecordSnapshot(ctx, "proj-tower")

	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.True(t, decimal.NewFromInt(70000).Equal(snap.EAC), snap.EAC.String())
	assert.True(t, decimal.NewFromInt(30000).Equal(snap.Margin))
	// EV = 50% of 100000 against 50000 spent.
	assert.InDelta(t, 1.0, snap.CPI, 1e-9)

	history, err := svc.History(ctx, "proj-tower")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.RecordSnapshot(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
}

func TestUpdateCashflow_RecomputesVariance(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	cf, err := svc.CreateCashflow(ctx, costcontrol.Cashflow{
		ProjectID: "proj-tower", Date: generic.NewTimePoint(2025, 3, 1), Type: costcontrol.Outflow,
		Forecast: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.True(t, cf.Variance.IsZero())

	actual := decimal.NewNullDecimal(decimal.NewFromInt(1150))
	updated, err := svc.UpdateCashflow(ctx, cf.ID, costcontrol.CashflowPatch{Actual: &actual})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(150).Equal(updated.Variance))

	forecast := decimal.NewFromInt(1200)
	updated, err = svc.UpdateCashflow(ctx, cf.ID, costcontrol.CashflowPatch{Forecast: &forecast})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(-50).Equal(updated.Variance))

	_, err = svc.UpdateCashflow(ctx, "missing", costcontrol.CashflowPatch{})
	assert.True(t, generic.IsNotFound(err))
}

func TestSnapshotAll(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProject(ctx, costcontrol.Project{ID: "proj-bridge", Budget: decimal.NewFromInt(5000)}))

	n, err := svc.SnapshotAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
