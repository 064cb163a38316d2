package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

func TestProjectRow_Defaults(t *testing.T) {
	row := toProjectRow(costcontrol.Project{ID: "p1", Name: "Depot", Budget: decimal.NewFromInt(500)})

	assert.Equal(t, "GBP", row.Currency)
	assert.Equal(t, costcontrol.DefaultMarginThreshold, row.MarginThreshold)
	assert.Nil(t, row.StartDate, "missing dates stay NULL")

	back := row.toDomain()
	assert.True(t, back.StartDate.IsZero())
	assert.True(t, decimal.NewFromInt(500).Equal(back.Budget))
}

func TestTaskRow_RoundTrip(t *testing.T) {
	task := generic.Task{
		ID: "t1", ProjectID: "p1", Title: "Formwork", Status: generic.TaskTodo, Priority: generic.PriorityMedium,
		AssignedResourceID: "r1", StartDate: generic.NewTimePoint(2025, 3, 3), Dependencies: []string{"t0"},
	}

	back := toTaskRow(task).toDomain()

	assert.Equal(t, task, back)
}

func TestAllocationView_TypeFallsBackToResource(t *testing.T) {
	v := allocationView{
		allocationRow: toAllocationRow(resource.Allocation{
			ID: "a1", ResourceID: "r1", ProjectID: "p1",
			StartDate: generic.NewTimePoint(2025, 3, 3), EndDate: generic.NewTimePoint(2025, 3, 7),
			AllocatedHours: 40,
		}),
		ProjectName: "Depot",
		JoinedType:  string(resource.TypeEquipment),
	}

	a := v.toDomain()

	assert.Equal(t, resource.TypeEquipment, a.ResourceType)
	assert.Equal(t, "Depot", a.ProjectName)
	assert.True(t, a.EndDate.Equal(generic.NewTimePoint(2025, 3, 7)))

	v.ResourceType = string(resource.TypeLabour)
	assert.Equal(t, resource.TypeLabour, v.toDomain().ResourceType, "explicit tag wins")
}

func TestCashflowRow_KeepsNullActual(t *testing.T) {
	cf := costcontrol.Cashflow{
		ID: "cf1", ProjectID: "p1", Date: generic.NewTimePoint(2025, 2, 1), Type: costcontrol.Outflow,
		Forecast: decimal.NewFromInt(100),
	}

	back := toCashflowRow(cf).toDomain()

	assert.False(t, back.Actual.Valid)
	assert.Equal(t, costcontrol.Outflow, back.Type)
}

// TestStore_Integration runs against a live server when TEST_POSTGRES_DSN is set.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	store, err := New(dsn)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.Reset(ctx))

	require.NoError(t, store.SaveProject(ctx, costcontrol.Project{ID: "p1", Name: "Depot", Budget: decimal.NewFromInt(1000)}))
	alert := costcontrol.CostAlert{
		ID: "a1", ProjectID: "p1", Type: costcontrol.AlertMarginBelowThreshold,
		Severity: costcontrol.SeverityHigh, Status: costcontrol.AlertActive, CreatedAt: time.Now(),
	}

	created, err := store.InsertAlertIfNoActive(ctx, alert)
	require.NoError(t, err)
	assert.True(t, created)

	alert.ID = "a2"
	created, err = store.InsertAlertIfNoActive(ctx, alert)
	require.NoError(t, err)
	assert.False(t, created)

	err = store.UpdateCashflow(ctx, costcontrol.Cashflow{ID: "ghost"})
	assert.True(t, generic.IsNotFound(err))
}
