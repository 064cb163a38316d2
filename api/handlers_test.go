/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Parameter validation and error mapping (400 / 404 / 409)
- Utilization and rebalance response shapes
- Analytics alert idempotency
- EAC snapshots, cashflow edits and the alert lifecycle
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/store/sqlite"
)

// newTestAPI returns a router over a fresh in-memory SQLite store.
func newTestAPI(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return h, NewRouter(h, []string{"http://localhost:5173"})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

const demoWeek = "startDate=2026-03-02&endDate=2026-03-06"

// ===== RESOURCES =====

func TestGetUtilization_Validation(t *testing.T) {
	_, router := newTestAPI(t)

	cases := []struct {
		name  string
		query string
		field string
	}{
		{"missing resource", "?" + demoWeek, "resourceId"},
		{"missing start", "?resourceId=r1&endDate=2026-03-06", "startDate"},
		{"malformed end", "?resourceId=r1&startDate=2026-03-02&endDate=06/03/2026", "endDate"},
		{"inverted", "?resourceId=r1&startDate=2026-03-06&endDate=2026-03-02", "endDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/resources/utilization"+tc.query, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.field, decode[ErrorResponse](t, rec).Field)
		})
	}
}

func TestGetUtilization_UnknownResource(t *testing.T) {
	_, router := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/api/resources/utilization?resourceId=ghost&"+demoWeek, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[ErrorResponse](t, rec).Error)
}

func TestGetUtilization_OverAllocatedCrew(t *testing.T) {
	// GIVEN: crane crew A booked for 80h in a 40h week
	_, router := newTestAPI(t)
	loadScenario(t, router, "tower-overallocation")

	// WHEN
	rec := do(t, router, http.MethodGet, "/api/resources/utilization?resourceId=crane-crew-a&"+demoWeek, nil)

	// THEN: every day carries 16h against 8h
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[UtilizationResponse](t, rec)
	assert.Equal(t, "Crane Crew A", resp.Resource.Name)
	assert.Equal(t, 2, resp.TotalAllocations)
	assert.Equal(t, PeriodDTO{StartDate: "2026-03-02", EndDate: "2026-03-06", TotalDays: 5}, resp.Period)
	require.Len(t, resp.DailyUtilization, 5)
	for _, d := range resp.DailyUtilization {
		assert.Equal(t, 16.0, d.AllocatedHours, d.Date)
		assert.True(t, d.IsOverAllocated, d.Date)
	}
	assert.Equal(t, 5, resp.Summary.OverAllocatedDays)
	assert.Equal(t, 80.0, resp.Summary.TotalAllocatedHours)
	assert.NotNil(t, resp.Warnings)
}

func TestGetRebalance_MovesLowPriorityWork(t *testing.T) {
	// GIVEN
	_, router := newTestAPI(t)
	loadScenario(t, router, "tower-overallocation")

	// WHEN
	rec := do(t, router, http.MethodGet, "/api/resources/rebalance?projectId=riverside-tower&"+demoWeek, nil)

	// THEN: the cladding lift moves to the idle crew, the core pour stays
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RebalanceResponse](t, rec)
	assert.Equal(t, "riverside-tower", resp.Project.ID)
	assert.Equal(t, 4, resp.Analysis.TotalResources)
	assert.Equal(t, 2, resp.Analysis.TotalTasks)
	assert.Equal(t, 1, resp.Analysis.CriticalPathTasks)

	require.NotEmpty(t, resp.Suggestions)
	first := resp.Suggestions[0]
	assert.Equal(t, "move_task", first.Type)
	assert.Equal(t, "t-cladding-lift", first.Action.TaskID)
	require.NotNil(t, first.Action.To)
	assert.Equal(t, "crane-crew-b", first.Action.To.ID)
	for _, s := range resp.Suggestions {
		assert.NotEqual(t, "t-core-pour", s.Action.TaskID)
	}

	// The summary carries the raw allocations behind each resource.
	var crewA *ResourceSummaryDTO
	for i := range resp.ResourceSummary {
		if resp.ResourceSummary[i].Resource.ID == "crane-crew-a" {
			crewA = &resp.ResourceSummary[i]
		}
	}
	require.NotNil(t, crewA)
	assert.Equal(t, 2, crewA.AllocationCount)
	require.Len(t, crewA.Allocations, 2)
	ids := []string{crewA.Allocations[0].ID, crewA.Allocations[1].ID}
	assert.ElementsMatch(t, []string{"al-core-pour", "al-cladding"}, ids)
	for _, a := range crewA.Allocations {
		assert.Equal(t, "riverside-tower", a.ProjectID)
		assert.Equal(t, "2026-03-02", a.StartDate)
		assert.Equal(t, "2026-03-06", a.EndDate)
	}
}

func TestListResources(t *testing.T) {
	_, router := newTestAPI(t)
	loadScenario(t, router, "tower-overallocation")

	rec := do(t, router, http.MethodGet, "/api/resources", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resources := decode[[]ResourceDTO](t, rec)
	require.Len(t, resources, 3)
	assert.Equal(t, "Crane Crew A", resources[0].Name)
	assert.Equal(t, 68.5, resources[0].HourlyRate)
}

// ===== COST CONTROL =====

func TestGetAnalytics_RaisesAlertOnce(t *testing.T) {
	// GIVEN: a project below its margin threshold
	_, router := newTestAPI(t)
	loadScenario(t, router, "margin-squeeze")
	path := "/api/cost-control/analytics?projectId=harbour-bridge"

	// WHEN: analytics is read twice
	first := do(t, router, http.MethodGet, path, nil)
	second := do(t, router, http.MethodGet, path, nil)

	// THEN: one CRITICAL alert exists
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code)
	resp := decode[AnalyticsResponse](t, second)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "CRITICAL", resp.Alerts[0].Severity)
	assert.Equal(t, "ACTIVE", resp.Alerts[0].Status)

	assert.Equal(t, 2575000.0, resp.CostSummary.TotalBudget)
	assert.Equal(t, 2500000.0, resp.CostSummary.EAC)
	assert.Equal(t, 75000.0, resp.CostSummary.Margin)
	assert.Equal(t, "monthly", resp.Cashflow.Period)
	assert.Len(t, resp.Cashflow.SCurve, 2)
}

func TestGetAnalytics_Validation(t *testing.T) {
	_, router := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/api/cost-control/analytics", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "projectId", decode[ErrorResponse](t, rec).Field)

	rec = do(t, router, http.MethodGet, "/api/cost-control/analytics?projectId=p&period=fortnightly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "period", decode[ErrorResponse](t, rec).Field)

	rec = do(t, router, http.MethodGet, "/api/cost-control/analytics?projectId=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEACHistory_CreateAndList(t *testing.T) {
	// GIVEN
	_, router := newTestAPI(t)
	loadScenario(t, router, "margin-squeeze")

	// WHEN: two snapshots are recorded
	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/api/cost-control/eac-history", CreateSnapshotRequest{ProjectID: "harbour-bridge"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		snap := decode[EACSnapshotDTO](t, rec)
		// snapshot EAC is actual + committed
		assert.Equal(t, 4200000.0, snap.EAC)
	}

	// THEN
	rec := do(t, router, http.MethodGet, "/api/cost-control/eac-history?projectId=harbour-bridge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]EACSnapshotDTO](t, rec)
	require.Len(t, history, 2)
	assert.False(t, history[1].RecordedAt.Before(history[0].RecordedAt))

	rec = do(t, router, http.MethodPost, "/api/cost-control/eac-history", CreateSnapshotRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/cost-control/eac-history", `{"projectId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCashflow_CreateAndPatch(t *testing.T) {
	// GIVEN: a forecast-only cashflow
	_, router := newTestAPI(t)
	loadScenario(t, router, "margin-squeeze")

	rec := do(t, router, http.MethodPost, "/api/cost-control/cashflows",
		`{"projectId":"harbour-bridge","date":"2026-03-31","type":"outflow","category":"STEEL","forecast":"120000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CashflowResponseDTO](t, rec)
	assert.Equal(t, "OUTFLOW", created.Type)
	assert.Nil(t, created.Actual)
	assert.Equal(t, 0.0, created.Variance)

	path := "/api/cost-control/cashflows/" + created.ID

	// WHEN: an actual is recorded
	rec = do(t, router, http.MethodPatch, path, `{"actual":"131500.25"}`)

	// THEN: variance is actual minus forecast
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[CashflowResponseDTO](t, rec)
	require.NotNil(t, updated.Actual)
	assert.Equal(t, 131500.25, *updated.Actual)
	assert.Equal(t, 11500.25, updated.Variance)

	// WHEN: only the category changes, the actual is kept
	rec = do(t, router, http.MethodPatch, path, `{"category":"STEEL-REWORK"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	kept := decode[CashflowResponseDTO](t, rec)
	assert.Equal(t, "STEEL-REWORK", kept.Category)
	assert.NotNil(t, kept.Actual)

	// WHEN: actual is explicitly cleared
	rec = do(t, router, http.MethodPatch, path, `{"actual":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decode[CashflowResponseDTO](t, rec)
	assert.Nil(t, cleared.Actual)
	assert.Equal(t, 0.0, cleared.Variance)
}

func TestCashflow_Errors(t *testing.T) {
	_, router := newTestAPI(t)
	loadScenario(t, router, "margin-squeeze")

	rec := do(t, router, http.MethodPost, "/api/cost-control/cashflows",
		`{"projectId":"harbour-bridge","date":"2026-03-31","type":"sideways","forecast":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/cost-control/cashflows",
		`{"projectId":"harbour-bridge","date":"next week","type":"INFLOW","forecast":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", decode[ErrorResponse](t, rec).Field)

	rec = do(t, router, http.MethodPatch, "/api/cost-control/cashflows/ghost", `{"actual":"10"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPatch, "/api/cost-control/cashflows/cf-hb-1", `{"actual":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertLifecycle(t *testing.T) {
	// GIVEN: an ACTIVE alert
	h, router := newTestAPI(t)
	loadScenario(t, router, "margin-squeeze")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/cost-control/analytics?projectId=harbour-bridge", nil).Code)

	alerts, err := h.Store.Alerts(context.Background(), "harbour-bridge")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	base := "/api/cost-control/alerts/" + alerts[0].ID

	// WHEN / THEN
	rec := do(t, router, http.MethodPost, base+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acked := decode[CostAlertDTO](t, rec)
	assert.Equal(t, "ACKNOWLEDGED", acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	rec = do(t, router, http.MethodPost, base+"/acknowledge", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/resolve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RESOLVED", decode[CostAlertDTO](t, rec).Status)

	rec = do(t, router, http.MethodPost, base+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/cost-control/alerts/ghost/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceError_DuplicateActiveAlert(t *testing.T) {
	// GIVEN: a store rejecting a second ACTIVE alert of the same type
	err := fmt.Errorf("alert a2: %w", generic.ErrDuplicateActiveAlert)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cost-control/alerts/a2/acknowledge", nil)

	// WHEN
	writeServiceError(rec, req, err)

	// THEN: a conflict, not an internal error
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", decode[ErrorResponse](t, rec).Error)
}

func TestListProjects(t *testing.T) {
	_, router := newTestAPI(t)
	loadScenario(t, router, "tower-overallocation")

	rec := do(t, router, http.MethodGet, "/api/cost-control/projects", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	projects := decode[[]ProjectDTO](t, rec)
	require.Len(t, projects, 1)
	assert.Equal(t, "Riverside Tower", projects[0].Name)
	assert.Equal(t, "2026-01-05", projects[0].StartDate)
}
