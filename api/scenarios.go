/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built construction projects that populate the store with
	realistic data for demos. Each scenario creates resources, allocations,
	tasks and a cost baseline that show off one feature of the engine.

AVAILABLE SCENARIOS:

	tower-overallocation: Crane crew double-booked in one week, idle crew
	                      available, a weather closure and a site engineer
	                      scheduled directly. Drives /resources/rebalance.
	margin-squeeze:       Bridge refurbishment whose approved variations leave
	                      under 5% margin. First analytics call raises a
	                      CRITICAL alert.

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build a scenarioData value with every row of the scenario
 3. Save rows parents first: resources/users, project, then dependants

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "tower-overallocation"}

	The demo week is ScenarioWeekStart .. ScenarioWeekStart+4 days.

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a builder func() scenarioData to 'scenarioBuilders'

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Store interface used for seeding
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// ScenarioWeekStart is the Monday of the week the demo allocations cover.
var ScenarioWeekStart = generic.NewTimePoint(2026, time.March, 2)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "tower-overallocation",
		Name:        "Tower Over-Allocation",
		Description: "Crane crew double-booked for a week while a second crew sits idle",
		Category:    "resources",
	},
	{
		ID:          "margin-squeeze",
		Name:        "Margin Squeeze",
		Description: "Bridge refurbishment running below its margin threshold",
		Category:    "cost-control",
	},
}

var scenarioBuilders = map[string]func() scenarioData{
	"tower-overallocation": towerOverallocation,
	"margin-squeeze":       marginSqueeze,
}

// scenarioData is every row a scenario writes.
type scenarioData struct {
	resources    []resource.Resource
	users        []resource.User
	availability []resource.Availability
	project      costcontrol.Project
	allocations  []resource.Allocation
	tasks        []generic.Task
	budgetLines  []costcontrol.BudgetLine
	changeOrders []costcontrol.ChangeOrder
	cashflows    []costcontrol.Cashflow
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.seed(ctx, build()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	log.Printf("[Scenarios] Loaded %s", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) seed(ctx context.Context, d scenarioData) error {
	for _, r := range d.resources {
		if err := h.Store.SaveResource(ctx, r); err != nil {
			return fmt.Errorf("resource %s: %w", r.ID, err)
		}
	}
	for _, u := range d.users {
		if err := h.Store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	for _, a := range d.availability {
		if err := h.Store.SaveAvailability(ctx, a); err != nil {
			return fmt.Errorf("availability %s: %w", a.ID, err)
		}
	}
	if err := h.Store.SaveProject(ctx, d.project); err != nil {
		return fmt.Errorf("project %s: %w", d.project.ID, err)
	}
	for _, a := range d.allocations {
		a.ProjectID = d.project.ID
		if err := h.Store.SaveAllocation(ctx, a); err != nil {
			return fmt.Errorf("allocation %s: %w", a.ID, err)
		}
	}
	for _, t := range d.tasks {
		if err := h.Store.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	for _, l := range d.budgetLines {
		if err := h.Store.SaveBudgetLine(ctx, l); err != nil {
			return fmt.Errorf("budget line %s: %w", l.ID, err)
		}
	}
	for _, c := range d.changeOrders {
		if err := h.Store.SaveChangeOrder(ctx, c); err != nil {
			return fmt.Errorf("change order %s: %w", c.ID, err)
		}
	}
	for _, c := range d.cashflows {
		c.Recompute()
		if err := h.Store.InsertCashflow(ctx, c); err != nil {
			return fmt.Errorf("cashflow %s: %w", c.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

func towerOverallocation() scenarioData {
	const projectID = "riverside-tower"
	mon := ScenarioWeekStart
	fri := mon.AddDays(4)

	return scenarioData{
		resources: []resource.Resource{
			labourCrew("crane-crew-a", "Crane Crew A", "68.50"),
			labourCrew("crane-crew-b", "Crane Crew B", "71.00"),
			{ID: "tower-crane-1", Name: "Tower Crane TC-1", Type: resource.TypeEquipment,
				MaxHoursPerDay: 10, MaxHoursPerWeek: 50, HourlyRate: decimal.RequireFromString("145.00")},
		},
		users: []resource.User{
			{ID: "u-site-eng", Name: "Priya Natarajan", Email: "p.natarajan@riverside.example"},
		},
		availability: []resource.Availability{
			{ID: "av-wind", ResourceID: "tower-crane-1", Date: mon.AddDays(2), IsAvailable: false, Reason: "WEATHER", Notes: "High wind stand-down"},
			{ID: "av-half", ResourceID: "crane-crew-b", Date: mon.AddDays(4), IsAvailable: true, AvailableHours: 4, Reason: "TRAINING"},
		},
		project: costcontrol.Project{
			ID: projectID, Name: "Riverside Tower", Code: "RT-2026", Currency: "GBP",
			Budget: decimal.RequireFromString("4200000"), ActualCost: decimal.RequireFromString("1260000"),
			MarginThreshold: 10,
			StartDate:       generic.NewTimePoint(2026, time.January, 5),
			EndDate:         generic.NewTimePoint(2026, time.December, 18),
		},
		allocations: []resource.Allocation{
			newAllocation("al-core-pour", "crane-crew-a", "", "t-core-pour", mon, fri, 60, resource.TypeLabour),
			newAllocation("al-cladding", "crane-crew-a", "", "t-cladding-lift", mon, fri, 20, resource.TypeLabour),
			newAllocation("al-crew-b", "crane-crew-b", "", "", mon, fri, 10, resource.TypeLabour),
			newAllocation("al-crane", "tower-crane-1", "", "t-core-pour", mon, fri, 40, resource.TypeEquipment),
			newAllocation("al-site-eng", "", "u-site-eng", "", mon, fri, 20, resource.TypeLabour),
		},
		tasks: []generic.Task{
			{ID: "t-core-pour", ProjectID: projectID, Title: "Level 12 core pour", Status: generic.TaskInProgress,
				Priority: generic.PriorityHigh, IsCriticalPath: true, AssignedResourceID: "crane-crew-a",
				EstimatedHours: 60, Progress: 40, StartDate: mon, EndDate: fri},
			{ID: "t-cladding-lift", ProjectID: projectID, Title: "Lift cladding panels to level 8", Status: generic.TaskTodo,
				Priority: generic.PriorityLow, AssignedResourceID: "crane-crew-a",
				EstimatedHours: 20, StartDate: mon, EndDate: fri, Dependencies: []string{"t-core-pour"}},
			{ID: "t-groundworks", ProjectID: projectID, Title: "Groundworks", Status: generic.TaskDone,
				Priority: generic.PriorityMedium, AssignedResourceID: "crane-crew-b", EstimatedHours: 120, Progress: 100},
		},
		budgetLines: []costcontrol.BudgetLine{
			{ID: "bl-sub", ProjectID: projectID, CostCode: "02-100", Description: "Substructure",
				Budgeted: decimal.RequireFromString("900000"), Committed: decimal.RequireFromString("850000"), Actual: decimal.RequireFromString("820000")},
			{ID: "bl-frame", ProjectID: projectID, CostCode: "03-300", Description: "Concrete frame",
				Budgeted: decimal.RequireFromString("1800000"), Committed: decimal.RequireFromString("1100000"), Actual: decimal.RequireFromString("440000")},
		},
		changeOrders: []costcontrol.ChangeOrder{
			{ID: "co-1", ProjectID: projectID, Title: "Additional basement level", Status: costcontrol.ChangeApproved,
				CostImpact: decimal.RequireFromString("630000"), ScheduleImpactDays: 21},
			{ID: "co-2", ProjectID: projectID, Title: "Upgraded facade glazing", Status: costcontrol.ChangePending,
				CostImpact: decimal.RequireFromString("180000")},
		},
		cashflows: []costcontrol.Cashflow{
			newCashflow("cf-1", projectID, generic.NewTimePoint(2026, time.January, 30), costcontrol.Outflow, "SUBCONTRACT", "410000", "432500"),
			newCashflow("cf-2", projectID, generic.NewTimePoint(2026, time.February, 27), costcontrol.Outflow, "SUBCONTRACT", "400000", "388000"),
			newCashflow("cf-3", projectID, generic.NewTimePoint(2026, time.February, 27), costcontrol.Inflow, "VALUATION", "950000", "950000"),
			newCashflow("cf-4", projectID, generic.NewTimePoint(2026, time.March, 31), costcontrol.Outflow, "SUBCONTRACT", "420000", ""),
		},
	}
}

func marginSqueeze() scenarioData {
	const projectID = "harbour-bridge"
	start := generic.NewTimePoint(2025, time.September, 1)

	return scenarioData{
		resources: []resource.Resource{
			labourCrew("steel-crew", "Steel Repair Crew", "74.00"),
		},
		project: costcontrol.Project{
			ID: projectID, Name: "Harbour Bridge Refurbishment", Code: "HB-25", Currency: "GBP",
			Budget: decimal.RequireFromString("2500000"), ActualCost: decimal.RequireFromString("2050000"),
			MarginThreshold: 10,
			StartDate:       start,
			EndDate:         generic.NewTimePoint(2026, time.June, 30),
		},
		allocations: []resource.Allocation{
			newAllocation("al-steel", "steel-crew", "", "t-deck", ScenarioWeekStart, ScenarioWeekStart.AddDays(4), 40, resource.TypeLabour),
		},
		tasks: []generic.Task{
			{ID: "t-deck", ProjectID: projectID, Title: "Deck plate replacement", Status: generic.TaskInProgress,
				Priority: generic.PriorityHigh, IsCriticalPath: true, AssignedResourceID: "steel-crew",
				EstimatedHours: 800, Progress: 70, StartDate: start, EndDate: generic.NewTimePoint(2026, time.April, 30)},
			{ID: "t-paint", ProjectID: projectID, Title: "Protective coating", Status: generic.TaskTodo,
				Priority: generic.PriorityMedium, EstimatedHours: 400, Progress: 0},
		},
		budgetLines: []costcontrol.BudgetLine{
			{ID: "bl-steel", ProjectID: projectID, CostCode: "05-120", Description: "Structural steel repairs",
				Budgeted: decimal.RequireFromString("1600000"), Committed: decimal.RequireFromString("1700000"), Actual: decimal.RequireFromString("1550000")},
			{ID: "bl-coat", ProjectID: projectID, CostCode: "09-900", Description: "Coatings",
				Budgeted: decimal.RequireFromString("600000"), Committed: decimal.RequireFromString("450000"), Actual: decimal.RequireFromString("320000")},
		},
		changeOrders: []costcontrol.ChangeOrder{
			{ID: "co-lead", ProjectID: projectID, Title: "Lead paint encapsulation", Status: costcontrol.ChangeApproved,
				CostImpact: decimal.RequireFromString("75000"), ScheduleImpactDays: 10},
			{ID: "co-lights", ProjectID: projectID, Title: "Navigation lighting", Status: costcontrol.ChangeRejected,
				CostImpact: decimal.RequireFromString("40000")},
		},
		cashflows: []costcontrol.Cashflow{
			newCashflow("cf-hb-1", projectID, generic.NewTimePoint(2025, time.November, 28), costcontrol.Outflow, "STEEL", "500000", "560000"),
			newCashflow("cf-hb-2", projectID, generic.NewTimePoint(2026, time.January, 30), costcontrol.Outflow, "STEEL", "450000", "515000"),
		},
	}
}

func labourCrew(id, name, rate string) resource.Resource {
	return resource.Resource{
		ID: id, Name: name, Type: resource.TypeLabour,
		MaxHoursPerDay: 8, MaxHoursPerWeek: 40, HourlyRate: decimal.RequireFromString(rate),
	}
}

func newAllocation(id, resourceID, userID, taskID string, start, end generic.TimePoint, hours float64, t resource.Type) resource.Allocation {
	return resource.Allocation{
		ID: id, ResourceID: resourceID, UserID: userID, TaskID: taskID,
		StartDate: start, EndDate: end, AllocatedHours: hours, ResourceType: t,
	}
}

// newCashflow builds a cashflow line; an empty actual means none recorded yet.
func newCashflow(id, projectID string, date generic.TimePoint, t costcontrol.CashflowType, category, forecast, actual string) costcontrol.Cashflow {
	c := costcontrol.Cashflow{
		ID: id, ProjectID: projectID, Date: date, Type: t, Category: category,
		Forecast: decimal.RequireFromString(forecast),
	}
	if actual != "" {
		c.Actual = decimal.NewNullDecimal(decimal.RequireFromString(actual))
	}
	return c
}
