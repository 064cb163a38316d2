/*
handlers.go - HTTP API handlers for the project-control engine

PURPOSE:
  Exposes resource utilization, rebalancing and cost analytics via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to the
  resource and costcontrol services.

ENDPOINTS:
  Resources:
    GET    /api/resources                      List resources
    GET    /api/resources/utilization          Day-by-day load of one resource
    GET    /api/resources/rebalance            Rebalancing suggestions for a project

  Cost control:
    GET    /api/cost-control/projects          List projects
    GET    /api/cost-control/analytics         Cost summary, indices, cashflow, alerts
    GET    /api/cost-control/eac-history       Full EAC history of a project
    POST   /api/cost-control/eac-history       Record an EAC snapshot (201)
    POST   /api/cost-control/cashflows         Create a cashflow line (201)
    PATCH  /api/cost-control/cashflows/{id}    Edit forecast/actual, variance recomputed
    POST   /api/cost-control/alerts/{id}/acknowledge
    POST   /api/cost-control/alerts/{id}/resolve

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    GET    /api/scenarios/current              Currently loaded scenario
    POST   /api/scenarios/load                 Load a demo scenario
    POST   /api/scenarios/reset                Clear all data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: ValidationError (missing or malformed parameters)
  - 404: NotFoundError
  - 409: Alert status transition not allowed
  - 500: Internal errors; the cause is logged, not returned

SECURITY NOTE:
  No authentication or authorization. Access control sits in front of this
  service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from persistence: the two service
// contracts plus seeding for the demo scenarios.
type Store interface {
	resource.Store
	costcontrol.Store

	ListResources(ctx context.Context) ([]resource.Resource, error)
	SaveResource(ctx context.Context, r resource.Resource) error
	SaveUser(ctx context.Context, u resource.User) error
	SaveAvailability(ctx context.Context, a resource.Availability) error
	SaveAllocation(ctx context.Context, a resource.Allocation) error
	SaveTask(ctx context.Context, t generic.Task) error
	SaveProject(ctx context.Context, p costcontrol.Project) error
	SaveBudgetLine(ctx context.Context, l costcontrol.BudgetLine) error
	SaveChangeOrder(ctx context.Context, c costcontrol.ChangeOrder) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Resources *resource.Service
	Costs     *costcontrol.Service

	// Track currently loaded scenario
	currentScenario string
	mu              sync.Mutex
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store) *Handler {
	return &Handler{
		Store:     store,
		Resources: resource.NewService(store),
		Costs:     costcontrol.NewService(store),
	}
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// ListResources returns all resources.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.Store.ListResources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	dtos := make([]ResourceDTO, len(resources))
	for i, res := range resources {
		dtos[i] = toResourceDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUtilization computes the day-by-day load of one resource.
func (h *Handler) GetUtilization(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := h.Resources.Utilization(r.Context(), resource.UtilizationQuery{
		ResourceID: r.URL.Query().Get("resourceId"),
		Window:     window,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUtilizationResponse(report))
}

// GetRebalance proposes moves and delays for a project's over-allocated resources.
func (h *Handler) GetRebalance(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := h.Resources.Rebalance(r.Context(), resource.RebalanceQuery{
		ProjectID: r.URL.Query().Get("projectId"),
		Window:    window,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRebalanceResponse(report))
}

// parseWindow reads startDate and endDate. Absent values are left zero so the
// service reports them as required.
func parseWindow(r *http.Request) (generic.Period, error) {
	var window generic.Period
	for _, p := range []struct {
		field string
		dst   *generic.TimePoint
	}{
		{"startDate", &window.Start},
		{"endDate", &window.End},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.field))
		if raw == "" {
			continue
		}
		day, err := generic.ParseDay(raw)
		if err != nil {
			return window, &generic.ValidationError{Field: p.field, Message: err.Error()}
		}
		*p.dst = day
	}
	return window, nil
}

// =============================================================================
// COST CONTROL HANDLERS
// =============================================================================

// ListProjects returns all projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAnalytics returns the live cost view. It may raise a margin alert.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	granularity, err := costcontrol.ParseGranularity(r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := h.Costs.Analytics(r.Context(), costcontrol.AnalyticsQuery{
		ProjectID:   r.URL.Query().Get("projectId"),
		Granularity: granularity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyticsResponse(report))
}

// CreateSnapshot records an EAC snapshot with the snapshot formulas.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.ProjectID == "" {
		writeServiceError(w, r, generic.Required("projectId"))
		return
	}

	snap, err := h.Costs.RecordSnapshot(r.Context(), req.ProjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEACSnapshotDTO(*snap))
}

// GetEACHistory returns every snapshot of a project, oldest first.
func (h *Handler) GetEACHistory(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeServiceError(w, r, generic.Required("projectId"))
		return
	}

	history, err := h.Costs.History(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEACSnapshotDTOs(history))
}

// CreateCashflow adds a forecast (and optionally actual) cashflow line.
func (h *Handler) CreateCashflow(w http.ResponseWriter, r *http.Request) {
	var req CreateCashflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	var date generic.TimePoint
	if req.Date != "" {
		d, err := generic.ParseDay(req.Date)
		if err != nil {
			writeServiceError(w, r, &generic.ValidationError{Field: "date", Message: err.Error()})
			return
		}
		date = d
	}

	cf, err := h.Costs.CreateCashflow(r.Context(), costcontrol.Cashflow{
		ProjectID:   req.ProjectID,
		Date:        date,
		Type:        costcontrol.CashflowType(strings.ToUpper(req.Type)),
		Category:    req.Category,
		Description: req.Description,
		Forecast:    req.Forecast,
		Actual:      req.Actual,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashflowDTO(*cf))
}

// UpdateCashflow edits a cashflow line. The variance is recomputed.
func (h *Handler) UpdateCashflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCashflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	patch := costcontrol.CashflowPatch{
		Forecast:    req.Forecast,
		Category:    req.Category,
		Description: req.Description,
	}
	if len(req.Actual) > 0 {
		var actual decimal.NullDecimal
		if err := actual.UnmarshalJSON(req.Actual); err != nil {
			writeServiceError(w, r, &generic.ValidationError{Field: "actual", Message: "must be a number or null", Err: err})
			return
		}
		patch.Actual = &actual
	}

	cf, err := h.Costs.UpdateCashflow(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCashflowDTO(*cf))
}

// AcknowledgeAlert moves an ACTIVE alert to ACKNOWLEDGED.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.Costs.AcknowledgeAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCostAlertDTO(*alert))
}

// ResolveAlert closes an alert.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.Costs.ResolveAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCostAlertDTO(*alert))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Unexpected
// errors are logged with the request id and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.Is(err, generic.ErrInvalidTransition), errors.Is(err, generic.ErrDuplicateActiveAlert):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Field: verr.Field, Details: verr.Error()})
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		log.Printf("[API] %s %s failed (request %s): %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
