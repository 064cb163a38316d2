/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Field names are
  camelCase; money is rendered as a JSON number, days as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Top-level response wrappers

TYPES:
  Resources:
    UtilizationResponse, RebalanceResponse, SuggestionDTO, ResourceSummaryDTO

  Cost control:
    AnalyticsResponse, CostSummaryDTO, PerformanceIndicesDTO, CashflowDTO,
    EACSnapshotDTO, CostAlertDTO

  Requests:
    CreateSnapshotRequest, CreateCashflowRequest, UpdateCashflowRequest

VALIDATION:
  Validation is done by the services, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// =============================================================================
// SHARED
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

type PeriodDTO struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	TotalDays int    `json:"totalDays"`
}

func toPeriodDTO(p generic.Period) PeriodDTO {
	return PeriodDTO{StartDate: p.Start.Key(), EndDate: p.End.Key(), TotalDays: p.TotalDays()}
}

type HandleDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func toHandleDTO(h *generic.Handle) *HandleDTO {
	if h == nil {
		return nil
	}
	return &HandleDTO{Kind: string(h.Kind), ID: h.ID}
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func optionalMoney(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}

// =============================================================================
// RESOURCES
// =============================================================================

type ResourceDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	MaxHoursPerDay  float64 `json:"maxHoursPerDay"`
	MaxHoursPerWeek float64 `json:"maxHoursPerWeek"`
	HourlyRate      float64 `json:"hourlyRate"`
}

func toResourceDTO(r resource.Resource) ResourceDTO {
	return ResourceDTO{
		ID:              r.ID,
		Name:            r.Name,
		Type:            string(r.Type),
		MaxHoursPerDay:  r.MaxHoursPerDay,
		MaxHoursPerWeek: r.MaxHoursPerWeek,
		HourlyRate:      money(r.HourlyRate),
	}
}

type UtilizationSummaryDTO struct {
	TotalAllocatedHours      float64 `json:"totalAllocatedHours"`
	TotalAvailableHours      float64 `json:"totalAvailableHours"`
	AverageUtilization       float64 `json:"averageUtilization"`
	OverAllocatedDays        int     `json:"overAllocatedDays"`
	OverAllocationPercentage float64 `json:"overAllocationPercentage"`
}

func toUtilizationSummaryDTO(s resource.Summary) UtilizationSummaryDTO {
	return UtilizationSummaryDTO{
		TotalAllocatedHours:      s.TotalAllocatedHours,
		TotalAvailableHours:      s.TotalAvailableHours,
		AverageUtilization:       s.AverageUtilization,
		OverAllocatedDays:        s.OverAllocatedDays,
		OverAllocationPercentage: s.OverAllocationPercentage,
	}
}

type ProjectHoursDTO struct {
	ProjectID   string  `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Hours       float64 `json:"hours"`
}

type DayUtilizationDTO struct {
	Date                  string            `json:"date"`
	AllocatedHours        float64           `json:"allocatedHours"`
	AvailableHours        float64           `json:"availableHours"`
	UtilizationPercentage float64           `json:"utilizationPercentage"`
	IsOverAllocated       bool              `json:"isOverAllocated"`
	Projects              []ProjectHoursDTO `json:"projects"`
}

// UtilizationResponse is the body of GET /api/resources/utilization.
type UtilizationResponse struct {
	Resource         ResourceDTO           `json:"resource"`
	Period           PeriodDTO             `json:"period"`
	Summary          UtilizationSummaryDTO `json:"summary"`
	Warnings         []string              `json:"warnings"`
	DailyUtilization []DayUtilizationDTO   `json:"dailyUtilization"`
	TotalAllocations int                   `json:"totalAllocations"`
}

func toUtilizationResponse(rep *resource.UtilizationReport) UtilizationResponse {
	days := make([]DayUtilizationDTO, len(rep.Result.Days))
	for i, d := range rep.Result.Days {
		projects := make([]ProjectHoursDTO, len(d.Projects))
		for j, p := range d.Projects {
			projects[j] = ProjectHoursDTO{ProjectID: p.ProjectID, ProjectName: p.ProjectName, Hours: p.Hours}
		}
		days[i] = DayUtilizationDTO{
			Date:                  d.Date.Key(),
			AllocatedHours:        d.AllocatedHours,
			AvailableHours:        d.AvailableHours,
			UtilizationPercentage: d.UtilizationPercentage,
			IsOverAllocated:       d.IsOverAllocated,
			Projects:              projects,
		}
	}
	warnings := rep.Result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return UtilizationResponse{
		Resource:         toResourceDTO(rep.Resource),
		Period:           toPeriodDTO(rep.Result.Period),
		Summary:          toUtilizationSummaryDTO(rep.Result.Summary),
		Warnings:         warnings,
		DailyUtilization: days,
		TotalAllocations: rep.TotalAllocations,
	}
}

type AnalysisDTO struct {
	TotalResources         int `json:"totalResources"`
	OverAllocatedResources int `json:"overAllocatedResources"`
	UnderUtilizedResources int `json:"underUtilizedResources"`
	TotalTasks             int `json:"totalTasks"`
	CriticalPathTasks      int `json:"criticalPathTasks"`
	NonCriticalTasks       int `json:"nonCriticalTasks"`
}

type ActionDTO struct {
	Type               string     `json:"type"`
	TaskID             string     `json:"taskId,omitempty"`
	TaskTitle          string     `json:"taskTitle,omitempty"`
	From               *HandleDTO `json:"from,omitempty"`
	FromName           string     `json:"fromName,omitempty"`
	To                 *HandleDTO `json:"to,omitempty"`
	ToName             string     `json:"toName,omitempty"`
	EstimatedHours     float64    `json:"estimatedHours,omitempty"`
	EstimatedImpact    float64    `json:"estimatedImpact,omitempty"`
	CurrentStartDate   string     `json:"currentStartDate,omitempty"`
	SuggestedStartDate string     `json:"suggestedStartDate,omitempty"`
	DelayDays          int        `json:"delayDays,omitempty"`
	IdleHours          float64    `json:"idleHours,omitempty"`
	Recommendations    []string   `json:"recommendations,omitempty"`
}

type SuggestionDTO struct {
	Type        string    `json:"type"`
	Priority    string    `json:"priority"`
	Description string    `json:"description"`
	Action      ActionDTO `json:"action"`
}

func toSuggestionDTO(s resource.Suggestion) SuggestionDTO {
	a := s.Action
	action := ActionDTO{
		Type:            string(a.Kind),
		TaskID:          a.TaskID,
		TaskTitle:       a.TaskTitle,
		From:            toHandleDTO(a.From),
		FromName:        a.FromName,
		To:              toHandleDTO(a.To),
		ToName:          a.ToName,
		EstimatedHours:  a.EstimatedHours,
		EstimatedImpact: a.EstimatedImpact,
		DelayDays:       a.DelayDays,
		IdleHours:       a.IdleHours,
		Recommendations: a.Recommendations,
	}
	if !a.CurrentStartDate.IsZero() {
		action.CurrentStartDate = a.CurrentStartDate.Key()
	}
	if !a.SuggestedStartDate.IsZero() {
		action.SuggestedStartDate = a.SuggestedStartDate.Key()
	}
	return SuggestionDTO{
		Type:        string(s.Type),
		Priority:    string(s.Priority),
		Description: s.Description,
		Action:      action,
	}
}

// AllocationDTO is one raw allocation behind a resource summary.
type AllocationDTO struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"projectId"`
	ProjectName    string  `json:"projectName,omitempty"`
	TaskID         string  `json:"taskId,omitempty"`
	StartDate      string  `json:"startDate"`
	EndDate        string  `json:"endDate"`
	AllocatedHours float64 `json:"allocatedHours"`
	ResourceType   string  `json:"resourceType,omitempty"`
}

func toAllocationDTO(a resource.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		ProjectName:    a.ProjectName,
		TaskID:         a.TaskID,
		StartDate:      a.StartDate.Key(),
		EndDate:        a.EndDate.Key(),
		AllocatedHours: a.AllocatedHours,
		ResourceType:   string(a.ResourceType),
	}
}

type ResourceSummaryDTO struct {
	Resource        HandleDTO             `json:"resource"`
	Name            string                `json:"name"`
	Type            string                `json:"type"`
	Status          string                `json:"status"`
	Summary         UtilizationSummaryDTO `json:"summary"`
	AllocationCount int                   `json:"allocationCount"`
	Allocations     []AllocationDTO       `json:"allocations"`
}

// RebalanceResponse is the body of GET /api/resources/rebalance.
type RebalanceResponse struct {
	Project struct {
		ID string `json:"id"`
	} `json:"project"`
	Period          PeriodDTO            `json:"period"`
	Analysis        AnalysisDTO          `json:"analysis"`
	Suggestions     []SuggestionDTO      `json:"suggestions"`
	ResourceSummary []ResourceSummaryDTO `json:"resourceSummary"`
}

func toRebalanceResponse(rep *resource.RebalanceReport) RebalanceResponse {
	var resp RebalanceResponse
	resp.Project.ID = rep.ProjectID
	resp.Period = toPeriodDTO(rep.Window)
	resp.Analysis = AnalysisDTO(rep.Analysis)

	resp.Suggestions = make([]SuggestionDTO, len(rep.Suggestions))
	for i, s := range rep.Suggestions {
		resp.Suggestions[i] = toSuggestionDTO(s)
	}
	resp.ResourceSummary = make([]ResourceSummaryDTO, len(rep.ResourceSummary))
	for i, r := range rep.ResourceSummary {
		allocations := make([]AllocationDTO, len(r.Allocations))
		for j, a := range r.Allocations {
			allocations[j] = toAllocationDTO(a)
		}
		resp.ResourceSummary[i] = ResourceSummaryDTO{
			Resource:        HandleDTO{Kind: string(r.Profile.Handle.Kind), ID: r.Profile.Handle.ID},
			Name:            r.Profile.Name,
			Type:            string(r.Profile.Type),
			Status:          string(r.Status),
			Summary:         toUtilizationSummaryDTO(r.Summary),
			AllocationCount: len(r.Allocations),
			Allocations:     allocations,
		}
	}
	return resp
}

// =============================================================================
// COST CONTROL
// =============================================================================

type ProjectDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Code            string  `json:"code,omitempty"`
	Currency        string  `json:"currency"`
	Budget          float64 `json:"budget"`
	ActualCost      float64 `json:"actualCost"`
	MarginThreshold float64 `json:"marginThreshold"`
	StartDate       string  `json:"startDate,omitempty"`
	EndDate         string  `json:"endDate,omitempty"`
}

func toProjectDTO(p costcontrol.Project) ProjectDTO {
	dto := ProjectDTO{
		ID:              p.ID,
		Name:            p.Name,
		Code:            p.Code,
		Currency:        p.Currency,
		Budget:          money(p.Budget),
		ActualCost:      money(p.ActualCost),
		MarginThreshold: p.Threshold(),
	}
	if !p.StartDate.IsZero() {
		dto.StartDate = p.StartDate.Key()
	}
	if !p.EndDate.IsZero() {
		dto.EndDate = p.EndDate.Key()
	}
	return dto
}

type CostSummaryDTO struct {
	Budget             float64 `json:"budget"`
	ApprovedVariations float64 `json:"approvedVariations"`
	TotalBudget        float64 `json:"totalBudget"`
	ActualCost         float64 `json:"actualCost"`
	CommittedCost      float64 `json:"committedCost"`
	RemainingBudget    float64 `json:"remainingBudget"`
	EAC                float64 `json:"eac"`
	Margin             float64 `json:"margin"`
	MarginPercentage   float64 `json:"marginPercentage"`
	MarginThreshold    float64 `json:"marginThreshold"`
}

type PerformanceIndicesDTO struct {
	EarnedValue    float64 `json:"earnedValue"`
	PlannedValue   float64 `json:"plannedValue"`
	ActualCost     float64 `json:"actualCost"`
	CPI            float64 `json:"cpi"`
	SPI            float64 `json:"spi"`
	CostStatus     string  `json:"costStatus"`
	ScheduleStatus string  `json:"scheduleStatus"`
}

type CashflowBucketDTO struct {
	Period          string  `json:"period"`
	ForecastInflow  float64 `json:"forecastInflow"`
	ForecastOutflow float64 `json:"forecastOutflow"`
	ActualInflow    float64 `json:"actualInflow"`
	ActualOutflow   float64 `json:"actualOutflow"`
	NetForecast     float64 `json:"netForecast"`
	NetActual       float64 `json:"netActual"`
}

type SCurvePointDTO struct {
	Date               string   `json:"date"`
	CumulativeForecast float64  `json:"cumulativeForecast"`
	CumulativeActual   *float64 `json:"cumulativeActual"`
}

type CashflowDTO struct {
	Period     string              `json:"period"`
	Aggregated []CashflowBucketDTO `json:"aggregated"`
	SCurve     []SCurvePointDTO    `json:"sCurve"`
}

type EACSnapshotDTO struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectId"`
	RecordedAt       time.Time `json:"recordedAt"`
	Budget           float64   `json:"budget"`
	ActualCost       float64   `json:"actualCost"`
	CommittedCost    float64   `json:"committedCost"`
	EAC              float64   `json:"eac"`
	Variance         float64   `json:"variance"`
	CPI              float64   `json:"cpi"`
	SPI              float64   `json:"spi"`
	Margin           float64   `json:"margin"`
	MarginPercentage float64   `json:"marginPercentage"`
}

func toEACSnapshotDTO(s costcontrol.EACSnapshot) EACSnapshotDTO {
	return EACSnapshotDTO{
		ID:               s.ID,
		ProjectID:        s.ProjectID,
		RecordedAt:       s.RecordedAt,
		Budget:           money(s.Budget),
		ActualCost:       money(s.ActualCost),
		CommittedCost:    money(s.CommittedCost),
		EAC:              money(s.EAC),
		Variance:         money(s.Variance),
		CPI:              s.CPI,
		SPI:              s.SPI,
		Margin:           money(s.Margin),
		MarginPercentage: s.MarginPercentage,
	}
}

func toEACSnapshotDTOs(snaps []costcontrol.EACSnapshot) []EACSnapshotDTO {
	out := make([]EACSnapshotDTO, len(snaps))
	for i, s := range snaps {
		out[i] = toEACSnapshotDTO(s)
	}
	return out
}

type CostAlertDTO struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Status         string     `json:"status"`
	Message        string     `json:"message"`
	ThresholdValue float64    `json:"thresholdValue"`
	ActualValue    float64    `json:"actualValue"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

func toCostAlertDTO(a costcontrol.CostAlert) CostAlertDTO {
	return CostAlertDTO{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		Message:        a.Message,
		ThresholdValue: a.ThresholdValue,
		ActualValue:    a.ActualValue,
		CreatedAt:      a.CreatedAt,
		AcknowledgedAt: a.AcknowledgedAt,
		ResolvedAt:     a.ResolvedAt,
	}
}

// AnalyticsResponse is the body of GET /api/cost-control/analytics.
type AnalyticsResponse struct {
	Project            ProjectDTO            `json:"project"`
	CostSummary        CostSummaryDTO        `json:"costSummary"`
	PerformanceIndices PerformanceIndicesDTO `json:"performanceIndices"`
	Cashflow           CashflowDTO           `json:"cashflow"`
	EACTrend           []EACSnapshotDTO      `json:"eacTrend"`
	Alerts             []CostAlertDTO        `json:"alerts"`
}

func toAnalyticsResponse(rep *costcontrol.AnalyticsReport) AnalyticsResponse {
	s, pi := rep.Summary, rep.Performance

	buckets := make([]CashflowBucketDTO, len(rep.Cashflow.Aggregated))
	for i, b := range rep.Cashflow.Aggregated {
		buckets[i] = CashflowBucketDTO{
			Period:          b.Period,
			ForecastInflow:  money(b.ForecastInflow),
			ForecastOutflow: money(b.ForecastOutflow),
			ActualInflow:    money(b.ActualInflow),
			ActualOutflow:   money(b.ActualOutflow),
			NetForecast:     money(b.NetForecast()),
			NetActual:       money(b.NetActual()),
		}
	}
	curve := make([]SCurvePointDTO, len(rep.Cashflow.SCurve))
	for i, p := range rep.Cashflow.SCurve {
		curve[i] = SCurvePointDTO{
			Date:               p.Date.Key(),
			CumulativeForecast: money(p.CumulativeForecast),
			CumulativeActual:   optionalMoney(p.CumulativeActual),
		}
	}
	alerts := make([]CostAlertDTO, len(rep.Alerts))
	for i, a := range rep.Alerts {
		alerts[i] = toCostAlertDTO(a)
	}

	return AnalyticsResponse{
		Project: toProjectDTO(rep.Project),
		CostSummary: CostSummaryDTO{
			Budget:             money(s.Budget),
			ApprovedVariations: money(s.ApprovedVariations),
			TotalBudget:        money(s.TotalBudget),
			ActualCost:         money(s.ActualCost),
			CommittedCost:      money(s.CommittedCost),
			RemainingBudget:    money(s.RemainingBudget),
			EAC:                money(s.EAC),
			Margin:             money(s.Margin),
			MarginPercentage:   s.MarginPercentage,
			MarginThreshold:    s.MarginThreshold,
		},
		PerformanceIndices: PerformanceIndicesDTO{
			EarnedValue:    money(pi.EarnedValue),
			PlannedValue:   money(pi.PlannedValue),
			ActualCost:     money(pi.ActualCost),
			CPI:            pi.CPI,
			SPI:            pi.SPI,
			CostStatus:     string(pi.CostStatus),
			ScheduleStatus: string(pi.ScheduleStatus),
		},
		Cashflow: CashflowDTO{
			Period:     string(rep.Cashflow.Granularity),
			Aggregated: buckets,
			SCurve:     curve,
		},
		EACTrend: toEACSnapshotDTOs(rep.EACTrend),
		Alerts:   alerts,
	}
}

type CashflowResponseDTO struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"projectId"`
	Date        string   `json:"date"`
	Type        string   `json:"type"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Forecast    float64  `json:"forecast"`
	Actual      *float64 `json:"actual"`
	Variance    float64  `json:"variance"`
}

func toCashflowDTO(c costcontrol.Cashflow) CashflowResponseDTO {
	return CashflowResponseDTO{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Date:        c.Date.Key(),
		Type:        string(c.Type),
		Category:    c.Category,
		Description: c.Description,
		Forecast:    money(c.Forecast),
		Actual:      optionalMoney(c.Actual),
		Variance:    money(c.Variance),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

type CreateSnapshotRequest struct {
	ProjectID string `json:"projectId"`
}

type CreateCashflowRequest struct {
	ProjectID   string              `json:"projectId"`
	Date        string              `json:"date"`
	Type        string              `json:"type"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Forecast    decimal.Decimal     `json:"forecast"`
	Actual      decimal.NullDecimal `json:"actual"`
}

// UpdateCashflowRequest distinguishes an absent actual (unchanged) from an
// explicit null (cleared), so Actual stays raw until the handler reads it.
type UpdateCashflowRequest struct {
	Forecast    *decimal.Decimal `json:"forecast"`
	Actual      json.RawMessage  `json:"actual"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

// =============================================================================
// LISTINGS AND SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}
