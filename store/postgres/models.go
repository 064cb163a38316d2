package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// Rows mirror the sqlite schema table for table. Calendar days are DATE
// columns, money is NUMERIC.

type resourceRow struct {
	ID              string          `gorm:"primaryKey;size:64"`
	Name            string          `gorm:"size:255;not null"`
	ResourceType    string          `gorm:"type:varchar(50);not null"`
	MaxHoursPerDay  float64         `gorm:"not null;default:8"`
	MaxHoursPerWeek float64         `gorm:"not null;default:40"`
	HourlyRate      decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
}

func (resourceRow) TableName() string { return "resources" }

type userRow struct {
	ID    string `gorm:"primaryKey;size:64"`
	Name  string `gorm:"size:255;not null"`
	Email string `gorm:"size:255"`
}

func (userRow) TableName() string { return "users" }

type availabilityRow struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ResourceID     string    `gorm:"size:64;not null;uniqueIndex:idx_availability_resource_date"`
	Date           time.Time `gorm:"type:date;not null;uniqueIndex:idx_availability_resource_date"`
	IsAvailable    bool      `gorm:"not null;default:true"`
	AvailableHours float64   `gorm:"not null;default:0"`
	Reason         string    `gorm:"size:100"`
	Notes          string    `gorm:"type:text"`
}

func (availabilityRow) TableName() string { return "resource_availability" }

type allocationRow struct {
	ID                    string    `gorm:"primaryKey;size:64"`
	ResourceID            string    `gorm:"size:64;index:idx_allocations_resource_range"`
	UserID                string    `gorm:"size:64"`
	ProjectID             string    `gorm:"size:64;not null;index:idx_allocations_project_range"`
	TaskID                string    `gorm:"size:64"`
	StartDate             time.Time `gorm:"type:date;not null;index:idx_allocations_resource_range;index:idx_allocations_project_range"`
	EndDate               time.Time `gorm:"type:date;not null;index:idx_allocations_resource_range;index:idx_allocations_project_range"`
	AllocatedHours        float64   `gorm:"not null"`
	UtilizationPercentage float64   `gorm:"not null;default:0"`
	ResourceType          string    `gorm:"type:varchar(50)"`
}

func (allocationRow) TableName() string { return "resource_allocations" }

// allocationView is an allocation joined with its project name and the
// resource's type.
type allocationView struct {
	allocationRow
	ProjectName string
	JoinedType  string
}

type taskRow struct {
	ID                 string     `gorm:"primaryKey;size:64"`
	ProjectID          string     `gorm:"size:64;not null;index"`
	Title              string     `gorm:"size:255;not null"`
	Status             string     `gorm:"type:varchar(50);not null"`
	Priority           string     `gorm:"type:varchar(50);not null"`
	IsCriticalPath     bool       `gorm:"not null;default:false"`
	AssignedResourceID string     `gorm:"size:64"`
	AssignedToID       string     `gorm:"size:64"`
	EstimatedHours     float64    `gorm:"not null;default:0"`
	Progress           float64    `gorm:"not null;default:0"`
	StartDate          *time.Time `gorm:"type:date"`
	EndDate            *time.Time `gorm:"type:date"`
	Dependencies       []string   `gorm:"type:text;serializer:json"`
}

func (taskRow) TableName() string { return "tasks" }

type projectRow struct {
	ID              string          `gorm:"primaryKey;size:64"`
	Name            string          `gorm:"size:255;not null"`
	Code            string          `gorm:"size:50"`
	Currency        string          `gorm:"size:3;not null;default:GBP"`
	Budget          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	ActualCost      decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	MarginThreshold float64         `gorm:"not null;default:10"`
	StartDate       *time.Time      `gorm:"type:date"`
	EndDate         *time.Time      `gorm:"type:date"`
}

func (projectRow) TableName() string { return "projects" }

type budgetLineRow struct {
	ID          string          `gorm:"primaryKey;size:64"`
	ProjectID   string          `gorm:"size:64;not null;index"`
	CostCode    string          `gorm:"size:50"`
	Description string          `gorm:"type:text"`
	Budgeted    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Committed   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	Actual      decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
}

func (budgetLineRow) TableName() string { return "budget_lines" }

type changeOrderRow struct {
	ID                 string          `gorm:"primaryKey;size:64"`
	ProjectID          string          `gorm:"size:64;not null;index:idx_change_orders_project"`
	Title              string          `gorm:"size:255;not null"`
	Status             string          `gorm:"type:varchar(50);not null;index:idx_change_orders_project"`
	CostImpact         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0"`
	ScheduleImpactDays int             `gorm:"not null;default:0"`
}

func (changeOrderRow) TableName() string { return "change_orders" }

type cashflowRow struct {
	ID          string              `gorm:"primaryKey;size:64"`
	ProjectID   string              `gorm:"size:64;not null;index:idx_cashflows_project_date"`
	Date        time.Time           `gorm:"type:date;not null;index:idx_cashflows_project_date"`
	FlowType    string              `gorm:"type:varchar(20);not null"`
	Category    string              `gorm:"size:100"`
	Description string              `gorm:"type:text"`
	Forecast    decimal.Decimal     `gorm:"type:numeric(20,2);not null;default:0"`
	Actual      decimal.NullDecimal `gorm:"type:numeric(20,2)"`
	Variance    decimal.Decimal     `gorm:"type:numeric(20,2);not null;default:0"`
}

func (cashflowRow) TableName() string { return "cashflows" }

type alertRow struct {
	ID             string    `gorm:"primaryKey;size:64"`
	ProjectID      string    `gorm:"size:64;not null;index:idx_cost_alerts_project_status"`
	AlertType      string    `gorm:"type:varchar(50);not null"`
	Severity       string    `gorm:"type:varchar(20);not null"`
	Status         string    `gorm:"type:varchar(20);not null;default:ACTIVE;index:idx_cost_alerts_project_status"`
	Message        string    `gorm:"type:text"`
	ThresholdValue float64
	ActualValue    float64
	CreatedAt      time.Time `gorm:"not null"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

func (alertRow) TableName() string { return "cost_alerts" }

type snapshotRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	ProjectID        string          `gorm:"size:64;not null;index:idx_eac_history_project_time"`
	RecordedAt       time.Time       `gorm:"not null;index:idx_eac_history_project_time"`
	Budget           decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ActualCost       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CommittedCost    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	EAC              decimal.Decimal `gorm:"column:eac;type:numeric(20,2);not null"`
	Variance         decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CPI              float64         `gorm:"column:cpi;not null"`
	SPI              float64         `gorm:"column:spi;not null"`
	Margin           decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	MarginPercentage float64         `gorm:"not null"`
}

func (snapshotRow) TableName() string { return "eac_history" }

// models lists every row type in migration order.
var models = []any{
	&resourceRow{}, &userRow{}, &availabilityRow{}, &allocationRow{}, &taskRow{},
	&projectRow{}, &budgetLineRow{}, &changeOrderRow{}, &cashflowRow{}, &alertRow{}, &snapshotRow{},
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toResourceRow(r resource.Resource) resourceRow {
	return resourceRow{
		ID:              r.ID,
		Name:            r.Name,
		ResourceType:    string(r.Type),
		MaxHoursPerDay:  r.MaxHoursPerDay,
		MaxHoursPerWeek: r.MaxHoursPerWeek,
		HourlyRate:      r.HourlyRate,
	}
}

func (r resourceRow) toDomain() resource.Resource {
	return resource.Resource{
		ID:              r.ID,
		Name:            r.Name,
		Type:            resource.Type(r.ResourceType),
		MaxHoursPerDay:  r.MaxHoursPerDay,
		MaxHoursPerWeek: r.MaxHoursPerWeek,
		HourlyRate:      r.HourlyRate,
	}
}

func toAvailabilityRow(a resource.Availability) availabilityRow {
	return availabilityRow{
		ID:             a.ID,
		ResourceID:     a.ResourceID,
		Date:           a.Date.Time,
		IsAvailable:    a.IsAvailable,
		AvailableHours: a.AvailableHours,
		Reason:         a.Reason,
		Notes:          a.Notes,
	}
}

func (r availabilityRow) toDomain() resource.Availability {
	return resource.Availability{
		ID:             r.ID,
		ResourceID:     r.ResourceID,
		Date:           generic.Day(r.Date),
		IsAvailable:    r.IsAvailable,
		AvailableHours: r.AvailableHours,
		Reason:         r.Reason,
		Notes:          r.Notes,
	}
}

func toAllocationRow(a resource.Allocation) allocationRow {
	return allocationRow{
		ID:                    a.ID,
		ResourceID:            a.ResourceID,
		UserID:                a.UserID,
		ProjectID:             a.ProjectID,
		TaskID:                a.TaskID,
		StartDate:             a.StartDate.Time,
		EndDate:               a.EndDate.Time,
		AllocatedHours:        a.AllocatedHours,
		UtilizationPercentage: a.UtilizationPercentage,
		ResourceType:          string(a.ResourceType),
	}
}

func (v allocationView) toDomain() resource.Allocation {
	typ := v.ResourceType
	if typ == "" {
		typ = v.JoinedType
	}
	return resource.Allocation{
		ID:                    v.ID,
		ResourceID:            v.ResourceID,
		UserID:                v.UserID,
		ProjectID:             v.ProjectID,
		ProjectName:           v.ProjectName,
		TaskID:                v.TaskID,
		StartDate:             generic.Day(v.StartDate),
		EndDate:               generic.Day(v.EndDate),
		AllocatedHours:        v.AllocatedHours,
		UtilizationPercentage: v.UtilizationPercentage,
		ResourceType:          resource.Type(typ),
	}
}

func toTaskRow(t generic.Task) taskRow {
	return taskRow{
		ID:                 t.ID,
		ProjectID:          t.ProjectID,
		Title:              t.Title,
		Status:             string(t.Status),
		Priority:           string(t.Priority),
		IsCriticalPath:     t.IsCriticalPath,
		AssignedResourceID: t.AssignedResourceID,
		AssignedToID:       t.AssignedToID,
		EstimatedHours:     t.EstimatedHours,
		Progress:           t.Progress,
		StartDate:          datePtr(t.StartDate),
		EndDate:            datePtr(t.EndDate),
		Dependencies:       t.Dependencies,
	}
}

func (r taskRow) toDomain() generic.Task {
	return generic.Task{
		ID:                 r.ID,
		ProjectID:          r.ProjectID,
		Title:              r.Title,
		Status:             generic.TaskStatus(r.Status),
		Priority:           generic.TaskPriority(r.Priority),
		IsCriticalPath:     r.IsCriticalPath,
		AssignedResourceID: r.AssignedResourceID,
		AssignedToID:       r.AssignedToID,
		EstimatedHours:     r.EstimatedHours,
		Progress:           r.Progress,
		StartDate:          dayOf(r.StartDate),
		EndDate:            dayOf(r.EndDate),
		Dependencies:       r.Dependencies,
	}
}

func toProjectRow(p costcontrol.Project) projectRow {
	threshold := p.MarginThreshold
	if threshold <= 0 {
		threshold = costcontrol.DefaultMarginThreshold
	}
	currency := p.Currency
	if currency == "" {
		currency = "GBP"
	}
	return projectRow{
		ID:              p.ID,
		Name:            p.Name,
		Code:            p.Code,
		Currency:        currency,
		Budget:          p.Budget,
		ActualCost:      p.ActualCost,
		MarginThreshold: threshold,
		StartDate:       datePtr(p.StartDate),
		EndDate:         datePtr(p.EndDate),
	}
}

func (r projectRow) toDomain() costcontrol.Project {
	return costcontrol.Project{
		ID:              r.ID,
		Name:            r.Name,
		Code:            r.Code,
		Currency:        r.Currency,
		Budget:          r.Budget,
		ActualCost:      r.ActualCost,
		MarginThreshold: r.MarginThreshold,
		StartDate:       dayOf(r.StartDate),
		EndDate:         dayOf(r.EndDate),
	}
}

func (r budgetLineRow) toDomain() costcontrol.BudgetLine {
	return costcontrol.BudgetLine{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		CostCode:    r.CostCode,
		Description: r.Description,
		Budgeted:    r.Budgeted,
		Committed:   r.Committed,
		Actual:      r.Actual,
	}
}

func (r changeOrderRow) toDomain() costcontrol.ChangeOrder {
	return costcontrol.ChangeOrder{
		ID:                 r.ID,
		ProjectID:          r.ProjectID,
		Title:              r.Title,
		Status:             costcontrol.ChangeStatus(r.Status),
		CostImpact:         r.CostImpact,
		ScheduleImpactDays: r.ScheduleImpactDays,
	}
}

func toCashflowRow(c costcontrol.Cashflow) cashflowRow {
	return cashflowRow{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Date:        c.Date.Time,
		FlowType:    string(c.Type),
		Category:    c.Category,
		Description: c.Description,
		Forecast:    c.Forecast,
		Actual:      c.Actual,
		Variance:    c.Variance,
	}
}

func (r cashflowRow) toDomain() costcontrol.Cashflow {
	return costcontrol.Cashflow{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Date:        generic.Day(r.Date),
		Type:        costcontrol.CashflowType(r.FlowType),
		Category:    r.Category,
		Description: r.Description,
		Forecast:    r.Forecast,
		Actual:      r.Actual,
		Variance:    r.Variance,
	}
}

func toAlertRow(a costcontrol.CostAlert) alertRow {
	return alertRow{
		ID:             a.ID,
		ProjectID:      a.ProjectID,
		AlertType:      string(a.Type),
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		Message:        a.Message,
		ThresholdValue: a.ThresholdValue,
		ActualValue:    a.ActualValue,
		CreatedAt:      a.CreatedAt.UTC(),
		AcknowledgedAt: a.AcknowledgedAt,
		ResolvedAt:     a.ResolvedAt,
	}
}

func (r alertRow) toDomain() costcontrol.CostAlert {
	return costcontrol.CostAlert{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Type:           costcontrol.AlertType(r.AlertType),
		Severity:       costcontrol.AlertSeverity(r.Severity),
		Status:         costcontrol.AlertStatus(r.Status),
		Message:        r.Message,
		ThresholdValue: r.ThresholdValue,
		ActualValue:    r.ActualValue,
		CreatedAt:      r.CreatedAt,
		AcknowledgedAt: r.AcknowledgedAt,
		ResolvedAt:     r.ResolvedAt,
	}
}

func toSnapshotRow(s costcontrol.EACSnapshot) snapshotRow {
	return snapshotRow{
		ID:               s.ID,
		ProjectID:        s.ProjectID,
		RecordedAt:       s.RecordedAt.UTC(),
		Budget:           s.Budget,
		ActualCost:       s.ActualCost,
		CommittedCost:    s.CommittedCost,
		EAC:              s.EAC,
		Variance:         s.Variance,
		CPI:              s.CPI,
		SPI:              s.SPI,
		Margin:           s.Margin,
		MarginPercentage: s.MarginPercentage,
	}
}

func (r snapshotRow) toDomain() costcontrol.EACSnapshot {
	return costcontrol.EACSnapshot{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		RecordedAt:       r.RecordedAt,
		Budget:           r.Budget,
		ActualCost:       r.ActualCost,
		CommittedCost:    r.CommittedCost,
		EAC:              r.EAC,
		Variance:         r.Variance,
		CPI:              r.CPI,
		SPI:              r.SPI,
		Margin:           r.Margin,
		MarginPercentage: r.MarginPercentage,
	}
}

func datePtr(tp generic.TimePoint) *time.Time {
	if tp.IsZero() {
		return nil
	}
	t := tp.Time
	return &t
}

func dayOf(t *time.Time) generic.TimePoint {
	if t == nil {
		return generic.TimePoint{}
	}
	return generic.Day(*t)
}
