/*
Package costcontrol derives cost and schedule metrics for a construction
project from its budget lines, approved change orders, cashflows and tasks.

KEY CONCEPTS:
  - Project: budget, actual cost and the margin threshold that triggers alerts
  - BudgetLine: per cost-code budget with committed (contracted) cost
  - ChangeOrder: a variation; only APPROVED ones change the total budget
  - Cashflow: dated forecast vs. actual money movement, variance derived
  - CostAlert: margin warning, at most one ACTIVE per (project, type)
  - EACSnapshot: immutable point-in-time record of the headline metrics

MONEY:
  Every currency figure is a decimal.Decimal. Ratios and percentages are
  float64 because they are only ever displayed or compared to thresholds.

SEE ALSO:
  - metrics.go: EAC, earned value, CPI/SPI, margin
  - cashflow.go: variance, bucketing, S-curve
  - alerts.go: margin alert evaluation and lifecycle
  - service.go: fetch boundary and the Store contract
*/
package costcontrol

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/project-control/generic"
)

// DefaultMarginThreshold is the margin percentage below which a project is
// flagged when it has no threshold of its own.
const DefaultMarginThreshold = 10.0

// =============================================================================
// PROJECT
// =============================================================================

type Project struct {
	ID              string
	Name            string
	Code            string
	Currency        string
	Budget          decimal.Decimal
	ActualCost      decimal.Decimal
	MarginThreshold float64 // percent; 0 means DefaultMarginThreshold
	StartDate       generic.TimePoint
	EndDate         generic.TimePoint
}

// Threshold returns the margin threshold in effect for the project.
func (p Project) Threshold() float64 {
	if p.MarginThreshold <= 0 {
		return DefaultMarginThreshold
	}
	return p.MarginThreshold
}

// Schedule is the project's planned date range. It is zero when either end
// is unknown.
func (p Project) Schedule() generic.Period {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return generic.Period{}
	}
	return generic.NewPeriod(p.StartDate, p.EndDate)
}

type BudgetLine struct {
	ID          string
	ProjectID   string
	CostCode    string
	Description string
	Budgeted    decimal.Decimal
	Committed   decimal.Decimal
	Actual      decimal.Decimal
}

// =============================================================================
// CHANGE ORDERS
// =============================================================================

type ChangeStatus string

const (
	ChangePending  ChangeStatus = "PENDING"
	ChangeApproved ChangeStatus = "APPROVED"
	ChangeRejected ChangeStatus = "REJECTED"
)

type ChangeOrder struct {
	ID                 string
	ProjectID          string
	Title              string
	Status             ChangeStatus
	CostImpact         decimal.Decimal
	ScheduleImpactDays int
}

// =============================================================================
// CASHFLOW
// =============================================================================

type CashflowType string

const (
	Inflow  CashflowType = "INFLOW"
	Outflow CashflowType = "OUTFLOW"
)

func (t CashflowType) Valid() bool { return t == Inflow || t == Outflow }

// Cashflow is a dated money movement. Variance is derived from Forecast and
// Actual; mutate through SetForecast/SetActual so it stays consistent.
type Cashflow struct {
	ID          string
	ProjectID   string
	Date        generic.TimePoint
	Type        CashflowType
	Category    string
	Description string
	Forecast    decimal.Decimal
	Actual      decimal.NullDecimal
	Variance    decimal.Decimal
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertType string

const AlertMarginBelowThreshold AlertType = "MARGIN_BELOW_THRESHOLD"

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

type CostAlert struct {
	ID             string
	ProjectID      string
	Type           AlertType
	Severity       AlertSeverity
	Status         AlertStatus
	Message        string
	ThresholdValue float64
	ActualValue    float64
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// =============================================================================
// EAC HISTORY
// =============================================================================

// EACSnapshot is appended by RecordSnapshot and never modified afterwards.
type EACSnapshot struct {
	ID               string
	ProjectID        string
	RecordedAt       time.Time
	Budget           decimal.Decimal
	ActualCost       decimal.Decimal
	CommittedCost    decimal.Decimal
	EAC              decimal.Decimal
	Variance         decimal.Decimal
	CPI              float64
	SPI              float64
	Margin           decimal.Decimal
	MarginPercentage float64
}
