/*
metrics.go - Cost and schedule performance formulas

TWO CALL SITES, TWO FORMULA SETS:
  The live analytics view and the EAC history snapshot do not agree on how
  EAC and earned value are estimated. Both are kept as separately named
  functions; do not merge them without a product decision.

    analytics:  EAC = actual + committed + (remaining - committed)
                      where remaining = budget - actual
                EV  = actual cost
    snapshot:   EAC = actual + committed
                EV  = average task progress x total budget

SHARED:
  totalBudget      = budget + approved variations
  margin           = totalBudget - EAC
  marginPercentage = margin / totalBudget x 100   (0 when totalBudget is 0)
  CPI              = EV / AC                      (1 when EV or AC is 0)
  SPI              = EV / PV                      (1 when PV is 0)
  PV               = totalBudget x elapsed fraction of the schedule
*/
package costcontrol

import (
	"github.com/shopspring/decimal"
	"github.com/warp/project-control/generic"
)

var hundred = decimal.NewFromInt(100)

// CommittedCost sums committed cost over all budget lines.
func CommittedCost(lines []BudgetLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Committed)
	}
	return total
}

// ApprovedVariations sums the cost impact of APPROVED change orders.
func ApprovedVariations(changes []ChangeOrder) decimal.Decimal {
	total := decimal.Zero
	for _, c := range changes {
		if c.Status == ChangeApproved {
			total = total.Add(c.CostImpact)
		}
	}
	return total
}

func TotalBudget(budget, variations decimal.Decimal) decimal.Decimal {
	return budget.Add(variations)
}

// EstimateEACAnalytics is the analytics view's estimate at completion.
// The expression is kept as written even though it reduces to the budget.
func EstimateEACAnalytics(budget, actual, committed decimal.Decimal) decimal.Decimal {
	remaining := budget.Sub(actual)
	return actual.Add(committed).Add(remaining.Sub(committed))
}

// EstimateEACSnapshot is the EAC recorded in history snapshots.
func EstimateEACSnapshot(actual, committed decimal.Decimal) decimal.Decimal {
	return actual.Add(committed)
}

// EarnedValueAnalytics treats money spent as value earned.
func EarnedValueAnalytics(actual decimal.Decimal) decimal.Decimal {
	return actual
}

// EarnedValueSnapshot is the mean task progress applied to the total budget.
// A project without tasks has earned nothing.
func EarnedValueSnapshot(tasks []generic.Task, totalBudget decimal.Decimal) decimal.Decimal {
	if len(tasks) == 0 {
		return decimal.Zero
	}
	var sum float64
	for _, t := range tasks {
		sum += clampPercent(t.Progress)
	}
	avg := decimal.NewFromFloat(sum / float64(len(tasks)))
	return totalBudget.Mul(avg).Div(hundred)
}

// PlannedValue is the share of the total budget that should have been spent
// by asOf if spending followed the schedule linearly. A project without a
// schedule has no planned value.
func PlannedValue(totalBudget decimal.Decimal, schedule generic.Period, asOf generic.TimePoint) decimal.Decimal {
	total := schedule.TotalDays()
	if schedule.Start.IsZero() || total == 0 {
		return decimal.Zero
	}
	if asOf.Before(schedule.Start) {
		return decimal.Zero
	}
	elapsed, _ := generic.DaysInRange(schedule.Start, asOf)
	if elapsed >= total {
		return totalBudget
	}
	return totalBudget.Mul(decimal.NewFromInt(int64(elapsed))).Div(decimal.NewFromInt(int64(total)))
}

// CPI is earned value over actual cost, 1 when either is not positive.
func CPI(earned, actual decimal.Decimal) float64 {
	if !earned.IsPositive() || !actual.IsPositive() {
		return 1
	}
	return earned.Div(actual).InexactFloat64()
}

// SPI is earned value over planned value, 1 when nothing is planned yet.
func SPI(earned, planned decimal.Decimal) float64 {
	if !planned.IsPositive() {
		return 1
	}
	return earned.Div(planned).InexactFloat64()
}

func Margin(totalBudget, eac decimal.Decimal) decimal.Decimal {
	return totalBudget.Sub(eac)
}

func MarginPercentage(margin, totalBudget decimal.Decimal) float64 {
	if !totalBudget.IsPositive() {
		return 0
	}
	return margin.Div(totalBudget).Mul(hundred).InexactFloat64()
}

// =============================================================================
// RAG STATUS
// =============================================================================

type RAG string

const (
	RAGGreen RAG = "GREEN"
	RAGAmber RAG = "AMBER"
	RAGRed   RAG = "RED"
)

// RAGStatus grades a performance index.
func RAGStatus(index float64) RAG {
	switch {
	case index >= 0.95:
		return RAGGreen
	case index >= 0.85:
		return RAGAmber
	default:
		return RAGRed
	}
}

// =============================================================================
// SUMMARIES
// =============================================================================

type CostSummary struct {
	Budget             decimal.Decimal
	ApprovedVariations decimal.Decimal
	TotalBudget        decimal.Decimal
	ActualCost         decimal.Decimal
	CommittedCost      decimal.Decimal
	RemainingBudget    decimal.Decimal
	EAC                decimal.Decimal
	Margin             decimal.Decimal
	MarginPercentage   float64
	MarginThreshold    float64
}

type PerformanceIndices struct {
	EarnedValue    decimal.Decimal
	PlannedValue   decimal.Decimal
	ActualCost     decimal.Decimal
	CPI            float64
	SPI            float64
	CostStatus     RAG
	ScheduleStatus RAG
}

// Summarize computes the analytics view of a project.
func Summarize(p Project, lines []BudgetLine, changes []ChangeOrder, asOf generic.TimePoint) (CostSummary, PerformanceIndices) {
	variations := ApprovedVariations(changes)
	committed := CommittedCost(lines)
	total := TotalBudget(p.Budget, variations)
	eac := EstimateEACAnalytics(p.Budget, p.ActualCost, committed)
	margin := Margin(total, eac)

	summary := CostSummary{
		Budget:             p.Budget,
		ApprovedVariations: variations,
		TotalBudget:        total,
		ActualCost:         p.ActualCost,
		CommittedCost:      committed,
		RemainingBudget:    p.Budget.Sub(p.ActualCost),
		EAC:                eac,
		Margin:             margin,
		MarginPercentage:   MarginPercentage(margin, total),
		MarginThreshold:    p.Threshold(),
	}

	ev := EarnedValueAnalytics(p.ActualCost)
	pv := PlannedValue(total, p.Schedule(), asOf)
	indices := PerformanceIndices{
		EarnedValue:  ev,
		PlannedValue: pv,
		ActualCost:   p.ActualCost,
		CPI:          CPI(ev, p.ActualCost),
		SPI:          SPI(ev, pv),
	}
	indices.CostStatus = RAGStatus(indices.CPI)
	indices.ScheduleStatus = RAGStatus(indices.SPI)
	return summary, indices
}

// NewSnapshot computes a history record with the snapshot formulas. ID and
// RecordedAt are left for the caller.
func NewSnapshot(p Project, lines []BudgetLine, changes []ChangeOrder, tasks []generic.Task, asOf generic.TimePoint) EACSnapshot {
	committed := CommittedCost(lines)
	total := TotalBudget(p.Budget, ApprovedVariations(changes))
	eac := EstimateEACSnapshot(p.ActualCost, committed)
	margin := Margin(total, eac)

	ev := EarnedValueSnapshot(tasks, total)
	pv := PlannedValue(total, p.Schedule(), asOf)

	return EACSnapshot{
		ProjectID:        p.ID,
		Budget:           p.Budget,
		ActualCost:       p.ActualCost,
		CommittedCost:    committed,
		EAC:              eac,
		Variance:         p.Budget.Sub(eac),
		CPI:              CPI(ev, p.ActualCost),
		SPI:              SPI(ev, pv),
		Margin:           margin,
		MarginPercentage: MarginPercentage(margin, total),
	}
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
