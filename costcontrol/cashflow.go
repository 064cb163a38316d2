package costcontrol

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/project-control/generic"
)

// =============================================================================
// VARIANCE
// =============================================================================

// Recompute derives Variance: actual - forecast, or 0 while no actual exists.
func (c *Cashflow) Recompute() {
	if !c.Actual.Valid {
		c.Variance = decimal.Zero
		return
	}
	c.Variance = c.Actual.Decimal.Sub(c.Forecast)
}

func (c *Cashflow) SetForecast(v decimal.Decimal) {
	c.Forecast = v
	c.Recompute()
}

// SetActual records an actual amount. A NullDecimal with Valid=false clears it.
func (c *Cashflow) SetActual(v decimal.NullDecimal) {
	c.Actual = v
	c.Recompute()
}

func (c Cashflow) Validate() error {
	if c.ProjectID == "" {
		return generic.Required("projectId")
	}
	if c.Date.IsZero() {
		return generic.Required("date")
	}
	if !c.Type.Valid() {
		return &generic.ValidationError{Field: "type", Message: fmt.Sprintf("must be %s or %s", Inflow, Outflow)}
	}
	return nil
}

// signed applies the sign convention: inflows add, outflows subtract.
func signed(t CashflowType, v decimal.Decimal) decimal.Decimal {
	if t == Outflow {
		return v.Neg()
	}
	return v
}

// =============================================================================
// BUCKETING
// =============================================================================

type Granularity string

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity defaults to Monthly when s is empty.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", Monthly:
		return Monthly, nil
	case Weekly:
		return Weekly, nil
	default:
		return "", &generic.ValidationError{Field: "period", Message: "must be weekly or monthly"}
	}
}

// Key returns the bucket key of a day: YYYY-Www or YYYY-MM.
func (g Granularity) Key(day generic.TimePoint) string {
	if g == Weekly {
		return generic.ISOWeekKey(day)
	}
	return generic.MonthKey(day)
}

type CashflowBucket struct {
	Period          string
	ForecastInflow  decimal.Decimal
	ForecastOutflow decimal.Decimal
	ActualInflow    decimal.Decimal
	ActualOutflow   decimal.Decimal
}

func (b CashflowBucket) NetForecast() decimal.Decimal { return b.ForecastInflow.Sub(b.ForecastOutflow) }
func (b CashflowBucket) NetActual() decimal.Decimal   { return b.ActualInflow.Sub(b.ActualOutflow) }

// AggregateCashflows groups cashflows into period buckets, ordered by key.
// Both key formats sort chronologically as strings.
func AggregateCashflows(cashflows []Cashflow, g Granularity) []CashflowBucket {
	buckets := make(map[string]*CashflowBucket)
	for _, c := range cashflows {
		key := g.Key(c.Date)
		b, ok := buckets[key]
		if !ok {
			b = &CashflowBucket{
				Period:          key,
				ForecastInflow:  decimal.Zero,
				ForecastOutflow: decimal.Zero,
				ActualInflow:    decimal.Zero,
				ActualOutflow:   decimal.Zero,
			}
			buckets[key] = b
		}

		actual := decimal.Zero
		if c.Actual.Valid {
			actual = c.Actual.Decimal
		}
		if c.Type == Inflow {
			b.ForecastInflow = b.ForecastInflow.Add(c.Forecast)
			b.ActualInflow = b.ActualInflow.Add(actual)
		} else {
			b.ForecastOutflow = b.ForecastOutflow.Add(c.Forecast)
			b.ActualOutflow = b.ActualOutflow.Add(actual)
		}
	}

	out := make([]CashflowBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// =============================================================================
// S-CURVE
// =============================================================================

// SCurvePoint carries running signed totals. CumulativeActual stays null until
// the first actual amount is seen, then carries forward over records without one.
type SCurvePoint struct {
	Date               generic.TimePoint
	CumulativeForecast decimal.Decimal
	CumulativeActual   decimal.NullDecimal
}

// BuildSCurve emits one point per cashflow in date order. The input is not
// modified.
func BuildSCurve(cashflows []Cashflow) []SCurvePoint {
	sorted := make([]Cashflow, len(cashflows))
	copy(sorted, cashflows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	points := make([]SCurvePoint, 0, len(sorted))
	forecast := decimal.Zero
	var actual decimal.NullDecimal
	for _, c := range sorted {
		forecast = forecast.Add(signed(c.Type, c.Forecast))
		if c.Actual.Valid {
			if !actual.Valid {
				actual = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
			}
			actual.Decimal = actual.Decimal.Add(signed(c.Type, c.Actual.Decimal))
		}
		points = append(points, SCurvePoint{
			Date:               c.Date,
			CumulativeForecast: forecast,
			CumulativeActual:   actual,
		})
	}
	return points
}
