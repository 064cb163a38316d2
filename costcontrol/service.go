package costcontrol

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/project-control/generic"
)

// TrendLength is how many history snapshots the analytics view returns.
const TrendLength = 12

// Store is the persistence contract of the cost engine. Getters return
// (nil, nil) for a missing row.
type Store interface {
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	BudgetLines(ctx context.Context, projectID string) ([]BudgetLine, error)
	ChangeOrders(ctx context.Context, projectID string) ([]ChangeOrder, error)
	TasksForProject(ctx context.Context, projectID string) ([]generic.Task, error)

	Cashflows(ctx context.Context, projectID string) ([]Cashflow, error)
	GetCashflow(ctx context.Context, id string) (*Cashflow, error)
	InsertCashflow(ctx context.Context, c Cashflow) error
	UpdateCashflow(ctx context.Context, c Cashflow) error

	// Alerts lists a project's alerts, optionally filtered by status.
	Alerts(ctx context.Context, projectID string, statuses ...AlertStatus) ([]CostAlert, error)
	GetAlert(ctx context.Context, id string) (*CostAlert, error)
	// InsertAlertIfNoActive inserts a unless an ACTIVE alert of the same type
	// already exists for the project. It reports whether a row was written.
	InsertAlertIfNoActive(ctx context.Context, a CostAlert) (bool, error)
	UpdateAlert(ctx context.Context, a CostAlert) error

	InsertSnapshot(ctx context.Context, s EACSnapshot) error
	// Snapshots returns the project's history, oldest first.
	Snapshots(ctx context.Context, projectID string) ([]EACSnapshot, error)
}

type Service struct {
	Store Store
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// =============================================================================
// ANALYTICS
// =============================================================================

type AnalyticsQuery struct {
	ProjectID   string
	Granularity Granularity
}

type CashflowView struct {
	Granularity Granularity
	Aggregated  []CashflowBucket
	SCurve      []SCurvePoint
}

type AnalyticsReport struct {
	Project     Project
	Summary     CostSummary
	Performance PerformanceIndices
	Cashflow    CashflowView
	EACTrend    []EACSnapshot
	Alerts      []CostAlert
	// AlertCreated is true when this call raised a new margin alert.
	AlertCreated bool
}

// Analytics computes the live cost view of a project. When the margin is
// below the project's threshold it raises a margin alert unless one is
// already ACTIVE.
func (s *Service) Analytics(ctx context.Context, q AnalyticsQuery) (*AnalyticsReport, error) {
	if q.ProjectID == "" {
		return nil, generic.Required("projectId")
	}
	if q.Granularity == "" {
		q.Granularity = Monthly
	}

	p, err := s.project(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Store.BudgetLines(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}
	changes, err := s.Store.ChangeOrders(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load change orders: %w", err)
	}
	cashflows, err := s.Store.Cashflows(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load cashflows: %w", err)
	}
	history, err := s.Store.Snapshots(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load eac history: %w", err)
	}

	now := s.now()
	summary, indices := Summarize(*p, lines, changes, generic.Day(now))

	created := false
	if alert := EvaluateMarginAlert(p.ID, summary.MarginPercentage, summary.MarginThreshold, now); alert != nil {
		created, err = s.Store.InsertAlertIfNoActive(ctx, *alert)
		if err != nil {
			return nil, fmt.Errorf("raise margin alert: %w", err)
		}
		if created {
			log.Printf("[CostControl] %s alert raised for project %s: margin %.1f%% < %.1f%%",
				alert.Severity, p.ID, summary.MarginPercentage, summary.MarginThreshold)
		}
	}

	alerts, err := s.Store.Alerts(ctx, p.ID, AlertActive, AlertAcknowledged)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}

	return &AnalyticsReport{
		Project:     *p,
		Summary:     summary,
		Performance: indices,
		Cashflow: CashflowView{
			Granularity: q.Granularity,
			Aggregated:  AggregateCashflows(cashflows, q.Granularity),
			SCurve:      BuildSCurve(cashflows),
		},
		EACTrend:     lastN(history, TrendLength),
		Alerts:       alerts,
		AlertCreated: created,
	}, nil
}

func lastN(history []EACSnapshot, n int) []EACSnapshot {
	sorted := make([]EACSnapshot, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordedAt.Before(sorted[j].RecordedAt) })
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// =============================================================================
// EAC HISTORY
// =============================================================================

// RecordSnapshot appends a new history record computed with the snapshot
// formulas.
func (s *Service) RecordSnapshot(ctx context.Context, projectID string) (*EACSnapshot, error) {
	if projectID == "" {
		return nil, generic.Required("projectId")
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	lines, err := s.Store.BudgetLines(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}
	changes, err := s.Store.ChangeOrders(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load change orders: %w", err)
	}
	tasks, err := s.Store.TasksForProject(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	now := s.now()
	snap := NewSnapshot(*p, lines, changes, tasks, generic.Day(now))
	snap.ID = uuid.NewString()
	snap.RecordedAt = now.UTC()

	if err := s.Store.InsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return &snap, nil
}

// History returns every snapshot of the project, oldest first.
func (s *Service) History(ctx context.Context, projectID string) ([]EACSnapshot, error) {
	if projectID == "" {
		return nil, generic.Required("projectId")
	}
	if _, err := s.project(ctx, projectID); err != nil {
		return nil, err
	}
	history, err := s.Store.Snapshots(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load eac history: %w", err)
	}
	return lastN(history, len(history)), nil
}

// SnapshotAll records a snapshot for every project and returns how many were
// written. A failing project is logged and skipped.
func (s *Service) SnapshotAll(ctx context.Context) (int, error) {
	projects, err := s.Store.ListProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list projects: %w", err)
	}
	n := 0
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := s.RecordSnapshot(ctx, p.ID); err != nil {
			log.Printf("[CostControl] snapshot failed for project %s: %v", p.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

// =============================================================================
// CASHFLOWS
// =============================================================================

// CreateCashflow validates and stores a new cashflow with its variance derived.
func (s *Service) CreateCashflow(ctx context.Context, c Cashflow) (*Cashflow, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.project(ctx, c.ProjectID); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Date = generic.Day(c.Date.Time)
	c.Recompute()

	if err := s.Store.InsertCashflow(ctx, c); err != nil {
		return nil, fmt.Errorf("save cashflow: %w", err)
	}
	return &c, nil
}

// CashflowPatch edits forecast and/or actual. Nil fields are left unchanged;
// an Actual with Valid=false clears the recorded actual.
type CashflowPatch struct {
	Forecast    *decimal.Decimal
	Actual      *decimal.NullDecimal
	Category    *string
	Description *string
}

// UpdateCashflow applies a patch and recomputes the variance.
func (s *Service) UpdateCashflow(ctx context.Context, id string, patch CashflowPatch) (*Cashflow, error) {
	c, err := s.Store.GetCashflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load cashflow: %w", err)
	}
	if c == nil {
		return nil, &generic.NotFoundError{Kind: "cashflow", ID: id}
	}

	if patch.Forecast != nil {
		c.SetForecast(*patch.Forecast)
	}
	if patch.Actual != nil {
		c.SetActual(*patch.Actual)
	}
	if patch.Category != nil {
		c.Category = *patch.Category
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}

	if err := s.Store.UpdateCashflow(ctx, *c); err != nil {
		return nil, fmt.Errorf("save cashflow: %w", err)
	}
	return c, nil
}

// =============================================================================
// ALERT LIFECYCLE
// =============================================================================

func (s *Service) AcknowledgeAlert(ctx context.Context, id string) (*CostAlert, error) {
	return s.transitionAlert(ctx, id, (*CostAlert).Acknowledge)
}

func (s *Service) ResolveAlert(ctx context.Context, id string) (*CostAlert, error) {
	return s.transitionAlert(ctx, id, (*CostAlert).Resolve)
}

func (s *Service) transitionAlert(ctx context.Context, id string, apply func(*CostAlert, time.Time) error) (*CostAlert, error) {
	a, err := s.Store.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load alert: %w", err)
	}
	if a == nil {
		return nil, &generic.NotFoundError{Kind: "alert", ID: id}
	}
	if err := apply(a, s.now()); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateAlert(ctx, *a); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}
	return a, nil
}

func (s *Service) project(ctx context.Context, id string) (*Project, error) {
	p, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return nil, &generic.NotFoundError{Kind: "project", ID: id}
	}
	return p, nil
}
