/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements resource.Store and costcontrol.Store on one database, plus the
  seeding methods used by the demo scenarios. The postgres package carries
  the same contracts through gorm for deployments that need a server database.

INTERFACES IMPLEMENTED:
  resource.Store:    resources, users, availability, allocations, tasks
  costcontrol.Store: projects, budget lines, change orders, cashflows,
                     cost alerts, EAC history

DATE STORAGE:
  Calendar days are stored as TEXT 'YYYY-MM-DD' so range predicates compare
  lexicographically. Timestamps are RFC3339. Money is TEXT (decimal string).

KEY CONSTRAINTS:
  - idx_availability_resource_date: one override per (resource, day)
  - idx_cost_alerts_one_active: at most one ACTIVE alert per (project, type);
    InsertAlertIfNoActive relies on it with ON CONFLICT DO NOTHING
  - eac_history is append-only: no UPDATE or DELETE outside Reset

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Postgres relies on the database.

USAGE:
  store, err := sqlite.New("./data/project-control.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - resource/service.go, costcontrol/service.go: interface definitions
  - store/postgres: gorm implementation
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
)

// snapshotTimeLayout is fixed-width so recorded_at sorts as text.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection to :memory: is a fresh empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Capacity sources
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		max_hours_per_day REAL NOT NULL DEFAULT 8,
		max_hours_per_week REAL NOT NULL DEFAULT 40,
		hourly_rate TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	);

	-- Per-day capacity overrides
	CREATE TABLE IF NOT EXISTS resource_availability (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		available_hours REAL NOT NULL DEFAULT 0,
		reason TEXT,
		notes TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_availability_resource_date
		ON resource_availability(resource_id, date);

	-- Allocations: resource_id or user_id is set
	CREATE TABLE IF NOT EXISTS resource_allocations (
		id TEXT PRIMARY KEY,
		resource_id TEXT,
		user_id TEXT,
		project_id TEXT NOT NULL,
		task_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		allocated_hours REAL NOT NULL,
		utilization_percentage REAL NOT NULL DEFAULT 0,
		resource_type TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_resource_range
		ON resource_allocations(resource_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_allocations_project_range
		ON resource_allocations(project_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		is_critical_path BOOLEAN NOT NULL DEFAULT FALSE,
		assigned_resource_id TEXT,
		assigned_to_id TEXT,
		estimated_hours REAL NOT NULL DEFAULT 0,
		progress REAL NOT NULL DEFAULT 0,
		start_date TEXT,
		end_date TEXT,
		dependencies_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);

	-- Cost control
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		currency TEXT NOT NULL DEFAULT 'GBP',
		budget TEXT NOT NULL DEFAULT '0',
		actual_cost TEXT NOT NULL DEFAULT '0',
		margin_threshold REAL NOT NULL DEFAULT 10,
		start_date TEXT,
		end_date TEXT
	);

	CREATE TABLE IF NOT EXISTS budget_lines (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		cost_code TEXT,
		description TEXT,
		budgeted TEXT NOT NULL DEFAULT '0',
		committed TEXT NOT NULL DEFAULT '0',
		actual TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_budget_lines_project ON budget_lines(project_id);

	CREATE TABLE IF NOT EXISTS change_orders (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		cost_impact TEXT NOT NULL DEFAULT '0',
		schedule_impact_days INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_change_orders_project ON change_orders(project_id, status);

	CREATE TABLE IF NOT EXISTS cashflows (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		category TEXT,
		description TEXT,
		forecast TEXT NOT NULL DEFAULT '0',
		actual TEXT,
		variance TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_cashflows_project_date ON cashflows(project_id, date);

	CREATE TABLE IF NOT EXISTS cost_alerts (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		message TEXT,
		threshold_value REAL,
		actual_value REAL,
		created_at TEXT NOT NULL,
		acknowledged_at TEXT,
		resolved_at TEXT
	);

	-- CRITICAL: at most one ACTIVE alert per project and type
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cost_alerts_one_active
		ON cost_alerts(project_id, alert_type)
		WHERE status = 'ACTIVE';

	CREATE INDEX IF NOT EXISTS idx_cost_alerts_project_status ON cost_alerts(project_id, status);

	-- EAC history (append-only)
	CREATE TABLE IF NOT EXISTS eac_history (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		recorded_at TEXT NOT NULL,
		budget TEXT NOT NULL,
		actual_cost TEXT NOT NULL,
		committed_cost TEXT NOT NULL,
		eac TEXT NOT NULL,
		variance TEXT NOT NULL,
		cpi REAL NOT NULL,
		spi REAL NOT NULL,
		margin TEXT NOT NULL,
		margin_percentage REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eac_history_project_time ON eac_history(project_id, recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"eac_history", "cost_alerts", "cashflows", "change_orders", "budget_lines", "projects",
		"tasks", "resource_allocations", "resource_availability", "users", "resources",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// RESOURCES AND USERS
// =============================================================================

// SaveResource creates or updates a resource.
func (s *Store) SaveResource(ctx context.Context, r resource.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, name, resource_type, max_hours_per_day, max_hours_per_week, hourly_rate)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			resource_type = excluded.resource_type,
			max_hours_per_day = excluded.max_hours_per_day,
			max_hours_per_week = excluded.max_hours_per_week,
			hourly_rate = excluded.hourly_rate
	`, r.ID, r.Name, r.Type, r.MaxHoursPerDay, r.MaxHoursPerWeek, r.HourlyRate.String())
	return err
}

const resourceColumns = `id, name, resource_type, max_hours_per_day, max_hours_per_week, hourly_rate`

// GetResource returns nil, nil when the resource does not exist.
func (s *Store) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+resourceColumns+" FROM resources WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanResource(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetResources(ctx context.Context, ids []string) ([]resource.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, "SELECT "+resourceColumns+" FROM resources WHERE id IN "+in+" ORDER BY name", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResources returns every resource ordered by name.
func (s *Store) ListResources(ctx context.Context) ([]resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+resourceColumns+" FROM resources ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResource(rows *sql.Rows) (resource.Resource, error) {
	var r resource.Resource
	if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.MaxHoursPerDay, &r.MaxHoursPerWeek, &r.HourlyRate); err != nil {
		return r, fmt.Errorf("failed to scan resource: %w", err)
	}
	return r, nil
}

func (s *Store) SaveUser(ctx context.Context, u resource.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email
	`, u.ID, u.Name, nullString(u.Email))
	return err
}

func (s *Store) GetUsers(ctx context.Context, ids []string) ([]resource.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email FROM users WHERE id IN "+in, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.User
	for rows.Next() {
		var (
			u     resource.User
			email sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email = email.String
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// SaveAvailability upserts the override for (resource, day).
func (s *Store) SaveAvailability(ctx context.Context, a resource.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_availability (id, resource_id, date, is_available, available_hours, reason, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_id, date) DO UPDATE SET
			is_available = excluded.is_available,
			available_hours = excluded.available_hours,
			reason = excluded.reason,
			notes = excluded.notes
	`, a.ID, a.ResourceID, a.Date.Key(), a.IsAvailable, a.AvailableHours, nullString(a.Reason), nullString(a.Notes))
	return err
}

func (s *Store) AvailabilityInRange(ctx context.Context, resourceIDs []string, window generic.Period) ([]resource.Availability, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := inClause(resourceIDs)
	args = append(args, window.Start.Key(), window.End.Key())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_id, date, is_available, available_hours, reason, notes
		FROM resource_availability
		WHERE resource_id IN `+in+` AND date >= ? AND date <= ?
		ORDER BY resource_id, date
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Availability
	for rows.Next() {
		var (
			a             resource.Availability
			date          string
			reason, notes sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ResourceID, &date, &a.IsAvailable, &a.AvailableHours, &reason, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		a.Date = parseDay(date)
		a.Reason = reason.String
		a.Notes = notes.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (s *Store) SaveAllocation(ctx context.Context, a resource.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_allocations
			(id, resource_id, user_id, project_id, task_id, start_date, end_date,
			 allocated_hours, utilization_percentage, resource_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			resource_id = excluded.resource_id,
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			task_id = excluded.task_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			allocated_hours = excluded.allocated_hours,
			utilization_percentage = excluded.utilization_percentage,
			resource_type = excluded.resource_type
	`, a.ID, nullString(a.ResourceID), nullString(a.UserID), a.ProjectID, nullString(a.TaskID),
		a.StartDate.Key(), a.EndDate.Key(), a.AllocatedHours, a.UtilizationPercentage, nullString(string(a.ResourceType)))
	return err
}

const allocationSelect = `
	SELECT a.id, a.resource_id, a.user_id, a.project_id, COALESCE(p.name, ''), a.task_id,
	       a.start_date, a.end_date, a.allocated_hours, a.utilization_percentage,
	       COALESCE(a.resource_type, r.resource_type, '')
	FROM resource_allocations a
	LEFT JOIN projects p ON p.id = a.project_id
	LEFT JOIN resources r ON r.id = a.resource_id
`

// AllocationsForResource uses the inclusive overlap test against window.
func (s *Store) AllocationsForResource(ctx context.Context, resourceID string, window generic.Period) ([]resource.Allocation, error) {
	return s.queryAllocations(ctx, allocationSelect+`
		WHERE a.resource_id = ? AND a.start_date <= ? AND a.end_date >= ?
		ORDER BY a.start_date, a.id
	`, resourceID, window.End.Key(), window.Start.Key())
}

func (s *Store) AllocationsForProject(ctx context.Context, projectID string, window generic.Period) ([]resource.Allocation, error) {
	return s.queryAllocations(ctx, allocationSelect+`
		WHERE a.project_id = ? AND a.start_date <= ? AND a.end_date >= ?
		ORDER BY a.start_date, a.id
	`, projectID, window.End.Key(), window.Start.Key())
}

func (s *Store) queryAllocations(ctx context.Context, query string, args ...any) ([]resource.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Allocation
	for rows.Next() {
		var (
			a                        resource.Allocation
			resourceID, userID, task sql.NullString
			start, end, resourceType string
		)
		err := rows.Scan(&a.ID, &resourceID, &userID, &a.ProjectID, &a.ProjectName, &task,
			&start, &end, &a.AllocatedHours, &a.UtilizationPercentage, &resourceType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		a.ResourceID = resourceID.String
		a.UserID = userID.String
		a.TaskID = task.String
		a.StartDate = parseDay(start)
		a.EndDate = parseDay(end)
		a.ResourceType = resource.Type(resourceType)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// TASKS
// =============================================================================

func (s *Store) SaveTask(ctx context.Context, t generic.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deps, _ := json.Marshal(t.Dependencies)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, project_id, title, status, priority, is_critical_path, assigned_resource_id,
			 assigned_to_id, estimated_hours, progress, start_date, end_date, dependencies_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			title = excluded.title,
			status = excluded.status,
			priority = excluded.priority,
			is_critical_path = excluded.is_critical_path,
			assigned_resource_id = excluded.assigned_resource_id,
			assigned_to_id = excluded.assigned_to_id,
			estimated_hours = excluded.estimated_hours,
			progress = excluded.progress,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			dependencies_json = excluded.dependencies_json
	`, t.ID, t.ProjectID, t.Title, t.Status, t.Priority, t.IsCriticalPath,
		nullString(t.AssignedResourceID), nullString(t.AssignedToID), t.EstimatedHours, t.Progress,
		dayValue(t.StartDate), dayValue(t.EndDate), string(deps))
	return err
}

func (s *Store) TasksForProject(ctx context.Context, projectID string) ([]generic.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, status, priority, is_critical_path, assigned_resource_id,
		       assigned_to_id, estimated_hours, progress, start_date, end_date, dependencies_json
		FROM tasks WHERE project_id = ? ORDER BY start_date, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Task
	for rows.Next() {
		var (
			t                    generic.Task
			resourceID, assignee sql.NullString
			start, end, deps     sql.NullString
		)
		err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.Priority, &t.IsCriticalPath,
			&resourceID, &assignee, &t.EstimatedHours, &t.Progress, &start, &end, &deps)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.AssignedResourceID = resourceID.String
		t.AssignedToID = assignee.String
		t.StartDate = parseDay(start.String)
		t.EndDate = parseDay(end.String)
		if deps.Valid && deps.String != "" {
			json.Unmarshal([]byte(deps.String), &t.Dependencies)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p costcontrol.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := p.MarginThreshold
	if threshold <= 0 {
		threshold = costcontrol.DefaultMarginThreshold
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, code, currency, budget, actual_cost, margin_threshold, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			currency = excluded.currency,
			budget = excluded.budget,
			actual_cost = excluded.actual_cost,
			margin_threshold = excluded.margin_threshold,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`, p.ID, p.Name, nullString(p.Code), currencyOrDefault(p.Currency), p.Budget.String(), p.ActualCost.String(),
		threshold, dayValue(p.StartDate), dayValue(p.EndDate))
	return err
}

const projectColumns = `id, name, code, currency, budget, actual_cost, margin_threshold, start_date, end_date`

// GetProject returns nil, nil when the project does not exist.
func (s *Store) GetProject(ctx context.Context, id string) (*costcontrol.Project, error) {
	projects, err := s.queryProjects(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if err != nil || len(projects) == 0 {
		return nil, err
	}
	return &projects[0], nil
}

func (s *Store) ListProjects(ctx context.Context) ([]costcontrol.Project, error) {
	return s.queryProjects(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY name")
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]costcontrol.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.Project
	for rows.Next() {
		var (
			p          costcontrol.Project
			code       sql.NullString
			start, end sql.NullString
		)
		err := rows.Scan(&p.ID, &p.Name, &code, &p.Currency, &p.Budget, &p.ActualCost,
			&p.MarginThreshold, &start, &end)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Code = code.String
		p.StartDate = parseDay(start.String)
		p.EndDate = parseDay(end.String)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// BUDGET LINES AND CHANGE ORDERS
// =============================================================================

func (s *Store) SaveBudgetLine(ctx context.Context, l costcontrol.BudgetLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_lines (id, project_id, cost_code, description, budgeted, committed, actual)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cost_code = excluded.cost_code,
			description = excluded.description,
			budgeted = excluded.budgeted,
			committed = excluded.committed,
			actual = excluded.actual
	`, l.ID, l.ProjectID, nullString(l.CostCode), nullString(l.Description),
		l.Budgeted.String(), l.Committed.String(), l.Actual.String())
	return err
}

func (s *Store) BudgetLines(ctx context.Context, projectID string) ([]costcontrol.BudgetLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, cost_code, description, budgeted, committed, actual
		FROM budget_lines WHERE project_id = ? ORDER BY cost_code, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.BudgetLine
	for rows.Next() {
		var (
			l                 costcontrol.BudgetLine
			code, description sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.ProjectID, &code, &description, &l.Budgeted, &l.Committed, &l.Actual); err != nil {
			return nil, fmt.Errorf("failed to scan budget line: %w", err)
		}
		l.CostCode = code.String
		l.Description = description.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SaveChangeOrder(ctx context.Context, c costcontrol.ChangeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO change_orders (id, project_id, title, status, cost_impact, schedule_impact_days)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			cost_impact = excluded.cost_impact,
			schedule_impact_days = excluded.schedule_impact_days
	`, c.ID, c.ProjectID, c.Title, c.Status, c.CostImpact.String(), c.ScheduleImpactDays)
	return err
}

func (s *Store) ChangeOrders(ctx context.Context, projectID string) ([]costcontrol.ChangeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, status, cost_impact, schedule_impact_days
		FROM change_orders WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.ChangeOrder
	for rows.Next() {
		var c costcontrol.ChangeOrder
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Status, &c.CostImpact, &c.ScheduleImpactDays); err != nil {
			return nil, fmt.Errorf("failed to scan change order: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// CASHFLOWS
// =============================================================================

func (s *Store) InsertCashflow(ctx context.Context, c costcontrol.Cashflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashflows (id, project_id, date, flow_type, category, description, forecast, actual, variance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ProjectID, c.Date.Key(), c.Type, nullString(c.Category), nullString(c.Description),
		c.Forecast.String(), nullDecimal(c.Actual), c.Variance.String())
	return err
}

func (s *Store) UpdateCashflow(ctx context.Context, c costcontrol.Cashflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cashflows SET date = ?, flow_type = ?, category = ?, description = ?,
		       forecast = ?, actual = ?, variance = ?
		WHERE id = ?
	`, c.Date.Key(), c.Type, nullString(c.Category), nullString(c.Description),
		c.Forecast.String(), nullDecimal(c.Actual), c.Variance.String(), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "cashflow", ID: c.ID}
	}
	return nil
}

const cashflowColumns = `id, project_id, date, flow_type, category, description, forecast, actual, variance`

func (s *Store) Cashflows(ctx context.Context, projectID string) ([]costcontrol.Cashflow, error) {
	return s.queryCashflows(ctx, "SELECT "+cashflowColumns+" FROM cashflows WHERE project_id = ? ORDER BY date, id", projectID)
}

func (s *Store) GetCashflow(ctx context.Context, id string) (*costcontrol.Cashflow, error) {
	cfs, err := s.queryCashflows(ctx, "SELECT "+cashflowColumns+" FROM cashflows WHERE id = ?", id)
	if err != nil || len(cfs) == 0 {
		return nil, err
	}
	return &cfs[0], nil
}

func (s *Store) queryCashflows(ctx context.Context, query string, args ...any) ([]costcontrol.Cashflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.Cashflow
	for rows.Next() {
		var (
			c                     costcontrol.Cashflow
			date                  string
			category, description sql.NullString
		)
		err := rows.Scan(&c.ID, &c.ProjectID, &date, &c.Type, &category, &description,
			&c.Forecast, &c.Actual, &c.Variance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashflow: %w", err)
		}
		c.Date = parseDay(date)
		c.Category = category.String
		c.Description = description.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// COST ALERTS
// =============================================================================

// InsertAlertIfNoActive relies on idx_cost_alerts_one_active: a second ACTIVE
// alert of the same type is silently skipped by the database.
func (s *Store) InsertAlertIfNoActive(ctx context.Context, a costcontrol.CostAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_alerts
			(id, project_id, alert_type, severity, status, message, threshold_value, actual_value,
			 created_at, acknowledged_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, a.ID, a.ProjectID, a.Type, a.Severity, a.Status, a.Message, a.ThresholdValue, a.ActualValue,
		a.CreatedAt.UTC().Format(time.RFC3339), timeValue(a.AcknowledgedAt), timeValue(a.ResolvedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateAlert(ctx context.Context, a costcontrol.CostAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cost_alerts SET severity = ?, status = ?, message = ?, acknowledged_at = ?, resolved_at = ?
		WHERE id = ?
	`, a.Severity, a.Status, a.Message, timeValue(a.AcknowledgedAt), timeValue(a.ResolvedAt), a.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("alert %s: %w", a.ID, generic.ErrDuplicateActiveAlert)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "alert", ID: a.ID}
	}
	return nil
}

const alertColumns = `id, project_id, alert_type, severity, status, message, threshold_value, actual_value,
	created_at, acknowledged_at, resolved_at`

func (s *Store) Alerts(ctx context.Context, projectID string, statuses ...costcontrol.AlertStatus) ([]costcontrol.CostAlert, error) {
	query := "SELECT " + alertColumns + " FROM cost_alerts WHERE project_id = ?"
	args := []any{projectID}
	if len(statuses) > 0 {
		in, statusArgs := inClause(statuses)
		query += " AND status IN " + in
		args = append(args, statusArgs...)
	}
	return s.queryAlerts(ctx, query+" ORDER BY created_at DESC, id", args...)
}

func (s *Store) GetAlert(ctx context.Context, id string) (*costcontrol.CostAlert, error) {
	alerts, err := s.queryAlerts(ctx, "SELECT "+alertColumns+" FROM cost_alerts WHERE id = ?", id)
	if err != nil || len(alerts) == 0 {
		return nil, err
	}
	return &alerts[0], nil
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]costcontrol.CostAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.CostAlert
	for rows.Next() {
		var (
			a                      costcontrol.CostAlert
			message                sql.NullString
			threshold, actual      sql.NullFloat64
			createdAt              string
			acknowledged, resolved sql.NullString
		)
		err := rows.Scan(&a.ID, &a.ProjectID, &a.Type, &a.Severity, &a.Status, &message,
			&threshold, &actual, &createdAt, &acknowledged, &resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Message = message.String
		a.ThresholdValue = threshold.Float64
		a.ActualValue = actual.Float64
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.AcknowledgedAt = parseTimePtr(acknowledged)
		a.ResolvedAt = parseTimePtr(resolved)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// EAC HISTORY
// =============================================================================

func (s *Store) InsertSnapshot(ctx context.Context, snap costcontrol.EACSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eac_history
			(id, project_id, recorded_at, budget, actual_cost, committed_cost, eac, variance,
			 cpi, spi, margin, margin_percentage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.ProjectID, snap.RecordedAt.UTC().Format(snapshotTimeLayout),
		snap.Budget.String(), snap.ActualCost.String(), snap.CommittedCost.String(), snap.EAC.String(),
		snap.Variance.String(), snap.CPI, snap.SPI, snap.Margin.String(), snap.MarginPercentage)
	return err
}

func (s *Store) Snapshots(ctx context.Context, projectID string) ([]costcontrol.EACSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, recorded_at, budget, actual_cost, committed_cost, eac, variance,
		       cpi, spi, margin, margin_percentage
		FROM eac_history WHERE project_id = ? ORDER BY recorded_at, id
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []costcontrol.EACSnapshot
	for rows.Next() {
		var (
			snap       costcontrol.EACSnapshot
			recordedAt string
		)
		err := rows.Scan(&snap.ID, &snap.ProjectID, &recordedAt, &snap.Budget, &snap.ActualCost,
			&snap.CommittedCost, &snap.EAC, &snap.Variance, &snap.CPI, &snap.SPI, &snap.Margin,
			&snap.MarginPercentage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan eac snapshot: %w", err)
		}
		snap.RecordedAt, _ = time.Parse(snapshotTimeLayout, recordedAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func dayValue(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.Key(), Valid: true}
}

func parseDay(s string) generic.TimePoint {
	if s == "" {
		return generic.TimePoint{}
	}
	tp, err := generic.ParseDay(s)
	if err != nil {
		return generic.TimePoint{}
	}
	return tp
}

func timeValue(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "GBP"
	}
	return c
}

// inClause builds "(?, ?, ...)" and its arguments.
func inClause[T ~string](values []T) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ resource.Store    = (*Store)(nil)
	_ costcontrol.Store = (*Store)(nil)
)
