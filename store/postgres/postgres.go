/*
Package postgres provides a PostgreSQL implementation of the storage interfaces
through gorm.

PURPOSE:
  Same contracts as store/sqlite (resource.Store, costcontrol.Store and the
  seeding methods) for deployments that run a database server. The schema is
  created by AutoMigrate from the row types in models.go; the partial unique
  index on ACTIVE alerts is created with raw SQL since gorm tags cannot carry
  a WHERE clause portably.

CONNECTING:
  New retries the initial connection, so the server can start before the
  database container is ready.

SEE ALSO:
  - store/sqlite: reference implementation of the same contracts
  - config: DB_DRIVER=postgres and DB_DSN select this store
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warp/project-control/costcontrol"
	"github.com/warp/project-control/generic"
	"github.com/warp/project-control/resource"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Store implements all storage interfaces on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New connects to dsn, retrying while the server comes up, and migrates.
func New(dsn string) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= connectAttempts; i++ {
		log.Printf("[Postgres] connecting (attempt %d/%d)...", i, connectAttempts)

		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			log.Println("[Postgres] connected")
			break
		}

		log.Printf("[Postgres] failed to connect: %v", err)
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", connectAttempts, err)
	}
	return Open(db)
}

// Open wraps an existing gorm handle and migrates the schema.
func Open(db *gorm.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(models...); err != nil {
		return err
	}
	return s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_cost_alerts_one_active
		ON cost_alerts (project_id, alert_type)
		WHERE status = 'ACTIVE'
	`).Error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"eac_history", "cost_alerts", "cashflows", "change_orders", "budget_lines", "projects",
		"tasks", "resource_allocations", "resource_availability", "users", "resources",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// upsert inserts row or overwrites every column of an existing row with the
// same primary key.
func (s *Store) upsert(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// first loads one row by id into dst. It reports false when no row exists.
func (s *Store) first(ctx context.Context, dst any, id string) (bool, error) {
	err := s.db.WithContext(ctx).Where("id = ?", id).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// =============================================================================
// RESOURCES AND USERS
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, r resource.Resource) error {
	row := toResourceRow(r)
	return s.upsert(ctx, &row)
}

// GetResource returns nil, nil when the resource does not exist.
func (s *Store) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	var row resourceRow
	ok, err := s.first(ctx, &row, id)
	if !ok {
		return nil, err
	}
	r := row.toDomain()
	return &r, nil
}

func (s *Store) GetResources(ctx context.Context, ids []string) ([]resource.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []resourceRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, resourceRow.toDomain), nil
}

func (s *Store) ListResources(ctx context.Context) ([]resource.Resource, error) {
	var rows []resourceRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, resourceRow.toDomain), nil
}

func (s *Store) SaveUser(ctx context.Context, u resource.User) error {
	row := userRow{ID: u.ID, Name: u.Name, Email: u.Email}
	return s.upsert(ctx, &row)
}

func (s *Store) GetUsers(ctx context.Context, ids []string) ([]resource.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, func(r userRow) resource.User {
		return resource.User{ID: r.ID, Name: r.Name, Email: r.Email}
	}), nil
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// SaveAvailability upserts the override for (resource, day).
func (s *Store) SaveAvailability(ctx context.Context, a resource.Availability) error {
	row := toAvailabilityRow(a)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_available", "available_hours", "reason", "notes"}),
	}).Create(&row).Error
}

func (s *Store) AvailabilityInRange(ctx context.Context, resourceIDs []string, window generic.Period) ([]resource.Availability, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	var rows []availabilityRow
	err := s.db.WithContext(ctx).
		Where("resource_id IN ? AND date >= ? AND date <= ?", resourceIDs, window.Start.Time, window.End.Time).
		Order("resource_id, date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, availabilityRow.toDomain), nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (s *Store) SaveAllocation(ctx context.Context, a resource.Allocation) error {
	row := toAllocationRow(a)
	return s.upsert(ctx, &row)
}

// AllocationsForResource uses the inclusive overlap test against window.
func (s *Store) AllocationsForResource(ctx context.Context, resourceID string, window generic.Period) ([]resource.Allocation, error) {
	return s.queryAllocations(ctx, window, "a.resource_id = ?", resourceID)
}

func (s *Store) AllocationsForProject(ctx context.Context, projectID string, window generic.Period) ([]resource.Allocation, error) {
	return s.queryAllocations(ctx, window, "a.project_id = ?", projectID)
}

func (s *Store) queryAllocations(ctx context.Context, window generic.Period, cond string, arg string) ([]resource.Allocation, error) {
	var rows []allocationView
	err := s.db.WithContext(ctx).
		Table("resource_allocations AS a").
		Select("a.*, COALESCE(p.name, '') AS project_name, COALESCE(r.resource_type, '') AS joined_type").
		Joins("LEFT JOIN projects p ON p.id = a.project_id").
		Joins("LEFT JOIN resources r ON r.id = a.resource_id").
		Where(cond, arg).
		Where("a.start_date <= ? AND a.end_date >= ?", window.End.Time, window.Start.Time).
		Order("a.start_date, a.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, allocationView.toDomain), nil
}

// =============================================================================
// TASKS
// =============================================================================

func (s *Store) SaveTask(ctx context.Context, t generic.Task) error {
	row := toTaskRow(t)
	return s.upsert(ctx, &row)
}

func (s *Store) TasksForProject(ctx context.Context, projectID string) ([]generic.Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("start_date, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, taskRow.toDomain), nil
}

// =============================================================================
// PROJECTS, BUDGET LINES AND CHANGE ORDERS
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p costcontrol.Project) error {
	row := toProjectRow(p)
	return s.upsert(ctx, &row)
}

// GetProject returns nil, nil when the project does not exist.
func (s *Store) GetProject(ctx context.Context, id string) (*costcontrol.Project, error) {
	var row projectRow
	ok, err := s.first(ctx, &row, id)
	if !ok {
		return nil, err
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]costcontrol.Project, error) {
	var rows []projectRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, projectRow.toDomain), nil
}

func (s *Store) SaveBudgetLine(ctx context.Context, l costcontrol.BudgetLine) error {
	row := budgetLineRow{
		ID: l.ID, ProjectID: l.ProjectID, CostCode: l.CostCode, Description: l.Description,
		Budgeted: l.Budgeted, Committed: l.Committed, Actual: l.Actual,
	}
	return s.upsert(ctx, &row)
}

func (s *Store) BudgetLines(ctx context.Context, projectID string) ([]costcontrol.BudgetLine, error) {
	var rows []budgetLineRow
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("cost_code, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, budgetLineRow.toDomain), nil
}

func (s *Store) SaveChangeOrder(ctx context.Context, c costcontrol.ChangeOrder) error {
	row := changeOrderRow{
		ID: c.ID, ProjectID: c.ProjectID, Title: c.Title, Status: string(c.Status),
		CostImpact: c.CostImpact, ScheduleImpactDays: c.ScheduleImpactDays,
	}
	return s.upsert(ctx, &row)
}

func (s *Store) ChangeOrders(ctx context.Context, projectID string) ([]costcontrol.ChangeOrder, error) {
	var rows []changeOrderRow
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, changeOrderRow.toDomain), nil
}

// =============================================================================
// CASHFLOWS
// =============================================================================

func (s *Store) InsertCashflow(ctx context.Context, c costcontrol.Cashflow) error {
	row := toCashflowRow(c)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdateCashflow(ctx context.Context, c costcontrol.Cashflow) error {
	row := toCashflowRow(c)
	res := s.db.WithContext(ctx).Model(&cashflowRow{}).Where("id = ?", c.ID).Updates(map[string]any{
		"date":        row.Date,
		"flow_type":   row.FlowType,
		"category":    row.Category,
		"description": row.Description,
		"forecast":    row.Forecast,
		"actual":      row.Actual,
		"variance":    row.Variance,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Kind: "cashflow", ID: c.ID}
	}
	return nil
}

func (s *Store) Cashflows(ctx context.Context, projectID string) ([]costcontrol.Cashflow, error) {
	var rows []cashflowRow
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("date, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, cashflowRow.toDomain), nil
}

func (s *Store) GetCashflow(ctx context.Context, id string) (*costcontrol.Cashflow, error) {
	var row cashflowRow
	ok, err := s.first(ctx, &row, id)
	if !ok {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

// =============================================================================
// COST ALERTS
// =============================================================================

// InsertAlertIfNoActive relies on idx_cost_alerts_one_active: the insert is a
// no-op while an ACTIVE alert of the same type exists.
func (s *Store) InsertAlertIfNoActive(ctx context.Context, a costcontrol.CostAlert) (bool, error) {
	row := toAlertRow(a)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UpdateAlert(ctx context.Context, a costcontrol.CostAlert) error {
	res := s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"severity":        string(a.Severity),
		"status":          string(a.Status),
		"message":         a.Message,
		"acknowledged_at": a.AcknowledgedAt,
		"resolved_at":     a.ResolvedAt,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("alert %s: %w", a.ID, generic.ErrDuplicateActiveAlert)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Kind: "alert", ID: a.ID}
	}
	return nil
}

func (s *Store) Alerts(ctx context.Context, projectID string, statuses ...costcontrol.AlertStatus) ([]costcontrol.CostAlert, error) {
	q := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		q = q.Where("status IN ?", names)
	}
	var rows []alertRow
	if err := q.Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mapRows(rows, alertRow.toDomain), nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (*costcontrol.CostAlert, error) {
	var row alertRow
	ok, err := s.first(ctx, &row, id)
	if !ok {
		return nil, err
	}
	a := row.toDomain()
	return &a, nil
}

// =============================================================================
// EAC HISTORY
// =============================================================================

func (s *Store) InsertSnapshot(ctx context.Context, snap costcontrol.EACSnapshot) error {
	row := toSnapshotRow(snap)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) Snapshots(ctx context.Context, projectID string) ([]costcontrol.EACSnapshot, error) {
	var rows []snapshotRow
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("recorded_at, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mapRows(rows, snapshotRow.toDomain), nil
}

func mapRows[R, T any](rows []R, convert func(R) T) []T {
	if len(rows) == 0 {
		return nil
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = convert(r)
	}
	return out
}

var (
	_ resource.Store    = (*Store)(nil)
	_ costcontrol.Store = (*Store)(nil)
)
