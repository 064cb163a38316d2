// Package resource implements resource utilization analysis for construction
// projects: per-day allocated vs. available hours, over-allocation detection
// and greedy rebalancing suggestions.
package resource

import (
	"github.com/shopspring/decimal"
	"github.com/warp/project-control/generic"
)

// Type categorizes capacity sources. Rebalancing only moves work between
// resources of the same type.
type Type string

const (
	TypeLabour        Type = "LABOUR"
	TypeEquipment     Type = "EQUIPMENT"
	TypeMaterial      Type = "MATERIAL"
	TypeSubcontractor Type = "SUBCONTRACTOR"
)

// Defaults for users scheduled directly, who have no Resource row.
const (
	DefaultUserHoursPerDay  = 8.0
	DefaultUserHoursPerWeek = 40.0
)

// Resource is a person, equipment unit or other assignable capacity source.
// Read-only to the engine.
type Resource struct {
	ID              string
	Name            string
	Type            Type
	MaxHoursPerDay  float64
	MaxHoursPerWeek float64
	HourlyRate      decimal.Decimal
}

// User is an application user that can be allocated as a human resource.
type User struct {
	ID    string
	Name  string
	Email string
}

// Availability overrides a resource's default capacity on one calendar day.
// At most one record exists per (resource, date).
type Availability struct {
	ID             string
	ResourceID     string
	Date           generic.TimePoint
	IsAvailable    bool
	AvailableHours float64 // only meaningful when IsAvailable
	Reason         string
	Notes          string
}

// Allocation commits a resource (or a user) to a project for a contiguous,
// inclusive date range. AllocatedHours is the total over the whole range.
type Allocation struct {
	ID                    string
	ResourceID            string // empty when UserID is used instead
	UserID                string
	ProjectID             string
	ProjectName           string
	TaskID                string
	StartDate             generic.TimePoint
	EndDate               generic.TimePoint
	AllocatedHours        float64
	UtilizationPercentage float64
	ResourceType          Type
}

// Handle returns who the allocation schedules, resource first.
func (a Allocation) Handle() (generic.Handle, bool) {
	return generic.HandleFor(a.ResourceID, a.UserID)
}

// Span is the allocation's inclusive date range.
func (a Allocation) Span() generic.Period {
	return generic.Period{Start: a.StartDate, End: a.EndDate}
}

// =============================================================================
// PROFILE - Capacity view of a Resource row or a user-as-resource
// =============================================================================

// Profile is what the aggregator needs to know about a capacity source.
type Profile struct {
	Handle          generic.Handle
	Name            string
	Type            Type
	MaxHoursPerDay  float64
	MaxHoursPerWeek float64
}

// ProfileOf builds the capacity profile of a Resource row.
func ProfileOf(r Resource) Profile {
	return Profile{
		Handle:          generic.ResourceHandle(r.ID),
		Name:            r.Name,
		Type:            r.Type,
		MaxHoursPerDay:  r.MaxHoursPerDay,
		MaxHoursPerWeek: r.MaxHoursPerWeek,
	}
}

// UserProfile builds the capacity profile of a user scheduled directly.
func UserProfile(u User, t Type) Profile {
	name := u.Name
	if name == "" {
		name = u.ID
	}
	return Profile{
		Handle:          generic.UserHandle(u.ID),
		Name:            name,
		Type:            t,
		MaxHoursPerDay:  DefaultUserHoursPerDay,
		MaxHoursPerWeek: DefaultUserHoursPerWeek,
	}
}
