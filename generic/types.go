/*
Package generic provides the shared vocabulary of the project-control engine.

PURPOSE:
  This package holds the domain-neutral building blocks used by both the
  resource utilization engine and the cost analytics engine: calendar days,
  inclusive periods, typed errors, the resource handle and the task record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Handle: who is being scheduled (a Resource row, or a User acting as one)
  - Task: the work item consumed by rebalancing and earned-value snapshots
  - TaskStatus / TaskPriority: lifecycle and urgency tags

DESIGN PRINCIPLES:
  1. Pure data: nothing here performs I/O
  2. Day granularity: every date is a TimePoint with time-of-day stripped
  3. Tagged identity: a resource and a user never collide in an aggregation map

SEE ALSO:
  - time.go: TimePoint and range arithmetic
  - period.go: Period and lazy day iteration
  - errors.go: ValidationError / NotFoundError
*/
package generic

// =============================================================================
// HANDLE - Resource row or user-as-resource
// =============================================================================

type HandleKind string

const (
	HandleResource HandleKind = "resource"
	HandleUser     HandleKind = "user"
)

// Handle identifies a schedulable capacity source. It is comparable and is
// the key of every per-resource aggregation map.
type Handle struct {
	Kind HandleKind
	ID   string
}

func ResourceHandle(id string) Handle { return Handle{Kind: HandleResource, ID: id} }
func UserHandle(id string) Handle     { return Handle{Kind: HandleUser, ID: id} }

// HandleFor prefers the resource reference and falls back to the user.
// ok is false when neither is set.
func HandleFor(resourceID, userID string) (h Handle, ok bool) {
	switch {
	case resourceID != "":
		return ResourceHandle(resourceID), true
	case userID != "":
		return UserHandle(userID), true
	default:
		return Handle{}, false
	}
}

func (h Handle) IsZero() bool     { return h.ID == "" }
func (h Handle) IsResource() bool { return h.Kind == HandleResource }
func (h Handle) String() string   { return string(h.Kind) + ":" + h.ID }

// =============================================================================
// TASK - Work item
// =============================================================================

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskReview     TaskStatus = "REVIEW"
	TaskBlocked    TaskStatus = "BLOCKED"
	TaskDone       TaskStatus = "DONE"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// IsTerminal is true for DONE and CANCELLED.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskCancelled
}

type TaskPriority string

const (
	PriorityLow      TaskPriority = "LOW"
	PriorityMedium   TaskPriority = "MEDIUM"
	PriorityHigh     TaskPriority = "HIGH"
	PriorityCritical TaskPriority = "CRITICAL"
)

// Rank orders priorities LOW=0 .. CRITICAL=3. Unknown values rank as MEDIUM.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

type Task struct {
	ID             string
	ProjectID      string
	Title          string
	Status         TaskStatus
	Priority       TaskPriority
	IsCriticalPath bool

	// Assignee: a resource row, or a user acting as a resource.
	AssignedResourceID string
	AssignedToID       string

	EstimatedHours float64
	Progress       float64 // 0..100
	StartDate      TimePoint
	EndDate        TimePoint
	Dependencies   []string
}

// Assignee returns the handle the task is assigned to, if any.
func (t Task) Assignee() (Handle, bool) {
	return HandleFor(t.AssignedResourceID, t.AssignedToID)
}

// IsOpen is true when the task is not DONE or CANCELLED.
func (t Task) IsOpen() bool { return !t.Status.IsTerminal() }
