package costcontrol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/project-control/generic"
)

// Severity bands for margin alerts, in percent.
const (
	CriticalMarginBelow = 5.0
	HighMarginBelow     = 10.0
)

// EvaluateMarginAlert returns a new ACTIVE alert when the margin percentage is
// below threshold, or nil. Whether it is persisted is the store's decision:
// at most one ACTIVE alert of a type exists per project.
func EvaluateMarginAlert(projectID string, marginPct, threshold float64, now time.Time) *CostAlert {
	if marginPct >= threshold {
		return nil
	}
	return &CostAlert{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		Type:           AlertMarginBelowThreshold,
		Severity:       marginSeverity(marginPct),
		Status:         AlertActive,
		Message:        fmt.Sprintf("Project margin of %.1f%% is below the %.1f%% threshold", marginPct, threshold),
		ThresholdValue: threshold,
		ActualValue:    marginPct,
		CreatedAt:      now,
	}
}

func marginSeverity(pct float64) AlertSeverity {
	switch {
	case pct < CriticalMarginBelow:
		return SeverityCritical
	case pct < HighMarginBelow:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED.
func (a *CostAlert) Acknowledge(now time.Time) error {
	if a.Status != AlertActive {
		return a.transitionError(AlertAcknowledged)
	}
	a.Status = AlertAcknowledged
	a.AcknowledgedAt = &now
	return nil
}

// Resolve closes an ACTIVE or ACKNOWLEDGED alert.
func (a *CostAlert) Resolve(now time.Time) error {
	if a.Status == AlertResolved {
		return a.transitionError(AlertResolved)
	}
	a.Status = AlertResolved
	a.ResolvedAt = &now
	return nil
}

func (a *CostAlert) transitionError(to AlertStatus) error {
	return fmt.Errorf("alert %s %s -> %s: %w", a.ID, a.Status, to, generic.ErrInvalidTransition)
}
