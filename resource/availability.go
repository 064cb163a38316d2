package resource

import "github.com/warp/project-control/generic"

type overrideKey struct {
	handle generic.Handle
	day    string
}

// OverrideIndex gives O(1) lookup of availability overrides by
// (resource, calendar day). Build it once per request.
type OverrideIndex map[overrideKey]Availability

// NewOverrideIndex indexes overrides by resource and normalized date. If the
// caller passes two records for the same key the later one wins.
func NewOverrideIndex(records []Availability) OverrideIndex {
	idx := make(OverrideIndex, len(records))
	for _, rec := range records {
		idx[overrideKey{handle: generic.ResourceHandle(rec.ResourceID), day: rec.Date.Key()}] = rec
	}
	return idx
}

// Lookup returns the override for a handle on a day.
func (idx OverrideIndex) Lookup(h generic.Handle, day generic.TimePoint) (Availability, bool) {
	rec, ok := idx[overrideKey{handle: h, day: day.Key()}]
	return rec, ok
}

// AvailableHoursOn resolves a capacity source's available hours for one day:
// an explicit override wins (0 when marked unavailable), otherwise the
// profile's default daily capacity applies.
func AvailableHoursOn(p Profile, day generic.TimePoint, idx OverrideIndex) float64 {
	if rec, ok := idx.Lookup(p.Handle, day); ok {
		if !rec.IsAvailable {
			return 0
		}
		return rec.AvailableHours
	}
	return p.MaxHoursPerDay
}
