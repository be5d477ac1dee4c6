package stoplight

import (
	"slices"

	"github.com/samber/lo"

	"stoplight/internal/domain/geo"
)

// ProximityTracker is the per-session state machine. Each working-set group is either
// INACTIVE or ACTIVE; a group is ACTIVE exactly while the most recent position was
// within ActivationRadiusMeters of it. The tracker is not safe for concurrent use:
// each session processes its messages strictly sequentially, so the owning session is
// the only caller.
type ProximityTracker struct {
	workingSet *WorkingSet
	active     map[int64]struct{}
}

// NewProximityTracker starts every group in the working set as INACTIVE.
func NewProximityTracker(workingSet *WorkingSet) *ProximityTracker {
	return &ProximityTracker{
		workingSet: workingSet,
		active:     make(map[int64]struct{}),
	}
}

// Update consumes one position and returns the entry/exit transitions it caused, in
// working-set group order. The boundary is inclusive on the active side: d <= 100
// activates, d > 100 deactivates. No hysteresis band; a position sitting exactly on
// the boundary may flap, which is accepted behavior.
//
// A group with no resolved nearest stoplight never transitions: there is nothing
// usable to switch, so it is skipped without an event or an error.
func (tracker *ProximityTracker) Update(position geo.Coordinate) []ActivationEvent {
	var events []ActivationEvent

	for _, group := range tracker.workingSet.Groups() {
		nearest, ok := tracker.workingSet.Nearest(group.ID)
		if !ok {
			continue
		}

		distance := geo.DistanceMeters(position, group.Location)
		_, isActive := tracker.active[group.ID]

		switch {
		case distance <= ActivationRadiusMeters && !isActive:
			tracker.active[group.ID] = struct{}{}
			events = append(events, ActivationEvent{
				Activate:    1,
				GroupID:     group.ID,
				StoplightID: nearest.ID,
			})

		case distance > ActivationRadiusMeters && isActive:
			delete(tracker.active, group.ID)
			events = append(events, ActivationEvent{
				Activate:    0,
				GroupID:     group.ID,
				StoplightID: nearest.ID,
			})
		}
	}

	return events
}

// EndSession deactivates every ACTIVE group in increasing groupID order and clears
// all state. Idempotent: a second call emits nothing.
func (tracker *ProximityTracker) EndSession() []ActivationEvent {
	if len(tracker.active) == 0 {
		return nil
	}

	ids := lo.Keys(tracker.active)
	slices.Sort(ids)

	events := make([]ActivationEvent, 0, len(ids))
	for _, groupID := range ids {
		nearest, ok := tracker.workingSet.Nearest(groupID)
		if !ok {
			continue
		}
		events = append(events, ActivationEvent{
			Activate:    0,
			GroupID:     groupID,
			StoplightID: nearest.ID,
		})
	}

	tracker.active = make(map[int64]struct{})

	return events
}

// ActiveCount reports how many groups are currently ACTIVE.
func (tracker *ProximityTracker) ActiveCount() int {
	return len(tracker.active)
}
