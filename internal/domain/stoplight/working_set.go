package stoplight

import (
	"github.com/samber/lo"

	"stoplight/internal/domain/geo"
)

// WorkingSet is the per-session, read-only snapshot of the groups a route passes and,
// for each group, the stoplight that should be activated when the traveler enters the
// group's radius. Built once at precompute time; never mutated afterwards, so it is
// safe for concurrent reads by the owning session.
type WorkingSet struct {
	groups  []Group
	nearest map[int64]Stoplight
}

// BuildWorkingSet selects every group whose location lies within
// RouteMatchRadiusMeters of any route coordinate, preserving the order groups were
// provided in, and resolves each selected group's nearest stoplight by minimum
// distance from the group location to the stoplight's lookahead location. Groups
// without any stoplight simply have no nearest entry; the tracker skips them.
func BuildWorkingSet(route []geo.Coordinate, groups []Group, stoplights []Stoplight) *WorkingSet {
	matched := lo.Filter(groups, func(g Group, _ int) bool {
		for _, point := range route {
			if geo.DistanceMeters(point, g.Location) <= RouteMatchRadiusMeters {
				return true
			}
		}
		return false
	})

	byGroup := lo.GroupBy(stoplights, func(s Stoplight) int64 { return s.GroupID })

	nearest := make(map[int64]Stoplight, len(matched))
	for _, g := range matched {
		candidates := byGroup[g.ID]
		if len(candidates) == 0 {
			continue
		}
		nearest[g.ID] = lo.MinBy(candidates, func(a, b Stoplight) bool {
			return geo.DistanceMeters(g.Location, a.LookaheadLocation) <
				geo.DistanceMeters(g.Location, b.LookaheadLocation)
		})
	}

	return &WorkingSet{groups: matched, nearest: nearest}
}

// Groups returns the matched groups in their deterministic evaluation order.
func (ws *WorkingSet) Groups() []Group {
	return ws.groups
}

// Nearest returns the resolved stoplight for a group, if any.
func (ws *WorkingSet) Nearest(groupID int64) (Stoplight, bool) {
	s, ok := ws.nearest[groupID]
	return s, ok
}

// Len reports how many groups the working set covers.
func (ws *WorkingSet) Len() int {
	return len(ws.groups)
}
