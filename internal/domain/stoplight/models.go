package stoplight

import (
	"errors"

	"stoplight/internal/domain/geo"
)

// Activation thresholds. RouteMatchRadiusMeters is used once at precompute time to
// decide which groups belong to a session's working set; ActivationRadiusMeters is
// the live entry/exit boundary checked on every position update.
const (
	RouteMatchRadiusMeters = 20.0
	ActivationRadiusMeters = 100.0
)

var ErrInvalidGroupRef = errors.New("stoplight references an unknown group")

// Group is a cluster of stoplights controlling one intersection. Immutable for the
// lifetime of a session's working set.
type Group struct {
	ID       int64
	Location geo.Coordinate
}

// Stoplight is an individually activatable signal belonging to one group. The
// lookahead location is the anchor used to decide which stoplight within a group sits
// "ahead" of the traveler and should be the one physically switched.
type Stoplight struct {
	ID                int64
	GroupID           int64
	Location          geo.Coordinate
	LookaheadLocation geo.Coordinate
	Direction         string // compass approach (N, NE, ...), informational only
}

// ActivationEvent is the transient activate/deactivate signal produced by the tracker
// and consumed immediately by the session's sinks. Activate is 0 or 1 on the wire.
type ActivationEvent struct {
	Activate    int   `json:"activate"`
	GroupID     int64 `json:"groupID"`
	StoplightID int64 `json:"stoplightID"`
}
