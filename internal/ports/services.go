package ports

import (
	"context"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
)

// RouteService is the precompute boundary: it resolves which stoplight groups a batch
// of route coordinates passes and stores the resulting working set for the subject
// until the matching WebSocket session picks it up.
type RouteService interface {
	ComputeWorkingSet(ctx context.Context, subject string, route []geo.Coordinate) (*stoplight.WorkingSet, error)
	WorkingSetFor(subject string) (*stoplight.WorkingSet, bool)
}

// Broadcaster fans an encoded event out to every member of a named group. Delivery to
// each member is independent: one failing member never blocks or fails the others.
type Broadcaster interface {
	Join(group string, member BroadcastMember)
	Leave(group string, member BroadcastMember)
	Publish(ctx context.Context, group string, payload []byte)
}

// BroadcastMember is one receiver inside a broadcast group, typically a WebSocket
// connection wrapper. Send must be safe for concurrent use.
type BroadcastMember interface {
	Send(payload []byte) error
}

// EventPublisher pushes an activation event to the message broker for listeners
// attached to other process instances.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// SimulationSession processes the inbound frames of one simulator connection. All
// calls for one session happen from the single connection goroutine, in arrival
// order; implementations need no internal locking.
type SimulationSession interface {
	// HandleFrame ingests one raw frame. Malformed frames are dropped silently.
	HandleFrame(ctx context.Context, payload []byte)
	// Close force-deactivates everything the session still has ACTIVE. Safe to call
	// more than once; only the first call after activity emits events.
	Close(ctx context.Context)
}

// SessionFactory builds a session for an authenticated simulator connection. echo is
// the sink for events sent back on the originating connection.
type SessionFactory interface {
	NewSession(ctx context.Context, subject string, echo BroadcastMember) SimulationSession
}

// SimulationService is the full simulation-side surface: session construction plus
// the background bridge that relays broker fanout messages to local device listeners.
type SimulationService interface {
	SessionFactory
	StartDeviceBridge(ctx context.Context, prefetch int)
}
