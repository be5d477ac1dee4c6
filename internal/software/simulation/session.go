package simulation

import (
	"context"
	"encoding/json"
	"time"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/contracts"
	"stoplight/internal/ports"
)

// Session is the connection-scoped orchestrator: it owns one tracker over the
// subject's working set, feeds validated positions in, and fans the resulting
// activation events out. All methods run on the single connection goroutine, so the
// session needs no locking of its own; the tracker is mutated strictly sequentially.
type Session struct {
	service *simulationService
	subject string
	tracker *stoplight.ProximityTracker
	echo    ports.BroadcastMember
}

var _ ports.SimulationSession = (*Session)(nil)

// HandleFrame ingests one raw frame from the simulator connection.
func (session *Session) HandleFrame(ctx context.Context, payload []byte) {
	in := contracts.DecodeInbound(payload)

	switch in.Kind {
	case contracts.InboundPosition:
		session.handlePosition(ctx, in.Position)

	case contracts.InboundEndSimulation:
		session.service.logger.Info(ctx, "simulation_ended", "End-of-simulation received; draining active groups",
			map[string]any{"subject": session.subject, "active": session.tracker.ActiveCount()})
		session.drain(ctx)

	case contracts.InboundInvalid:
		// malformed input is dropped silently per the session contract; debug only
		session.service.logger.Debug(ctx, "frame_dropped", "Malformed or unknown frame ignored",
			map[string]any{"subject": session.subject, "size": len(payload)})
	}
}

// Close force-deactivates everything still ACTIVE. The tracker's drain is
// idempotent, so a disconnect right after an end_simulation emits nothing extra.
func (session *Session) Close(ctx context.Context) {
	if session.tracker.ActiveCount() > 0 {
		session.service.logger.Info(ctx, "session_closed", "Session closing with active groups; forcing deactivation",
			map[string]any{"subject": session.subject, "active": session.tracker.ActiveCount()})
	}
	session.drain(ctx)
}

// handlePosition runs one tracker step and emits whatever transitions it caused.
func (session *Session) handlePosition(ctx context.Context, position geo.Coordinate) {
	for _, event := range session.tracker.Update(position) {
		session.emit(ctx, event)
	}
}

// drain deactivates all ACTIVE groups and emits the deactivation events.
func (session *Session) drain(ctx context.Context) {
	for _, event := range session.tracker.EndSession() {
		session.emit(ctx, event)
	}
}

// emit forwards one activation event to all sinks: the originating connection, the
// local devices broadcast group, and the fanout exchange for other instances. Each
// sink is attempted independently; a failing sink is logged and never stops the
// others or the session.
func (session *Session) emit(ctx context.Context, event stoplight.ActivationEvent) {
	payload, err := contracts.EncodeActivationEvent(event)
	if err != nil {
		session.service.logger.Error(ctx, "event_encode_failed", "Failed to encode activation event", err,
			map[string]any{"subject": session.subject, "group_id": event.GroupID})
		return
	}

	if err := session.echo.Send(payload); err != nil {
		session.service.logger.Error(ctx, "event_echo_failed", "Failed to echo event to originating connection", err,
			map[string]any{"subject": session.subject, "group_id": event.GroupID})
	}

	session.service.broadcaster.Publish(ctx, contracts.BroadcastGroupDevices, payload)

	session.publishFanout(ctx, event)

	session.service.logger.Info(ctx, "activation_event", "Activation event emitted",
		map[string]any{
			"subject":      session.subject,
			"activate":     event.Activate,
			"group_id":     event.GroupID,
			"stoplight_id": event.StoplightID,
		})
}

// publishFanout pushes the event to the broker so device listeners on other
// instances receive it too. Best effort: broker trouble never surfaces to the session.
func (session *Session) publishFanout(ctx context.Context, event stoplight.ActivationEvent) {
	if session.service.pub == nil {
		return
	}

	msg := contracts.ActivationMessage{
		SessionID: session.subject,
		Event:     event,
		Envelope: contracts.Envelope{
			Producer: session.service.originID,
			SentAt:   time.Now().UTC(),
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		session.service.logger.Error(ctx, "fanout_marshal_failed", "Failed to marshal activation message", err,
			map[string]any{"subject": session.subject})
		return
	}

	if err := session.service.pub.Publish(contracts.ExchangeStoplightFanout, "", body); err != nil {
		session.service.logger.Error(ctx, "fanout_publish_failed", "Failed to publish activation to fanout exchange", err,
			map[string]any{"subject": session.subject, "group_id": event.GroupID})
	}
}
