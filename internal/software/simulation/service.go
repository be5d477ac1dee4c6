package simulation

import (
	"context"

	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/logger"
	"stoplight/internal/general/rabbitmq"
	"stoplight/internal/ports"
)

// simulationService builds connection sessions and owns the cross-session plumbing:
// the broadcast registry, the RabbitMQ fan-out, and the route precompute store the
// working sets come from.
type simulationService struct {
	logger      *logger.Logger
	routes      ports.RouteService
	broadcaster ports.Broadcaster
	pub         ports.EventPublisher
	rabbitmq    *rabbitmq.Client
	originID    string
}

// NewSimulationService constructs the service with required dependencies. originID
// identifies this process instance so the device bridge can drop its own fanout
// messages instead of delivering them twice.
func NewSimulationService(
	logger *logger.Logger,
	routes ports.RouteService,
	broadcaster ports.Broadcaster,
	pub ports.EventPublisher,
	rmq *rabbitmq.Client,
	originID string,
) ports.SimulationService {
	return &simulationService{
		logger:      logger,
		routes:      routes,
		broadcaster: broadcaster,
		pub:         pub,
		rabbitmq:    rmq,
		originID:    originID,
	}
}

// NewSession prepares the per-connection state: the subject's precomputed working
// set (empty when the client never posted a route) and a fresh tracker with every
// group INACTIVE.
func (service *simulationService) NewSession(ctx context.Context, subject string, echo ports.BroadcastMember) ports.SimulationSession {
	workingSet, ok := service.routes.WorkingSetFor(subject)
	if !ok {
		service.logger.Info(ctx, "working_set_missing", "No precomputed working set for subject; session starts empty",
			map[string]any{"subject": subject})
		workingSet = stoplight.BuildWorkingSet(nil, nil, nil)
	}

	service.logger.Info(ctx, "session_started", "Simulation session started",
		map[string]any{"subject": subject, "groups": workingSet.Len()})

	return &Session{
		service: service,
		subject: subject,
		tracker: stoplight.NewProximityTracker(workingSet),
		echo:    echo,
	}
}
