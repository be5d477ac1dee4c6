package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stoplight/internal/domain/geo"
	"stoplight/internal/domain/stoplight"
	"stoplight/internal/general/logger"
	"stoplight/internal/ports"
)

var ErrEmptyRoute = errors.New("route has no coordinates")

// routeService precomputes working sets. A simulator posts its planned route once
// over HTTP; the service loads the stored stoplight definitions, keeps only the
// groups the route passes, resolves each group's nearest stoplight, and parks the
// result keyed by token subject until that subject's WebSocket session claims it.
type routeService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	repo   ports.StoplightRepository

	mu          sync.RWMutex
	workingSets map[string]*stoplight.WorkingSet
}

// NewRouteService constructs the service with required dependencies.
func NewRouteService(logger *logger.Logger, uow ports.UnitOfWork, repo ports.StoplightRepository) ports.RouteService {
	return &routeService{
		logger:      logger,
		uow:         uow,
		repo:        repo,
		workingSets: make(map[string]*stoplight.WorkingSet),
	}
}

// ComputeWorkingSet builds and stores the subject's working set. Posting a new
// route replaces whatever working set the subject had before.
func (service *routeService) ComputeWorkingSet(ctx context.Context, subject string, route []geo.Coordinate) (*stoplight.WorkingSet, error) {
	if len(route) == 0 {
		return nil, ErrEmptyRoute
	}
	for i, c := range route {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
	}

	var groups []stoplight.Group
	var stoplights []stoplight.Stoplight

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if groups, err = service.repo.ListGroups(ctx); err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		if stoplights, err = service.repo.ListStoplights(ctx); err != nil {
			return fmt.Errorf("list stoplights: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	workingSet := stoplight.BuildWorkingSet(route, groups, stoplights)

	service.mu.Lock()
	service.workingSets[subject] = workingSet
	service.mu.Unlock()

	service.logger.Info(ctx, "working_set_built", "Working set computed for route",
		map[string]any{
			"subject":          subject,
			"route_points":     len(route),
			"candidate_groups": len(groups),
			"matched_groups":   workingSet.Len(),
		})

	return workingSet, nil
}

// WorkingSetFor returns the subject's most recently computed working set.
func (service *routeService) WorkingSetFor(subject string) (*stoplight.WorkingSet, bool) {
	service.mu.RLock()
	defer service.mu.RUnlock()

	ws, ok := service.workingSets[subject]
	return ws, ok
}
