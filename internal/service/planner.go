package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
)

// Router requests a drivable route between two coordinates.
type Router interface {
	Directions(ctx context.Context, start, end domain.Coordinate) (*domain.RouteResult, error)
}

// PlanRequest contains the parameters for planning a route.
type PlanRequest struct {
	Pickup    string
	Dropoff   string
	LastKnown *domain.Coordinate
}

// RoutePlanner resolves both ends of a trip and asks the router for a path.
type RoutePlanner struct {
	resolver *LocationResolver
	router   Router
}

// NewRoutePlanner creates a new RoutePlanner.
func NewRoutePlanner(resolver *LocationResolver, router Router) *RoutePlanner {
	return &RoutePlanner{
		resolver: resolver,
		router:   router,
	}
}

// Plan resolves the start and end points and requests a route between them.
func (p *RoutePlanner) Plan(ctx context.Context, req PlanRequest) (*domain.RouteResult, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "planner",
		"pickup":    req.Pickup,
		"dropoff":   req.Dropoff,
	})

	start, err := p.resolveStart(ctx, req)
	if err != nil {
		return nil, err
	}

	end, ok := p.resolver.Resolve(ctx, req.Dropoff)
	if !ok {
		return nil, ErrDestinationNotFound
	}

	route, err := p.router.Directions(ctx, start, end)
	if err != nil {
		log.WithError(err).Warn("directions request failed")
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	if route == nil || len(route.Path) == 0 {
		return nil, ErrRouteUnavailable
	}

	return route, nil
}

func (p *RoutePlanner) resolveStart(ctx context.Context, req PlanRequest) (domain.Coordinate, error) {
	if !p.resolver.IsCurrentLocation(req.Pickup) {
		if coord, ok := p.resolver.Resolve(ctx, req.Pickup); ok {
			return coord, nil
		}
	}

	if req.LastKnown != nil {
		return *req.LastKnown, nil
	}

	return domain.Coordinate{}, ErrGPSUnavailable
}
