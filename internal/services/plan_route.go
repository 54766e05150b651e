package services

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	metersPerMile = 1609.344
	// Concurrent distance lookups per plan.
	legLookupLimit = 5
)

// PlanRouteRequest is what a caller supplies to plan (or re-plan) an assignment.
// The first leg starts at the vehicle's current location.
type PlanRouteRequest struct {
	AssignmentID string
	Stops        []domain.Stop
	Driver       domain.DriverHOSState
	Vehicle      domain.VehicleState
	Priority     domain.Priority
	DepartAt     time.Time
	RestPolicy   domain.RestPolicy
	FuelStations []domain.FuelStation
	Config       PlannerConfig
}

// PlanRoute resolves each leg through the distance provider, builds the segment
// plan and appends it to the store as the assignment's next version.
func PlanRoute(
	ctx context.Context,
	req PlanRouteRequest,
	provider ports.DistanceProvider,
	store ports.PlanStore,
) (*domain.RoutePlan, error) {
	start := time.Now()
	defer func() { planDuration.Observe(time.Since(start).Seconds()) }()

	if req.AssignmentID == "" {
		return nil, fmt.Errorf("plan route: %w", domain.NewValidationError("assignment_id", "must be set"))
	}
	if len(req.Stops) == 0 {
		return nil, fmt.Errorf("plan route: %w", domain.NewValidationError("stops", "at least one stop is required"))
	}
	for _, s := range req.Stops {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("plan route: %w", err)
		}
	}
	if err := req.Vehicle.Validate(); err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	legs, err := ResolveLegs(ctx, req.Vehicle.Location, req.Stops, provider)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	plan, err := BuildPlan(PlanRequest{
		AssignmentID: req.AssignmentID,
		Stops:        req.Stops,
		Legs:         legs,
		Driver:       req.Driver,
		Vehicle:      req.Vehicle,
		Priority:     req.Priority,
		DepartAt:     req.DepartAt,
		RestPolicy:   req.RestPolicy,
		FuelStations: req.FuelStations,
	}, req.Config)
	if err != nil {
		return nil, fmt.Errorf("plan route: %w", err)
	}

	plan.ID = uuid.NewString()
	plan.CreatedAt = time.Now().UTC()

	stored, err := store.Append(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("plan route: store plan for %s: %w", req.AssignmentID, err)
	}
	plansBuilt.WithLabelValues(strconv.FormatBool(stored.IsFeasible)).Inc()
	return stored, nil
}

// ResolveLegs looks up origin→stop1→stop2→… with bounded concurrency.
// The first failed lookup cancels the rest.
func ResolveLegs(
	ctx context.Context,
	origin domain.Location,
	stops []domain.Stop,
	provider ports.DistanceProvider,
) ([]Leg, error) {
	legs := make([]Leg, len(stops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(legLookupLimit)

	from := origin
	for i, stop := range stops {
		i, fromKey, toKey := i, from.Key(), stop.Location.Key()
		from = stop.Location

		g.Go(func() error {
			if fromKey == toKey {
				legs[i] = Leg{From: fromKey, To: toKey}
				return nil
			}
			r, err := provider.GetDistance(gctx, fromKey, toKey)
			if err != nil {
				legLookups.WithLabelValues("error").Inc()
				return fmt.Errorf("resolve legs: get distance from %q to %q: %w", fromKey, toKey, err)
			}
			if r.DistanceMeters < 0 || r.DurationSeconds < 0 {
				legLookups.WithLabelValues("error").Inc()
				return fmt.Errorf("resolve legs: negative distance from %q to %q", fromKey, toKey)
			}
			legLookups.WithLabelValues("ok").Inc()
			legs[i] = Leg{
				From:          fromKey,
				To:            toKey,
				DistanceMiles: float64(r.DistanceMeters) / metersPerMile,
				DriveHours:    float64(r.DurationSeconds) / 3600,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return legs, nil
}
