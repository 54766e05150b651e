package monitor

import (
	"context"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"hos-dispatch-service/internal/services"
	"log/slog"
	"time"
)

// PlanRecorder is told about each new plan version.
type PlanRecorder interface {
	SetPlan(assignmentID string, plan *domain.RoutePlan) error
}

// Replanner consumes the ReplanQueue and plans each assignment again from its
// live telemetry, appending a new version to the plan store.
type Replanner struct {
	Queue     *ReplanQueue
	Source    ports.AssignmentSource
	Telemetry ports.TelemetryProvider
	Distance  ports.DistanceProvider
	Store     ports.PlanStore
	Recorder  PlanRecorder
	Config    services.PlannerConfig
	Timeout   time.Duration
	Log       *slog.Logger
	Now       func() time.Time
}

// Run handles requests one at a time until ctx is done.
func (r *Replanner) Run(ctx context.Context) error {
	for {
		req, err := r.Queue.Next(ctx)
		if err != nil {
			return nil
		}
		if _, err := r.Handle(ctx, req); err != nil {
			r.Log.Warn("replan failed", "assignment_id", req.AssignmentID, "reasons", req.Reasons, "err", err)
		}
	}
}

// Handle re-plans one assignment. A request for an assignment that is no longer
// active is dropped without error and returns a nil plan.
func (r *Replanner) Handle(ctx context.Context, req ReplanRequest) (*domain.RoutePlan, error) {
	a, err := r.Source.Get(ctx, req.AssignmentID)
	if errors.Is(err, ports.ErrAssignmentNotFound) {
		replans.WithLabelValues("dropped").Inc()
		return nil, nil
	}
	if err != nil {
		replans.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("replan %s: %w", req.AssignmentID, err)
	}

	stops := a.RemainingStops()
	if len(stops) == 0 {
		replans.WithLabelValues("dropped").Inc()
		return nil, nil
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	driver, vehicle := r.liveState(ctx, a)
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	plan, err := services.PlanRoute(ctx, services.PlanRouteRequest{
		AssignmentID: a.ID,
		Stops:        stops,
		Driver:       driver,
		Vehicle:      vehicle,
		Priority:     a.Priority,
		DepartAt:     now().UTC(),
		RestPolicy:   a.RestPolicy,
		FuelStations: a.FuelStations,
		Config:       r.Config,
	}, r.Distance, r.Store)
	if err != nil {
		replans.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("replan %s: %w", a.ID, err)
	}

	if r.Recorder != nil {
		if err := r.Recorder.SetPlan(a.ID, plan); err != nil && !errors.Is(err, ports.ErrAssignmentNotFound) {
			r.Log.Warn("record plan failed", "assignment_id", a.ID, "err", err)
		}
	}
	replans.WithLabelValues("ok").Inc()
	r.Log.Info("replanned",
		"assignment_id", a.ID,
		"version", plan.Version,
		"feasible", plan.IsFeasible,
		"limiting_factor", plan.LimitingFactor,
		"reasons", req.Reasons,
	)
	return plan, nil
}

// liveState overlays the latest telemetry on the assignment's registered state.
// Feeds that fail leave the registered values in place.
func (r *Replanner) liveState(ctx context.Context, a domain.Assignment) (domain.DriverHOSState, domain.VehicleState) {
	driver, vehicle := a.Driver, a.Vehicle
	if r.Telemetry == nil {
		return driver, vehicle
	}
	if hos, err := r.Telemetry.DriverHOS(ctx, a.ID); err == nil {
		driver = hos.State
	}
	if pos, err := r.Telemetry.Position(ctx, a.ID); err == nil && !pos.Coordinates.IsZero() {
		vehicle.Location = domain.Location{Coordinates: pos.Coordinates}
	}
	if fuel, err := r.Telemetry.Fuel(ctx, a.ID); err == nil && fuel.RangeMiles >= 0 {
		vehicle.FuelRangeMiles = min(fuel.RangeMiles, vehicle.FullRangeMiles())
	}
	return driver, vehicle
}
