package ports

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/domain"
)

// ErrFeedUnavailable is returned when a feed has no current reading for an assignment.
var ErrFeedUnavailable = errors.New("telemetry feed unavailable")

// TelemetryProvider reads the live feeds for one assignment. Each call may fail
// independently; the monitor skips only the triggers that depend on a failed feed.
type TelemetryProvider interface {
	DriverHOS(ctx context.Context, assignmentID string) (domain.HOSReading, error)
	Position(ctx context.Context, assignmentID string) (domain.PositionReading, error)
	Fuel(ctx context.Context, assignmentID string) (domain.FuelReading, error)
	Weather(ctx context.Context, assignmentID string) (domain.WeatherReading, error)
	Dock(ctx context.Context, assignmentID string) (domain.DockReading, error)
}
