package ports

import "context"

// Road distance and drive time between two locations, as returned by a routing backend.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// DistanceProvider resolves the drive between two location keys
// (see domain.Location.Key: "lat,lon" or a normalized address).
type DistanceProvider interface {
	GetDistance(ctx context.Context, origin string, destination string) (DistanceResult, error)
}
