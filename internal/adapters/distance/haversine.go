package distance

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"math"
)

const earthRadiusMeters = 6371008.8

// HaversineProvider estimates legs from great-circle distance when no routing
// API is configured. Only coordinate keys are supported.
type HaversineProvider struct {
	// Road miles per great-circle mile.
	RoadFactor  float64
	AvgSpeedMph float64
}

func NewHaversineProvider(roadFactor, avgSpeedMph float64) *HaversineProvider {
	if roadFactor < 1 {
		roadFactor = 1
	}
	return &HaversineProvider{RoadFactor: roadFactor, AvgSpeedMph: avgSpeedMph}
}

func (h *HaversineProvider) GetDistance(_ context.Context, origin, destination string) (ports.DistanceResult, error) {
	from, ok := domain.ParseCoordinatesKey(origin)
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("haversine: origin %q is not a lat,lon key", origin)
	}
	to, ok := domain.ParseCoordinatesKey(destination)
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("haversine: destination %q is not a lat,lon key", destination)
	}
	if !(h.AvgSpeedMph > 0) {
		return ports.DistanceResult{}, fmt.Errorf("haversine: average speed must be positive")
	}

	meters := GreatCircleMeters(from, to) * h.RoadFactor
	hours := meters / 1609.344 / h.AvgSpeedMph
	return ports.DistanceResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(hours * 3600)),
	}, nil
}

func GreatCircleMeters(a, b domain.Coordinates) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(s)))
}
