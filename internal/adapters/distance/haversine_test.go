package distance

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGreatCircleMeters(t *testing.T) {
	chicago := domain.Coordinates{Lat: 41.8781, Lon: -87.6298}
	indy := domain.Coordinates{Lat: 39.7684, Lon: -86.1581}

	// ~265 km between the two city centres.
	require.InDelta(t, 265256, GreatCircleMeters(chicago, indy), 500)
	require.Zero(t, GreatCircleMeters(chicago, chicago))
}

func TestHaversineProvider(t *testing.T) {
	p := NewHaversineProvider(1.2, 50)

	r, err := p.GetDistance(context.Background(), "41.878100,-87.629800", "39.768400,-86.158100")
	require.NoError(t, err)

	miles := float64(r.DistanceMeters) / 1609.344
	require.InDelta(t, 197.8, miles, 0.5)
	require.InDelta(t, miles/50*3600, float64(r.DurationSeconds), 2)

	_, err = p.GetDistance(context.Background(), "Chicago, IL", "39.7,-86.1")
	require.Error(t, err)
}
