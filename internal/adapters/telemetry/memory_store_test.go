package telemetry

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMergesAndExpiresReadings(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s := NewMemoryStore(10 * time.Minute)
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	s.Push("A-1", Update{Fuel: &domain.FuelReading{RangeMiles: 300}})
	now = now.Add(8 * time.Minute)
	s.Push("A-1", Update{Position: &domain.PositionReading{SpeedMph: 61}})

	f, err := s.Fuel(ctx, "A-1")
	require.NoError(t, err)
	require.Equal(t, 300.0, f.RangeMiles)

	_, err = s.Weather(ctx, "A-1")
	require.ErrorIs(t, err, ports.ErrFeedUnavailable)

	now = now.Add(5 * time.Minute)
	_, err = s.Fuel(ctx, "A-1")
	require.ErrorIs(t, err, ports.ErrFeedUnavailable)

	p, err := s.Position(ctx, "A-1")
	require.NoError(t, err)
	require.Equal(t, 61.0, p.SpeedMph)

	s.Forget("A-1")
	_, err = s.Position(ctx, "A-1")
	require.ErrorIs(t, err, ports.ErrFeedUnavailable)
}
