package repositories

import (
	"context"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPlanStoreConcurrentAppendsGetDistinctVersions(t *testing.T) {
	store := NewMemoryPlanStore()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	versions := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.Append(ctx, &domain.RoutePlan{AssignmentID: "A-1"})
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			versions <- p.Version
		}()
	}
	wg.Wait()
	close(versions)

	seen := map[int]bool{}
	for v := range versions {
		require.False(t, seen[v], "version %d assigned twice", v)
		seen[v] = true
	}
	require.Len(t, seen, n)

	all, err := store.Versions(ctx, "A-1")
	require.NoError(t, err)
	for i, p := range all {
		require.Equal(t, i+1, p.Version)
	}

	latest, err := store.Latest(ctx, "A-1")
	require.NoError(t, err)
	require.Equal(t, n, latest.Version)
}

func TestMemoryPlanStoreVersionsAreImmutable(t *testing.T) {
	store := NewMemoryPlanStore()
	ctx := context.Background()

	in := &domain.RoutePlan{
		AssignmentID: "A-1",
		Segments:     []domain.RouteSegment{{Sequence: 1, Kind: domain.SegmentDrive, Drive: &domain.DriveDetails{DistanceMiles: 10}}},
	}
	stored, err := store.Append(ctx, in)
	require.NoError(t, err)

	in.Segments[0].Drive.DistanceMiles = 999
	stored.Segments[0].Drive.DistanceMiles = 999

	got, err := store.Latest(ctx, "A-1")
	require.NoError(t, err)
	require.Equal(t, 10.0, got.Segments[0].Drive.DistanceMiles)
}

func TestMemoryPlanStoreNotFound(t *testing.T) {
	store := NewMemoryPlanStore()
	_, err := store.Latest(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrPlanNotFound)
	require.True(t, IsNotFound(err))
}
