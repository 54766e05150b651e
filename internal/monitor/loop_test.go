package monitor

import (
	"context"
	"errors"
	"hos-dispatch-service/internal/adapters/events"
	"hos-dispatch-service/internal/adapters/repositories"
	"hos-dispatch-service/internal/adapters/telemetry"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/platform/logging"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingTelemetry holds every read until release is closed or the caller gives up.
type blockingTelemetry struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingTelemetry) wait(ctx context.Context) error {
	b.calls.Add(1)
	select {
	case <-b.release:
		return errors.New("released")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingTelemetry) DriverHOS(ctx context.Context, _ string) (domain.HOSReading, error) {
	return domain.HOSReading{}, b.wait(ctx)
}

func (b *blockingTelemetry) Position(ctx context.Context, _ string) (domain.PositionReading, error) {
	return domain.PositionReading{}, b.wait(ctx)
}

func (b *blockingTelemetry) Fuel(ctx context.Context, _ string) (domain.FuelReading, error) {
	return domain.FuelReading{}, b.wait(ctx)
}

func (b *blockingTelemetry) Weather(ctx context.Context, _ string) (domain.WeatherReading, error) {
	return domain.WeatherReading{}, b.wait(ctx)
}

func (b *blockingTelemetry) Dock(ctx context.Context, _ string) (domain.DockReading, error) {
	return domain.DockReading{}, b.wait(ctx)
}

func pushHealthy(store *telemetry.MemoryStore, id string) {
	snap := healthySnapshot(id, t0)
	store.Push(id, telemetry.Update{
		HOS:      snap.HOS,
		Position: snap.Position,
		Fuel:     snap.Fuel,
		Weather:  snap.Weather,
		Dock:     snap.Dock,
	})
}

func TestSweepPublishesAndQueuesReplan(t *testing.T) {
	reg := repositories.NewAssignmentRegistry()
	require.NoError(t, reg.Upsert(testAssignment("A-1")))
	require.NoError(t, reg.Upsert(testAssignment("A-2")))

	store := telemetry.NewMemoryStore(0)
	pushHealthy(store, "A-1")
	pushHealthy(store, "A-2")
	store.Push("A-2", telemetry.Update{Weather: &domain.WeatherReading{Severity: "severe", Condition: "blizzard"}})

	log := events.NewEventLog(10)
	queue := NewReplanQueue()
	loop := NewLoop(LoopConfig{Period: time.Hour, FeedTimeout: time.Second, Workers: 2},
		reg, store, newTestMonitor(t), log, queue, logging.Discard())
	loop.now = func() time.Time { return t0 }

	loop.Sweep(context.Background())
	loop.Wait()

	require.Empty(t, log.List("A-1"))
	evs := log.List("A-2")
	require.Len(t, evs, 1)
	require.Equal(t, SevereWeather, evs[0].TriggerType)

	req, ok := queue.TryNext()
	require.True(t, ok)
	require.Equal(t, "A-2", req.AssignmentID)
	require.Equal(t, []string{SevereWeather}, req.Reasons)
	require.Equal(t, t0, req.RequestedAt)
}

func TestSweepSkipsInFlightAndCancelsRemoved(t *testing.T) {
	reg := repositories.NewAssignmentRegistry()
	require.NoError(t, reg.Upsert(testAssignment("A-1")))

	tel := &blockingTelemetry{release: make(chan struct{})}
	m := newTestMonitor(t)
	loop := NewLoop(LoopConfig{Period: time.Hour, FeedTimeout: time.Minute, Workers: 1},
		reg, tel, m, events.NewEventLog(10), NewReplanQueue(), logging.Discard())

	ctx := context.Background()
	loop.Sweep(ctx)
	require.Eventually(t, func() bool { return tel.calls.Load() == int32(len(domain.AllFeeds)) },
		time.Second, 5*time.Millisecond)

	// Still blocked: the second sweep must not start another evaluation.
	loop.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(len(domain.AllFeeds)), tel.calls.Load())

	// Removing the assignment cancels the blocked evaluation.
	require.True(t, reg.Remove("A-1"))
	done := make(chan struct{})
	go func() {
		loop.Sweep(ctx)
		loop.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled evaluation did not stop")
	}
	require.Empty(t, m.Tracker().Status("A-1"))
}

func TestFetchSnapshotMarksTimedOutFeeds(t *testing.T) {
	tel := &blockingTelemetry{release: make(chan struct{})}

	start := time.Now()
	snap := FetchSnapshot(context.Background(), tel, "A-1", 30*time.Millisecond, t0)
	require.Less(t, time.Since(start), time.Second, "feeds are fetched concurrently")

	require.Equal(t, "A-1", snap.AssignmentID)
	require.Equal(t, t0, snap.CapturedAt)
	require.Len(t, snap.Missing, len(domain.AllFeeds))
	for _, f := range domain.AllFeeds {
		require.False(t, snap.Has(f))
		require.Contains(t, snap.Missing[f], context.DeadlineExceeded.Error())
	}
}

func TestFetchSnapshotPartialFeeds(t *testing.T) {
	store := telemetry.NewMemoryStore(0)
	store.Push("A-1", telemetry.Update{Fuel: &domain.FuelReading{RangeMiles: 300, FuelPct: 40}})

	snap := FetchSnapshot(context.Background(), store, "A-1", time.Second, t0)
	require.True(t, snap.Has(domain.FeedFuel))
	require.Equal(t, 300.0, snap.Fuel.RangeMiles)
	require.Len(t, snap.Missing, 4)
	require.NotContains(t, snap.Missing, domain.FeedFuel)
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := repositories.NewAssignmentRegistry()
	loop := NewLoop(LoopConfig{Period: 10 * time.Millisecond}, reg, telemetry.NewMemoryStore(0),
		newTestMonitor(t), events.NewEventLog(10), NewReplanQueue(), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
