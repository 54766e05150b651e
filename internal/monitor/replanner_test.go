package monitor

import (
	"context"
	"hos-dispatch-service/internal/adapters/distance"
	"hos-dispatch-service/internal/adapters/repositories"
	"hos-dispatch-service/internal/adapters/telemetry"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/platform/logging"
	"hos-dispatch-service/internal/services"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestReplanner(t *testing.T) (*Replanner, *repositories.AssignmentRegistry, *telemetry.MemoryStore, *repositories.MemoryPlanStore) {
	t.Helper()
	reg := repositories.NewAssignmentRegistry()
	require.NoError(t, reg.Upsert(testAssignment("A-1")))

	tel := telemetry.NewMemoryStore(0)
	plans := repositories.NewMemoryPlanStore()

	// Lafayette, IN to Indianapolis: 100 km in one hour.
	dist := distance.NewStaticProvider([]distance.StaticLeg{
		{From: "40.416700,-86.875300", To: "39.768400,-86.158100", Meters: 100000, Seconds: 3600},
		{From: "41.878100,-87.629800", To: "39.768400,-86.158100", Meters: 290000, Seconds: 10800},
	})

	r := &Replanner{
		Queue:     NewReplanQueue(),
		Source:    reg,
		Telemetry: tel,
		Distance:  dist,
		Store:     plans,
		Recorder:  reg,
		Config:    services.DefaultPlannerConfig(),
		Timeout:   time.Second,
		Log:       logging.Discard(),
		Now:       func() time.Time { return t0 },
	}
	return r, reg, tel, plans
}

func TestReplannerUsesLiveTelemetry(t *testing.T) {
	r, reg, tel, plans := newTestReplanner(t)
	tel.Push("A-1", telemetry.Update{
		HOS:      &domain.HOSReading{State: domain.DriverHOSState{HoursDriven: 6, OnDutyTime: 7, HoursSinceBreak: 1, HoursSinceQualifyingRest: 7}},
		Position: &domain.PositionReading{Coordinates: domain.Coordinates{Lat: 40.4167, Lon: -86.8753}},
	})

	plan, err := r.Handle(context.Background(), ReplanRequest{AssignmentID: "A-1", Reasons: []string{SevereWeather}})
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Equal(t, 1, plan.Version)
	require.Equal(t, t0, plan.DepartAt)
	require.InDelta(t, 62.14, plan.TotalDistanceMiles, 0.01)
	require.True(t, plan.IsFeasible)
	require.InDelta(t, 7.0, plan.FinalHOS.HoursDriven, 1e-6)

	a, err := reg.Get(context.Background(), "A-1")
	require.NoError(t, err)
	require.NotNil(t, a.Plan)
	require.Equal(t, plan.ID, a.Plan.ID)

	// Without telemetry the registered state is used; the version increments.
	tel.Forget("A-1")
	plan, err = r.Handle(context.Background(), ReplanRequest{AssignmentID: "A-1"})
	require.NoError(t, err)
	require.Equal(t, 2, plan.Version)
	require.InDelta(t, 180.2, plan.TotalDistanceMiles, 0.05)

	versions, err := plans.Versions(context.Background(), "A-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestReplannerDropsUnknownAssignment(t *testing.T) {
	r, _, _, plans := newTestReplanner(t)

	plan, err := r.Handle(context.Background(), ReplanRequest{AssignmentID: "gone"})
	require.NoError(t, err)
	require.Nil(t, plan)

	_, err = plans.Latest(context.Background(), "gone")
	require.Error(t, err)
}

func TestReplannerRunDrainsQueue(t *testing.T) {
	r, _, _, plans := newTestReplanner(t)
	r.Queue.Enqueue(ReplanRequest{AssignmentID: "A-1", Reasons: []string{FuelLow}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		p, err := plans.Latest(context.Background(), "A-1")
		return err == nil && p.Version == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
