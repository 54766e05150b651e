package monitor

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/adapters/cooldown"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/platform/logging"
	"hos-dispatch-service/internal/services"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	cat, err := DefaultCatalog(DefaultTriggerSettings())
	require.NoError(t, err)

	rules := services.DefaultHOSRules()
	th := services.DefaultThresholds()
	m := NewMonitor(cat, cooldown.NewMemoryStore(), th,
		services.NewRestAdvisor(th, rules, 55, 30), logging.Discard())

	n := 0
	m.NewID = func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	}
	return m
}

func testAssignment(id string) domain.Assignment {
	return domain.Assignment{
		ID:       id,
		DriverID: "D-" + id,
		Stops: []domain.Stop{{
			ID:       "S1",
			Role:     domain.StopDelivery,
			Location: domain.Location{Coordinates: domain.Coordinates{Lat: 39.7684, Lon: -86.1581}},
		}},
		Driver: domain.DriverHOSState{HoursDriven: 2, OnDutyTime: 3, HoursSinceBreak: 2, HoursSinceQualifyingRest: 3},
		Vehicle: domain.VehicleState{
			VehicleID:           "T-1",
			FuelRangeMiles:      600,
			TankCapacityGallons: 150,
			MilesPerGallon:      6.5,
			Location:            domain.Location{Coordinates: domain.Coordinates{Lat: 41.8781, Lon: -87.6298}},
		},
		RestPolicy: domain.RestPolicy{AllowDockRest: true},
	}
}

// healthySnapshot has every feed present and nothing that should fire.
func healthySnapshot(id string, now time.Time) domain.TelemetrySnapshot {
	return domain.TelemetrySnapshot{
		AssignmentID: id,
		CapturedAt:   now,
		HOS: &domain.HOSReading{
			State:      domain.DriverHOSState{HoursDriven: 2, OnDutyTime: 3, HoursSinceBreak: 2, HoursSinceQualifyingRest: 3},
			DutyStatus: domain.DutyDrive,
		},
		Position: &domain.PositionReading{SpeedMph: 58, SpeedLimitMph: 65, RemainingMiles: 120},
		Fuel:     &domain.FuelReading{RangeMiles: 500, FuelPct: 80},
		Weather:  &domain.WeatherReading{Severity: "none", Condition: "clear", VisibilityMiles: 10},
		Dock:     &domain.DockReading{},
	}
}

func eventsOfType(evs []domain.MonitoringTriggerEvent, typ string) []domain.MonitoringTriggerEvent {
	var out []domain.MonitoringTriggerEvent
	for _, ev := range evs {
		if ev.TriggerType == typ {
			out = append(out, ev)
		}
	}
	return out
}

func tick(t *testing.T, m *Monitor, a domain.Assignment, snap domain.TelemetrySnapshot, now time.Time) []domain.MonitoringTriggerEvent {
	t.Helper()
	evs, err := m.RunTick(context.Background(), []domain.Assignment{a}, map[string]domain.TelemetrySnapshot{a.ID: snap}, now)
	require.NoError(t, err)
	return evs
}

func TestHealthySnapshotEmitsNothing(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")
	require.Empty(t, tick(t, m, a, healthySnapshot("A-1", t0), t0))
}

func TestDriverNotMovingEscalates(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	stoppedAt := t0
	stopped := func(now time.Time) domain.TelemetrySnapshot {
		s := healthySnapshot("A-1", now)
		s.Position.SpeedMph = 0
		s.Position.StoppedSince = stoppedAt
		return s
	}

	now := t0.Add(20 * time.Minute)
	require.Empty(t, eventsOfType(tick(t, m, a, stopped(now), now), DriverNotMoving))

	now = t0.Add(31 * time.Minute)
	evs := eventsOfType(tick(t, m, a, stopped(now), now), DriverNotMoving)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityMedium, evs[0].Severity)
	require.False(t, evs[0].RequiresReplan)
	require.Equal(t, domain.TriggerFired, evs[0].State)
	require.Equal(t, domain.CategoryDriver, evs[0].Category)

	now = t0.Add(60 * time.Minute)
	require.Empty(t, eventsOfType(tick(t, m, a, stopped(now), now), DriverNotMoving))

	now = t0.Add(91 * time.Minute)
	evs = eventsOfType(tick(t, m, a, stopped(now), now), DriverNotMoving)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityHigh, evs[0].Severity)
	require.True(t, evs[0].RequiresReplan)
	require.Equal(t, domain.TriggerEscalated, evs[0].State)
}

func TestDriverNotMovingIgnoresDockWindowAndRest(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")
	now := t0.Add(45 * time.Minute)

	atDock := healthySnapshot("A-1", now)
	atDock.Position.SpeedMph = 0
	atDock.Position.StoppedSince = t0
	atDock.Dock = &domain.DockReading{AtDock: true, InWindow: true, StopID: "S1", ArrivedAt: t0}
	require.Empty(t, eventsOfType(tick(t, m, a, atDock, now), DriverNotMoving))

	resting := healthySnapshot("A-1", now)
	resting.Position.SpeedMph = 0
	resting.Position.StoppedSince = t0
	resting.HOS.DutyStatus = domain.DutyRest
	require.Empty(t, eventsOfType(tick(t, m, a, resting, now), DriverNotMoving))
}

func TestUnchangedTelemetryEmitsOncePerCooldown(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.Fuel = &domain.FuelReading{RangeMiles: 150, FuelPct: 15}

	total := 0
	for i := 0; i < 10; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		total += len(eventsOfType(tick(t, m, a, snap, now), FuelLow))
	}
	require.Equal(t, 1, total)
}

func TestAutoResolveAndRefireRespectsCooldown(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	low := healthySnapshot("A-1", t0)
	low.Fuel = &domain.FuelReading{RangeMiles: 150, FuelPct: 15}
	ok := healthySnapshot("A-1", t0)

	evs := eventsOfType(tick(t, m, a, low, t0), FuelLow)
	require.Len(t, evs, 1)

	evs = eventsOfType(tick(t, m, a, ok, t0.Add(time.Minute)), FuelLow)
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerAutoResolved, evs[0].State)
	require.False(t, evs[0].RequiresReplan)

	// Back below the threshold inside the cooldown window: suppressed.
	require.Empty(t, eventsOfType(tick(t, m, a, low, t0.Add(2*time.Minute)), FuelLow))

	// Clears again: auto_resolved moves to resolved quietly.
	require.Empty(t, eventsOfType(tick(t, m, a, ok, t0.Add(3*time.Minute)), FuelLow))
	require.Equal(t, domain.TriggerResolved, statusOf(m, "A-1", FuelLow).State)

	evs = eventsOfType(tick(t, m, a, low, t0.Add(20*time.Minute)), FuelLow)
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerFired, evs[0].State)
}

func statusOf(m *Monitor, assignmentID, typ string) TriggerStatus {
	for _, s := range m.Tracker().Status(assignmentID) {
		if s.TriggerType == typ {
			return s
		}
	}
	return TriggerStatus{}
}

func TestTimedEscalation(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.Position.RouteDeviationMiles = 4

	evs := eventsOfType(tick(t, m, a, snap, t0), RouteDeviation)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityMedium, evs[0].Severity)
	require.False(t, evs[0].RequiresReplan)

	require.Empty(t, eventsOfType(tick(t, m, a, snap, t0.Add(10*time.Minute)), RouteDeviation))

	evs = eventsOfType(tick(t, m, a, snap, t0.Add(21*time.Minute)), RouteDeviation)
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerEscalated, evs[0].State)
	require.Equal(t, domain.SeverityHigh, evs[0].Severity)
	require.True(t, evs[0].RequiresReplan, "escalation requests a re-plan even when the firing did not")

	// Escalates once per firing.
	require.Empty(t, eventsOfType(tick(t, m, a, snap, t0.Add(60*time.Minute)), RouteDeviation))
}

func newCatalogMonitor(t *testing.T, ds ...TriggerDescriptor) *Monitor {
	t.Helper()
	cat := NewCatalog()
	for _, d := range ds {
		require.NoError(t, cat.Register(d))
	}
	th := services.DefaultThresholds()
	m := NewMonitor(cat, cooldown.NewMemoryStore(), th,
		services.NewRestAdvisor(th, services.DefaultHOSRules(), 55, 30), logging.Discard())
	n := 0
	m.NewID = func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	}
	return m
}

func TestTimedEscalationInsideCooldownStillRequestsReplan(t *testing.T) {
	m := newCatalogMonitor(t, TriggerDescriptor{
		Type:     "YARD_HOLD",
		Category: domain.CategoryRoute,
		Severity: domain.SeverityMedium,
		Predicate: func(TriggerInput) Evaluation {
			return Fire(nil).With(domain.SeverityHigh, false)
		},
		Cooldown:      time.Hour,
		EscalateAfter: 20 * time.Minute,
		Escalation:    domain.SeverityHigh,
	})
	a := testAssignment("A-1")
	snap := healthySnapshot("A-1", t0)

	evs := tick(t, m, a, snap, t0)
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerFired, evs[0].State)
	require.False(t, evs[0].RequiresReplan)

	evs = tick(t, m, a, snap, t0.Add(21*time.Minute))
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerEscalated, evs[0].State)
	require.Equal(t, domain.SeverityHigh, evs[0].Severity)
	require.True(t, evs[0].RequiresReplan)
	require.Equal(t, []string{"YARD_HOLD"}, ReplanReasons(evs))

	require.Empty(t, tick(t, m, a, snap, t0.Add(40*time.Minute)))
}

func TestAcknowledgeThenClearResolves(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	speeding := healthySnapshot("A-1", t0)
	speeding.Position.SpeedMph = 75

	require.Len(t, eventsOfType(tick(t, m, a, speeding, t0), DriverSpeeding), 1)

	_, err := m.Acknowledge("A-1", DriverNotMoving, t0)
	require.ErrorIs(t, err, ErrNotActive)
	_, err = m.Acknowledge("A-1", "NOT_A_TRIGGER", t0)
	require.Error(t, err)

	st, err := m.Acknowledge("A-1", DriverSpeeding, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.TriggerAcknowledged, st.State)

	require.Empty(t, eventsOfType(tick(t, m, a, speeding, t0.Add(2*time.Minute)), DriverSpeeding))

	evs := eventsOfType(tick(t, m, a, healthySnapshot("A-1", t0), t0.Add(3*time.Minute)), DriverSpeeding)
	require.Len(t, evs, 1)
	require.Equal(t, domain.TriggerResolved, evs[0].State)
}

func TestMissingFeedSkipsOnlyDependentTriggers(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.Fuel = nil
	snap.MarkMissing(domain.FeedFuel, "timeout")
	snap.Position.SpeedMph = 80

	evs := tick(t, m, a, snap, t0)
	require.Len(t, eventsOfType(evs, DriverSpeeding), 1)
	require.Empty(t, eventsOfType(evs, FuelLow))
	require.Empty(t, eventsOfType(evs, FuelRangeInsufficient))
}

func TestRunTickWithoutSnapshotSkipsEverything(t *testing.T) {
	m := newTestMonitor(t)
	evs, err := m.RunTick(context.Background(), []domain.Assignment{testAssignment("A-1")}, nil, t0)
	require.NoError(t, err)
	require.Empty(t, evs)
}

func TestRunTickIsOrderedAndIsolated(t *testing.T) {
	m := newTestMonitor(t)

	bad := healthySnapshot("B", t0)
	bad.HOS.State = domain.DriverHOSState{HoursDriven: 12, OnDutyTime: 13, HoursSinceBreak: 3, HoursSinceQualifyingRest: 13}
	good := healthySnapshot("A", t0)

	evs, err := m.RunTick(context.Background(),
		[]domain.Assignment{testAssignment("B"), testAssignment("A")},
		map[string]domain.TelemetrySnapshot{"A": good, "B": bad},
		t0,
	)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	for _, ev := range evs {
		require.Equal(t, "B", ev.AssignmentID)
	}

	v := eventsOfType(evs, HOSViolation)
	require.Len(t, v, 1)
	require.Equal(t, domain.SeverityCritical, v[0].Severity)
	require.True(t, v[0].RequiresReplan)
}

func TestHOSMarginTriggers(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.HOS.State = domain.DriverHOSState{HoursDriven: 10.2, OnDutyTime: 11, HoursSinceBreak: 7.7, HoursSinceQualifyingRest: 11}

	evs := tick(t, m, a, snap, t0)
	drive := eventsOfType(evs, HOSDriveLimitApproaching)
	require.Len(t, drive, 1)
	require.Equal(t, domain.SeverityMedium, drive[0].Severity)
	require.Equal(t, 0.8, drive[0].Params["margin_hours"])

	require.Len(t, eventsOfType(evs, HOSBreakRequired), 1)
	require.Empty(t, eventsOfType(evs, HOSDutyWindowApproaching))
	require.Empty(t, eventsOfType(evs, HOSViolation))
}

func TestAppointmentAtRisk(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")
	a.Stops[0].Window.Latest = t0.Add(2 * time.Hour)

	snap := healthySnapshot("A-1", t0)
	snap.Position.RemainingMiles = 80
	require.Empty(t, eventsOfType(tick(t, m, a, snap, t0), AppointmentAtRisk))

	snap.Position.RemainingMiles = 150
	evs := eventsOfType(tick(t, m, a, snap, t0.Add(time.Minute)), AppointmentAtRisk)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityCritical, evs[0].Severity)
	require.True(t, evs[0].RequiresReplan)
	require.Equal(t, "S1", evs[0].Params["stop_id"])
}

func TestDockRestOpportunity(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.HOS.State = domain.DriverHOSState{HoursDriven: 10, OnDutyTime: 12, HoursSinceBreak: 1, HoursSinceQualifyingRest: 12}
	snap.HOS.DutyStatus = domain.DutyOnDuty
	snap.Position.SpeedMph = 0
	snap.Position.RemainingMiles = 200
	snap.Dock = &domain.DockReading{AtDock: true, InWindow: true, StopID: "S1", ArrivedAt: t0, ExpectedDwellHours: 8}

	evs := eventsOfType(tick(t, m, a, snap, t0), DockRestOpportunity)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityLow, evs[0].Severity)
	require.Equal(t, 2.0, evs[0].Params["partial_rest_hours"])

	a.RestPolicy.AllowDockRest = false
	m2 := newTestMonitor(t)
	require.Empty(t, eventsOfType(tick(t, m2, a, snap, t0), DockRestOpportunity))
}

func TestForgetClearsState(t *testing.T) {
	m := newTestMonitor(t)
	a := testAssignment("A-1")

	snap := healthySnapshot("A-1", t0)
	snap.Weather = &domain.WeatherReading{Severity: "severe", Condition: "ice storm"}
	require.Len(t, eventsOfType(tick(t, m, a, snap, t0), SevereWeather), 1)

	m.Forget(context.Background(), "A-1")
	require.Empty(t, m.Tracker().Status("A-1"))
	require.Len(t, eventsOfType(tick(t, m, a, snap, t0.Add(time.Minute)), SevereWeather), 1)
}

func TestEvaluateAbandonsOnCancel(t *testing.T) {
	m := newTestMonitor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := healthySnapshot("A-1", t0)
	snap.Position.SpeedMph = 90
	evs, err := m.Evaluate(ctx, testAssignment("A-1"), snap, t0)
	require.Error(t, err)
	require.Empty(t, evs)
}

func TestEvaluateCancelledMidwayLeavesNoState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newCatalogMonitor(t,
		TriggerDescriptor{
			Type:      "YARD_HOLD",
			Category:  domain.CategoryRoute,
			Severity:  domain.SeverityMedium,
			Cooldown:  15 * time.Minute,
			Predicate: func(TriggerInput) Evaluation { return Fire(nil) },
		},
		TriggerDescriptor{
			Type:     "SHUTDOWN",
			Category: domain.CategoryRoute,
			Severity: domain.SeverityLow,
			Predicate: func(TriggerInput) Evaluation {
				cancel()
				return Quiet()
			},
		},
	)
	a := testAssignment("A-1")
	snap := healthySnapshot("A-1", t0)

	evs, err := m.Evaluate(ctx, a, snap, t0)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, evs)
	require.Equal(t, domain.TriggerState(""), statusOf(m, "A-1", "YARD_HOLD").State)

	// Neither the state machine nor the cooldown window moved.
	evs, err = m.Evaluate(context.Background(), a, snap, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, "YARD_HOLD", evs[0].TriggerType)
	require.Equal(t, domain.TriggerFired, evs[0].State)
}

func TestReplanReasons(t *testing.T) {
	evs := []domain.MonitoringTriggerEvent{
		{TriggerType: FuelLow},
		{TriggerType: SevereWeather, RequiresReplan: true},
		{TriggerType: AppointmentAtRisk, RequiresReplan: true},
		{TriggerType: SevereWeather, RequiresReplan: true},
	}
	require.Equal(t, []string{AppointmentAtRisk, SevereWeather}, ReplanReasons(evs))
}
