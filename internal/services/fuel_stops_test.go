package services

import (
	"hos-dispatch-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFuelStation(t *testing.T) {
	cfg := DefaultPlannerConfig()
	stations := []domain.FuelStation{
		{ID: "F2", PricePerGallon: 3.9, DetourMiles: 2},
		{ID: "F4", PricePerGallon: 3.5, DetourMiles: 5},
		{ID: "F6", PricePerGallon: 3.5, DetourMiles: 3},
		{ID: "F1", PricePerGallon: 3.5, DetourMiles: 5},
		{ID: "F3", PricePerGallon: 3.0, DetourMiles: 15},
		{ID: "F5", PricePerGallon: 0, DetourMiles: 1},
	}

	tests := map[domain.Priority]string{
		domain.MinimizeTime: "F6",
		domain.MinimizeCost: "F1",
		domain.Balance:      "F1",
	}
	for pr, want := range tests {
		t.Run(string(pr), func(t *testing.T) {
			s, ok := SelectFuelStation(stations, cfg, pr)
			require.True(t, ok)
			assert.Equal(t, want, s.ID)
		})
	}

	cfg.MaxFuelPricePerGallon = 3.4
	_, ok := SelectFuelStation(stations, cfg, domain.Balance)
	assert.False(t, ok)
}

func fuelRequest(stations []domain.FuelStation) PlanRequest {
	v := testVehicle()
	v.FuelRangeMiles = 200
	return PlanRequest{
		AssignmentID: "A-1",
		Stops:        []domain.Stop{stopAt("S1", "Nashville, TN")},
		Legs:         []Leg{{From: "origin", To: "S1", DistanceMiles: 400, DriveHours: 400.0 / 55}},
		Vehicle:      v,
		DepartAt:     depart,
		FuelStations: stations,
	}
}

func TestBuildPlanRefuels(t *testing.T) {
	plan, err := BuildPlan(fuelRequest([]domain.FuelStation{
		{ID: "F2", Name: "Love's", PricePerGallon: 3.9, DetourMiles: 2},
		{ID: "F1", Name: "Pilot", PricePerGallon: 3.5, DetourMiles: 5},
	}), DefaultPlannerConfig())
	require.NoError(t, err)

	require.Equal(t, []domain.SegmentKind{
		domain.SegmentDrive, domain.SegmentFuel, domain.SegmentDrive, domain.SegmentDock,
	}, kinds(plan))
	assert.InDelta(t, 150, plan.Segments[0].Drive.DistanceMiles, 1e-6)

	f := plan.Segments[1].Fuel
	assert.Equal(t, "Pilot (F1)", f.Station)
	assert.Equal(t, 143.077, f.Gallons)
	assert.Equal(t, 500.77, f.Cost)
	assert.Equal(t, 500.77, plan.FuelCost)
	assert.InDelta(t, 405, plan.TotalDistanceMiles, 0.01)
	assert.True(t, plan.IsFeasible)
}

func TestBuildPlanHaltsWithoutFuel(t *testing.T) {
	plan, err := BuildPlan(fuelRequest(nil), DefaultPlannerConfig())
	require.NoError(t, err)

	assert.False(t, plan.IsFeasible)
	assert.Equal(t, domain.LimitFuelRange, plan.LimitingFactor)
	assert.InDelta(t, 250.0/55, plan.ShortfallHours, 1e-3)
	require.Equal(t, []domain.SegmentKind{domain.SegmentDrive}, kinds(plan))
}

func TestBuildPlanFuelTieBreakFollowsPriority(t *testing.T) {
	stations := []domain.FuelStation{
		{ID: "F1", PricePerGallon: 3.5, DetourMiles: 8},
		{ID: "F2", PricePerGallon: 3.5, DetourMiles: 2},
	}

	for pr, want := range map[domain.Priority]string{
		domain.MinimizeTime: "F2 (F2)",
		domain.MinimizeCost: "F1 (F1)",
	} {
		t.Run(string(pr), func(t *testing.T) {
			req := fuelRequest(stations)
			req.Priority = pr
			plan, err := BuildPlan(req, DefaultPlannerConfig())
			require.NoError(t, err)

			require.Equal(t, domain.SegmentFuel, plan.Segments[1].Kind)
			assert.Equal(t, want, plan.Segments[1].Fuel.Station)
			assert.True(t, plan.IsFeasible)
		})
	}
}

// A fuel detour blocked only by the break clock takes a break, not a full rest.
func TestBuildPlanBreaksBeforeFuelDetour(t *testing.T) {
	v := testVehicle()
	v.FuelRangeMiles = 103
	stop := stopAt("S1", "Indianapolis, IN")
	stop.Window.Latest = depart.Add(4 * time.Hour)

	plan, err := BuildPlan(PlanRequest{
		AssignmentID: "A-1",
		Stops:        []domain.Stop{stop},
		Legs:         []Leg{{From: "origin", To: "S1", DistanceMiles: 110, DriveHours: 2}},
		Driver:       domain.DriverHOSState{HoursDriven: 2, OnDutyTime: 7, HoursSinceBreak: 7, HoursSinceQualifyingRest: 7},
		Vehicle:      v,
		Priority:     domain.MinimizeTime,
		DepartAt:     depart,
		FuelStations: []domain.FuelStation{{ID: "F1", Name: "Pilot", PricePerGallon: 3.5, DetourMiles: 5}},
	}, DefaultPlannerConfig())
	require.NoError(t, err)

	require.Equal(t, []domain.SegmentKind{
		domain.SegmentDrive, domain.SegmentRest, domain.SegmentFuel, domain.SegmentDrive, domain.SegmentDock,
	}, kinds(plan))
	brk := plan.Segments[1].Rest
	assert.Equal(t, domain.RestBreak, brk.Type)
	assert.Equal(t, 0.5, brk.DurationHours)
	assert.InDelta(t, 53, plan.Segments[0].Drive.DistanceMiles, 1e-6)

	assert.True(t, plan.IsFeasible)
	assert.Empty(t, plan.LimitingFactor)
	assert.InDelta(t, 2.0+0.5+5.0/55+0.25+1, plan.TotalDurationHours, 1e-3)
	assert.True(t, plan.Compliance.IsCompliant())
}
