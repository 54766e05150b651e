package services

import (
	"fmt"
	"hos-dispatch-service/internal/domain"

	"github.com/shopspring/decimal"
)

// SelectFuelStation returns the cheapest station within the detour limit.
// Under MINIMIZE_TIME price ties go to the shorter detour; remaining ties go to
// the lower station ID.
func SelectFuelStation(stations []domain.FuelStation, cfg PlannerConfig, priority domain.Priority) (domain.FuelStation, bool) {
	var best domain.FuelStation
	found := false
	for _, s := range stations {
		if s.DetourMiles < 0 || s.DetourMiles > cfg.MaxFuelDetourMiles || s.PricePerGallon <= 0 {
			continue
		}
		if cfg.MaxFuelPricePerGallon > 0 && s.PricePerGallon > cfg.MaxFuelPricePerGallon {
			continue
		}
		if !found || preferStation(s, best, priority) {
			best = s
			found = true
		}
	}
	return best, found
}

func preferStation(a, b domain.FuelStation, priority domain.Priority) bool {
	if a.PricePerGallon != b.PricePerGallon {
		return a.PricePerGallon < b.PricePerGallon
	}
	if priority == domain.MinimizeTime && a.DetourMiles != b.DetourMiles {
		return a.DetourMiles < b.DetourMiles
	}
	return a.ID < b.ID
}

// refuel inserts a fuel stop and fills the tank. It returns false when no station
// can keep the vehicle moving. If the driver has no time left for the detour it
// rests first and lets the caller retry.
func (b *planBuilder) refuel(adv *RestAdvisor, stop domain.Stop, remaining, speed float64) (bool, error) {
	full := b.req.Vehicle.FullRangeMiles()
	if full <= b.cfg.FuelSafetyMarginMiles+b.cfg.MaxFuelDetourMiles {
		return false, nil
	}
	station, ok := SelectFuelStation(b.req.FuelStations, b.cfg, b.req.Priority)
	if !ok {
		return false, nil
	}

	detourHours := station.DetourMiles / speed
	stopHours := detourHours + b.cfg.FuelStopHours
	if b.driveableHours()+hoursEpsilon < detourHours || b.dutyHoursLeft()+hoursEpsilon < stopHours {
		return true, b.restMidLeg(adv, stop, remaining, detourHours, stopHours)
	}

	if detourHours > 0 {
		b.apply(domain.DutyEvent{Type: domain.DutyDrive, DurationHours: detourHours})
		b.rangeMi -= station.DetourMiles
		b.miles += station.DetourMiles
		b.driveHours += detourHours
	}
	if b.cfg.FuelStopHours > 0 {
		b.apply(domain.DutyEvent{Type: domain.DutyOnDuty, DurationHours: b.cfg.FuelStopHours})
	}

	mpg := decimal.NewFromFloat(b.req.Vehicle.MilesPerGallon)
	gallons := decimal.NewFromFloat(full - max(b.rangeMi, 0)).Div(mpg).Round(3)
	cost := gallons.Mul(decimal.NewFromFloat(station.PricePerGallon)).Round(2)
	b.fuelCost = b.fuelCost.Add(cost)
	b.rangeMi = full

	name := station.Name
	if name == "" {
		name = station.ID
	}
	b.push(domain.SegmentFuel, detourHours+b.cfg.FuelStopHours, func(s *domain.RouteSegment) {
		s.Fuel = &domain.FuelDetails{
			Station:        fmt.Sprintf("%s (%s)", name, station.ID),
			Gallons:        gallons.InexactFloat64(),
			PricePerGallon: station.PricePerGallon,
			Cost:           cost.InexactFloat64(),
			DetourMiles:    station.DetourMiles,
			DurationHours:  round4(detourHours + b.cfg.FuelStopHours),
		}
	})
	return true, nil
}
