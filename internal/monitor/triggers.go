package monitor

import (
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/services"
	"math"
	"time"
)

const (
	HOSDriveLimitApproaching = "HOS_DRIVE_LIMIT_APPROACHING"
	HOSDutyWindowApproaching = "HOS_DUTY_WINDOW_APPROACHING"
	HOSBreakRequired         = "HOS_BREAK_REQUIRED"
	HOSViolation             = "HOS_VIOLATION"
	RouteDeviation           = "ROUTE_DEVIATION"
	AppointmentAtRisk        = "APPOINTMENT_AT_RISK"
	TrafficDelay             = "TRAFFIC_DELAY"
	DriverNotMoving          = "DRIVER_NOT_MOVING"
	DriverSpeeding           = "DRIVER_SPEEDING"
	FuelLow                  = "FUEL_LOW"
	FuelRangeInsufficient    = "FUEL_RANGE_INSUFFICIENT"
	DockDwellExceeded        = "DOCK_DWELL_EXCEEDED"
	DockRestOpportunity      = "DOCK_REST_OPPORTUNITY"
	SevereWeather            = "SEVERE_WEATHER"
)

// TriggerSettings holds the dispatcher-tunable thresholds of the default triggers.
type TriggerSettings struct {
	Disabled []string `yaml:"disabled" json:"disabled"`

	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`

	DriveWarnHours     float64       `yaml:"drive_warn_hours" json:"drive_warn_hours"`
	DutyWarnHours      float64       `yaml:"duty_warn_hours" json:"duty_warn_hours"`
	BreakWarnHours     float64       `yaml:"break_warn_hours" json:"break_warn_hours"`
	UrgentMarginHours  float64       `yaml:"urgent_margin_hours" json:"urgent_margin_hours"`
	DeviationMiles     float64       `yaml:"deviation_miles" json:"deviation_miles"`
	DeviationHighMiles float64       `yaml:"deviation_high_miles" json:"deviation_high_miles"`
	AppointmentBuffer  time.Duration `yaml:"appointment_buffer" json:"appointment_buffer"`
	AvgSpeedMph        float64       `yaml:"avg_speed_mph" json:"avg_speed_mph"`
	TrafficDelayMin    float64       `yaml:"traffic_delay_minutes" json:"traffic_delay_minutes"`
	TrafficDelayHigh   float64       `yaml:"traffic_delay_high_minutes" json:"traffic_delay_high_minutes"`
	StoppedAfter       time.Duration `yaml:"stopped_after" json:"stopped_after"`
	StoppedEscalate    time.Duration `yaml:"stopped_escalate" json:"stopped_escalate"`
	SpeedToleranceMph  float64       `yaml:"speed_tolerance_mph" json:"speed_tolerance_mph"`
	SpeedHighOverMph   float64       `yaml:"speed_high_over_mph" json:"speed_high_over_mph"`
	DefaultSpeedLimit  float64       `yaml:"default_speed_limit_mph" json:"default_speed_limit_mph"`
	FuelLowPct         float64       `yaml:"fuel_low_pct" json:"fuel_low_pct"`
	FuelCriticalPct    float64       `yaml:"fuel_critical_pct" json:"fuel_critical_pct"`
	FuelReserveMiles   float64       `yaml:"fuel_reserve_miles" json:"fuel_reserve_miles"`
	DockGraceHours     float64       `yaml:"dock_grace_hours" json:"dock_grace_hours"`
	DockMinRestHours   float64       `yaml:"dock_min_rest_hours" json:"dock_min_rest_hours"`
	WindMph            float64       `yaml:"wind_mph" json:"wind_mph"`
	MinVisibilityMiles float64       `yaml:"min_visibility_miles" json:"min_visibility_miles"`
}

func DefaultTriggerSettings() TriggerSettings {
	return TriggerSettings{
		Cooldown:           15 * time.Minute,
		DriveWarnHours:     1,
		DutyWarnHours:      1,
		BreakWarnHours:     0.5,
		UrgentMarginHours:  0.25,
		DeviationMiles:     2,
		DeviationHighMiles: 10,
		AppointmentBuffer:  15 * time.Minute,
		AvgSpeedMph:        55,
		TrafficDelayMin:    30,
		TrafficDelayHigh:   60,
		StoppedAfter:       30 * time.Minute,
		StoppedEscalate:    90 * time.Minute,
		SpeedToleranceMph:  5,
		SpeedHighOverMph:   15,
		DefaultSpeedLimit:  65,
		FuelLowPct:         20,
		FuelCriticalPct:    10,
		FuelReserveMiles:   50,
		DockGraceHours:     0.5,
		DockMinRestHours:   2,
		WindMph:            50,
		MinVisibilityMiles: 0.25,
	}
}

// DefaultCatalog registers the fourteen deployed triggers, minus any listed in
// settings.Disabled.
func DefaultCatalog(s TriggerSettings) (*Catalog, error) {
	disabled := make(map[string]bool, len(s.Disabled))
	for _, t := range s.Disabled {
		disabled[t] = true
	}

	c := NewCatalog()
	for _, d := range defaultDescriptors(s) {
		if disabled[d.Type] {
			continue
		}
		if err := c.Register(d); err != nil {
			return nil, fmt.Errorf("default catalog: %w", err)
		}
	}
	return c, nil
}

func defaultDescriptors(s TriggerSettings) []TriggerDescriptor {
	eld := []domain.TelemetryFeed{domain.FeedELD}
	gps := []domain.TelemetryFeed{domain.FeedGPS}

	return []TriggerDescriptor{
		{
			Type: HOSDriveLimitApproaching, Category: domain.CategoryHOS, Severity: domain.SeverityMedium,
			RequiresReplan: true, Feeds: eld, Cooldown: s.Cooldown,
			Predicate: marginPredicate(s, func(t services.Thresholds, st domain.DriverHOSState) float64 {
				return t.DriveLimitHours - st.HoursDriven
			}, s.DriveWarnHours),
		},
		{
			Type: HOSDutyWindowApproaching, Category: domain.CategoryHOS, Severity: domain.SeverityMedium,
			RequiresReplan: true, Feeds: eld, Cooldown: s.Cooldown,
			Predicate: marginPredicate(s, func(t services.Thresholds, st domain.DriverHOSState) float64 {
				return math.Min(t.DutyWindowHours-st.OnDutyTime, t.RestAfterHours-st.HoursSinceQualifyingRest)
			}, s.DutyWarnHours),
		},
		{
			Type: HOSBreakRequired, Category: domain.CategoryHOS, Severity: domain.SeverityHigh,
			RequiresReplan: true, Feeds: eld, Cooldown: s.Cooldown,
			EscalateAfter: 15 * time.Minute, Escalation: domain.SeverityCritical,
			Predicate: breakRequired(s),
		},
		{
			Type: HOSViolation, Category: domain.CategoryHOS, Severity: domain.SeverityCritical,
			RequiresReplan: true, Feeds: eld, Cooldown: 5 * time.Minute,
			Predicate: hosViolation,
		},
		{
			Type: RouteDeviation, Category: domain.CategoryRoute, Severity: domain.SeverityMedium,
			Feeds: gps, Cooldown: s.Cooldown,
			EscalateAfter: 20 * time.Minute, Escalation: domain.SeverityHigh,
			Predicate: routeDeviation(s),
		},
		{
			Type: AppointmentAtRisk, Category: domain.CategoryRoute, Severity: domain.SeverityHigh,
			RequiresReplan: true, Feeds: gps, Cooldown: s.Cooldown,
			EscalateAfter: 30 * time.Minute, Escalation: domain.SeverityCritical,
			Predicate: appointmentAtRisk(s),
		},
		{
			Type: TrafficDelay, Category: domain.CategoryRoute, Severity: domain.SeverityMedium,
			Feeds: gps, Cooldown: s.Cooldown,
			Predicate: trafficDelay(s),
		},
		{
			Type: DriverNotMoving, Category: domain.CategoryDriver, Severity: domain.SeverityMedium,
			Feeds: gps, Cooldown: s.Cooldown,
			Predicate: driverNotMoving(s),
		},
		{
			Type: DriverSpeeding, Category: domain.CategoryDriver, Severity: domain.SeverityMedium,
			Feeds: gps, Cooldown: s.Cooldown,
			Predicate: driverSpeeding(s),
		},
		{
			Type: FuelLow, Category: domain.CategoryFuel, Severity: domain.SeverityMedium,
			Feeds: []domain.TelemetryFeed{domain.FeedFuel}, Cooldown: s.Cooldown,
			EscalateAfter: 30 * time.Minute, Escalation: domain.SeverityHigh,
			Predicate: fuelLow(s),
		},
		{
			Type: FuelRangeInsufficient, Category: domain.CategoryFuel, Severity: domain.SeverityHigh,
			RequiresReplan: true, Feeds: []domain.TelemetryFeed{domain.FeedFuel, domain.FeedGPS}, Cooldown: s.Cooldown,
			Predicate: fuelRangeInsufficient(s),
		},
		{
			Type: DockDwellExceeded, Category: domain.CategoryDock, Severity: domain.SeverityMedium,
			Feeds: []domain.TelemetryFeed{domain.FeedDock}, Cooldown: s.Cooldown,
			Predicate: dockDwellExceeded(s),
		},
		{
			Type: DockRestOpportunity, Category: domain.CategoryDock, Severity: domain.SeverityLow,
			RequiresReplan: true, Feeds: []domain.TelemetryFeed{domain.FeedDock, domain.FeedELD}, Cooldown: s.Cooldown,
			Predicate: dockRestOpportunity(s),
		},
		{
			Type: SevereWeather, Category: domain.CategoryWeather, Severity: domain.SeverityHigh,
			RequiresReplan: true, Feeds: []domain.TelemetryFeed{domain.FeedWeather}, Cooldown: s.Cooldown,
			Predicate: severeWeather(s),
		},
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func marginPredicate(
	s TriggerSettings,
	margin func(services.Thresholds, domain.DriverHOSState) float64,
	warn float64,
) Predicate {
	return func(in TriggerInput) Evaluation {
		m := margin(in.Thresholds, in.Snapshot.HOS.State)
		// Past the limit is HOS_VIOLATION's job.
		if m > warn || m <= 0 {
			return Quiet()
		}
		ev := Fire(map[string]any{"margin_hours": round2(m), "warn_hours": warn})
		if m <= s.UrgentMarginHours {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

func breakRequired(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		hos := in.Snapshot.HOS
		if hos.DutyStatus.OffDuty() {
			return Quiet()
		}
		since := hos.State.HoursSinceBreak
		if since < in.Thresholds.BreakAfterHours-s.BreakWarnHours {
			return Quiet()
		}
		return Fire(map[string]any{
			"hours_since_break": round2(since),
			"break_after_hours": in.Thresholds.BreakAfterHours,
		})
	}
}

func hosViolation(in TriggerInput) Evaluation {
	report := services.EvaluateCompliance(in.Snapshot.HOS.State, in.Thresholds)
	if report.Status != domain.StatusNonCompliant {
		return Quiet()
	}
	return Fire(map[string]any{"violations": report.Violations})
}

func routeDeviation(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		d := in.Snapshot.Position.RouteDeviationMiles
		if d <= s.DeviationMiles {
			return Quiet()
		}
		ev := Fire(map[string]any{"deviation_miles": round2(d)})
		if d > s.DeviationHighMiles {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

// projectedArrival prefers the GPS provider's ETA and falls back to the
// remaining miles at the average speed.
func projectedArrival(in TriggerInput, avgSpeed float64) time.Time {
	pos := in.Snapshot.Position
	if !pos.ETA.IsZero() {
		return pos.ETA
	}
	hours := pos.RemainingMiles / avgSpeed
	hours += pos.TrafficDelay / 60
	return in.Now.Add(time.Duration(hours * float64(time.Hour)))
}

func appointmentAtRisk(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		stop, ok := in.NextStop()
		if !ok || !stop.HasAppointment() || !(s.AvgSpeedMph > 0) {
			return Quiet()
		}
		eta := projectedArrival(in, s.AvgSpeedMph)
		// A required rest that has not been taken yet pushes the arrival back.
		if in.Snapshot.HOS != nil && in.Advisor != nil {
			rec, err := in.Advisor.Recommend(in.Snapshot.HOS.State, domain.RestOpportunity{
				CurrentTime:            in.Now,
				RemainingDistanceMiles: in.Snapshot.Position.RemainingMiles,
				Destination:            stop.ID,
				AppointmentTime:        stop.Window.Latest,
			}, in.Assignment.RestPolicy)
			if err == nil && rec.Recommendation != domain.RestNone {
				eta = eta.Add(time.Duration(rec.RecommendedDurationHours * float64(time.Hour)))
			}
		}
		if eta.Add(s.AppointmentBuffer).Before(stop.Window.Latest) || eta.Add(s.AppointmentBuffer).Equal(stop.Window.Latest) {
			return Quiet()
		}
		late := eta.Sub(stop.Window.Latest)
		ev := Fire(map[string]any{
			"stop_id":      stop.ID,
			"eta":          eta.UTC().Format(time.RFC3339),
			"appointment":  stop.Window.Latest.UTC().Format(time.RFC3339),
			"late_minutes": math.Round(late.Minutes()),
		})
		if late > 0 {
			ev = ev.With(domain.SeverityCritical, true)
		}
		return ev
	}
}

func trafficDelay(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		d := in.Snapshot.Position.TrafficDelay
		if d < s.TrafficDelayMin {
			return Quiet()
		}
		ev := Fire(map[string]any{"delay_minutes": math.Round(d)})
		if d >= s.TrafficDelayHigh {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

func driverNotMoving(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		pos := in.Snapshot.Position
		if pos.SpeedMph > 0 || pos.StoppedSince.IsZero() {
			return Quiet()
		}
		if dock := in.Snapshot.Dock; dock != nil && dock.AtDock && dock.InWindow {
			return Quiet()
		}
		if hos := in.Snapshot.HOS; hos != nil && hos.DutyStatus.OffDuty() {
			return Quiet()
		}
		stopped := in.Now.Sub(pos.StoppedSince)
		if stopped <= s.StoppedAfter {
			return Quiet()
		}
		ev := Fire(map[string]any{"stopped_minutes": math.Round(stopped.Minutes())})
		if stopped > s.StoppedEscalate {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

func driverSpeeding(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		pos := in.Snapshot.Position
		limit := pos.SpeedLimitMph
		if limit <= 0 {
			limit = s.DefaultSpeedLimit
		}
		over := pos.SpeedMph - limit
		if over <= s.SpeedToleranceMph {
			return Quiet()
		}
		ev := Fire(map[string]any{"speed_mph": round2(pos.SpeedMph), "limit_mph": limit})
		if over > s.SpeedHighOverMph {
			ev = ev.With(domain.SeverityHigh, false)
		}
		return ev
	}
}

func fuelLow(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		pct := in.Snapshot.Fuel.FuelPct
		if pct >= s.FuelLowPct {
			return Quiet()
		}
		ev := Fire(map[string]any{"fuel_pct": round2(pct), "range_miles": round2(in.Snapshot.Fuel.RangeMiles)})
		if pct < s.FuelCriticalPct {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

func fuelRangeInsufficient(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		rng := in.Snapshot.Fuel.RangeMiles
		need := in.Snapshot.Position.RemainingMiles + s.FuelReserveMiles
		if rng >= need {
			return Quiet()
		}
		ev := Fire(map[string]any{"range_miles": round2(rng), "needed_miles": round2(need)})
		if rng < in.Snapshot.Position.RemainingMiles {
			ev = ev.With(domain.SeverityCritical, true)
		}
		return ev
	}
}

func dockDwellExceeded(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		dock := in.Snapshot.Dock
		if !dock.AtDock || dock.ArrivedAt.IsZero() {
			return Quiet()
		}
		dwell := in.Now.Sub(dock.ArrivedAt).Hours()
		if dwell <= dock.ScheduledDwellHours+s.DockGraceHours {
			return Quiet()
		}
		ev := Fire(map[string]any{
			"stop_id":         dock.StopID,
			"dwell_hours":     round2(dwell),
			"scheduled_hours": dock.ScheduledDwellHours,
		})
		if dock.ScheduledDwellHours > 0 && dwell > 2*dock.ScheduledDwellHours {
			ev = ev.With(domain.SeverityHigh, true)
		}
		return ev
	}
}

// dockRestOpportunity fires when the expected dwell is long enough to start a
// split rest and the advisor would use it.
func dockRestOpportunity(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		dock := in.Snapshot.Dock
		if !dock.AtDock || dock.ExpectedDwellHours < s.DockMinRestHours || in.Advisor == nil {
			return Quiet()
		}
		policy := in.Assignment.RestPolicy
		if !policy.AllowDockRest {
			return Quiet()
		}

		remaining := 0.0
		if pos := in.Snapshot.Position; pos != nil {
			remaining = pos.RemainingMiles
		}
		// Judge against the leg after this stop when the plan knows it.
		if rem := in.Assignment.RemainingStops(); len(rem) > 1 && remaining == 0 {
			remaining = planLegMiles(in.Assignment.Plan, rem[1].ID)
		}

		rec, err := in.Advisor.Recommend(in.Snapshot.HOS.State, domain.RestOpportunity{
			CurrentTime:            in.Now,
			DockDurationHours:      dock.ExpectedDwellHours,
			RemainingDistanceMiles: remaining,
			Destination:            dock.StopID,
		}, policy)
		if err != nil || rec.Recommendation != domain.RestPartial {
			return Quiet()
		}
		return Fire(map[string]any{
			"stop_id":              dock.StopID,
			"expected_dwell_hours": dock.ExpectedDwellHours,
			"partial_rest_hours":   rec.RecommendedDurationHours,
			"hours_gainable":       rec.Opportunity.HoursGainable,
		})
	}
}

// planLegMiles sums the planned drive miles into the given stop.
func planLegMiles(p *domain.RoutePlan, stopID string) float64 {
	if p == nil {
		return 0
	}
	total := 0.0
	for _, seg := range p.Segments {
		if seg.Drive != nil && seg.Drive.To == stopID {
			total += seg.Drive.DistanceMiles
		}
	}
	return total
}

func severeWeather(s TriggerSettings) Predicate {
	return func(in TriggerInput) Evaluation {
		w := in.Snapshot.Weather
		severe := w.Severity == "severe" || w.Severity == "extreme"
		windy := s.WindMph > 0 && w.WindMph >= s.WindMph
		blind := w.VisibilityMiles > 0 && w.VisibilityMiles < s.MinVisibilityMiles
		if !severe && !windy && !blind {
			return Quiet()
		}
		ev := Fire(map[string]any{
			"severity":         w.Severity,
			"condition":        w.Condition,
			"wind_mph":         w.WindMph,
			"visibility_miles": w.VisibilityMiles,
		})
		if w.Severity == "extreme" {
			ev = ev.With(domain.SeverityCritical, true)
		}
		return ev
	}
}
