package services

import (
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PlannerConfig carries the dispatcher preferences the planner needs.
type PlannerConfig struct {
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Rules      HOSRules   `yaml:"rules" json:"rules"`

	AvgSpeedMph      float64 `yaml:"avg_speed_mph" json:"avg_speed_mph"`
	CostPerMile      float64 `yaml:"cost_per_mile" json:"cost_per_mile"`
	LaborCostPerHour float64 `yaml:"labor_cost_per_hour" json:"labor_cost_per_hour"`

	FuelSafetyMarginMiles  float64 `yaml:"fuel_safety_margin_miles" json:"fuel_safety_margin_miles"`
	MaxFuelDetourMiles     float64 `yaml:"max_fuel_detour_miles" json:"max_fuel_detour_miles"`
	MaxFuelPricePerGallon  float64 `yaml:"max_fuel_price_per_gallon" json:"max_fuel_price_per_gallon"`
	FuelStopHours          float64 `yaml:"fuel_stop_hours" json:"fuel_stop_hours"`
	DefaultDockHours       float64 `yaml:"default_dock_hours" json:"default_dock_hours"`
	BalanceMinSavingsHours float64 `yaml:"balance_min_savings_hours" json:"balance_min_savings_hours"`
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Thresholds:             DefaultThresholds(),
		Rules:                  DefaultHOSRules(),
		AvgSpeedMph:            55,
		CostPerMile:            0.65,
		LaborCostPerHour:       32,
		FuelSafetyMarginMiles:  50,
		MaxFuelDetourMiles:     10,
		FuelStopHours:          0.25,
		DefaultDockHours:       1,
		BalanceMinSavingsHours: 1,
	}
}

func (c PlannerConfig) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if !(c.AvgSpeedMph > 0) {
		return domain.NewValidationError("planner.avg_speed_mph", "must be positive")
	}
	if c.CostPerMile < 0 || c.LaborCostPerHour < 0 {
		return domain.NewValidationError("planner.rates", "cost rates must not be negative")
	}
	if c.MaxFuelDetourMiles < 0 || c.FuelSafetyMarginMiles < c.MaxFuelDetourMiles {
		return domain.NewValidationError("planner.fuel_safety_margin_miles", "must cover the maximum fuel detour")
	}
	if c.FuelStopHours < 0 || c.DefaultDockHours < 0 {
		return domain.NewValidationError("planner.stop_hours", "must not be negative")
	}
	return nil
}

// Leg is the drive from the previous position to one stop.
type Leg struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	DistanceMiles float64 `json:"distance_miles"`
	DriveHours    float64 `json:"drive_hours"`
}

// PlanRequest is the fully resolved input to BuildPlan: one leg per stop.
type PlanRequest struct {
	AssignmentID string
	Stops        []domain.Stop
	Legs         []Leg
	Driver       domain.DriverHOSState
	Vehicle      domain.VehicleState
	Priority     domain.Priority
	DepartAt     time.Time
	RestPolicy   domain.RestPolicy
	FuelStations []domain.FuelStation
}

func (r PlanRequest) validate() error {
	if len(r.Stops) == 0 {
		return domain.NewValidationError("stops", "at least one stop is required")
	}
	if len(r.Legs) != len(r.Stops) {
		return domain.NewValidationError("legs", "have %d legs for %d stops", len(r.Legs), len(r.Stops))
	}
	for i, s := range r.Stops {
		if err := s.Validate(); err != nil {
			return err
		}
		l := r.Legs[i]
		if l.DistanceMiles < 0 || l.DriveHours < 0 || math.IsNaN(l.DistanceMiles) || math.IsNaN(l.DriveHours) {
			return domain.NewValidationError("legs", "leg %d to %s has negative or invalid values", i+1, s.ID)
		}
	}
	if err := r.Driver.Validate(); err != nil {
		return err
	}
	if err := r.Vehicle.Validate(); err != nil {
		return err
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return domain.NewValidationError("priority", "unknown priority %q", r.Priority)
	}
	if r.DepartAt.IsZero() {
		return domain.NewValidationError("depart_at", "must be set")
	}
	return nil
}

// maxBoundaries bounds the number of segment splits on a single leg.
const maxBoundaries = 1000

var errPlannerStalled = errors.New("planner made no progress at a boundary")

// BuildPlan walks the stops in order and builds drive, rest, fuel and dock segments
// so that no segment takes the driver past an HOS limit.
//
// It is pure: the returned plan has no ID, Version or CreatedAt; PlanRoute assigns those.
func BuildPlan(req PlanRequest, cfg PlannerConfig) (*domain.RoutePlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	if req.Priority == "" {
		req.Priority = domain.Balance
	}
	if cfg.Rules.SplitRest == nil {
		cfg.Rules.SplitRest = DefaultHOSRules().SplitRest
	}

	b := &planBuilder{
		cfg:      cfg,
		req:      req,
		advisor:  NewRestAdvisor(cfg.Thresholds, cfg.Rules, cfg.AvgSpeedMph, cfg.LaborCostPerHour),
		policy:   restPolicyFor(req.Priority, req.RestPolicy, cfg),
		state:    req.Driver,
		rangeMi:  req.Vehicle.FuelRangeMiles,
		now:      req.DepartAt,
		feasible: true,
		fuelCost: decimal.Zero,
	}

	for i, stop := range req.Stops {
		if err := b.driveLeg(i); err != nil {
			return nil, fmt.Errorf("build plan: leg %d to %s: %w", i+1, stop.ID, err)
		}
		if b.halted {
			break
		}
		if err := b.arrive(i); err != nil {
			return nil, fmt.Errorf("build plan: stop %s: %w", stop.ID, err)
		}
	}

	return b.finish(), nil
}

// restPolicyFor turns the plan priority into the tie-break between a partial and a
// full rest when both are compliant.
func restPolicyFor(p domain.Priority, base domain.RestPolicy, cfg PlannerConfig) domain.RestPolicy {
	policy := base
	if p == domain.Balance && policy.MinPartialSavingsHours == 0 {
		policy.MinPartialSavingsHours = cfg.BalanceMinSavingsHours
	}
	return policy
}

type planBuilder struct {
	cfg     PlannerConfig
	req     PlanRequest
	advisor *RestAdvisor
	policy  domain.RestPolicy

	state   domain.DriverHOSState
	rangeMi float64
	now     time.Time

	segments   []domain.RouteSegment
	miles      float64
	driveHours float64
	fuelCost   decimal.Decimal

	feasible       bool
	limitingFactor string
	shortfallHours float64
	// Set when the plan cannot continue (no usable fuel station).
	halted bool
}

func (b *planBuilder) driveLeg(i int) error {
	leg := b.req.Legs[i]
	stop := b.req.Stops[i]

	speed := b.cfg.AvgSpeedMph
	if leg.DistanceMiles > 0 && leg.DriveHours > 0 {
		speed = leg.DistanceMiles / leg.DriveHours
	}
	// The advisor projects the rest of this leg at the leg's own speed.
	adv := *b.advisor
	adv.AvgSpeedMph = speed

	remaining := leg.DistanceMiles
	for n := 0; remaining > 1e-6; n++ {
		if n > maxBoundaries {
			return errPlannerStalled
		}

		hosMiles := b.driveableHours() * speed
		fuelMiles := math.Max(b.rangeMi-b.cfg.FuelSafetyMarginMiles, 0)

		chunk := math.Min(remaining, math.Min(hosMiles, fuelMiles))
		if chunk > 1e-6 {
			b.drive(leg.From, stop.ID, chunk, chunk/speed)
			remaining -= chunk
			continue
		}

		if fuelMiles <= hosMiles {
			ok, err := b.refuel(&adv, stop, remaining, speed)
			if err != nil {
				return err
			}
			if !ok {
				b.markInfeasible(domain.LimitFuelRange, remaining/speed)
				b.halted = true
				return nil
			}
			continue
		}

		// A break must free BreakHours of driving, or the rest of the leg.
		need := math.Min(remaining/speed, b.cfg.Rules.BreakHours)
		if err := b.restMidLeg(&adv, stop, remaining, need, need); err != nil {
			return err
		}
	}
	return nil
}

// driveableHours is the driving time left before the first HOS limit is reached.
func (b *planBuilder) driveableHours() float64 {
	t := b.cfg.Thresholds
	s := b.state
	h := math.Min(
		math.Min(t.DriveLimitHours-s.HoursDriven, t.DutyWindowHours-s.OnDutyTime),
		math.Min(t.BreakAfterHours-s.HoursSinceBreak, t.RestAfterHours-s.HoursSinceQualifyingRest),
	)
	return math.Max(h, 0)
}

// dutyHoursLeft is the on-duty time left under the duty window and rest-required limit.
func (b *planBuilder) dutyHoursLeft() float64 {
	t := b.cfg.Thresholds
	return math.Min(t.DutyWindowHours-b.state.OnDutyTime, t.RestAfterHours-b.state.HoursSinceQualifyingRest)
}

// breakClears reports whether a break alone frees driveHours of driving and
// dutyHours of on-duty time.
func (b *planBuilder) breakClears(driveHours, dutyHours float64) bool {
	saved := b.state
	defer func() { b.state = saved }()
	b.apply(domain.DutyEvent{Type: domain.DutyBreak, DurationHours: b.cfg.Rules.BreakHours})
	return b.driveableHours()+hoursEpsilon >= driveHours && b.dutyHoursLeft()+hoursEpsilon >= dutyHours
}

// restMidLeg stops the driver on the road so that driveHours of driving and
// dutyHours of on-duty time fit afterwards.
func (b *planBuilder) restMidLeg(adv *RestAdvisor, stop domain.Stop, remaining, driveHours, dutyHours float64) error {
	rec, err := adv.Recommend(b.state, domain.RestOpportunity{
		CurrentTime:            b.now,
		RemainingDistanceMiles: remaining,
		Destination:            stop.ID,
		AppointmentTime:        stop.Window.Latest,
	}, b.policy)
	if err != nil {
		return err
	}
	b.noteFeasibility(rec.Feasibility)

	switch rec.Recommendation {
	case domain.RestBreak:
		return b.rest(domain.RestBreak, rec.RecommendedDurationHours, rec.Reasoning)
	case domain.RestFull, domain.RestPartial:
		// Mid-leg there is no dock dwell to reuse.
		return b.rest(domain.RestFull, b.cfg.Rules.FullRestHours, rec.Reasoning)
	}

	// The advisor sees no rest due, so only the break clock is in the way.
	if b.breakClears(driveHours, dutyHours) {
		return b.rest(domain.RestBreak, b.cfg.Rules.BreakHours, fmt.Sprintf(
			"%.2fh driven since last break leaves no time for the next %.2fh; a %.1fh break is required",
			b.state.HoursSinceBreak, driveHours, b.cfg.Rules.BreakHours,
		))
	}
	return b.rest(domain.RestFull, b.cfg.Rules.FullRestHours,
		"driving limit reached before the next stop; full rest required")
}

func (b *planBuilder) arrive(i int) error {
	stop := b.req.Stops[i]

	wait := 0.0
	if !stop.Window.Earliest.IsZero() && stop.Window.Earliest.After(b.now) {
		wait = stop.Window.Earliest.Sub(b.now).Hours()
	}
	if stop.HasAppointment() && b.now.After(stop.Window.Latest) {
		b.markInfeasible(domain.LimitAppointmentWindow, b.now.Sub(stop.Window.Latest).Hours())
	}

	dockHours := b.cfg.DefaultDockHours
	if stop.DockHours != nil {
		dockHours = *stop.DockHours
	}

	rec, useDock, err := b.dockOpportunity(i, dockHours)
	if err != nil {
		return err
	}

	if useDock {
		// Waiting and dock dwell are logged off duty and run into the remaining rest.
		if err := b.dock(stop, wait, dockHours, true); err != nil {
			return err
		}
		if rec.RecommendedDurationHours > 0 {
			return b.rest(domain.RestPartial, rec.RecommendedDurationHours, rec.Reasoning)
		}
		return nil
	}

	// On-duty dock time may not run past the duty window.
	t := b.cfg.Thresholds
	rested := false
	if b.state.OnDutyTime+wait+dockHours > t.DutyWindowHours+hoursEpsilon ||
		b.state.HoursSinceQualifyingRest+wait+dockHours > t.RestAfterHours+hoursEpsilon {
		if err := b.rest(domain.RestFull, b.cfg.Rules.FullRestHours,
			fmt.Sprintf("%.2fh of dock time would run past the duty window", dockHours)); err != nil {
			return err
		}
		rested = true
		wait = 0
		if !stop.Window.Earliest.IsZero() && stop.Window.Earliest.After(b.now) {
			wait = stop.Window.Earliest.Sub(b.now).Hours()
		}
	}

	if err := b.dock(stop, wait, dockHours, false); err != nil {
		return err
	}
	if rec.Recommendation == domain.RestFull && !rested {
		return b.rest(domain.RestFull, rec.RecommendedDurationHours, rec.Reasoning)
	}
	return nil
}

// dockOpportunity asks the advisor whether the dwell at stop i should start a rest,
// which is only worth it when the next leg cannot be finished on the current clocks.
func (b *planBuilder) dockOpportunity(i int, dockHours float64) (domain.RestRecommendation, bool, error) {
	if i+1 >= len(b.req.Stops) {
		return domain.RestRecommendation{}, false, nil
	}
	next := b.req.Legs[i+1]
	nextStop := b.req.Stops[i+1]

	afterDock, err := Apply(b.state, domain.DutyEvent{Type: domain.DutyOnDuty, DurationHours: dockHours}, b.cfg.Rules)
	if err != nil {
		return domain.RestRecommendation{}, false, err
	}
	saved := b.state
	b.state = afterDock
	fits := b.driveableHours() >= next.DriveHours-hoursEpsilon
	b.state = saved
	if fits {
		return domain.RestRecommendation{}, false, nil
	}

	adv := *b.advisor
	if next.DistanceMiles > 0 && next.DriveHours > 0 {
		adv.AvgSpeedMph = next.DistanceMiles / next.DriveHours
	}
	rec, err := adv.Recommend(b.state, domain.RestOpportunity{
		CurrentTime:            b.now.Add(hoursToDuration(dockHours)),
		DockDurationHours:      dockHours,
		RemainingDistanceMiles: next.DistanceMiles,
		Destination:            nextStop.ID,
		AppointmentTime:        nextStop.Window.Latest,
	}, b.policy)
	if err != nil {
		return domain.RestRecommendation{}, false, err
	}
	b.noteFeasibility(rec.Feasibility)
	return rec, rec.Recommendation == domain.RestPartial, nil
}

func (b *planBuilder) drive(from, to string, miles, hours float64) {
	b.apply(domain.DutyEvent{Type: domain.DutyDrive, DurationHours: hours})
	b.rangeMi -= miles
	b.miles += miles
	b.driveHours += hours
	b.push(domain.SegmentDrive, hours, func(s *domain.RouteSegment) {
		s.Drive = &domain.DriveDetails{
			From:          from,
			To:            to,
			DistanceMiles: round4(miles),
			DurationHours: round4(hours),
		}
	})
}

func (b *planBuilder) rest(kind domain.RestKind, hours float64, reason string) error {
	if hours <= 0 {
		return nil
	}
	ev := domain.DutyRest
	if kind == domain.RestBreak {
		ev = domain.DutyBreak
	}
	before := b.now
	b.apply(domain.DutyEvent{Type: ev, DurationHours: hours})
	b.push(domain.SegmentRest, hours, func(s *domain.RouteSegment) {
		s.Rest = &domain.RestDetails{Type: kind, DurationHours: round4(hours), Reason: reason}
	})
	if !b.now.After(before) {
		return errPlannerStalled
	}
	return nil
}

func (b *planBuilder) dock(stop domain.Stop, wait, hours float64, asRest bool) error {
	if wait > 0 {
		b.apply(domain.DutyEvent{Type: domain.DutyBreak, DurationHours: wait})
	}
	ev := domain.DutyEvent{Type: domain.DutyOnDuty, DurationHours: hours}
	if asRest {
		ev.Type = domain.DutyRest
	}
	b.apply(ev)
	b.push(domain.SegmentDock, wait+hours, func(s *domain.RouteSegment) {
		s.Dock = &domain.DockDetails{
			StopID:        stop.ID,
			Role:          stop.Role,
			Customer:      stop.Customer,
			DurationHours: round4(hours),
			WaitHours:     round4(wait),
			CountsAsRest:  asRest,
		}
	})
	return nil
}

// apply advances the simulated clock; events built here are always valid.
func (b *planBuilder) apply(ev domain.DutyEvent) {
	next, err := Apply(b.state, ev, b.cfg.Rules)
	if err != nil {
		panic(fmt.Sprintf("planner produced invalid duty event: %v", err))
	}
	b.state = next
}

func (b *planBuilder) push(kind domain.SegmentKind, hours float64, fill func(*domain.RouteSegment)) {
	start := b.now
	b.now = start.Add(hoursToDuration(hours))
	seg := domain.RouteSegment{
		Sequence: len(b.segments) + 1,
		Kind:     kind,
		StartAt:  start,
		EndAt:    b.now,
		HOSAfter: b.state,
	}
	fill(&seg)
	b.segments = append(b.segments, seg)
}

func (b *planBuilder) noteFeasibility(f domain.FeasibilityAnalysis) {
	if !f.Feasible {
		b.markInfeasible(f.LimitingFactor, f.ShortfallHours)
	}
}

// markInfeasible keeps the first reason the plan cannot meet its constraints.
func (b *planBuilder) markInfeasible(factor string, shortfall float64) {
	if !b.feasible {
		return
	}
	b.feasible = false
	b.limitingFactor = factor
	b.shortfallHours = round4(shortfall)
}

func (b *planBuilder) finish() *domain.RoutePlan {
	duration := b.now.Sub(b.req.DepartAt).Hours()

	cost := decimal.NewFromFloat(b.miles).Mul(decimal.NewFromFloat(b.cfg.CostPerMile)).
		Add(decimal.NewFromFloat(duration).Mul(decimal.NewFromFloat(b.cfg.LaborCostPerHour))).
		Add(b.fuelCost)

	return &domain.RoutePlan{
		AssignmentID:       b.req.AssignmentID,
		Priority:           b.req.Priority,
		DepartAt:           b.req.DepartAt,
		ArriveAt:           b.now,
		Segments:           b.segments,
		TotalDistanceMiles: round2(b.miles),
		TotalDriveHours:    round4(b.driveHours),
		TotalDurationHours: round4(duration),
		FuelCost:           b.fuelCost.Round(2).InexactFloat64(),
		TotalCost:          cost.Round(2).InexactFloat64(),
		IsFeasible:         b.feasible,
		LimitingFactor:     b.limitingFactor,
		ShortfallHours:     b.shortfallHours,
		Compliance:         EvaluateCompliance(b.state, b.cfg.Thresholds),
		FinalHOS:           b.state,
	}
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}
