package services

import (
	"fmt"
	"hos-dispatch-service/internal/domain"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RestAdvisor decides whether a driver should stop before continuing and, if so,
// for how long. It holds configuration only and is safe for concurrent use.
type RestAdvisor struct {
	Thresholds       Thresholds
	Rules            HOSRules
	AvgSpeedMph      float64
	LaborCostPerHour float64
}

func NewRestAdvisor(t Thresholds, rules HOSRules, avgSpeedMph, laborCostPerHour float64) *RestAdvisor {
	return &RestAdvisor{
		Thresholds:       t,
		Rules:            rules,
		AvgSpeedMph:      avgSpeedMph,
		LaborCostPerHour: laborCostPerHour,
	}
}

// margins are the hours left under each limit for the current state.
type margins struct {
	drive float64
	// duty is the tighter of the duty window and the rest-required limit.
	duty  float64
	brk   float64
	need  float64
	until *float64
}

// Recommend applies, in order: the mandatory 30-minute break, the feasibility check
// against any hard appointment, and the cost comparison between full, partial (dock
// dwell reused) and no rest.
func (a *RestAdvisor) Recommend(
	state domain.DriverHOSState,
	opp domain.RestOpportunity,
	policy domain.RestPolicy,
) (domain.RestRecommendation, error) {
	if err := state.Validate(); err != nil {
		return domain.RestRecommendation{}, fmt.Errorf("recommend rest: %w", err)
	}
	if err := validateOpportunity(opp); err != nil {
		return domain.RestRecommendation{}, fmt.Errorf("recommend rest: %w", err)
	}
	if !(a.AvgSpeedMph > 0) {
		return domain.RestRecommendation{}, domain.NewValidationError("avg_speed_mph", "must be positive")
	}

	t := a.Thresholds
	full := a.Rules.FullRestHours

	m := margins{
		drive: t.DriveLimitHours - state.HoursDriven,
		duty:  math.Min(t.DutyWindowHours-state.OnDutyTime, t.RestAfterHours-state.HoursSinceQualifyingRest),
		brk:   t.BreakAfterHours - state.HoursSinceBreak,
		need:  opp.RemainingDistanceMiles / a.AvgSpeedMph,
	}
	if !opp.AppointmentTime.IsZero() && !opp.CurrentTime.IsZero() {
		until := opp.AppointmentTime.Sub(opp.CurrentTime).Hours()
		m.until = &until
	}

	restRequired := m.drive <= hoursEpsilon || m.duty <= hoursEpsilon ||
		m.need > m.drive+hoursEpsilon || m.need > m.duty+hoursEpsilon
	breakNeeded := opp.RemainingDistanceMiles > 0 && m.brk <= hoursEpsilon

	opportunity := a.analyzeOpportunity(state, opp.DockDurationHours, policy)
	partialEligible := a.partialEligible(opp.DockDurationHours, policy)
	cost := a.analyzeCost(opportunity, partialEligible, restRequired)

	savings := full - opportunity.PartialDeficitHours
	usePartial := partialEligible && !policy.PreferFullRest &&
		savings > hoursEpsilon && savings+hoursEpsilon >= policy.MinPartialSavingsHours

	feasibility := a.analyzeFeasibility(m, restRequired, partialEligible, opportunity.PartialDeficitHours)

	report := EvaluateCompliance(state, t)
	rec := domain.RestRecommendation{
		Feasibility: feasibility,
		Opportunity: opportunity,
		Cost:        cost,
		IsCompliant: report.IsCompliant(),
	}

	var why []string
	switch {
	case breakNeeded:
		rec.Recommendation = domain.RestBreak
		rec.RecommendedDurationHours = a.Rules.BreakHours
		rec.DriverCanDecline = false
		rec.Confidence = 1
		rec.HoursAfterRestDrive = round2(math.Max(m.drive, 0))
		rec.HoursAfterRestDuty = round2(math.Max(m.duty-a.Rules.BreakHours, 0))
		why = append(why, fmt.Sprintf(
			"%.2fh driven since last break reaches the %.1fh limit; a %.1fh break is required before driving on",
			state.HoursSinceBreak, t.BreakAfterHours, a.Rules.BreakHours,
		))

	case restRequired && usePartial:
		rec.Recommendation = domain.RestPartial
		rec.RecommendedDurationHours = round2(opportunity.PartialDeficitHours)
		rec.DriverCanDecline = true
		rec.Confidence = 1
		rec.HoursAfterRestDrive = t.DriveLimitHours
		rec.HoursAfterRestDuty = math.Min(t.DutyWindowHours, t.RestAfterHours)
		why = append(why, fmt.Sprintf(
			"%.1fh of drive needed against %.2fh drive / %.2fh duty margin; %.1fh dock dwell plus %.2fh rest completes a %.0fh off-duty period and saves %.2fh over a full rest",
			m.need, m.drive, m.duty, opp.DockDurationHours, opportunity.PartialDeficitHours, full, savings,
		))

	case restRequired:
		rec.Recommendation = domain.RestFull
		rec.RecommendedDurationHours = full
		rec.DriverCanDecline = false
		rec.Confidence = 1
		rec.HoursAfterRestDrive = t.DriveLimitHours
		rec.HoursAfterRestDuty = math.Min(t.DutyWindowHours, t.RestAfterHours)
		why = append(why, fmt.Sprintf(
			"%.1fh of drive needed against %.2fh drive / %.2fh duty margin; a %.0fh rest is required",
			m.need, m.drive, m.duty, full,
		))
		switch {
		case policy.PreferFullRest && partialEligible:
			why = append(why, "dispatcher policy prefers a full rest over reusing dock time")
		case partialEligible && savings < policy.MinPartialSavingsHours:
			why = append(why, fmt.Sprintf("dock dwell saves only %.2fh, below the %.2fh threshold", savings, policy.MinPartialSavingsHours))
		case !policy.AllowDockRest && opp.DockDurationHours > 0:
			why = append(why, "dock time may not be logged as rest under current policy")
		}

	default:
		rec.Recommendation = domain.RestNone
		rec.RecommendedDurationHours = 0
		rec.DriverCanDecline = true
		rec.HoursAfterRestDrive = round2(m.drive - m.need)
		rec.HoursAfterRestDuty = round2(m.duty - m.need)
		rec.Confidence = a.noRestConfidence(m)
		why = append(why, fmt.Sprintf(
			"%.1fh of drive fits within %.2fh drive / %.2fh duty margin",
			m.need, m.drive, m.duty,
		))
	}

	if !feasibility.Feasible {
		why = append(why, fmt.Sprintf(
			"destination cannot be reached in time: %s short by %.2fh",
			feasibility.LimitingFactor, feasibility.ShortfallHours,
		))
	}
	rec.Reasoning = strings.Join(why, "; ")
	return rec, nil
}

func validateOpportunity(opp domain.RestOpportunity) error {
	for name, v := range map[string]float64{
		"opportunity.dock_duration_hours":      opp.DockDurationHours,
		"opportunity.remaining_distance_miles": opp.RemainingDistanceMiles,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return domain.NewValidationError(name, "must be a finite, non-negative number")
		}
	}
	return nil
}

// partialEligible reports whether the dock dwell can open a split rest at all.
func (a *RestAdvisor) partialEligible(dock float64, policy domain.RestPolicy) bool {
	return policy.AllowDockRest && dock > 0 && dock+hoursEpsilon >= a.Rules.MinSplitPortionHours
}

func (a *RestAdvisor) analyzeOpportunity(
	state domain.DriverHOSState,
	dock float64,
	policy domain.RestPolicy,
) domain.OpportunityAnalysis {
	t := a.Thresholds
	full := a.Rules.FullRestHours

	deficit := math.Max(full-dock, 0)
	dockScore := clamp(dock/full, 0, 1)
	hoursScore := clamp(math.Max(
		math.Max(state.HoursDriven/t.DriveLimitHours, state.OnDutyTime/t.DutyWindowHours),
		state.HoursSinceQualifyingRest/t.RestAfterHours,
	), 0, 1)

	gainable := 0.0
	if a.partialEligible(dock, policy) {
		gainable = full - deficit
	}

	return domain.OpportunityAnalysis{
		DockScore:           round4(dockScore),
		HoursScore:          round4(hoursScore),
		CriticalityScore:    round4(0.6*hoursScore + 0.4*dockScore),
		PartialDeficitHours: round4(deficit),
		HoursGainable:       round4(gainable),
	}
}

func (a *RestAdvisor) analyzeCost(o domain.OpportunityAnalysis, partialEligible, restRequired bool) domain.CostAnalysis {
	rate := decimal.NewFromFloat(a.LaborCostPerHour)
	full := a.Rules.FullRestHours

	partialHours := full
	if partialEligible {
		partialHours = o.PartialDeficitHours
	}

	return domain.CostAnalysis{
		FullRestHours:    full,
		FullRestCost:     rate.Mul(decimal.NewFromFloat(full)).Round(2).InexactFloat64(),
		PartialRestHours: partialHours,
		PartialRestCost:  rate.Mul(decimal.NewFromFloat(partialHours)).Round(2).InexactFloat64(),
		NoRestAllowed:    !restRequired,
		TimeSavedHours:   round4(full - partialHours),
	}
}

// analyzeFeasibility checks whether the remaining drive can reach a hard appointment,
// allowing for the shortest rest the policy permits.
func (a *RestAdvisor) analyzeFeasibility(m margins, restRequired, partialEligible bool, deficit float64) domain.FeasibilityAnalysis {
	f := domain.FeasibilityAnalysis{
		Feasible:              true,
		TotalDriveNeededHours: round4(m.need),
		DriveMarginHours:      round4(m.drive),
		DutyMarginHours:       round4(m.duty),
		RestRequired:          restRequired,
	}
	if m.until == nil {
		return f
	}
	until := round4(*m.until)
	f.HoursUntilAppointment = &until

	elapsed := m.need
	if m.need > math.Max(m.brk, 0)+hoursEpsilon {
		breaks := math.Ceil((m.need - math.Max(m.brk, 0)) / a.Thresholds.BreakAfterHours)
		elapsed += breaks * a.Rules.BreakHours
	}

	if !restRequired {
		if elapsed > *m.until+hoursEpsilon {
			f.Feasible = false
			f.LimitingFactor = domain.LimitAppointmentWindow
			f.ShortfallHours = round4(elapsed - *m.until)
		}
		return f
	}

	restHours := a.Rules.FullRestHours
	if partialEligible {
		restHours = math.Min(restHours, deficit)
	}
	rests := 1 + math.Max(math.Ceil((m.need-math.Max(m.drive, 0))/a.Thresholds.DriveLimitHours)-1, 0)
	elapsed += rests * restHours

	if elapsed <= *m.until+hoursEpsilon {
		return f
	}

	f.Feasible = false
	if m.drive <= m.duty {
		f.LimitingFactor = domain.LimitDriveMargin
		f.ShortfallHours = round4(math.Max(m.need-math.Max(m.drive, 0), 0))
	} else {
		f.LimitingFactor = domain.LimitDutyMargin
		f.ShortfallHours = round4(math.Max(m.need-math.Max(m.duty, 0), 0))
	}
	return f
}

// noRestConfidence scales with the slack left under the tighter limit once the
// remaining drive is done: full confidence at a quarter of the limit or more.
func (a *RestAdvisor) noRestConfidence(m margins) float64 {
	t := a.Thresholds
	slack := math.Min(
		(m.drive-m.need)/t.DriveLimitHours,
		(m.duty-m.need)/math.Min(t.DutyWindowHours, t.RestAfterHours),
	)
	return round2(clamp(0.5+2*slack, 0.5, 1))
}
