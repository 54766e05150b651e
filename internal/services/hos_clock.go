package services

import (
	"fmt"
	"hos-dispatch-service/internal/domain"
	"math"
)

const hoursEpsilon = 1e-9

// SplitRestRule decides whether two separate off-duty periods together count as a
// qualifying rest. first is the earlier completed period, second the current one.
type SplitRestRule func(first, second float64) bool

// SplitRestPolicy builds the usual split-sleeper rule: one period of at least longMin
// hours, the other of at least shortMin, together at least combinedMin. Order does not
// matter.
func SplitRestPolicy(longMin, shortMin, combinedMin float64) SplitRestRule {
	return func(first, second float64) bool {
		lo, hi := math.Min(first, second), math.Max(first, second)
		return hi+hoursEpsilon >= longMin && lo+hoursEpsilon >= shortMin && first+second+hoursEpsilon >= combinedMin
	}
}

// HOSRules are the reset semantics applied by the clock. Limits are evaluated
// separately by EvaluateCompliance.
type HOSRules struct {
	FullRestHours float64 `yaml:"full_rest_hours" json:"full_rest_hours"`
	BreakHours    float64 `yaml:"break_hours" json:"break_hours"`
	// Non-driving on-duty time of at least BreakHours satisfies the break requirement.
	OnDutyCountsAsBreak bool `yaml:"on_duty_counts_as_break" json:"on_duty_counts_as_break"`
	// Shortest off-duty period that can take part in a split rest.
	MinSplitPortionHours float64       `yaml:"min_split_portion_hours" json:"min_split_portion_hours"`
	SplitRest            SplitRestRule `yaml:"-" json:"-"`
}

func DefaultHOSRules() HOSRules {
	return HOSRules{
		FullRestHours:        10,
		BreakHours:           0.5,
		OnDutyCountsAsBreak:  true,
		MinSplitPortionHours: 2,
		SplitRest:            SplitRestPolicy(7, 2, 10),
	}
}

func (r HOSRules) Validate() error {
	if r.FullRestHours <= 0 {
		return domain.NewValidationError("rules.full_rest_hours", "must be positive")
	}
	if r.BreakHours <= 0 || r.BreakHours >= r.FullRestHours {
		return domain.NewValidationError("rules.break_hours", "must be positive and below full_rest_hours")
	}
	if r.MinSplitPortionHours < 0 || r.MinSplitPortionHours >= r.FullRestHours {
		return domain.NewValidationError("rules.min_split_portion_hours", "must be in [0, full_rest_hours)")
	}
	return nil
}

// Apply advances the driver's counters by one duty event.
//
// Apply never clamps: a counter pushed past its regulatory limit stays there and is
// reported by EvaluateCompliance.
func Apply(state domain.DriverHOSState, ev domain.DutyEvent, rules HOSRules) (domain.DriverHOSState, error) {
	if !ev.Type.Valid() {
		return state, domain.NewValidationError("event.type", "unknown duty type %q", ev.Type)
	}
	d := ev.DurationHours
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return state, domain.NewValidationError("event.duration_hours", "must be a finite number")
	}
	if d < 0 {
		return state, domain.NewValidationError("event.duration_hours", "must not be negative (got %.2f)", d)
	}

	if ev.Type.OffDuty() {
		return applyOffDuty(state, d, rules), nil
	}

	s := closeStreak(state, rules)
	switch ev.Type {
	case domain.DutyDrive:
		s.HoursDriven += d
		s.OnDutyTime += d
		s.HoursSinceBreak += d
		s.HoursSinceQualifyingRest += d
		s.DrivenSinceSplit += d
		s.DutySinceSplit += d
	case domain.DutyOnDuty:
		s.OnDutyTime += d
		s.HoursSinceQualifyingRest += d
		s.DutySinceSplit += d
		if rules.OnDutyCountsAsBreak && d+hoursEpsilon >= rules.BreakHours {
			s.HoursSinceBreak = 0
		}
	}
	return s, nil
}

func applyOffDuty(s domain.DriverHOSState, d float64, rules HOSRules) domain.DriverHOSState {
	s.OffDutyStreak += d

	if s.OffDutyStreak+hoursEpsilon >= rules.FullRestHours {
		return domain.DriverHOSState{OffDutyStreak: s.OffDutyStreak}
	}

	// The duty window keeps running through off-duty time that is not a full rest.
	s.OnDutyTime += d
	s.HoursSinceQualifyingRest += d

	if s.OffDutyStreak+hoursEpsilon >= rules.BreakHours {
		s.HoursSinceBreak = 0
	}

	// A qualifying pair restarts the clocks from the end of the first period,
	// excluding the second. Recomputing from DutySinceSplit keeps this idempotent
	// while the current streak grows.
	if s.SplitPortion > 0 && rules.SplitRest != nil && rules.SplitRest(s.SplitPortion, s.OffDutyStreak) {
		s.HoursDriven = s.DrivenSinceSplit
		s.OnDutyTime = s.DutySinceSplit
		s.HoursSinceQualifyingRest = s.DutySinceSplit
	}
	return s
}

// closeStreak ends the current off-duty period when duty resumes.
func closeStreak(s domain.DriverHOSState, rules HOSRules) domain.DriverHOSState {
	streak := s.OffDutyStreak
	if streak == 0 {
		return s
	}
	s.OffDutyStreak = 0

	switch {
	case streak+hoursEpsilon >= rules.FullRestHours:
		s.SplitPortion = 0
		s.DrivenSinceSplit = 0
		s.DutySinceSplit = 0
	case rules.MinSplitPortionHours > 0 && streak+hoursEpsilon >= rules.MinSplitPortionHours:
		s.SplitPortion = streak
		s.DrivenSinceSplit = 0
		s.DutySinceSplit = 0
	default:
		s.DutySinceSplit += streak
	}
	return s
}

// Simulate folds Apply over events, left to right.
func Simulate(state domain.DriverHOSState, events []domain.DutyEvent, rules HOSRules) (domain.DriverHOSState, error) {
	if err := state.Validate(); err != nil {
		return state, err
	}
	s := state
	for i, ev := range events {
		next, err := Apply(s, ev, rules)
		if err != nil {
			return state, fmt.Errorf("simulate: event #%d: %w", i+1, err)
		}
		s = next
	}
	return s, nil
}
