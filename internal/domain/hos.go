package domain

import "math"

// DutyType is the kind of time recorded on a driver's log.
type DutyType string

const (
	DutyDrive  DutyType = "drive"
	DutyOnDuty DutyType = "on_duty"
	DutyBreak  DutyType = "break"
	DutyRest   DutyType = "rest"
)

func (t DutyType) Valid() bool {
	switch t {
	case DutyDrive, DutyOnDuty, DutyBreak, DutyRest:
		return true
	}
	return false
}

// OffDuty reports whether the duty type stops the driving clocks.
func (t DutyType) OffDuty() bool { return t == DutyBreak || t == DutyRest }

// A single entry on the driver's log.
type DutyEvent struct {
	Type          DutyType `json:"type"`
	DurationHours float64  `json:"duration_hours"`
}

// DriverHOSState holds a driver's regulatory counters, in hours.
//
// The first four fields are the regulated clocks. The remaining fields are the
// bookkeeping needed to recognise split off-duty periods; they are part of the
// value so that the state stays a pure function of the event sequence.
type DriverHOSState struct {
	HoursDriven              float64 `json:"hours_driven"`
	OnDutyTime               float64 `json:"on_duty_time"`
	HoursSinceBreak          float64 `json:"hours_since_break"`
	HoursSinceQualifyingRest float64 `json:"hours_since_qualifying_rest"`

	// Length of the current uninterrupted off-duty stretch; zero while on duty.
	OffDutyStreak float64 `json:"off_duty_streak,omitempty"`
	// Last completed off-duty stretch long enough to pair into a split rest.
	SplitPortion float64 `json:"split_portion,omitempty"`
	// Time accrued since SplitPortion ended.
	DrivenSinceSplit float64 `json:"driven_since_split,omitempty"`
	DutySinceSplit   float64 `json:"duty_since_split,omitempty"`
}

// Validate rejects states no event sequence could have produced.
func (s DriverHOSState) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"hours_driven", s.HoursDriven},
		{"on_duty_time", s.OnDutyTime},
		{"hours_since_break", s.HoursSinceBreak},
		{"hours_since_qualifying_rest", s.HoursSinceQualifyingRest},
		{"off_duty_streak", s.OffDutyStreak},
		{"split_portion", s.SplitPortion},
		{"driven_since_split", s.DrivenSinceSplit},
		{"duty_since_split", s.DutySinceSplit},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return NewValidationError(f.name, "must be a finite number")
		}
		if f.v < 0 {
			return NewValidationError(f.name, "must not be negative (got %.2f)", f.v)
		}
	}
	if s.HoursDriven > s.OnDutyTime+1e-9 {
		return NewValidationError("hours_driven", "%.2f exceeds on_duty_time %.2f", s.HoursDriven, s.OnDutyTime)
	}
	return nil
}
