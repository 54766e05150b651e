package domain

import "time"

type SegmentKind string

const (
	SegmentDrive SegmentKind = "drive"
	SegmentRest  SegmentKind = "rest"
	SegmentFuel  SegmentKind = "fuel"
	SegmentDock  SegmentKind = "dock"
)

type DriveDetails struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	DistanceMiles float64 `json:"distance_miles"`
	DurationHours float64 `json:"duration_hours"`
}

type RestDetails struct {
	Type          RestKind `json:"type"`
	DurationHours float64  `json:"duration_hours"`
	Reason        string   `json:"reason"`
}

type FuelDetails struct {
	Station        string  `json:"station"`
	Gallons        float64 `json:"gallons"`
	PricePerGallon float64 `json:"price_per_gallon"`
	Cost           float64 `json:"cost"`
	DetourMiles    float64 `json:"detour_miles"`
	DurationHours  float64 `json:"duration_hours"`
}

type DockDetails struct {
	StopID        string   `json:"stop_id"`
	Role          StopRole `json:"role"`
	Customer      string   `json:"customer,omitempty"`
	DurationHours float64  `json:"duration_hours"`
	WaitHours     float64  `json:"wait_hours,omitempty"`
	// Set when the dock dwell is logged off duty as part of a rest.
	CountsAsRest bool `json:"counts_as_rest,omitempty"`
}

// RouteSegment is one piece of a plan. Kind selects which detail pointer is set;
// the others are nil. HOSAfter is the driver's state once the segment completes.
type RouteSegment struct {
	Sequence int           `json:"sequence"`
	Kind     SegmentKind   `json:"kind"`
	StartAt  time.Time     `json:"start_at"`
	EndAt    time.Time     `json:"end_at"`
	Drive    *DriveDetails `json:"drive,omitempty"`
	Rest     *RestDetails  `json:"rest,omitempty"`
	Fuel     *FuelDetails  `json:"fuel,omitempty"`
	Dock     *DockDetails  `json:"dock,omitempty"`

	HOSAfter DriverHOSState `json:"hos_after"`
}

// Hours the segment occupies on the schedule.
func (s RouteSegment) DurationHours() float64 {
	return s.EndAt.Sub(s.StartAt).Hours()
}

// Priority biases tie-breaks between equally compliant choices.
type Priority string

const (
	MinimizeTime Priority = "MINIMIZE_TIME"
	MinimizeCost Priority = "MINIMIZE_COST"
	Balance      Priority = "BALANCE"
)

func (p Priority) Valid() bool {
	switch p {
	case MinimizeTime, MinimizeCost, Balance:
		return true
	}
	return false
}

// Limiting factors reported on infeasible plans and recommendations.
const (
	LimitDriveMargin       = "drive_margin"
	LimitDutyMargin        = "duty_margin"
	LimitAppointmentWindow = "appointment_window"
	LimitFuelRange         = "fuel_range"
)

// Represents the planned schedule for a single driver/vehicle assignment.
// A RoutePlan is immutable once stored; re-planning appends a new Version.
type RoutePlan struct {
	ID           string         `json:"id"`
	AssignmentID string         `json:"assignment_id"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	Priority     Priority       `json:"priority"`
	DepartAt     time.Time      `json:"depart_at"`
	ArriveAt     time.Time      `json:"arrive_at"`
	Segments     []RouteSegment `json:"segments"`

	TotalDistanceMiles float64 `json:"total_distance_miles"`
	TotalDriveHours    float64 `json:"total_drive_hours"`
	TotalDurationHours float64 `json:"total_duration_hours"`
	FuelCost           float64 `json:"fuel_cost"`
	TotalCost          float64 `json:"total_cost"`

	IsFeasible     bool    `json:"is_feasible"`
	LimitingFactor string  `json:"limiting_factor,omitempty"`
	ShortfallHours float64 `json:"shortfall_hours,omitempty"`

	Compliance ComplianceReport `json:"compliance"`
	FinalHOS   DriverHOSState   `json:"final_hos"`
}

// Clone returns a deep copy so stored versions cannot be mutated through a caller's pointer.
func (p *RoutePlan) Clone() *RoutePlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Segments = make([]RouteSegment, len(p.Segments))
	for i, s := range p.Segments {
		out.Segments[i] = s.clone()
	}
	out.Compliance = p.Compliance.Clone()
	return &out
}

func (s RouteSegment) clone() RouteSegment {
	out := s
	if s.Drive != nil {
		d := *s.Drive
		out.Drive = &d
	}
	if s.Rest != nil {
		r := *s.Rest
		out.Rest = &r
	}
	if s.Fuel != nil {
		f := *s.Fuel
		out.Fuel = &f
	}
	if s.Dock != nil {
		d := *s.Dock
		out.Dock = &d
	}
	return out
}
