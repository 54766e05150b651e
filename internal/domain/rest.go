package domain

import "time"

// RestKind is the outcome of a rest recommendation and the type of a Rest segment.
type RestKind string

const (
	RestNone    RestKind = "no_rest"
	RestBreak   RestKind = "break"
	RestPartial RestKind = "partial_rest"
	RestFull    RestKind = "full_rest"
)

// An upcoming point where the driver could stop.
type RestOpportunity struct {
	CurrentTime            time.Time `json:"current_time"`
	DockDurationHours      float64   `json:"dock_duration_hours"`
	RemainingDistanceMiles float64   `json:"remaining_distance_miles"`
	Destination            string    `json:"destination,omitempty"`
	// Zero means no hard appointment.
	AppointmentTime time.Time `json:"appointment_time,omitempty"`
}

// Dispatcher rest preferences.
type RestPolicy struct {
	PreferFullRest bool `json:"prefer_full_rest" yaml:"prefer_full_rest"`
	AllowDockRest  bool `json:"allow_dock_rest" yaml:"allow_dock_rest"`
	// Partial rest must save at least this many schedule hours over a full rest.
	MinPartialSavingsHours float64 `json:"min_partial_savings_hours,omitempty" yaml:"min_partial_savings_hours"`
}

type FeasibilityAnalysis struct {
	Feasible              bool     `json:"feasible"`
	TotalDriveNeededHours float64  `json:"total_drive_needed_hours"`
	DriveMarginHours      float64  `json:"drive_margin_hours"`
	DutyMarginHours       float64  `json:"duty_margin_hours"`
	RestRequired          bool     `json:"rest_required"`
	HoursUntilAppointment *float64 `json:"hours_until_appointment,omitempty"`
	LimitingFactor        string   `json:"limiting_factor,omitempty"`
	ShortfallHours        float64  `json:"shortfall_hours,omitempty"`
}

type OpportunityAnalysis struct {
	DockScore           float64 `json:"dock_score"`
	HoursScore          float64 `json:"hours_score"`
	CriticalityScore    float64 `json:"criticality_score"`
	PartialDeficitHours float64 `json:"partial_deficit_hours"`
	HoursGainable       float64 `json:"hours_gainable"`
}

type CostAnalysis struct {
	FullRestHours    float64 `json:"full_rest_hours"`
	FullRestCost     float64 `json:"full_rest_cost"`
	PartialRestHours float64 `json:"partial_rest_hours"`
	PartialRestCost  float64 `json:"partial_rest_cost"`
	NoRestAllowed    bool    `json:"no_rest_allowed"`
	TimeSavedHours   float64 `json:"time_saved_hours"`
}

type RestRecommendation struct {
	Recommendation           RestKind            `json:"recommendation"`
	RecommendedDurationHours float64             `json:"recommended_duration_hours"`
	IsCompliant              bool                `json:"is_compliant"`
	DriverCanDecline         bool                `json:"driver_can_decline"`
	Confidence               float64             `json:"confidence"`
	Reasoning                string              `json:"reasoning"`
	HoursAfterRestDrive      float64             `json:"hours_after_rest_drive"`
	HoursAfterRestDuty       float64             `json:"hours_after_rest_duty"`
	Feasibility              FeasibilityAnalysis `json:"feasibility"`
	Opportunity              OpportunityAnalysis `json:"opportunity"`
	Cost                     CostAnalysis        `json:"cost"`
}
