package domain

import "time"

// TelemetryFeed names one upstream telemetry source behind the provider adapter.
type TelemetryFeed string

const (
	FeedELD     TelemetryFeed = "eld"
	FeedGPS     TelemetryFeed = "gps"
	FeedFuel    TelemetryFeed = "fuel"
	FeedWeather TelemetryFeed = "weather"
	FeedDock    TelemetryFeed = "dock"
)

var AllFeeds = []TelemetryFeed{FeedELD, FeedGPS, FeedFuel, FeedWeather, FeedDock}

// HOSReading is the driver's log as reported by the ELD.
type HOSReading struct {
	State      DriverHOSState `json:"state"`
	DutyStatus DutyType       `json:"duty_status"`
	ReportedAt time.Time      `json:"reported_at"`
}

type PositionReading struct {
	Coordinates         Coordinates `json:"coordinates"`
	SpeedMph            float64     `json:"speed_mph"`
	SpeedLimitMph       float64     `json:"speed_limit_mph,omitempty"`
	StoppedSince        time.Time   `json:"stopped_since,omitempty"`
	RouteDeviationMiles float64     `json:"route_deviation_miles"`
	// Miles still to drive to the next stop along the planned route.
	RemainingMiles float64   `json:"remaining_miles"`
	TrafficDelay   float64   `json:"traffic_delay_minutes"`
	ETA            time.Time `json:"eta,omitempty"`
	ReportedAt     time.Time `json:"reported_at"`
}

type FuelReading struct {
	RangeMiles     float64   `json:"range_miles"`
	FuelPct        float64   `json:"fuel_pct"`
	PricePerGallon float64   `json:"price_per_gallon,omitempty"`
	ReportedAt     time.Time `json:"reported_at"`
}

type WeatherReading struct {
	// none, minor, moderate, severe, extreme
	Severity        string    `json:"severity"`
	Condition       string    `json:"condition"`
	WindMph         float64   `json:"wind_mph"`
	VisibilityMiles float64   `json:"visibility_miles"`
	ReportedAt      time.Time `json:"reported_at"`
}

type DockReading struct {
	AtDock              bool      `json:"at_dock"`
	InWindow            bool      `json:"in_window"`
	StopID              string    `json:"stop_id,omitempty"`
	ArrivedAt           time.Time `json:"arrived_at,omitempty"`
	ScheduledDwellHours float64   `json:"scheduled_dwell_hours"`
	// Expected remaining dwell reported by the facility.
	ExpectedDwellHours float64   `json:"expected_dwell_hours"`
	ReportedAt         time.Time `json:"reported_at"`
}

// TelemetrySnapshot gathers the latest readings for one assignment.
// A nil reading means the feed was unavailable for this tick and is listed in Missing.
type TelemetrySnapshot struct {
	AssignmentID string                   `json:"assignment_id"`
	CapturedAt   time.Time                `json:"captured_at"`
	HOS          *HOSReading              `json:"hos,omitempty"`
	Position     *PositionReading         `json:"position,omitempty"`
	Fuel         *FuelReading             `json:"fuel,omitempty"`
	Weather      *WeatherReading          `json:"weather,omitempty"`
	Dock         *DockReading             `json:"dock,omitempty"`
	Missing      map[TelemetryFeed]string `json:"missing,omitempty"`
}

// Has reports whether the feed delivered a reading.
func (s TelemetrySnapshot) Has(feed TelemetryFeed) bool {
	switch feed {
	case FeedELD:
		return s.HOS != nil
	case FeedGPS:
		return s.Position != nil
	case FeedFuel:
		return s.Fuel != nil
	case FeedWeather:
		return s.Weather != nil
	case FeedDock:
		return s.Dock != nil
	}
	return false
}

// MarkMissing records why a feed has no reading this tick.
func (s *TelemetrySnapshot) MarkMissing(feed TelemetryFeed, reason string) {
	if s.Missing == nil {
		s.Missing = make(map[TelemetryFeed]string)
	}
	s.Missing[feed] = reason
}
