package domain

import "time"

type StopRole string

const (
	StopPickup   StopRole = "pickup"
	StopDelivery StopRole = "delivery"
)

// Time window in which the stop can be serviced. Zero values leave that side open.
// A non-zero Latest is a hard appointment.
type TimeWindow struct {
	Earliest time.Time `json:"earliest,omitempty"`
	Latest   time.Time `json:"latest,omitempty"`
}

// Represents a single pickup or delivery on an assignment.
type Stop struct {
	ID        string     `json:"id"`
	Location  Location   `json:"location"`
	Role      StopRole   `json:"role"`
	Window    TimeWindow `json:"window"`
	DockHours *float64   `json:"dock_hours,omitempty"`
	Customer  string     `json:"customer,omitempty"`
}

// HasAppointment reports whether the stop must be reached by Window.Latest.
func (s Stop) HasAppointment() bool { return !s.Window.Latest.IsZero() }

func (s Stop) Validate() error {
	if s.ID == "" {
		return NewValidationError("stop.id", "must be set")
	}
	if s.Location.Key() == "" {
		return NewValidationError("stop.location", "stop %s has no location", s.ID)
	}
	if s.Role != StopPickup && s.Role != StopDelivery {
		return NewValidationError("stop.role", "stop %s has unknown role %q", s.ID, s.Role)
	}
	if s.DockHours != nil && *s.DockHours < 0 {
		return NewValidationError("stop.dock_hours", "stop %s has negative dock hours", s.ID)
	}
	if !s.Window.Earliest.IsZero() && !s.Window.Latest.IsZero() && s.Window.Latest.Before(s.Window.Earliest) {
		return NewValidationError("stop.window", "stop %s window closes before it opens", s.ID)
	}
	return nil
}
