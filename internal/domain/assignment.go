package domain

// Assignment is an active driving job the monitor evaluates each tick.
type Assignment struct {
	ID             string         `json:"id"`
	DriverID       string         `json:"driver_id"`
	Stops          []Stop         `json:"stops"`
	CompletedStops int            `json:"completed_stops"`
	Driver         DriverHOSState `json:"driver"`
	Vehicle        VehicleState   `json:"vehicle"`
	Priority       Priority       `json:"priority"`
	RestPolicy     RestPolicy     `json:"rest_policy"`
	FuelStations   []FuelStation  `json:"fuel_stations,omitempty"`
	// Current plan version, if any.
	Plan *RoutePlan `json:"plan,omitempty"`
}

// RemainingStops returns the stops not yet serviced.
func (a Assignment) RemainingStops() []Stop {
	if a.CompletedStops >= len(a.Stops) {
		return nil
	}
	if a.CompletedStops < 0 {
		return a.Stops
	}
	return a.Stops[a.CompletedStops:]
}

// NextStop returns the next stop to service, if any.
func (a Assignment) NextStop() (Stop, bool) {
	rem := a.RemainingStops()
	if len(rem) == 0 {
		return Stop{}, false
	}
	return rem[0], true
}

// A fuel station candidate near the planned corridor.
type FuelStation struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Location       Location `json:"location"`
	DetourMiles    float64  `json:"detour_miles"`
	PricePerGallon float64  `json:"price_per_gallon"`
}
