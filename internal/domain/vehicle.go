package domain

// Represents the live state of the tractor assigned to a driver.
type VehicleState struct {
	VehicleID           string   `json:"vehicle_id"`
	FuelRangeMiles      float64  `json:"fuel_range_miles"`
	TankCapacityGallons float64  `json:"tank_capacity_gallons"`
	MilesPerGallon      float64  `json:"miles_per_gallon"`
	Location            Location `json:"location"`
}

// Range on a full tank.
func (v VehicleState) FullRangeMiles() float64 {
	return v.TankCapacityGallons * v.MilesPerGallon
}

func (v VehicleState) Validate() error {
	if v.FuelRangeMiles < 0 {
		return NewValidationError("vehicle.fuel_range_miles", "must not be negative")
	}
	if v.TankCapacityGallons <= 0 {
		return NewValidationError("vehicle.tank_capacity_gallons", "must be positive")
	}
	if v.MilesPerGallon <= 0 {
		return NewValidationError("vehicle.miles_per_gallon", "must be positive")
	}
	if v.FuelRangeMiles > v.FullRangeMiles()+1e-6 {
		return NewValidationError("vehicle.fuel_range_miles", "%.1f exceeds full-tank range %.1f", v.FuelRangeMiles, v.FullRangeMiles())
	}
	if v.Location.Key() == "" {
		return NewValidationError("vehicle.location", "must be set")
	}
	return nil
}
