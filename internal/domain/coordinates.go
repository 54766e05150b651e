package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// IsZero reports whether the coordinates were never set.
func (c Coordinates) IsZero() bool { return c.Lon == 0 && c.Lat == 0 }

// A place the vehicle can be: a street address, coordinates, or both.
type Location struct {
	Address     string      `json:"address,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

// Key returns the identifier handed to distance providers.
// Coordinates win over the address because they need no geocoding.
func (l Location) Key() string {
	if !l.Coordinates.IsZero() {
		return fmt.Sprintf("%.6f,%.6f", l.Coordinates.Lat, l.Coordinates.Lon)
	}
	return strings.Join(strings.Fields(l.Address), " ")
}

func (l Location) String() string {
	if l.Address != "" {
		return l.Address
	}
	return l.Key()
}

// ParseCoordinatesKey reverses Location.Key for coordinate keys ("lat,lon").
func ParseCoordinatesKey(key string) (Coordinates, bool) {
	latStr, lonStr, ok := strings.Cut(key, ",")
	if !ok {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return Coordinates{}, false
	}
	return Coordinates{Lon: lon, Lat: lat}, true
}
