package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"net/http"
)

// Below this Pelias confidence a match is usually the city centroid, which can be
// tens of miles from the dock.
const minGeocodeConfidence = 0.6

type geocodeFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"properties"`
}

type geocodeResponse struct {
	Features []geocodeFeature `json:"features"`
}

// geocode resolves a stop address to dock-level coordinates.
func (o *ORSDistanceProvider) geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	resp, err := o.client.Do(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, o.baseURL+"/geocode/search", nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("boundary.country", o.country)
		q.Set("layers", "address,street,venue")
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: decode response: %w", address, err)
	}
	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: no match", address)
	}

	f := decoded.Features[0]
	if f.Properties.Confidence > 0 && f.Properties.Confidence < minGeocodeConfidence {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: best match %q has confidence %.2f", address, f.Properties.Label, f.Properties.Confidence)
	}
	if len(f.Geometry.Coordinates) != 2 {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: malformed coordinates", address)
	}
	return domain.Coordinates{Lon: f.Geometry.Coordinates[0], Lat: f.Geometry.Coordinates[1]}, nil
}
