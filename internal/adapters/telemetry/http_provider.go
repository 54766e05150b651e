package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/platform/httpx"
	"hos-dispatch-service/internal/ports"
	"net/http"
	"net/url"
	"strings"
)

// HTTPProvider reads feeds from a telemetry gateway exposing
// GET {base}/assignments/{id}/{feed}. A 404 means the feed has no reading.
type HTTPProvider struct {
	client  *httpx.Client
	baseURL string
}

func NewHTTPProvider(baseURL string, client *httpx.Client) (*HTTPProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("telemetry: base URL is empty")
	}
	return &HTTPProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, id string, feed domain.TelemetryFeed, out any) error {
	endpoint := fmt.Sprintf("%s/assignments/%s/%s", p.baseURL, url.PathEscape(id), feed)

	resp, err := p.client.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return fmt.Errorf("%s for %s: %w", feed, id, ports.ErrFeedUnavailable)
		}
		return fmt.Errorf("%s for %s: %w", feed, id, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s for %s: decode: %w", feed, id, err)
	}
	return nil
}

func (p *HTTPProvider) DriverHOS(ctx context.Context, id string) (domain.HOSReading, error) {
	var r domain.HOSReading
	err := p.fetch(ctx, id, domain.FeedELD, &r)
	return r, err
}

func (p *HTTPProvider) Position(ctx context.Context, id string) (domain.PositionReading, error) {
	var r domain.PositionReading
	err := p.fetch(ctx, id, domain.FeedGPS, &r)
	return r, err
}

func (p *HTTPProvider) Fuel(ctx context.Context, id string) (domain.FuelReading, error) {
	var r domain.FuelReading
	err := p.fetch(ctx, id, domain.FeedFuel, &r)
	return r, err
}

func (p *HTTPProvider) Weather(ctx context.Context, id string) (domain.WeatherReading, error) {
	var r domain.WeatherReading
	err := p.fetch(ctx, id, domain.FeedWeather, &r)
	return r, err
}

func (p *HTTPProvider) Dock(ctx context.Context, id string) (domain.DockReading, error) {
	var r domain.DockReading
	err := p.fetch(ctx, id, domain.FeedDock, &r)
	return r, err
}
