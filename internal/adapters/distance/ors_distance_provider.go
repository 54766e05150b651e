package distance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/adapters/cache"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/platform/httpx"
	"hos-dispatch-service/internal/platform/obs"
	"hos-dispatch-service/internal/ports"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ORSDistanceProvider resolves legs with OpenRouteService using the heavy-goods
// vehicle profile. Coordinate keys are sent as-is; address keys are geocoded
// first. Both lookups go through the Postgres caches when configured.
//
// Safe for concurrent use.
type ORSDistanceProvider struct {
	client        *httpx.Client
	apiKey        string
	baseURL       string
	profile       string
	country       string
	distanceCache *cache.DistanceCache
	geocodeCache  *cache.GeocodeCache
	logger        *slog.Logger
}

type ORSOption func(*ORSDistanceProvider)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSDistanceProvider) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithCaches(d *cache.DistanceCache, g *cache.GeocodeCache) ORSOption {
	return func(o *ORSDistanceProvider) {
		o.distanceCache = d
		o.geocodeCache = g
	}
}

// WithCountry limits geocoding to one ISO 3166 country code.
func WithCountry(code string) ORSOption {
	return func(o *ORSDistanceProvider) { o.country = code }
}

func WithHTTPClient(c *httpx.Client) ORSOption {
	return func(o *ORSDistanceProvider) { o.client = c }
}

func NewORSDistanceProvider(apiKey string, logger *slog.Logger, opts ...ORSOption) (*ORSDistanceProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	o := &ORSDistanceProvider{
		// The public ORS plan allows 40 matrix requests per minute.
		client:  httpx.New(10*time.Second, 0.6),
		apiKey:  apiKey,
		baseURL: "https://api.openrouteservice.org",
		profile: "driving-hgv",
		country: "US",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *ORSDistanceProvider) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (o *ORSDistanceProvider) GetDistance(
	ctx context.Context,
	origin string,
	destination string,
) (_ ports.DistanceResult, err error) {
	defer obs.Time(ctx, o.logger, "ors.GetDistance")(&err)

	origin = strings.Join(strings.Fields(origin), " ")
	destination = strings.Join(strings.Fields(destination), " ")
	if origin == "" || destination == "" {
		return ports.DistanceResult{}, errors.New("get ORS distance: origin and destination must be non-empty")
	}
	if origin == destination {
		return ports.DistanceResult{}, nil
	}

	// Check persistent distance cache before issuing external API calls.
	if o.distanceCache != nil {
		r, ok, err := o.distanceCache.Get(ctx, origin, destination)
		if err != nil {
			o.logger.Warn("distance cache read failed", "origin", origin, "destination", destination, "err", err)
		} else if ok {
			return r, nil
		}
	}

	from, err := o.resolve(ctx, origin)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance: origin %q: %w", origin, err)
	}
	to, err := o.resolve(ctx, destination)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance: destination %q: %w", destination, err)
	}

	r, err := o.fetchLeg(ctx, from, to)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance %q -> %q: %w", origin, destination, err)
	}

	if o.distanceCache != nil {
		if err := o.distanceCache.Put(ctx, origin, destination, r); err != nil {
			o.logger.Warn("distance cache write failed", "err", err)
		}
	}
	return r, nil
}

// resolve turns a location key into coordinates.
func (o *ORSDistanceProvider) resolve(ctx context.Context, key string) (domain.Coordinates, error) {
	if c, ok := domain.ParseCoordinatesKey(key); ok {
		return c, nil
	}

	if o.geocodeCache != nil {
		c, ok, err := o.geocodeCache.Get(ctx, key)
		if err != nil {
			o.logger.Warn("geocode cache read failed", "address", key, "err", err)
		} else if ok {
			return c, nil
		}
	}

	c, err := o.geocode(ctx, key)
	if err != nil {
		return domain.Coordinates{}, err
	}

	if o.geocodeCache != nil {
		if err := o.geocodeCache.Put(ctx, key, c); err != nil {
			o.logger.Warn("geocode cache write failed", "err", err)
		}
	}
	return c, nil
}
