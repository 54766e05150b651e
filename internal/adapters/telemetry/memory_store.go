package telemetry

import (
	"context"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
	"sync"
	"time"
)

// Update carries any subset of readings pushed for one assignment.
type Update struct {
	HOS      *domain.HOSReading      `json:"hos,omitempty"`
	Position *domain.PositionReading `json:"position,omitempty"`
	Fuel     *domain.FuelReading     `json:"fuel,omitempty"`
	Weather  *domain.WeatherReading  `json:"weather,omitempty"`
	Dock     *domain.DockReading     `json:"dock,omitempty"`
}

func (u Update) Empty() bool {
	return u.HOS == nil && u.Position == nil && u.Fuel == nil && u.Weather == nil && u.Dock == nil
}

type entry struct {
	update   Update
	received map[domain.TelemetryFeed]time.Time
}

// MemoryStore keeps the latest pushed readings per assignment and serves them as a
// TelemetryProvider. Readings older than StaleAfter count as unavailable.
type MemoryStore struct {
	StaleAfter time.Duration
	Now        func() time.Time

	mu sync.RWMutex
	m  map[string]*entry
}

func NewMemoryStore(staleAfter time.Duration) *MemoryStore {
	return &MemoryStore{StaleAfter: staleAfter, Now: time.Now, m: make(map[string]*entry)}
}

// Push merges u into the stored readings for the assignment.
func (s *MemoryStore) Push(assignmentID string, u Update) {
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[assignmentID]
	if !ok {
		e = &entry{received: make(map[domain.TelemetryFeed]time.Time)}
		s.m[assignmentID] = e
	}
	if u.HOS != nil {
		r := *u.HOS
		e.update.HOS = &r
		e.received[domain.FeedELD] = now
	}
	if u.Position != nil {
		r := *u.Position
		e.update.Position = &r
		e.received[domain.FeedGPS] = now
	}
	if u.Fuel != nil {
		r := *u.Fuel
		e.update.Fuel = &r
		e.received[domain.FeedFuel] = now
	}
	if u.Weather != nil {
		r := *u.Weather
		e.update.Weather = &r
		e.received[domain.FeedWeather] = now
	}
	if u.Dock != nil {
		r := *u.Dock
		e.update.Dock = &r
		e.received[domain.FeedDock] = now
	}
}

// Forget drops every reading for the assignment.
func (s *MemoryStore) Forget(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, assignmentID)
}

func (s *MemoryStore) lookup(ctx context.Context, assignmentID string, feed domain.TelemetryFeed) (Update, error) {
	if err := ctx.Err(); err != nil {
		return Update{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.m[assignmentID]
	if !ok {
		return Update{}, fmt.Errorf("%s for %s: %w", feed, assignmentID, ports.ErrFeedUnavailable)
	}
	at, ok := e.received[feed]
	if !ok {
		return Update{}, fmt.Errorf("%s for %s: %w", feed, assignmentID, ports.ErrFeedUnavailable)
	}
	if s.StaleAfter > 0 && s.Now().Sub(at) > s.StaleAfter {
		return Update{}, fmt.Errorf("%s for %s: stale since %s: %w", feed, assignmentID, at.Format(time.RFC3339), ports.ErrFeedUnavailable)
	}
	return e.update, nil
}

func (s *MemoryStore) DriverHOS(ctx context.Context, id string) (domain.HOSReading, error) {
	u, err := s.lookup(ctx, id, domain.FeedELD)
	if err != nil {
		return domain.HOSReading{}, err
	}
	return *u.HOS, nil
}

func (s *MemoryStore) Position(ctx context.Context, id string) (domain.PositionReading, error) {
	u, err := s.lookup(ctx, id, domain.FeedGPS)
	if err != nil {
		return domain.PositionReading{}, err
	}
	return *u.Position, nil
}

func (s *MemoryStore) Fuel(ctx context.Context, id string) (domain.FuelReading, error) {
	u, err := s.lookup(ctx, id, domain.FeedFuel)
	if err != nil {
		return domain.FuelReading{}, err
	}
	return *u.Fuel, nil
}

func (s *MemoryStore) Weather(ctx context.Context, id string) (domain.WeatherReading, error) {
	u, err := s.lookup(ctx, id, domain.FeedWeather)
	if err != nil {
		return domain.WeatherReading{}, err
	}
	return *u.Weather, nil
}

func (s *MemoryStore) Dock(ctx context.Context, id string) (domain.DockReading, error) {
	u, err := s.lookup(ctx, id, domain.FeedDock)
	if err != nil {
		return domain.DockReading{}, err
	}
	return *u.Dock, nil
}
