package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/ports"
	"strings"
	"time"
)

// DistanceCache stores resolved legs in Postgres so re-plans of the same
// assignment do not hit the routing API again.
type DistanceCache struct {
	DB *sql.DB
	// Entries older than TTL are treated as misses. Zero keeps them forever.
	TTL time.Duration
}

func NewDistanceCache(db *sql.DB, ttl time.Duration) *DistanceCache {
	return &DistanceCache{DB: db, TTL: ttl}
}

// Get returns the cached leg and whether it was found.
func (c *DistanceCache) Get(ctx context.Context, origin, destination string) (ports.DistanceResult, bool, error) {
	if c.DB == nil {
		return ports.DistanceResult{}, false, errors.New("distance cache: db is nil")
	}
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return ports.DistanceResult{}, false, errors.New("get distance cache: origin and destination must not be empty")
	}

	q := `
	SELECT distance_meters, duration_seconds, updated_at
	FROM distance_cache
	WHERE origin = $1 AND destination = $2;
	`

	var r ports.DistanceResult
	var updated time.Time
	err := c.DB.QueryRowContext(ctx, q, origin, destination).Scan(&r.DistanceMeters, &r.DurationSeconds, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.DistanceResult{}, false, nil
	}
	if err != nil {
		return ports.DistanceResult{}, false, fmt.Errorf("get distance cache: %w", err)
	}
	if c.TTL > 0 && time.Since(updated) > c.TTL {
		return ports.DistanceResult{}, false, nil
	}
	return r, true, nil
}

func (c *DistanceCache) Put(ctx context.Context, origin, destination string, r ports.DistanceResult) error {
	if c.DB == nil {
		return errors.New("distance cache: db is nil")
	}
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return errors.New("put distance cache: origin and destination must not be empty")
	}

	_, err := c.DB.ExecContext(ctx, `
	INSERT INTO distance_cache (origin, destination, distance_meters, duration_seconds, updated_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds,
		updated_at = EXCLUDED.updated_at;
	`, origin, destination, r.DistanceMeters, r.DurationSeconds)
	if err != nil {
		return fmt.Errorf("put distance cache %q -> %q: %w", origin, destination, err)
	}
	return nil
}
