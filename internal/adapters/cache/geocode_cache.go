package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"strings"
)

// GeocodeCache maps normalized addresses to coordinates.
type GeocodeCache struct {
	DB *sql.DB
}

func NewGeocodeCache(db *sql.DB) *GeocodeCache {
	return &GeocodeCache{DB: db}
}

func (c *GeocodeCache) Get(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	if c.DB == nil {
		return domain.Coordinates{}, false, errors.New("geocode cache: db is nil")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinates{}, false, errors.New("get geocode cache: address must not be empty")
	}

	var coords domain.Coordinates
	err := c.DB.QueryRowContext(ctx,
		`SELECT lon, lat FROM geocode_cache WHERE address = $1;`, address,
	).Scan(&coords.Lon, &coords.Lat)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Coordinates{}, false, nil
	}
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return coords, true, nil
}

func (c *GeocodeCache) Put(ctx context.Context, address string, coords domain.Coordinates) error {
	if c.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return errors.New("put geocode cache: address must not be empty")
	}

	_, err := c.DB.ExecContext(ctx, `
	INSERT INTO geocode_cache (address, lon, lat)
	VALUES ($1, $2, $3)
	ON CONFLICT (address) DO UPDATE
	SET lon = EXCLUDED.lon, lat = EXCLUDED.lat;
	`, address, coords.Lon, coords.Lat)
	if err != nil {
		return fmt.Errorf("put geocode cache %q: %w", address, err)
	}
	return nil
}
