package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ridelog/internal/domain"
)

const geocodeCachePrefix = "ridelog:geocode:"

// GeocodeCache maps normalized place names to coordinates.
type GeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGeocodeCache creates a new GeocodeCache. A zero ttl keeps entries forever.
func NewGeocodeCache(client *redis.Client, ttl time.Duration) *GeocodeCache {
	return &GeocodeCache{client: client, ttl: ttl}
}

// normalizeKey collapses whitespace and case so equivalent queries share an entry.
func normalizeKey(text string) string {
	return geocodeCachePrefix + strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Get returns the cached coordinate for text. ok is false on a cache miss.
func (c *GeocodeCache) Get(ctx context.Context, text string) (domain.Coordinate, bool, error) {
	data, err := c.client.Get(ctx, normalizeKey(text)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.Coordinate{}, false, nil
		}
		return domain.Coordinate{}, false, err
	}

	var coord domain.Coordinate
	if err := json.Unmarshal(data, &coord); err != nil {
		// Treat garbage as a miss; the next Put overwrites it.
		return domain.Coordinate{}, false, nil
	}
	return coord, true, nil
}

// Put stores the coordinate for text.
func (c *GeocodeCache) Put(ctx context.Context, text string, coord domain.Coordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, normalizeKey(text), data, c.ttl).Err()
}
