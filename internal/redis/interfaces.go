package redis

import (
	"context"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

// GeocodeCacheInterface defines the interface for cached place lookups.
type GeocodeCacheInterface interface {
	Get(ctx context.Context, text string) (domain.Coordinate, bool, error)
	Put(ctx context.Context, text string, coord domain.Coordinate) error
}

// Ensure concrete types implement interfaces.
var (
	_ GeocodeCacheInterface         = (*GeocodeCache)(nil)
	_ repository.TripRepository     = (*TripStore)(nil)
	_ repository.ExpenseRepository  = (*ExpenseStore)(nil)
	_ repository.CustomerRepository = (*CustomerStore)(nil)
	_ repository.DraftRepository    = (*DraftStore)(nil)
)
