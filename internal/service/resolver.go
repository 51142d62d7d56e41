package service

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
)

const minResolveLength = 3

// Geocoder resolves free text to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (domain.Coordinate, error)
}

// GeocodeCache caches geocoder results by query text.
type GeocodeCache interface {
	Get(ctx context.Context, text string) (domain.Coordinate, bool, error)
	Put(ctx context.Context, text string, coord domain.Coordinate) error
}

// LocationResolver turns place names into coordinates. It never returns an
// error for lookup failures; those resolve to not-found.
type LocationResolver struct {
	geocoder           Geocoder
	cache              GeocodeCache
	currentLocationTag string

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewLocationResolver creates a new LocationResolver. cache may be nil.
func NewLocationResolver(geocoder Geocoder, cache GeocodeCache, currentLocationTag string) *LocationResolver {
	return &LocationResolver{
		geocoder:           geocoder,
		cache:              cache,
		currentLocationTag: currentLocationTag,
		inFlight:           make(map[string]bool),
	}
}

// IsCurrentLocation reports whether text is the "use device location" sentinel.
func (r *LocationResolver) IsCurrentLocation(text string) bool {
	return strings.TrimSpace(text) == r.currentLocationTag
}

// Resolve returns the coordinate for text, or false when it cannot be found.
// Short text and the current-location sentinel never reach the geocoder.
func (r *LocationResolver) Resolve(ctx context.Context, text string) (domain.Coordinate, bool) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minResolveLength || text == r.currentLocationTag {
		return domain.Coordinate{}, false
	}

	log := logrus.WithFields(logrus.Fields{
		"component": "resolver",
		"query":     text,
	})

	if r.cache != nil {
		coord, ok, err := r.cache.Get(ctx, text)
		if err != nil {
			log.WithError(err).Warn("geocode cache read failed")
		} else if ok {
			return coord, true
		}
	}

	coord, err := r.geocoder.Geocode(ctx, text)
	if err != nil {
		log.WithError(err).Warn("geocode failed")
		return domain.Coordinate{}, false
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, text, coord); err != nil {
			log.WithError(err).Warn("geocode cache write failed")
		}
	}

	return coord, true
}

// ResolveField is Resolve guarded per input field: while a lookup for field
// is running, further calls for the same field return ErrResolveInFlight.
func (r *LocationResolver) ResolveField(ctx context.Context, field, text string) (domain.Coordinate, bool, error) {
	r.mu.Lock()
	if r.inFlight[field] {
		r.mu.Unlock()
		return domain.Coordinate{}, false, ErrResolveInFlight
	}
	r.inFlight[field] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, field)
		r.mu.Unlock()
	}()

	coord, ok := r.Resolve(ctx, text)
	return coord, ok, nil
}
