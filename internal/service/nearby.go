package service

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
	"ridelog/internal/mapview"
	"ridelog/internal/provider/overpass"
)

// POISource fetches points of interest and street names around a position.
type POISource interface {
	Nearby(ctx context.Context, center domain.Coordinate, radiusM int) (*overpass.Result, error)
}

// NearbyRefresher redraws the POI and street-label overlays around the
// driver. At most one fetch runs at a time; calls made while one is running
// are dropped, not queued.
type NearbyRefresher struct {
	source  POISource
	view    mapview.View
	radiusM int

	busy atomic.Bool
	log  *logrus.Entry
}

// NewNearbyRefresher creates a new NearbyRefresher.
func NewNearbyRefresher(source POISource, view mapview.View, radiusM int) *NearbyRefresher {
	return &NearbyRefresher{
		source:  source,
		view:    view,
		radiusM: radiusM,
		log:     logrus.WithField("component", "nearby"),
	}
}

// Refresh starts a background fetch around position and returns true, or
// returns false when a fetch is already in flight.
func (r *NearbyRefresher) Refresh(ctx context.Context, position domain.Coordinate) bool {
	if !r.busy.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer r.busy.Store(false)
		r.fetch(ctx, position)
	}()

	return true
}

// Busy reports whether a fetch is in flight.
func (r *NearbyRefresher) Busy() bool {
	return r.busy.Load()
}

func (r *NearbyRefresher) fetch(ctx context.Context, position domain.Coordinate) {
	result, err := r.source.Nearby(ctx, position, r.radiusM)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"lat": position.Lat,
			"lng": position.Lng,
		}).Warn("nearby points refresh failed")
		return
	}

	pois := make([]domain.POI, 0, len(result.POIs))
	for _, p := range result.POIs {
		if p.Name == "" {
			continue
		}
		pois = append(pois, p)
	}

	labels := make([]domain.StreetLabel, 0, len(result.Streets))
	for _, s := range result.Streets {
		if s.Name == "" {
			continue
		}
		labels = append(labels, s)
	}

	r.view.SetPOIs(pois)
	r.view.SetStreetLabels(labels)

	r.log.WithFields(logrus.Fields{
		"pois":    len(pois),
		"streets": len(labels),
	}).Debug("nearby points refreshed")
}
