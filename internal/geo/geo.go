// Package geo provides great-circle distance helpers used by tracking and
// route matching.
package geo

import (
	"math"

	"ridelog/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

const degToRad = math.Pi / 180

// DistanceKm returns the haversine distance between a and b in kilometers.
func DistanceKm(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// NearestIndex returns the index of the coordinate in path closest to p.
// Ties resolve to the lowest index. Returns -1 for an empty path.
func NearestIndex(p domain.Coordinate, path []domain.Coordinate) int {
	nearest := -1
	minDist := math.MaxFloat64

	for i := range path {
		d := DistanceKm(p, path[i])
		if d < minDist {
			minDist = d
			nearest = i
		}
	}

	return nearest
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Valid reports whether c lies within the valid latitude/longitude ranges.
func Valid(c domain.Coordinate) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Offset returns the coordinate reached by moving north and east by the given
// number of meters from c. It is accurate enough for the short hops used in
// fixtures and bounding boxes.
func Offset(c domain.Coordinate, northMeters, eastMeters float64) domain.Coordinate {
	const metersPerDegree = EarthRadiusKm * 1000 * degToRad
	return domain.Coordinate{
		Lat: c.Lat + northMeters/metersPerDegree,
		Lng: c.Lng + eastMeters/(metersPerDegree*math.Cos(c.Lat*degToRad)),
	}
}
