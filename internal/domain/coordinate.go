package domain

import "time"

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position is one raw fix from the device position stream.
type Position struct {
	Coordinate
	Accuracy  float64   `json:"accuracy"` // meters, as reported by the device
	Timestamp time.Time `json:"timestamp"`
}
