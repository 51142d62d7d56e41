package domain

import "time"

// TripStatus represents the lifecycle state of a trip.
type TripStatus string

const (
	TripStatusActive    TripStatus = "ACTIVE"
	TripStatusCompleted TripStatus = "COMPLETED"
)

// DropoffUnspecified is recorded when the driver finishes without a dropoff label.
const DropoffUnspecified = "Unspecified"

// Trip is one driver engagement from pickup to fare collection.
type Trip struct {
	ID               string        `json:"id"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"` // set iff Status is COMPLETED
	DistanceKm       float64       `json:"distance_km"`
	Fare             float64       `json:"fare"`
	Commission       float64       `json:"commission"`
	FuelCostEstimate float64       `json:"fuel_cost_estimate"`
	Pickup           string        `json:"pickup"`
	Dropoff          string        `json:"dropoff"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	CustomerID       string        `json:"customer_id,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Path             []Coordinate  `json:"path"`
	Status           TripStatus    `json:"status"`
}

// Clone returns a deep copy; the path slice is never shared.
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.EndedAt != nil {
		ended := *t.EndedAt
		c.EndedAt = &ended
	}
	c.Path = append([]Coordinate(nil), t.Path...)
	return &c
}

// Duration is the wall-clock length of a completed trip.
func (t *Trip) Duration() time.Duration {
	if t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// TripDraft is the persisted form of an in-progress trip, used to recover
// an ACTIVE trip after the process restarts.
type TripDraft struct {
	Trip           *Trip       `json:"trip"`
	ElapsedSeconds int64       `json:"elapsed_seconds"`
	Anchor         *Coordinate `json:"anchor,omitempty"` // last retained sample, for distance accumulation
	SavedAt        time.Time   `json:"saved_at"`
}

// Receipt is a printable summary of a completed trip.
type Receipt struct {
	TripID        string
	Pickup        string
	Dropoff       string
	Fare          float64
	Commission    float64
	NetEarnings   float64
	PaymentMethod PaymentMethod
	Duration      time.Duration
	DistanceKm    float64
	StartedAt     time.Time
	EndedAt       time.Time
}
