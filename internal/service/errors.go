package service

import "errors"

var (
	// ErrMissingPickup is returned when a trip is started without a pickup label.
	ErrMissingPickup = errors.New("pickup location is required")

	// ErrInvalidFare is returned when a trip is ended with a fare <= 0.
	ErrInvalidFare = errors.New("fare must be greater than zero")

	// ErrTripAlreadyActive is returned when starting a trip while one is running.
	ErrTripAlreadyActive = errors.New("a trip is already active")

	// ErrNoActiveTrip is returned when ending or abandoning with no trip running.
	ErrNoActiveTrip = errors.New("no active trip")

	// ErrGPSUnavailable is returned when the route start cannot be resolved and no device position is known.
	ErrGPSUnavailable = errors.New("GPS not yet available")

	// ErrDestinationNotFound is returned when the destination cannot be geocoded.
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrRouteUnavailable is returned when the routing service fails.
	ErrRouteUnavailable = errors.New("route unavailable")

	// ErrRouteSuperseded is returned to a plan call whose result arrived after a newer plan call.
	ErrRouteSuperseded = errors.New("route superseded by a newer request")

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidExpense is returned when an expense has a bad amount or category.
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrInvalidCustomer is returned when a customer has no name.
	ErrInvalidCustomer = errors.New("invalid customer")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrLedgerUnavailable is returned when a ledger write failed, so the
	// trip, expense or customer may not be saved.
	ErrLedgerUnavailable = errors.New("ledger unavailable, data may not be saved")

	// ErrResolveInFlight is returned when a field already has a geocode lookup running.
	ErrResolveInFlight = errors.New("lookup already in progress for this field")

	// ErrTrackerStopped is returned when the tracker loop is no longer running.
	ErrTrackerStopped = errors.New("tracker stopped")
)
