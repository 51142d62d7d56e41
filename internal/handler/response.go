package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridelog/internal/repository"
	"ridelog/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrMissingPickup),
		errors.Is(err, service.ErrInvalidFare),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidExpense),
		errors.Is(err, service.ErrInvalidCustomer):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrTripAlreadyActive),
		errors.Is(err, service.ErrNoActiveTrip),
		errors.Is(err, service.ErrRouteSuperseded),
		errors.Is(err, service.ErrResolveInFlight):
		return http.StatusConflict

	// Cannot be processed with what we know right now
	case errors.Is(err, service.ErrDestinationNotFound),
		errors.Is(err, service.ErrGPSUnavailable):
		return http.StatusUnprocessableEntity

	// Service unavailable
	case errors.Is(err, service.ErrRouteUnavailable),
		errors.Is(err, service.ErrLedgerUnavailable),
		errors.Is(err, service.ErrTrackerStopped):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
