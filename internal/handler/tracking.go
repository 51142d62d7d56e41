package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ridelog/internal/domain"
	"ridelog/internal/service"
)

// TrackingHandler handles HTTP requests for live trip tracking.
type TrackingHandler struct {
	tracker  *service.Tracker
	resolver *service.LocationResolver
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(tracker *service.Tracker, resolver *service.LocationResolver) *TrackingHandler {
	return &TrackingHandler{
		tracker:  tracker,
		resolver: resolver,
	}
}

// PositionRequest is one device position fix.
type PositionRequest struct {
	Lat       *float64  `json:"lat" binding:"required"`
	Lng       *float64  `json:"lng" binding:"required"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// StartTripRequest is the HTTP request body for starting a trip.
type StartTripRequest struct {
	Pickup        string `json:"pickup"`
	Dropoff       string `json:"dropoff,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"` // CASH, CARD, EXTERNAL_PAYOUT
	CustomerID    string `json:"customer_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// EndTripRequest is the HTTP request body for ending a trip.
type EndTripRequest struct {
	Fare          float64 `json:"fare"`
	Dropoff       string  `json:"dropoff,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	CustomerID    string  `json:"customer_id,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// PlanRouteRequest is the HTTP request body for planning a route.
type PlanRouteRequest struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff" binding:"required"`
}

// GeocodeResponse is the HTTP response for a place lookup.
type GeocodeResponse struct {
	Query string             `json:"query"`
	Found bool               `json:"found"`
	Point *domain.Coordinate `json:"point,omitempty"`
}

// UpdatePosition handles POST /v1/positions
func (h *TrackingHandler) UpdatePosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	err := h.tracker.UpdatePosition(c.Request.Context(), domain.Position{
		Coordinate: domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng},
		Accuracy:   req.Accuracy,
		Timestamp:  ts,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTracking handles GET /v1/tracking
func (h *TrackingHandler) GetTracking(c *gin.Context) {
	snap, err := h.tracker.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snap)
}

// StartTrip handles POST /v1/tracking/start
func (h *TrackingHandler) StartTrip(c *gin.Context) {
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tracker.StartTrip(c.Request.Context(), service.StartTripRequest{
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		PaymentMethod: domain.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, trip)
}

// EndTrip handles POST /v1/tracking/end
func (h *TrackingHandler) EndTrip(c *gin.Context) {
	var req EndTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tracker.EndTrip(c.Request.Context(), service.EndTripRequest{
		Fare:          req.Fare,
		Dropoff:       req.Dropoff,
		PaymentMethod: domain.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, trip)
}

// AbandonTrip handles POST /v1/tracking/abandon
func (h *TrackingHandler) AbandonTrip(c *gin.Context) {
	trip, err := h.tracker.AbandonTrip(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, trip)
}

// PlanRoute handles POST /v1/tracking/route
func (h *TrackingHandler) PlanRoute(c *gin.Context) {
	var req PlanRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	route, err := h.tracker.PlanRoute(c.Request.Context(), req.Pickup, req.Dropoff)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, route)
}

// Geocode handles GET /v1/geocode?q=&field=
func (h *TrackingHandler) Geocode(c *gin.Context) {
	query := c.Query("q")
	field := c.DefaultQuery("field", "search")

	coord, found, err := h.resolver.ResolveField(c.Request.Context(), field, query)
	if err != nil {
		respondError(c, err)
		return
	}

	response := GeocodeResponse{Query: query, Found: found}
	if found {
		response.Point = &coord
	}

	respondJSON(c, http.StatusOK, response)
}
