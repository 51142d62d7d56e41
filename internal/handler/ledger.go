package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ridelog/internal/domain"
	"ridelog/internal/service"
)

// LedgerHandler handles HTTP requests for trips, expenses, customers and insights.
type LedgerHandler struct {
	ledger   *service.LedgerService
	insights *service.InsightService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, insights *service.InsightService) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		insights: insights,
	}
}

// CreateExpenseRequest is the HTTP request body for recording an expense.
type CreateExpenseRequest struct {
	Category string    `json:"category" binding:"required"`
	Amount   float64   `json:"amount" binding:"required"`
	Notes    string    `json:"notes,omitempty"`
	Date     time.Time `json:"date,omitempty"`
}

// SaveCustomerRequest is the HTTP request body for creating or editing a customer.
type SaveCustomerRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// InsightResponse is the HTTP response for the daily insight.
type InsightResponse struct {
	Insight string `json:"insight"`
}

// ListTrips handles GET /v1/trips
func (h *LedgerHandler) ListTrips(c *gin.Context) {
	trips, err := h.ledger.ListTrips(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if trips == nil {
		trips = []*domain.Trip{}
	}
	c.JSON(http.StatusOK, trips)
}

// GetTrip handles GET /v1/trips/:id
func (h *LedgerHandler) GetTrip(c *gin.Context) {
	trip, err := h.ledger.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, trip)
}

// DeleteTrip handles DELETE /v1/trips/:id
func (h *LedgerHandler) DeleteTrip(c *gin.Context) {
	if err := h.ledger.DeleteTrip(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Receipt handles GET /v1/trips/:id/receipt (?format=text for plain text)
func (h *LedgerHandler) Receipt(c *gin.Context) {
	receipt, err := h.ledger.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, service.FormatReceipt(receipt))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trip_id":          receipt.TripID,
		"pickup":           receipt.Pickup,
		"dropoff":          receipt.Dropoff,
		"fare":             receipt.Fare,
		"commission":       receipt.Commission,
		"net_earnings":     receipt.NetEarnings,
		"payment_method":   receipt.PaymentMethod,
		"duration_minutes": receipt.Duration.Minutes(),
		"distance_km":      receipt.DistanceKm,
		"started_at":       receipt.StartedAt,
		"ended_at":         receipt.EndedAt,
	})
}

// CreateExpense handles POST /v1/expenses
func (h *LedgerHandler) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	expense, err := h.ledger.RecordExpense(c.Request.Context(), service.RecordExpenseRequest{
		Category: domain.ExpenseCategory(strings.ToUpper(req.Category)),
		Amount:   req.Amount,
		Notes:    req.Notes,
		Date:     req.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, expense)
}

// ListExpenses handles GET /v1/expenses
func (h *LedgerHandler) ListExpenses(c *gin.Context) {
	expenses, err := h.ledger.ListExpenses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if expenses == nil {
		expenses = []*domain.Expense{}
	}
	c.JSON(http.StatusOK, expenses)
}

// SaveCustomer handles POST /v1/customers
func (h *LedgerHandler) SaveCustomer(c *gin.Context) {
	var req SaveCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	customer, err := h.ledger.SaveCustomer(c.Request.Context(), service.SaveCustomerRequest{
		ID:    req.ID,
		Name:  req.Name,
		Phone: req.Phone,
		Notes: req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, customer)
}

// ListCustomers handles GET /v1/customers
func (h *LedgerHandler) ListCustomers(c *gin.Context) {
	customers, err := h.ledger.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if customers == nil {
		customers = []*domain.Customer{}
	}
	c.JSON(http.StatusOK, customers)
}

// Insight handles GET /v1/insights
func (h *LedgerHandler) Insight(c *gin.Context) {
	c.JSON(http.StatusOK, InsightResponse{Insight: h.insights.Insight(c.Request.Context())})
}
