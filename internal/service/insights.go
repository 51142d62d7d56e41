package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
)

const (
	insightTrips    = 10
	insightExpenses = 5
)

// InsightGenerator produces advisory text from a prompt.
type InsightGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// InsightService produces a short business tip from recent ledger data.
// It always returns text; any failure yields the fallback sentence.
type InsightService struct {
	ledger    *LedgerService
	generator InsightGenerator
	fallback  string
}

// NewInsightService creates a new InsightService. generator may be nil.
func NewInsightService(ledger *LedgerService, generator InsightGenerator, fallback string) *InsightService {
	return &InsightService{
		ledger:    ledger,
		generator: generator,
		fallback:  fallback,
	}
}

type tripSummary struct {
	Fare     float64           `json:"fare"`
	Distance float64           `json:"dist"`
	Status   domain.TripStatus `json:"status"`
	Pickup   string            `json:"pickup"`
}

type expenseSummary struct {
	Category domain.ExpenseCategory `json:"cat"`
	Amount   float64                `json:"amt"`
}

// Insight returns advisory text for the driver.
func (s *InsightService) Insight(ctx context.Context) string {
	if s.generator == nil {
		return s.fallback
	}

	log := logrus.WithField("component", "insights")

	trips, err := s.ledger.ListTrips(ctx)
	if err != nil {
		log.WithError(err).Warn("load trips for insight")
	}
	expenses, err := s.ledger.ListExpenses(ctx)
	if err != nil {
		log.WithError(err).Warn("load expenses for insight")
	}

	prompt, err := BuildInsightPrompt(trips, expenses)
	if err != nil {
		log.WithError(err).Warn("build insight prompt")
		return s.fallback
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil || text == "" {
		log.WithError(err).Warn("insight generation failed, using fallback")
		return s.fallback
	}

	return text
}

// BuildInsightPrompt summarizes the last trips and expenses for the model.
func BuildInsightPrompt(trips []*domain.Trip, expenses []*domain.Expense) (string, error) {
	if len(trips) > insightTrips {
		trips = trips[len(trips)-insightTrips:]
	}
	if len(expenses) > insightExpenses {
		expenses = expenses[len(expenses)-insightExpenses:]
	}

	ts := make([]tripSummary, 0, len(trips))
	for _, t := range trips {
		ts = append(ts, tripSummary{Fare: t.Fare, Distance: t.DistanceKm, Status: t.Status, Pickup: t.Pickup})
	}
	es := make([]expenseSummary, 0, len(expenses))
	for _, e := range expenses {
		es = append(es, expenseSummary{Category: e.Category, Amount: e.Amount})
	}

	tripJSON, err := json.Marshal(ts)
	if err != nil {
		return "", err
	}
	expenseJSON, err := json.Marshal(es)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a ride-hailing driver's business partner. Analyze this driver's data from Ghana (Currency: GHS).
Recent Trips: %s
Recent Expenses: %s

Provide a short (max 2 sentences) encouraging business insight or tip for tomorrow.
Focus on profitability, fuel efficiency, or high-demand areas in Accra/Kumasi.`, tripJSON, expenseJSON), nil
}
