package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

// LedgerService handles completed trips, expenses and customers.
type LedgerService struct {
	trips     repository.TripRepository
	expenses  repository.ExpenseRepository
	customers repository.CustomerRepository
	now       func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	trips repository.TripRepository,
	expenses repository.ExpenseRepository,
	customers repository.CustomerRepository,
) *LedgerService {
	return &LedgerService{
		trips:     trips,
		expenses:  expenses,
		customers: customers,
		now:       time.Now,
	}
}

// CommitTrip persists a completed trip and credits the trip's customer.
// Only the trip write is fatal; a failed customer update is logged.
func (s *LedgerService) CommitTrip(ctx context.Context, trip *domain.Trip) error {
	if err := s.trips.Save(ctx, trip); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if trip.CustomerID == "" {
		return nil
	}

	log := logrus.WithFields(logrus.Fields{
		"component":   "ledger",
		"trip_id":     trip.ID,
		"customer_id": trip.CustomerID,
	})

	customer, err := s.customers.GetByID(ctx, trip.CustomerID)
	if err != nil {
		log.WithError(err).Warn("customer totals not updated")
		return nil
	}

	customer.TotalTrips++
	customer.TotalSpent += trip.Fare
	if err := s.customers.Save(ctx, customer); err != nil {
		log.WithError(err).Warn("customer totals not updated")
	}

	return nil
}

// ListTrips returns the retained trips, oldest first.
func (s *LedgerService) ListTrips(ctx context.Context) ([]*domain.Trip, error) {
	return s.trips.GetAll(ctx)
}

// GetTrip returns one trip.
func (s *LedgerService) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	return s.trips.GetByID(ctx, id)
}

// DeleteTrip removes one trip.
func (s *LedgerService) DeleteTrip(ctx context.Context, id string) error {
	return s.trips.Delete(ctx, id)
}

// RecordExpenseRequest contains the parameters for recording an expense.
type RecordExpenseRequest struct {
	Category domain.ExpenseCategory
	Amount   float64
	Notes    string
	Date     time.Time // zero means now
}

// RecordExpense validates and stores a new expense.
func (s *LedgerService) RecordExpense(ctx context.Context, req RecordExpenseRequest) (*domain.Expense, error) {
	if req.Amount <= 0 || !req.Category.Valid() {
		return nil, ErrInvalidExpense
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	expense := &domain.Expense{
		ID:       uuid.New().String(),
		Date:     date,
		Category: req.Category,
		Amount:   req.Amount,
		Notes:    strings.TrimSpace(req.Notes),
	}

	if err := s.expenses.Save(ctx, expense); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	return expense, nil
}

// ListExpenses returns the retained expenses, oldest first.
func (s *LedgerService) ListExpenses(ctx context.Context) ([]*domain.Expense, error) {
	return s.expenses.GetAll(ctx)
}

// SaveCustomerRequest contains the parameters for creating or editing a customer.
type SaveCustomerRequest struct {
	ID    string // empty creates a new customer
	Name  string
	Phone string
	Notes string
}

// SaveCustomer creates a customer or edits an existing one, keeping its totals.
func (s *LedgerService) SaveCustomer(ctx context.Context, req SaveCustomerRequest) (*domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidCustomer
	}

	customer := &domain.Customer{ID: req.ID}
	if req.ID == "" {
		customer.ID = uuid.New().String()
	} else {
		existing, err := s.customers.GetByID(ctx, req.ID)
		switch {
		case err == nil:
			customer = existing
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
	}

	customer.Name = name
	customer.Phone = strings.TrimSpace(req.Phone)
	customer.Notes = strings.TrimSpace(req.Notes)

	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	return customer, nil
}

// GetCustomer returns one customer.
func (s *LedgerService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// ListCustomers returns the retained customers, oldest first.
func (s *LedgerService) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	return s.customers.GetAll(ctx)
}
