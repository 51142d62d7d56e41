package repository

import (
	"context"

	"ridelog/internal/domain"
)

// CustomerRepository defines the persistence operations for customers.
type CustomerRepository interface {
	// Save inserts the customer or replaces the one with the same ID.
	Save(ctx context.Context, customer *domain.Customer) error

	// GetByID retrieves a customer by ID.
	GetByID(ctx context.Context, id string) (*domain.Customer, error)

	// GetAll retrieves all retained customers, oldest first.
	GetAll(ctx context.Context) ([]*domain.Customer, error)
}
