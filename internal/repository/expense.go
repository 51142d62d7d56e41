package repository

import (
	"context"

	"ridelog/internal/domain"
)

// ExpenseRepository defines the persistence operations for expenses.
type ExpenseRepository interface {
	// Save inserts the expense or replaces the one with the same ID.
	Save(ctx context.Context, expense *domain.Expense) error

	// GetAll retrieves all retained expenses, oldest first.
	GetAll(ctx context.Context) ([]*domain.Expense, error)
}
