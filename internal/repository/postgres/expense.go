package postgres

import (
	"context"
	"database/sql"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

// ExpenseRepository is a PostgreSQL implementation of repository.ExpenseRepository.
type ExpenseRepository struct {
	db  *sql.DB
	max int
}

// NewExpenseRepository creates a new PostgreSQL expense repository retaining at most max expenses.
func NewExpenseRepository(db *sql.DB, max int) *ExpenseRepository {
	return &ExpenseRepository{db: db, max: max}
}

// Save inserts or replaces an expense.
func (r *ExpenseRepository) Save(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, date, category, amount, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			category = EXCLUDED.category,
			amount = EXCLUDED.amount,
			notes = EXCLUDED.notes
	`

	return withTx(ctx, r.db, func(q Querier) error {
		if _, err := q.ExecContext(ctx, query,
			expense.ID,
			expense.Date,
			expense.Category,
			expense.Amount,
			nullString(expense.Notes),
		); err != nil {
			return err
		}
		return evictOldest(ctx, q, "expenses", r.max)
	})
}

// GetAll retrieves all retained expenses, oldest first.
func (r *ExpenseRepository) GetAll(ctx context.Context) ([]*domain.Expense, error) {
	query := `SELECT id, date, category, amount, notes FROM expenses ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*domain.Expense
	for rows.Next() {
		var expense domain.Expense
		var notes sql.NullString

		if err := rows.Scan(
			&expense.ID,
			&expense.Date,
			&expense.Category,
			&expense.Amount,
			&notes,
		); err != nil {
			return nil, err
		}

		expense.Notes = notes.String
		expenses = append(expenses, &expense)
	}

	return expenses, rows.Err()
}

// Ensure ExpenseRepository implements repository.ExpenseRepository.
var _ repository.ExpenseRepository = (*ExpenseRepository)(nil)
