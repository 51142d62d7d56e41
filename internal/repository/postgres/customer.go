package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

// CustomerRepository is a PostgreSQL implementation of repository.CustomerRepository.
type CustomerRepository struct {
	db  *sql.DB
	max int
}

// NewCustomerRepository creates a new PostgreSQL customer repository retaining at most max customers.
func NewCustomerRepository(db *sql.DB, max int) *CustomerRepository {
	return &CustomerRepository{db: db, max: max}
}

// Save inserts or replaces a customer.
func (r *CustomerRepository) Save(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, name, phone, notes, total_spent, total_trips)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			notes = EXCLUDED.notes,
			total_spent = EXCLUDED.total_spent,
			total_trips = EXCLUDED.total_trips
	`

	return withTx(ctx, r.db, func(q Querier) error {
		if _, err := q.ExecContext(ctx, query,
			customer.ID,
			customer.Name,
			nullString(customer.Phone),
			nullString(customer.Notes),
			customer.TotalSpent,
			customer.TotalTrips,
		); err != nil {
			return err
		}
		return evictOldest(ctx, q, "customers", r.max)
	})
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT id, name, phone, notes, total_spent, total_trips FROM customers WHERE id = $1`

	customer, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return customer, nil
}

// GetAll retrieves all retained customers, oldest first.
func (r *CustomerRepository) GetAll(ctx context.Context) ([]*domain.Customer, error) {
	query := `SELECT id, name, phone, notes, total_spent, total_trips FROM customers ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}

	return customers, rows.Err()
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var customer domain.Customer
	var phone, notes sql.NullString

	if err := row.Scan(
		&customer.ID,
		&customer.Name,
		&phone,
		&notes,
		&customer.TotalSpent,
		&customer.TotalTrips,
	); err != nil {
		return nil, err
	}

	customer.Phone = phone.String
	customer.Notes = notes.String
	return &customer, nil
}

// Ensure CustomerRepository implements repository.CustomerRepository.
var _ repository.CustomerRepository = (*CustomerRepository)(nil)
