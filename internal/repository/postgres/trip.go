package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ridelog/internal/domain"
	"ridelog/internal/repository"
)

const tripColumns = `id, status, started_at, ended_at, distance_km, fare, commission,
	fuel_cost_estimate, pickup, dropoff, payment_method, customer_id, notes, path`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	db  *sql.DB
	max int
}

// NewTripRepository creates a new PostgreSQL trip repository retaining at most max trips.
func NewTripRepository(db *sql.DB, max int) *TripRepository {
	return &TripRepository{db: db, max: max}
}

// Save inserts or replaces a trip and evicts the oldest trips beyond the cap.
func (r *TripRepository) Save(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			distance_km = EXCLUDED.distance_km,
			fare = EXCLUDED.fare,
			commission = EXCLUDED.commission,
			fuel_cost_estimate = EXCLUDED.fuel_cost_estimate,
			pickup = EXCLUDED.pickup,
			dropoff = EXCLUDED.dropoff,
			payment_method = EXCLUDED.payment_method,
			customer_id = EXCLUDED.customer_id,
			notes = EXCLUDED.notes,
			path = EXCLUDED.path
	`

	var endedAt sql.NullTime
	if trip.EndedAt != nil {
		endedAt = sql.NullTime{Time: *trip.EndedAt, Valid: true}
	}

	path := trip.Path
	if path == nil {
		path = []domain.Coordinate{}
	}
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("encode trip path: %w", err)
	}

	return withTx(ctx, r.db, func(q Querier) error {
		if _, err := q.ExecContext(ctx, query,
			trip.ID,
			trip.Status,
			trip.StartedAt,
			endedAt,
			trip.DistanceKm,
			trip.Fare,
			trip.Commission,
			trip.FuelCostEstimate,
			trip.Pickup,
			trip.Dropoff,
			trip.PaymentMethod,
			nullString(trip.CustomerID),
			nullString(trip.Notes),
			pathJSON,
		); err != nil {
			return err
		}
		return evictOldest(ctx, q, "trips", r.max)
	})
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// GetAll retrieves all retained trips, oldest first.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// Delete removes a trip by ID.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var endedAt sql.NullTime
	var customerID, notes sql.NullString
	var pathJSON []byte

	if err := row.Scan(
		&trip.ID,
		&trip.Status,
		&trip.StartedAt,
		&endedAt,
		&trip.DistanceKm,
		&trip.Fare,
		&trip.Commission,
		&trip.FuelCostEstimate,
		&trip.Pickup,
		&trip.Dropoff,
		&trip.PaymentMethod,
		&customerID,
		&notes,
		&pathJSON,
	); err != nil {
		return nil, err
	}

	if endedAt.Valid {
		ended := endedAt.Time
		trip.EndedAt = &ended
	}
	trip.CustomerID = customerID.String
	trip.Notes = notes.String

	if len(pathJSON) > 0 {
		if err := json.Unmarshal(pathJSON, &trip.Path); err != nil {
			return nil, fmt.Errorf("decode trip path: %w", err)
		}
	}

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
