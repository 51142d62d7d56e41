package repository

import (
	"context"

	"ridelog/internal/domain"
)

// TripRepository defines the persistence operations for the trip ledger.
// Implementations retain only the most recent trips up to their cap.
type TripRepository interface {
	// Save inserts the trip or replaces the one with the same ID.
	Save(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetAll retrieves all retained trips, oldest first.
	GetAll(ctx context.Context) ([]*domain.Trip, error)

	// Delete removes a trip by ID.
	Delete(ctx context.Context, id string) error
}

// DraftRepository stores the single in-progress trip so it survives restarts.
type DraftRepository interface {
	// SaveDraft replaces the stored draft.
	SaveDraft(ctx context.Context, draft *domain.TripDraft) error

	// LoadDraft returns the stored draft, or nil if there is none.
	LoadDraft(ctx context.Context) (*domain.TripDraft, error)

	// DeleteDraft removes the stored draft.
	DeleteDraft(ctx context.Context) error
}
