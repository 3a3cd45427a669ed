package repository

import (
	"context"

	"carpool/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride by ID and locks its row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// UpdateStatus sets the status of a ride.
	UpdateStatus(ctx context.Context, id string, status domain.RideStatus) error

	// ListScheduled returns scheduled rides, newest first.
	ListScheduled(ctx context.Context, page domain.PageRequest) ([]*domain.Ride, error)
}
