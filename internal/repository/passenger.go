package repository

import (
	"context"

	"carpool/internal/domain"
)

// PassengerRepository defines the persistence operations for bookings.
type PassengerRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, p *domain.Passenger) error

	// GetByIDForUpdate retrieves a booking by ID and locks its row.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Passenger, error)

	// GetActiveForUpdate retrieves the non-cancelled booking of a user on a ride and locks it.
	// Returns nil if the user holds no such booking.
	GetActiveForUpdate(ctx context.Context, userID, rideID string) (*domain.Passenger, error)

	// ListActiveByRide returns all non-cancelled bookings of a ride.
	ListActiveByRide(ctx context.Context, rideID string) ([]*domain.Passenger, error)

	// ListActiveByUser returns all non-cancelled bookings of a user.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Passenger, error)

	// ListByUser returns a page of a user's bookings, newest first.
	ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Passenger, error)

	// CountActiveWithVoucher counts a user's non-cancelled bookings that used a voucher.
	CountActiveWithVoucher(ctx context.Context, userID, voucherID string) (int, error)

	// Update writes seats, pickup, payment method and status of a booking.
	Update(ctx context.Context, p *domain.Passenger) error
}
