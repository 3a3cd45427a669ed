package repository

import (
	"context"

	"carpool/internal/domain"
)

// UserRepository defines the persistence operations for user accounts.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// AdjustBalance adds delta to a user's balance and returns the new balance.
	AdjustBalance(ctx context.Context, id string, delta int64) (int64, error)
}

// DriverInvoiceRepository appends driver ledger rows.
type DriverInvoiceRepository interface {
	Create(ctx context.Context, di *domain.DriverInvoice) error
}
