package repository

import (
	"context"

	"carpool/internal/domain"
)

// VoucherRepository defines the persistence operations for vouchers.
type VoucherRepository interface {
	// GetByCode retrieves a voucher by its code.
	GetByCode(ctx context.Context, code string) (*domain.Voucher, error)

	// GetByID retrieves a voucher by ID.
	GetByID(ctx context.Context, id string) (*domain.Voucher, error)

	// IncrementUses bumps current_uses while it is below max_uses.
	// Returns ErrConflict when the voucher is exhausted.
	IncrementUses(ctx context.Context, id string) error
}
