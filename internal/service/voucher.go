package service

import (
	"context"
	"errors"
	"math"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// VoucherValidator checks whether a user may redeem a voucher and prices the discount.
type VoucherValidator struct {
	now func() time.Time
}

// NewVoucherValidator creates a validator; now defaults to time.Now.
func NewVoucherValidator(now func() time.Time) *VoucherValidator {
	if now == nil {
		now = time.Now
	}
	return &VoucherValidator{now: now}
}

// Validate returns the voucher for code if uid may use it.
func (v *VoucherValidator) Validate(ctx context.Context, repos repository.Repositories, code, uid string) (*domain.Voucher, error) {
	voucher, err := repos.Vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	if voucher.ExpiresAt.Before(v.now()) {
		return nil, ErrVoucherNotFound
	}

	if voucher.CurrentUses >= voucher.MaxUses {
		return nil, ErrVoucherExhausted
	}

	if voucher.SingleUse {
		used, err := repos.Passengers.CountActiveWithVoucher(ctx, uid, voucher.ID)
		if err != nil {
			return nil, err
		}
		if used > 0 {
			return nil, ErrVoucherAlreadyUsed
		}
	}

	return voucher, nil
}

// ApplyDiscount prices a voucher against a booking. The discount is capped by the
// voucher's MaxValue and by serviceTotal, and is never negative.
func ApplyDiscount(voucher *domain.Voucher, totalAmount, serviceTotal int64) int64 {
	if voucher == nil {
		return 0
	}

	var raw float64
	switch voucher.Type {
	case domain.VoucherTypePercentage:
		raw = voucher.Value / 100 * float64(totalAmount)
	default:
		raw = voucher.Value
	}

	capped := math.Min(raw, float64(voucher.MaxValue))
	capped = math.Min(capped, float64(serviceTotal))
	if capped <= 0 {
		return 0
	}
	return floorAmount(capped)
}
