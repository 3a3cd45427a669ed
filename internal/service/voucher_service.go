package service

import (
	"context"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// VoucherQuote is the outcome of checking a voucher before booking.
type VoucherQuote struct {
	Voucher  *domain.Voucher
	Discount int64 // discount on the quoted amount, zero when none was given
}

// VoucherService exposes voucher validation to clients.
type VoucherService struct {
	store    repository.Store
	validate *VoucherValidator
}

// NewVoucherService creates a new VoucherService.
func NewVoucherService(store repository.Store, validator *VoucherValidator) *VoucherService {
	return &VoucherService{store: store, validate: validator}
}

// Check validates code for uid and prices it against amount.
func (s *VoucherService) Check(ctx context.Context, code, uid string, amount int64) (*VoucherQuote, error) {
	v, err := s.validate.Validate(ctx, s.store.Repositories(), code, uid)
	if err != nil {
		return nil, orElse(err, ErrInternal)
	}
	return &VoucherQuote{Voucher: v, Discount: ApplyDiscount(v, amount, amount)}, nil
}
