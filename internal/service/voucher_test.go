package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name         string
		voucher      *domain.Voucher
		total        int64
		serviceTotal int64
		want         int64
	}{
		{"no voucher", nil, 200, 210, 0},
		{"percentage under cap", &domain.Voucher{Type: domain.VoucherTypePercentage, Value: 10, MaxValue: 50}, 200, 210, 20},
		{"percentage capped", &domain.Voucher{Type: domain.VoucherTypePercentage, Value: 20, MaxValue: 30}, 200, 210, 30},
		{"percentage floors", &domain.Voucher{Type: domain.VoucherTypePercentage, Value: 15, MaxValue: 100}, 99, 103, 14},
		{"fixed", &domain.Voucher{Type: domain.VoucherTypeFixed, Value: 25, MaxValue: 25}, 200, 210, 25},
		{"fixed larger than the bill", &domain.Voucher{Type: domain.VoucherTypeFixed, Value: 500, MaxValue: 500}, 100, 105, 105},
		{"negative clamps to zero", &domain.Voucher{Type: domain.VoucherTypeFixed, Value: -5, MaxValue: 10}, 100, 105, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyDiscount(tt.voucher, tt.total, tt.serviceTotal))
		})
	}
}

type stubVouchers struct {
	repository.VoucherRepository
	voucher *domain.Voucher
}

func (s stubVouchers) GetByCode(_ context.Context, code string) (*domain.Voucher, error) {
	if s.voucher == nil || s.voucher.Code != code {
		return nil, repository.ErrNotFound
	}
	v := *s.voucher
	return &v, nil
}

type stubPassengers struct {
	repository.PassengerRepository
	used int
}

func (s stubPassengers) CountActiveWithVoucher(context.Context, string, string) (int, error) {
	return s.used, nil
}

func TestVoucherValidator_Validate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := domain.Voucher{ID: "v1", Code: "CODE", Type: domain.VoucherTypeFixed, Value: 10, MaxValue: 10, MaxUses: 2, ExpiresAt: now.Add(time.Hour)}

	tests := []struct {
		name   string
		mutate func(v *domain.Voucher)
		code   string
		used   int
		want   error
	}{
		{name: "valid", code: "CODE"},
		{name: "unknown code", code: "OTHER", want: ErrVoucherNotFound},
		{name: "expired", code: "CODE", mutate: func(v *domain.Voucher) { v.ExpiresAt = now.Add(-time.Second) }, want: ErrVoucherNotFound},
		{name: "exhausted", code: "CODE", mutate: func(v *domain.Voucher) { v.CurrentUses = 2 }, want: ErrVoucherExhausted},
		{name: "single use already used", code: "CODE", used: 1, mutate: func(v *domain.Voucher) { v.SingleUse = true }, want: ErrVoucherAlreadyUsed},
		{name: "reusable already used", code: "CODE", used: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			if tt.mutate != nil {
				tt.mutate(&v)
			}
			repos := repository.Repositories{
				Vouchers:   stubVouchers{voucher: &v},
				Passengers: stubPassengers{used: tt.used},
			}

			got, err := NewVoucherValidator(func() time.Time { return now }).Validate(context.Background(), repos, tt.code, "u1")
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "v1", got.ID)
		})
	}
}
