package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carpool/internal/domain"
)

func TestFeePolicy_Fees(t *testing.T) {
	p := DefaultFeePolicy()

	assert.Equal(t, int64(20), p.DriverFee(0.1, 200))
	assert.Equal(t, int64(29), p.DriverFee(0.29, 100))
	assert.Equal(t, int64(10), p.PassengerFee(200))
	assert.Equal(t, int64(0), p.PassengerFee(19))
	assert.Equal(t, int64(1), p.PassengerFee(39))
}

func TestFeePolicy_SuggestedPrice(t *testing.T) {
	p := DefaultFeePolicy()

	tests := []struct {
		meters int
		want   int64
	}{
		{0, 10},
		{9999, 10},
		{10000, 10},
		{20000, 15},
		{450000, 230},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.SuggestedPrice(tt.meters), "meters=%d", tt.meters)
	}
}

func TestFeePolicy_PickupAddition(t *testing.T) {
	p := DefaultFeePolicy()

	assert.Equal(t, int64(0), p.PickupAddition(nil))
	assert.Equal(t, int64(5), p.PickupAddition(&domain.Point{Lat: 1, Lng: 1}))
}
