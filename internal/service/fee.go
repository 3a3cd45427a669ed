package service

import (
	"math"

	"carpool/internal/domain"
)

// FeePolicy holds the platform's pricing rules. Amounts are in minor units.
type FeePolicy struct {
	PassengerFeeRate     float64
	DefaultDriverFeeRate float64
	BaseFare             int64
	PerKmRate            float64
	MinPricePerSeat      int64
	PickupFee            int64
	LateCancelPenalty    int64
}

// DefaultFeePolicy returns the standard pricing rules.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		PassengerFeeRate:     0.05,
		DefaultDriverFeeRate: 0.10,
		BaseFare:             5,
		PerKmRate:            0.5,
		MinPricePerSeat:      10,
		PickupFee:            5,
		LateCancelPenalty:    20,
	}
}

// DriverFee is the platform's cut of a booking's totalAmount.
func (p FeePolicy) DriverFee(rate float64, totalAmount int64) int64 {
	return floorAmount(rate * float64(totalAmount))
}

// PassengerFee is the service fee added on top of a booking's totalAmount.
func (p FeePolicy) PassengerFee(totalAmount int64) int64 {
	return floorAmount(p.PassengerFeeRate * float64(totalAmount))
}

// SuggestedPrice proposes a per-seat price for a route of the given length.
func (p FeePolicy) SuggestedPrice(distanceMeters int) int64 {
	km := float64(distanceMeters) / 1000
	price := p.BaseFare + floorAmount(km*p.PerKmRate)
	if price < p.MinPricePerSeat {
		return p.MinPricePerSeat
	}
	return price
}

// PickupAddition is the surcharge for a door pickup; zero when no pickup is requested.
func (p FeePolicy) PickupAddition(pickup *domain.Point) int64 {
	if pickup == nil {
		return 0
	}
	return p.PickupFee
}

// floorAmount floors a computed amount, absorbing binary representation error
// so that e.g. 0.29*100 floors to 29 rather than 28.
func floorAmount(v float64) int64 {
	return int64(math.Floor(v + 1e-9))
}
