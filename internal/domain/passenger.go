package domain

import "time"

// PassengerStatus represents the state of one passenger's booking.
type PassengerStatus string

const (
	PassengerStatusAwaitingPayment PassengerStatus = "AWAITING_PAYMENT"
	PassengerStatusConfirmed       PassengerStatus = "CONFIRMED"
	PassengerStatusEnroute         PassengerStatus = "ENROUTE"
	PassengerStatusArrived         PassengerStatus = "ARRIVED"
	PassengerStatusCancelled       PassengerStatus = "CANCELLED"
	PassengerStatusNoShow          PassengerStatus = "NOSHOW"
)

// OccupiesSeat reports whether a booking in this status counts against ride capacity.
func (s PassengerStatus) OccupiesSeat() bool {
	switch s {
	case PassengerStatusAwaitingPayment, PassengerStatusConfirmed,
		PassengerStatusEnroute, PassengerStatusArrived:
		return true
	}
	return false
}

// BeforeArrival reports whether the booking has not yet reached ARRIVED or a terminal state.
func (s PassengerStatus) BeforeArrival() bool {
	switch s {
	case PassengerStatusAwaitingPayment, PassengerStatusConfirmed, PassengerStatusEnroute:
		return true
	}
	return false
}

// PaymentMethod represents how a passenger pays for a booking.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// Passenger is one user's seat reservation on one ride.
type Passenger struct {
	ID              string
	UserID          string
	RideID          string
	PaymentMethod   PaymentMethod
	Status          PassengerStatus
	Seats           int
	VoucherID       *string
	Pickup          *Point
	CompletedRating bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OccupiedSeats sums seats over bookings that count against capacity.
func OccupiedSeats(passengers []*Passenger) int {
	total := 0
	for _, p := range passengers {
		if p.Status.OccupiesSeat() {
			total += p.Seats
		}
	}
	return total
}
