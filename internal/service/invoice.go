package service

import (
	"carpool/internal/domain"
)

// InvoiceInput carries what is needed to price one booking.
type InvoiceInput struct {
	Seats          int
	PaymentMethod  domain.PaymentMethod
	Ride           *domain.Ride
	Voucher        *domain.Voucher
	PickupAddition int64
	UserBalance    int64
}

// ComputeInvoice fills the amounts of inv for a booking. Identity fields, status and
// timestamps are left to the caller so the same invoice can be recomputed in place.
func (p FeePolicy) ComputeInvoice(inv *domain.Invoice, in InvoiceInput) {
	total := int64(in.Seats) * in.Ride.PricePerSeat
	passengerFee := p.PassengerFee(total)
	serviceTotal := total + passengerFee + in.PickupAddition
	discount := ApplyDiscount(in.Voucher, total, serviceTotal)

	inv.TotalAmount = total
	inv.DriverFeeTotal = p.DriverFee(in.Ride.DriverFee, total)
	inv.PassengerFeeTotal = passengerFee
	inv.PickupAddition = in.PickupAddition
	inv.DiscountAmount = discount
	inv.BalanceDue = -in.UserBalance
	inv.GrandTotal = serviceTotal - discount - in.UserBalance
	inv.PaymentMethod = in.PaymentMethod
}
