package domain

import "time"

// PaymentStatus represents the settlement state of an invoice.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusReversed PaymentStatus = "REVERSED"
)

// Invoice is the ledger entry for one passenger booking. Amounts are in minor units.
type Invoice struct {
	ID                string
	PassengerID       string
	TotalAmount       int64
	DriverFeeTotal    int64
	PassengerFeeTotal int64
	PickupAddition    int64
	DiscountAmount    int64
	BalanceDue        int64 // prior user balance, negated
	GrandTotal        int64
	CapturedAmount    int64 // card money received through the gateway
	PaymentStatus     PaymentStatus
	PaymentMethod     PaymentMethod
	Reference         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Balanced reports whether GrandTotal agrees with its components.
func (i *Invoice) Balanced() bool {
	return i.GrandTotal == i.TotalAmount+i.PassengerFeeTotal+i.PickupAddition-i.DiscountAmount+i.BalanceDue
}

// Outstanding is the part of GrandTotal not yet captured by the gateway.
func (i *Invoice) Outstanding() int64 {
	return i.GrandTotal - i.CapturedAmount
}
