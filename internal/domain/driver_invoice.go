package domain

import "time"

// DriverInvoiceType classifies a driver balance adjustment.
type DriverInvoiceType string

const (
	DriverInvoicePenalty       DriverInvoiceType = "PENALTY"
	DriverInvoiceBonus         DriverInvoiceType = "BONUS"
	DriverInvoiceCashCollected DriverInvoiceType = "CASH_COLLECTED"
	DriverInvoiceWithdrawal    DriverInvoiceType = "WITHDRAWAL"
	DriverInvoiceSettlement    DriverInvoiceType = "SETTLEMENT"
)

// Reason codes recorded on driver invoices.
const (
	ReasonLateCancellationNoShow       = "LATE_CANCELLATION_NOSHOW"
	ReasonLateCancellationCompensation = "LATE_CANCELLATION_COMPENSATION"
	ReasonRideCheckout                 = "RIDE_CHECKOUT"
)

// DriverInvoice is an append-only audit row for a driver balance change.
type DriverInvoice struct {
	ID        string
	DriverID  string
	RideID    string
	Amount    int64
	Type      DriverInvoiceType
	Reason    string
	CreatedAt time.Time
}
