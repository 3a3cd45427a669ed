package repository

import "context"

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Rides          RideRepository
	Passengers     PassengerRepository
	Invoices       InvoiceRepository
	Vouchers       VoucherRepository
	Users          UserRepository
	DriverInvoices DriverInvoiceRepository
}

// TxRunner runs a unit of work inside one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store hands out repositories for single reads and runs transactional units of work.
type Store interface {
	TxRunner

	// Repositories returns repositories bound to no transaction.
	Repositories() Repositories
}
