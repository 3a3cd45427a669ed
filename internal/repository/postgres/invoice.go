package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// InvoiceRepository is a PostgreSQL implementation of repository.InvoiceRepository.
type InvoiceRepository struct {
	q Querier
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{q: db}
}

const invoiceColumns = `id, passenger_id, total_amount, driver_fee_total, passenger_fee_total,
	pickup_addition, discount_amount, balance_due, grand_total, captured_amount, payment_status,
	payment_method, reference, created_at, updated_at`

// Create persists a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		inv.ID,
		inv.PassengerID,
		inv.TotalAmount,
		inv.DriverFeeTotal,
		inv.PassengerFeeTotal,
		inv.PickupAddition,
		inv.DiscountAmount,
		inv.BalanceDue,
		inv.GrandTotal,
		inv.CapturedAmount,
		inv.PaymentStatus,
		inv.PaymentMethod,
		inv.Reference,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	return mapError(err)
}

// GetByPassengerIDForUpdate retrieves the invoice of a booking and locks its row.
func (r *InvoiceRepository) GetByPassengerIDForUpdate(ctx context.Context, passengerID string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE passenger_id = $1 FOR UPDATE`
	inv, err := scanInvoice(r.q.QueryRowContext(ctx, query, passengerID))
	if err != nil {
		return nil, mapError(err)
	}
	return inv, nil
}

// Update writes every amount, the captured amount, the payment status and the
// reference of an invoice.
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET total_amount = $1, driver_fee_total = $2, passenger_fee_total = $3, pickup_addition = $4,
		    discount_amount = $5, balance_due = $6, grand_total = $7, captured_amount = $8,
		    payment_status = $9, payment_method = $10, reference = $11, updated_at = $12
		WHERE id = $13
	`

	result, err := r.q.ExecContext(ctx, query,
		inv.TotalAmount,
		inv.DriverFeeTotal,
		inv.PassengerFeeTotal,
		inv.PickupAddition,
		inv.DiscountAmount,
		inv.BalanceDue,
		inv.GrandTotal,
		inv.CapturedAmount,
		inv.PaymentStatus,
		inv.PaymentMethod,
		inv.Reference,
		inv.UpdatedAt,
		inv.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.PassengerID,
		&inv.TotalAmount,
		&inv.DriverFeeTotal,
		&inv.PassengerFeeTotal,
		&inv.PickupAddition,
		&inv.DiscountAmount,
		&inv.BalanceDue,
		&inv.GrandTotal,
		&inv.CapturedAmount,
		&inv.PaymentStatus,
		&inv.PaymentMethod,
		&inv.Reference,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Ensure InvoiceRepository implements repository.InvoiceRepository.
var _ repository.InvoiceRepository = (*InvoiceRepository)(nil)
