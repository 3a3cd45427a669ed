package repository

import (
	"context"

	"carpool/internal/domain"
)

// InvoiceRepository defines the persistence operations for passenger invoices.
type InvoiceRepository interface {
	// Create persists a new invoice.
	Create(ctx context.Context, inv *domain.Invoice) error

	// GetByPassengerIDForUpdate retrieves the invoice of a booking and locks its row.
	GetByPassengerIDForUpdate(ctx context.Context, passengerID string) (*domain.Invoice, error)

	// Update writes every amount, the captured amount, the payment status and the
	// reference of an invoice.
	Update(ctx context.Context, inv *domain.Invoice) error
}
