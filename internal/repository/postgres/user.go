package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, name, phone, gender, balance, created_at FROM users WHERE id = $1`

	var user domain.User
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Phone,
		&user.Gender,
		&user.Balance,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// AdjustBalance adds delta to a user's balance and returns the new balance.
// The UPDATE takes the row lock, so concurrent settlements serialise on the user.
func (r *UserRepository) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	query := `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`

	var balance int64
	if err := r.q.QueryRowContext(ctx, query, delta, id).Scan(&balance); err != nil {
		return 0, mapError(err)
	}
	return balance, nil
}

// DriverInvoiceRepository implements repository.DriverInvoiceRepository using PostgreSQL.
type DriverInvoiceRepository struct {
	q Querier
}

// Create appends a driver ledger row.
func (r *DriverInvoiceRepository) Create(ctx context.Context, di *domain.DriverInvoice) error {
	query := `
		INSERT INTO driver_invoices (id, driver_id, ride_id, amount, type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query, di.ID, di.DriverID, di.RideID, di.Amount, di.Type, di.Reason, di.CreatedAt)
	return mapError(err)
}

var (
	_ repository.UserRepository          = (*UserRepository)(nil)
	_ repository.DriverInvoiceRepository = (*DriverInvoiceRepository)(nil)
)
