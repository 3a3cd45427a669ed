package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// PassengerRepository is a PostgreSQL implementation of repository.PassengerRepository.
type PassengerRepository struct {
	q Querier
}

// NewPassengerRepository creates a new PostgreSQL passenger repository.
func NewPassengerRepository(db *sql.DB) *PassengerRepository {
	return &PassengerRepository{q: db}
}

const passengerColumns = `id, user_id, ride_id, payment_method, status, seats, voucher_id,
	pickup_lat, pickup_lng, completed_rating, created_at, updated_at`

// Create persists a new booking.
func (r *PassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	query := `
		INSERT INTO passengers (` + passengerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	pickupLat, pickupLng := nullPoint(p.Pickup)
	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.RideID,
		p.PaymentMethod,
		p.Status,
		p.Seats,
		nullString(p.VoucherID),
		pickupLat,
		pickupLng,
		p.CompletedRating,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return mapError(err)
}

// GetByIDForUpdate retrieves a booking by ID and locks its row.
func (r *PassengerRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE id = $1 FOR UPDATE`
	p, err := scanPassenger(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// GetActiveForUpdate retrieves the non-cancelled booking of a user on a ride and locks it.
// Returns nil if the user holds no such booking.
func (r *PassengerRepository) GetActiveForUpdate(ctx context.Context, userID, rideID string) (*domain.Passenger, error) {
	query := `
		SELECT ` + passengerColumns + `
		FROM passengers
		WHERE user_id = $1 AND ride_id = $2 AND status <> $3
		FOR UPDATE
	`

	p, err := scanPassenger(r.q.QueryRowContext(ctx, query, userID, rideID, domain.PassengerStatusCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListActiveByRide returns all non-cancelled bookings of a ride.
func (r *PassengerRepository) ListActiveByRide(ctx context.Context, rideID string) ([]*domain.Passenger, error) {
	query := `
		SELECT ` + passengerColumns + `
		FROM passengers
		WHERE ride_id = $1 AND status <> $2
		ORDER BY created_at
	`
	return r.list(ctx, query, rideID, domain.PassengerStatusCancelled)
}

// ListActiveByUser returns all non-cancelled bookings of a user.
func (r *PassengerRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Passenger, error) {
	query := `
		SELECT ` + passengerColumns + `
		FROM passengers
		WHERE user_id = $1 AND status <> $2
		ORDER BY created_at
	`
	return r.list(ctx, query, userID, domain.PassengerStatusCancelled)
}

// ListByUser returns a page of a user's bookings, newest first.
func (r *PassengerRepository) ListByUser(ctx context.Context, userID string, page domain.PageRequest) ([]*domain.Passenger, error) {
	page = page.Normalize()
	query := `
		SELECT ` + passengerColumns + `
		FROM passengers
		WHERE user_id = $1
		  AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM passengers WHERE id = $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	return r.list(ctx, query, userID, page.Cursor, page.Limit)
}

// CountActiveWithVoucher counts a user's non-cancelled bookings that used a voucher.
func (r *PassengerRepository) CountActiveWithVoucher(ctx context.Context, userID, voucherID string) (int, error) {
	query := `SELECT COUNT(*) FROM passengers WHERE user_id = $1 AND voucher_id = $2 AND status <> $3`

	var count int
	err := r.q.QueryRowContext(ctx, query, userID, voucherID, domain.PassengerStatusCancelled).Scan(&count)
	return count, err
}

// Update writes seats, pickup, payment method and status of a booking.
func (r *PassengerRepository) Update(ctx context.Context, p *domain.Passenger) error {
	query := `
		UPDATE passengers
		SET payment_method = $1, status = $2, seats = $3, pickup_lat = $4, pickup_lng = $5,
		    completed_rating = $6, updated_at = $7
		WHERE id = $8
	`

	pickupLat, pickupLng := nullPoint(p.Pickup)
	result, err := r.q.ExecContext(ctx, query,
		p.PaymentMethod,
		p.Status,
		p.Seats,
		pickupLat,
		pickupLng,
		p.CompletedRating,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func (r *PassengerRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Passenger, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passengers []*domain.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

func scanPassenger(row rowScanner) (*domain.Passenger, error) {
	var p domain.Passenger
	var voucherID sql.NullString
	var pickupLat, pickupLng sql.NullFloat64

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.RideID,
		&p.PaymentMethod,
		&p.Status,
		&p.Seats,
		&voucherID,
		&pickupLat,
		&pickupLng,
		&p.CompletedRating,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.VoucherID = stringPtr(voucherID)
	if pickupLat.Valid && pickupLng.Valid {
		p.Pickup = &domain.Point{Lat: pickupLat.Float64, Lng: pickupLng.Float64}
	}
	return &p, nil
}

func nullPoint(p *domain.Point) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lat, Valid: true}, sql.NullFloat64{Float64: p.Lng, Valid: true}
}

// Ensure PassengerRepository implements repository.PassengerRepository.
var _ repository.PassengerRepository = (*PassengerRepository)(nil)
