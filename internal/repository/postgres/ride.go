package postgres

import (
	"context"
	"database/sql"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

const rideColumns = `id, driver_id, community_id, origin_lat, origin_lng, destination_lat, destination_lng,
	origin_address, destination_address, polyline, duration_seconds, scheduled_at, price_per_seat,
	seats_available, driver_fee, gender, pickup_enabled, status, channel_ref, created_at`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		nullString(ride.CommunityID),
		ride.Origin.Lat,
		ride.Origin.Lng,
		ride.Destination.Lat,
		ride.Destination.Lng,
		ride.OriginAddress,
		ride.DestinationAddress,
		ride.Polyline,
		ride.DurationSeconds,
		ride.ScheduledAt,
		ride.PricePerSeat,
		ride.SeatsAvailable,
		ride.DriverFee,
		ride.Gender,
		ride.PickupEnabled,
		ride.Status,
		ride.ChannelRef,
		ride.CreatedAt,
	)
	return mapError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	return r.get(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a ride by ID and locks its row until the transaction ends.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.get(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
}

func (r *RideRepository) get(ctx context.Context, query, id string) (*domain.Ride, error) {
	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return ride, nil
}

// UpdateStatus sets the status of a ride.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, status domain.RideStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE rides SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ListScheduled returns scheduled rides, newest first.
func (r *RideRepository) ListScheduled(ctx context.Context, page domain.PageRequest) ([]*domain.Ride, error) {
	page = page.Normalize()
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE status = $1
		  AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM rides WHERE id = $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, domain.RideStatusScheduled, page.Cursor, page.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var communityID sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&communityID,
		&ride.Origin.Lat,
		&ride.Origin.Lng,
		&ride.Destination.Lat,
		&ride.Destination.Lng,
		&ride.OriginAddress,
		&ride.DestinationAddress,
		&ride.Polyline,
		&ride.DurationSeconds,
		&ride.ScheduledAt,
		&ride.PricePerSeat,
		&ride.SeatsAvailable,
		&ride.DriverFee,
		&ride.Gender,
		&ride.PickupEnabled,
		&ride.Status,
		&ride.ChannelRef,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ride.CommunityID = stringPtr(communityID)
	return &ride, nil
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
