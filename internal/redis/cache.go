package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"carpool/internal/domain"
)

// RideCacheTTL bounds staleness for readers that miss an invalidation.
const RideCacheTTL = 30 * time.Second

const rideCachePrefix = "cache:ride:"

// RideCache is a read-through cache of ride records.
type RideCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRideCache creates a new RideCache.
func NewRideCache(client *redis.Client) *RideCache {
	return &RideCache{client: client, ttl: RideCacheTTL}
}

type cachedPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type cachedRide struct {
	ID                 string      `json:"id"`
	DriverID           string      `json:"driver_id"`
	CommunityID        *string     `json:"community_id,omitempty"`
	Origin             cachedPoint `json:"origin"`
	Destination        cachedPoint `json:"destination"`
	OriginAddress      string      `json:"origin_address"`
	DestinationAddress string      `json:"destination_address"`
	Polyline           string      `json:"polyline"`
	DurationSeconds    int         `json:"duration_seconds"`
	ScheduledAt        time.Time   `json:"scheduled_at"`
	PricePerSeat       int64       `json:"price_per_seat"`
	SeatsAvailable     int         `json:"seats_available"`
	DriverFee          float64     `json:"driver_fee"`
	Gender             string      `json:"gender"`
	PickupEnabled      bool        `json:"pickup_enabled"`
	Status             string      `json:"status"`
	ChannelRef         string      `json:"channel_ref"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Get returns a cached ride, or nil on a cache miss.
func (c *RideCache) Get(ctx context.Context, rideID string) (*domain.Ride, error) {
	data, err := c.client.Get(ctx, rideCachePrefix+rideID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cr cachedRide
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, err
	}
	return &domain.Ride{
		ID:                 cr.ID,
		DriverID:           cr.DriverID,
		CommunityID:        cr.CommunityID,
		Origin:             domain.Point{Lat: cr.Origin.Lat, Lng: cr.Origin.Lng},
		Destination:        domain.Point{Lat: cr.Destination.Lat, Lng: cr.Destination.Lng},
		OriginAddress:      cr.OriginAddress,
		DestinationAddress: cr.DestinationAddress,
		Polyline:           cr.Polyline,
		DurationSeconds:    cr.DurationSeconds,
		ScheduledAt:        cr.ScheduledAt,
		PricePerSeat:       cr.PricePerSeat,
		SeatsAvailable:     cr.SeatsAvailable,
		DriverFee:          cr.DriverFee,
		Gender:             domain.Gender(cr.Gender),
		PickupEnabled:      cr.PickupEnabled,
		Status:             domain.RideStatus(cr.Status),
		ChannelRef:         cr.ChannelRef,
		CreatedAt:          cr.CreatedAt,
	}, nil
}

// Set stores a ride.
func (c *RideCache) Set(ctx context.Context, ride *domain.Ride) error {
	data, err := json.Marshal(cachedRide{
		ID:                 ride.ID,
		DriverID:           ride.DriverID,
		CommunityID:        ride.CommunityID,
		Origin:             cachedPoint{Lat: ride.Origin.Lat, Lng: ride.Origin.Lng},
		Destination:        cachedPoint{Lat: ride.Destination.Lat, Lng: ride.Destination.Lng},
		OriginAddress:      ride.OriginAddress,
		DestinationAddress: ride.DestinationAddress,
		Polyline:           ride.Polyline,
		DurationSeconds:    ride.DurationSeconds,
		ScheduledAt:        ride.ScheduledAt,
		PricePerSeat:       ride.PricePerSeat,
		SeatsAvailable:     ride.SeatsAvailable,
		DriverFee:          ride.DriverFee,
		Gender:             string(ride.Gender),
		PickupEnabled:      ride.PickupEnabled,
		Status:             string(ride.Status),
		ChannelRef:         ride.ChannelRef,
		CreatedAt:          ride.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rideCachePrefix+ride.ID, data, c.ttl).Err()
}

// Invalidate removes a ride from the cache.
func (c *RideCache) Invalidate(ctx context.Context, rideID string) error {
	return c.client.Del(ctx, rideCachePrefix+rideID).Err()
}
