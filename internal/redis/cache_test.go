package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
)

// setupMiniredis starts an in-memory Redis server and a client connected to it.
func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func testRide() *domain.Ride {
	community := "community-1"
	return &domain.Ride{
		ID:                 "ride-1",
		DriverID:           "driver-1",
		CommunityID:        &community,
		Origin:             domain.Point{Lat: 24.7136, Lng: 46.6753},
		Destination:        domain.Point{Lat: 21.4858, Lng: 39.1925},
		OriginAddress:      "Riyadh",
		DestinationAddress: "Jeddah",
		Polyline:           "abc",
		DurationSeconds:    3600,
		ScheduledAt:        time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		PricePerSeat:       100,
		SeatsAvailable:     3,
		DriverFee:          0.1,
		Gender:             domain.GenderAny,
		PickupEnabled:      true,
		Status:             domain.RideStatusScheduled,
		ChannelRef:         "rides/ride-1",
		CreatedAt:          time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRideCache_MissReturnsNil(t *testing.T) {
	_, client := setupMiniredis(t)
	cache := NewRideCache(client)

	ride, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, ride)
}

func TestRideCache_SetThenGet(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRideCache(client)
	ctx := context.Background()
	want := testRide()

	require.NoError(t, cache.Set(ctx, want))
	assert.True(t, mr.Exists("cache:ride:ride-1"))
	assert.Equal(t, RideCacheTTL, mr.TTL("cache:ride:ride-1"))

	got, err := cache.Get(ctx, "ride-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.DriverID, got.DriverID)
	require.NotNil(t, got.CommunityID)
	assert.Equal(t, "community-1", *got.CommunityID)
	assert.Equal(t, want.Origin, got.Origin)
	assert.Equal(t, want.Destination, got.Destination)
	assert.True(t, want.ScheduledAt.Equal(got.ScheduledAt))
	assert.Equal(t, want.PricePerSeat, got.PricePerSeat)
	assert.Equal(t, want.SeatsAvailable, got.SeatsAvailable)
	assert.Equal(t, want.DriverFee, got.DriverFee)
	assert.Equal(t, want.Gender, got.Gender)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, got.PickupEnabled)
}

func TestRideCache_EntryExpires(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRideCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testRide()))
	mr.FastForward(RideCacheTTL + time.Second)

	got, err := cache.Get(ctx, "ride-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRideCache_Invalidate(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRideCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testRide()))
	require.NoError(t, cache.Invalidate(ctx, "ride-1"))
	assert.False(t, mr.Exists("cache:ride:ride-1"))

	got, err := cache.Get(ctx, "ride-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Invalidating an absent entry is not an error.
	assert.NoError(t, cache.Invalidate(ctx, "ride-1"))
}

func TestRideCache_CorruptEntry(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRideCache(client)
	require.NoError(t, mr.Set("cache:ride:ride-1", "{not json"))

	got, err := cache.Get(context.Background(), "ride-1")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestRideCache_ServerDown(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewRideCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "ride-1")
	assert.Error(t, err)
}
