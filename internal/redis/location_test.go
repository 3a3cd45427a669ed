package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
)

func TestLocationStore_UpdateAndGet(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewLocationStore(client)
	ctx := context.Background()

	require.NoError(t, store.UpdateLocation(ctx, "driver-1", domain.Point{Lat: 24.7136, Lng: 46.6753}))
	assert.True(t, mr.Exists(driverLocationKey))

	got, err := store.GetLocation(ctx, "driver-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	// GEO encoding is lossy below a metre.
	assert.InDelta(t, 24.7136, got.Lat, 0.0001)
	assert.InDelta(t, 46.6753, got.Lng, 0.0001)
}

func TestLocationStore_LatestPositionWins(t *testing.T) {
	_, client := setupMiniredis(t)
	store := NewLocationStore(client)
	ctx := context.Background()

	require.NoError(t, store.UpdateLocation(ctx, "driver-1", domain.Point{Lat: 24.7136, Lng: 46.6753}))
	require.NoError(t, store.UpdateLocation(ctx, "driver-1", domain.Point{Lat: 21.4858, Lng: 39.1925}))

	got, err := store.GetLocation(ctx, "driver-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 21.4858, got.Lat, 0.0001)
	assert.InDelta(t, 39.1925, got.Lng, 0.0001)
}

func TestLocationStore_UnknownDriver(t *testing.T) {
	_, client := setupMiniredis(t)
	store := NewLocationStore(client)
	ctx := context.Background()

	require.NoError(t, store.UpdateLocation(ctx, "driver-1", domain.Point{Lat: 24.7136, Lng: 46.6753}))

	got, err := store.GetLocation(ctx, "driver-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
