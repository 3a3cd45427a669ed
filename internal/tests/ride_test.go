package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
	"carpool/internal/logger"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// 1. POSTING RIDES
// ──────────────────────────────────────────────

func validPostRequest(h *harness) service.PostRideRequest {
	return service.PostRideRequest{
		DriverID:       driverID,
		Origin:         domain.Point{Lat: 24.71, Lng: 46.67},
		Destination:    domain.Point{Lat: 21.54, Lng: 39.17},
		ScheduledAt:    h.clock.Now().Add(24 * time.Hour),
		SeatsAvailable: 3,
	}
}

func TestPostRide_FillsRouteAndSuggestedPrice(t *testing.T) {
	h := newHarness(t)

	ride, err := h.rides.PostRide(context.Background(), validPostRequest(h))
	require.NoError(t, err)

	assert.Equal(t, domain.RideStatusScheduled, ride.Status)
	assert.Equal(t, "Somewhere St", ride.OriginAddress)
	assert.Equal(t, "abc", ride.Polyline)
	assert.Equal(t, 1200, ride.DurationSeconds)
	assert.Equal(t, int64(15), ride.PricePerSeat, "5 base + 20km at 0.5")
	assert.Equal(t, 0.1, ride.DriverFee)
	assert.Equal(t, domain.GenderAny, ride.Gender)
	assert.Equal(t, "ride-"+ride.ID, ride.ChannelRef)
	assert.NotNil(t, h.store.Ride(ride.ID))
}

func TestPostRide_KeepsExplicitPrice(t *testing.T) {
	h := newHarness(t)
	req := validPostRequest(h)
	req.PricePerSeat = 80
	req.Gender = domain.GenderFemale

	ride, err := h.rides.PostRide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(80), ride.PricePerSeat)
	assert.Equal(t, domain.GenderFemale, ride.Gender)
}

func TestPostRide_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *harness, r *service.PostRideRequest)
		want   *service.Error
	}{
		{"bad origin", func(_ *harness, r *service.PostRideRequest) { r.Origin.Lat = 91 }, service.ErrInvalidLocation},
		{"no seats", func(_ *harness, r *service.PostRideRequest) { r.SeatsAvailable = 0 }, service.ErrInvalidSeats},
		{"in the past", func(h *harness, r *service.PostRideRequest) { r.ScheduledAt = h.clock.Now().Add(-time.Minute) }, service.ErrInvalidSchedule},
		{"unknown gender", func(_ *harness, r *service.PostRideRequest) { r.Gender = "OTHER" }, service.ErrInvalidGender},
		{"no route", func(h *harness, _ *service.PostRideRequest) { h.geo.Err = errors.New("ZERO_RESULTS") }, service.ErrRouteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validPostRequest(h)
			tt.mutate(h, &req)

			_, err := h.rides.PostRide(context.Background(), req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, service.KindBadRequest, service.KindOf(err))
		})
	}
}

// ──────────────────────────────────────────────
// 2. READING RIDES
// ──────────────────────────────────────────────

func TestGetRide_ReadsThroughCache(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 10*time.Hour, time.Hour)
	ctx := context.Background()

	_, err := h.rides.GetRide(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.cache.Hits))

	_, err = h.rides.GetRide(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.cache.Hits))

	_, err = h.rides.CancelRide(ctx, "r1", driverID)
	require.NoError(t, err)
	ride, err := h.rides.GetRide(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RideStatusCancelled, ride.Status, "status change must evict the cached ride")

	_, err = h.rides.GetRide(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrRideNotFound)
}

func TestListRides_OnlyScheduled(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 10*time.Hour, 3*time.Hour)
	h.seedRide("r2", 4, 10*time.Hour, 2*time.Hour)
	h.seedRide("r3", 4, 10*time.Hour, time.Hour)
	_, err := h.rides.CancelRide(context.Background(), "r2", driverID)
	require.NoError(t, err)

	rides, err := h.rides.ListRides(context.Background(), domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, rides, 2)
	assert.Equal(t, "r3", rides[0].ID)
	assert.Equal(t, "r1", rides[1].ID)
}

func TestDriverLocation(t *testing.T) {
	h := newHarness(t)
	h.seedRide("r1", 4, 10*time.Hour, time.Hour)
	ctx := context.Background()

	p, err := h.rides.DriverLocation(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, h.rides.UpdateDriverLocation(ctx, driverID, domain.Point{Lat: 24.7, Lng: 46.7}))
	p, err = h.rides.DriverLocation(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 24.7, p.Lat)

	err = h.rides.UpdateDriverLocation(ctx, driverID, domain.Point{Lat: 200})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)
}

// ──────────────────────────────────────────────
// 3. VOUCHER QUOTES
// ──────────────────────────────────────────────

func TestVoucherCheck(t *testing.T) {
	h := newHarness(t)
	h.store.AddVoucher(&domain.Voucher{
		ID: "v1", Code: "TEN", Type: domain.VoucherTypeFixed, Value: 10, MaxValue: 10,
		MaxUses: 3, ExpiresAt: baseTime.Add(time.Hour),
	})
	ctx := context.Background()

	quote, err := h.vouchers.Check(ctx, "TEN", aliceID, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(10), quote.Discount)
	assert.Equal(t, 0, h.store.Voucher("v1").CurrentUses, "checking must not consume a use")

	_, err = h.vouchers.Check(ctx, "NOPE", aliceID, 200)
	assert.ErrorIs(t, err, service.ErrVoucherNotFound)

	h.advance(2 * time.Hour)
	_, err = h.vouchers.Check(ctx, "TEN", aliceID, 200)
	assert.ErrorIs(t, err, service.ErrVoucherNotFound)
}

// ──────────────────────────────────────────────
// 4. NOTIFICATIONS AFTER COMMIT
// ──────────────────────────────────────────────

func TestNotificationQueue_DeliversBookingEvents(t *testing.T) {
	h := newHarness(t)
	dispatcher := &RecordingDispatcher{}
	queue := service.NewNotificationQueue(dispatcher, 16, logger.Discard())

	bookings := service.NewBookingService(service.BookingDeps{
		Store:      h.store,
		Fees:       service.DefaultFeePolicy(),
		Vouchers:   service.NewVoucherValidator(h.clock.Now),
		Settlement: service.NewSettlementEngine(service.DefaultFeePolicy(), h.clock.Now, logger.Discard()),
		Signer:     h.signer,
		Refunder:   h.refunder,
		Events:     queue,
		Now:        h.clock.Now,
		Log:        logger.Discard(),
	})
	h.seedRide("r1", 4, 10*time.Hour, time.Hour)

	_, err := bookings.BookRide(context.Background(), service.BookRequest{
		UserID: aliceID, RideID: "r1", PaymentMethod: domain.PaymentMethodCash, Seats: 1,
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		queue.Run(context.Background())
		close(done)
	}()
	queue.Close()
	<-done

	users, _ := dispatcher.Delivered()
	assert.Equal(t, []string{driverID}, users)
}
