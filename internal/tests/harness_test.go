package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
	"carpool/internal/logger"
	"carpool/internal/payment"
	"carpool/internal/service"
)

const (
	driverID = "driver-1"
	aliceID  = "alice"
	bobID    = "bob"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	store     *MemoryStore
	clock     *Clock
	events    *RecordingPublisher
	refunder  *RecordingRefunder
	signer    *payment.HMACSigner
	gateway   *payment.CallbackVerifier
	cache     *MemoryRideCache
	locations *MemoryLocationStore
	geo       *FakeGeo

	bookings *service.BookingService
	rides    *service.RideService
	vouchers *service.VoucherService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     NewMemoryStore(),
		clock:     NewClock(baseTime),
		events:    &RecordingPublisher{},
		refunder:  &RecordingRefunder{},
		signer:    payment.NewHMACSigner("test-secret"),
		gateway:   payment.NewCallbackVerifier("webhook-secret"),
		cache:     NewMemoryRideCache(),
		locations: NewMemoryLocationStore(),
		geo: &FakeGeo{
			Address: "Somewhere St",
			Route:   domain.Route{Polyline: "abc", DurationSeconds: 1200, DistanceMeters: 20000},
		},
	}

	log := logger.Discard()
	fees := service.DefaultFeePolicy()
	validator := service.NewVoucherValidator(h.clock.Now)
	settlement := service.NewSettlementEngine(fees, h.clock.Now, log)

	h.bookings = service.NewBookingService(service.BookingDeps{
		Store:      h.store,
		Fees:       fees,
		Vouchers:   validator,
		Settlement: settlement,
		Signer:     h.signer,
		Captures:   h.gateway,
		Refunder:   h.refunder,
		Events:     h.events,
		Now:        h.clock.Now,
		Log:        log,
	})
	h.rides = service.NewRideService(service.RideDeps{
		Store:      h.store,
		Fees:       fees,
		Settlement: settlement,
		Geo:        h.geo,
		Locations:  h.locations,
		Cache:      h.cache,
		Events:     h.events,
		Now:        h.clock.Now,
		Log:        log,
	})
	h.vouchers = service.NewVoucherService(h.store, validator)

	h.store.AddUser(&domain.User{ID: driverID, Name: "Driver", Gender: domain.GenderMale})
	h.store.AddUser(&domain.User{ID: aliceID, Name: "Alice", Gender: domain.GenderFemale})
	h.store.AddUser(&domain.User{ID: bobID, Name: "Bob", Gender: domain.GenderMale})
	return h
}

// seedRide adds a scheduled ride priced at 100 per seat with a 10% driver fee.
func (h *harness) seedRide(id string, seats int, departsIn, createdAgo time.Duration) *domain.Ride {
	ride := &domain.Ride{
		ID:             id,
		DriverID:       driverID,
		ScheduledAt:    h.clock.Now().Add(departsIn),
		PricePerSeat:   100,
		SeatsAvailable: seats,
		DriverFee:      0.1,
		Gender:         domain.GenderAny,
		PickupEnabled:  true,
		Status:         domain.RideStatusScheduled,
		ChannelRef:     "ride-" + id,
		CreatedAt:      h.clock.Now().Add(-createdAgo),
	}
	h.store.AddRide(ride)
	return ride
}

func (h *harness) book(t *testing.T, uid, rideID string, method domain.PaymentMethod, seats int) *service.BookResult {
	t.Helper()
	res, err := h.bookings.BookRide(context.Background(), service.BookRequest{
		UserID:        uid,
		RideID:        rideID,
		PaymentMethod: method,
		Seats:         seats,
	})
	require.NoError(t, err)
	return res
}

// pay confirms a card booking the way the gateway callback would, for the amount
// the booking result asked for.
func (h *harness) pay(t *testing.T, res *service.BookResult, reference string) *domain.Invoice {
	t.Helper()
	inv, err := h.capture(res, reference)
	require.NoError(t, err)
	return inv
}

func (h *harness) capture(res *service.BookResult, reference string) (*domain.Invoice, error) {
	sig := h.gateway.Sign(res.Passenger.ID, reference, res.Invoice.Outstanding())
	return h.bookings.ConfirmPayment(context.Background(), res.Passenger.ID, reference, sig)
}

func (h *harness) advance(d time.Duration) {
	h.clock.Set(h.clock.Now().Add(d))
}

func occupiedSeats(h *harness, rideID string) int {
	return domain.OccupiedSeats(h.store.PassengersOfRide(rideID))
}
