package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// startWindow is how long before departure a driver may start a ride.
const startWindow = time.Hour

// GeoProvider resolves addresses and driving routes.
type GeoProvider interface {
	Geocode(ctx context.Context, p domain.Point) (string, error)
	Directions(ctx context.Context, from, to domain.Point) (*domain.Route, error)
}

// LocationStore keeps each driver's last-known position.
type LocationStore interface {
	UpdateLocation(ctx context.Context, driverID string, p domain.Point) error
	GetLocation(ctx context.Context, driverID string) (*domain.Point, error)
}

// RideCache caches ride records. Get returns nil on a miss.
type RideCache interface {
	Get(ctx context.Context, rideID string) (*domain.Ride, error)
	Set(ctx context.Context, ride *domain.Ride) error
	Invalidate(ctx context.Context, rideID string) error
}

// RideService manages the lifecycle of published rides.
type RideService struct {
	store      repository.Store
	fees       FeePolicy
	settlement *SettlementEngine
	geo        GeoProvider
	locations  LocationStore
	cache      RideCache
	events     Publisher
	now        func() time.Time
	log        logrus.FieldLogger
}

// RideDeps contains the collaborators of a RideService. Cache is optional.
type RideDeps struct {
	Store      repository.Store
	Fees       FeePolicy
	Settlement *SettlementEngine
	Geo        GeoProvider
	Locations  LocationStore
	Cache      RideCache
	Events     Publisher
	Now        func() time.Time
	Log        logrus.FieldLogger
}

// NewRideService creates a new RideService.
func NewRideService(deps RideDeps) *RideService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RideService{
		store:      deps.Store,
		fees:       deps.Fees,
		settlement: deps.Settlement,
		geo:        deps.Geo,
		locations:  deps.Locations,
		cache:      deps.Cache,
		events:     deps.Events,
		now:        now,
		log:        deps.Log,
	}
}

// PostRideRequest contains the parameters for publishing a ride.
type PostRideRequest struct {
	DriverID       string
	CommunityID    *string
	Origin         domain.Point
	Destination    domain.Point
	ScheduledAt    time.Time
	PricePerSeat   int64 // zero means use the suggested price
	SeatsAvailable int
	Gender         domain.Gender
	PickupEnabled  bool
}

func (r PostRideRequest) validate(now time.Time) error {
	if !r.Origin.Valid() || !r.Destination.Valid() {
		return ErrInvalidLocation
	}
	if r.SeatsAvailable < 1 {
		return ErrInvalidSeats
	}
	if !r.ScheduledAt.After(now) {
		return ErrInvalidSchedule
	}
	switch r.Gender {
	case "", domain.GenderAny, domain.GenderMale, domain.GenderFemale:
	default:
		return ErrInvalidGender
	}
	return nil
}

// PostRide publishes a new ride in SCHEDULED state.
func (s *RideService) PostRide(ctx context.Context, req PostRideRequest) (*domain.Ride, error) {
	now := s.now()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	originAddress, err := s.geo.Geocode(ctx, req.Origin)
	if err != nil {
		return nil, ErrRouteUnavailable.wrap(err)
	}
	destinationAddress, err := s.geo.Geocode(ctx, req.Destination)
	if err != nil {
		return nil, ErrRouteUnavailable.wrap(err)
	}
	route, err := s.geo.Directions(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, ErrRouteUnavailable.wrap(err)
	}

	price := req.PricePerSeat
	if price <= 0 {
		price = s.fees.SuggestedPrice(route.DistanceMeters)
	}
	gender := req.Gender
	if gender == "" {
		gender = domain.GenderAny
	}

	id := uuid.New().String()
	ride := &domain.Ride{
		ID:                 id,
		DriverID:           req.DriverID,
		CommunityID:        req.CommunityID,
		Origin:             req.Origin,
		Destination:        req.Destination,
		OriginAddress:      originAddress,
		DestinationAddress: destinationAddress,
		Polyline:           route.Polyline,
		DurationSeconds:    route.DurationSeconds,
		ScheduledAt:        req.ScheduledAt,
		PricePerSeat:       price,
		SeatsAvailable:     req.SeatsAvailable,
		DriverFee:          s.fees.DefaultDriverFeeRate,
		Gender:             gender,
		PickupEnabled:      req.PickupEnabled,
		Status:             domain.RideStatusScheduled,
		ChannelRef:         "ride-" + id,
		CreatedAt:          now,
	}

	if err := s.store.Repositories().Rides.Create(ctx, ride); err != nil {
		return nil, ErrInternal.wrap(err)
	}

	s.log.WithFields(logrus.Fields{"ride_id": ride.ID, "driver_id": ride.DriverID}).Info("ride posted")
	return ride, nil
}

// GetRide returns a ride, reading through the cache when one is configured.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if s.cache != nil {
		if ride, err := s.cache.Get(ctx, rideID); err == nil && ride != nil {
			return ride, nil
		} else if err != nil {
			s.log.WithField("ride_id", rideID).WithError(err).Warn("ride cache read failed")
		}
	}

	ride, err := s.store.Repositories().Rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, ErrInternal.wrap(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ride); err != nil {
			s.log.WithField("ride_id", rideID).WithError(err).Warn("ride cache write failed")
		}
	}
	return ride, nil
}

// ListRides returns a page of scheduled rides, newest first.
func (s *RideService) ListRides(ctx context.Context, page domain.PageRequest) ([]*domain.Ride, error) {
	rides, err := s.store.Repositories().Rides.ListScheduled(ctx, page.Normalize())
	if err != nil {
		return nil, ErrInternal.wrap(err)
	}
	return rides, nil
}

// StartRide moves a ride to ONGOING. Starting more than an hour before departure
// is refused with ErrTooEarlyToStart and false; the driver may retry later.
func (s *RideService) StartRide(ctx context.Context, rideID, driverUID string) (bool, error) {
	var ride *domain.Ride
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		r, err := s.lockRide(ctx, repos, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != driverUID {
			return ErrNotRideDriver
		}
		if r.Status != domain.RideStatusScheduled {
			return ErrInvalidRideState
		}
		if r.ScheduledAt.Sub(s.now()) > startWindow {
			return ErrTooEarlyToStart
		}

		if err := repos.Rides.UpdateStatus(ctx, r.ID, domain.RideStatusOngoing); err != nil {
			return err
		}
		r.Status = domain.RideStatusOngoing
		ride = r
		return nil
	})
	if err != nil {
		return false, orElse(err, ErrInternal)
	}

	s.invalidate(ctx, rideID)
	s.publish(channelEvent(ride.ChannelRef, "Ride started", "Your driver is on the way."))
	s.log.WithField("ride_id", rideID).Info("ride started")
	return true, nil
}

// CancelRide cancels a scheduled ride and reverses every active booking on it.
func (s *RideService) CancelRide(ctx context.Context, rideID, driverUID string) (*domain.Ride, error) {
	var (
		ride *domain.Ride
		out  outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		r, err := s.lockRide(ctx, repos, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != driverUID {
			return ErrNotRideDriver
		}
		if !r.Status.CanTransition(domain.RideStatusCancelled) {
			return ErrInvalidRideState
		}

		passengers, err := repos.Passengers.ListActiveByRide(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := s.settlement.CancelRideInvoices(ctx, repos, r, passengers, &out); err != nil {
			return err
		}

		if err := repos.Rides.UpdateStatus(ctx, r.ID, domain.RideStatusCancelled); err != nil {
			return err
		}
		r.Status = domain.RideStatusCancelled
		ride = r
		return nil
	})
	if err != nil {
		s.log.WithField("ride_id", rideID).WithError(err).Warn("ride cancellation failed")
		return nil, orElse(err, ErrInternal)
	}

	s.invalidate(ctx, rideID)
	out.publish(s.events)
	s.log.WithField("ride_id", rideID).Info("ride cancelled")
	return ride, nil
}

// Checkout completes an ongoing ride: ENROUTE passengers arrive and are settled,
// and the ride becomes COMPLETED, all in one transaction.
func (s *RideService) Checkout(ctx context.Context, rideID, driverUID string) (*domain.Ride, error) {
	var (
		ride *domain.Ride
		out  outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		r, err := s.lockRide(ctx, repos, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != driverUID {
			return ErrNotRideDriver
		}
		if !r.Status.CanTransition(domain.RideStatusCompleted) {
			return ErrInvalidRideState
		}

		passengers, err := repos.Passengers.ListActiveByRide(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := s.settlement.CheckoutRide(ctx, repos, r, passengers); err != nil {
			return err
		}

		now := s.now()
		for _, p := range passengers {
			if p.Status != domain.PassengerStatusEnroute {
				continue
			}
			p.Status = domain.PassengerStatusArrived
			p.UpdatedAt = now
			if err := repos.Passengers.Update(ctx, p); err != nil {
				return err
			}
			out.add(userEvent(p.UserID, "You have arrived", "Thanks for riding with us."))
		}

		if err := repos.Rides.UpdateStatus(ctx, r.ID, domain.RideStatusCompleted); err != nil {
			return err
		}
		r.Status = domain.RideStatusCompleted
		ride = r
		return nil
	})
	if err != nil {
		s.log.WithField("ride_id", rideID).WithError(err).Error("ride checkout failed")
		return nil, orElse(err, ErrInternal)
	}

	s.invalidate(ctx, rideID)
	out.publish(s.events)
	s.log.WithField("ride_id", rideID).Info("ride completed")
	return ride, nil
}

// DriverLocation returns the last-known location of a ride's driver, or nil if
// the driver has not reported one.
func (s *RideService) DriverLocation(ctx context.Context, rideID string) (*domain.Point, error) {
	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	p, err := s.locations.GetLocation(ctx, ride.DriverID)
	if err != nil {
		return nil, ErrInternal.wrap(err)
	}
	return p, nil
}

// UpdateDriverLocation records a driver's current position.
func (s *RideService) UpdateDriverLocation(ctx context.Context, driverUID string, p domain.Point) error {
	if !p.Valid() {
		return ErrInvalidLocation
	}
	if err := s.locations.UpdateLocation(ctx, driverUID, p); err != nil {
		return ErrInternal.wrap(err)
	}
	return nil
}

func (s *RideService) lockRide(ctx context.Context, repos repository.Repositories, rideID string) (*domain.Ride, error) {
	r, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, rideID); err != nil {
		s.log.WithField("ride_id", rideID).WithError(err).Warn("ride cache invalidation failed")
	}
}

func (s *RideService) publish(ev Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
