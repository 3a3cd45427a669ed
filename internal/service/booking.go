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

// OrderSigner signs the payment order the client hands to the gateway.
type OrderSigner interface {
	Sign(passengerID, userID string, amount int64) string
}

// Capture is a card payment the gateway reports for a booking.
type Capture struct {
	PassengerID string
	Reference   string
	Amount      int64
	Signature   string
}

// CaptureVerifier confirms with the gateway that a reported capture happened for
// the given booking and amount. A capture that cannot be confirmed is reported as
// ErrInvalidPaymentSignature.
type CaptureVerifier interface {
	VerifyCapture(ctx context.Context, c Capture) error
}

// Refunder returns a captured card payment.
type Refunder interface {
	Refund(ctx context.Context, reference string, amount int64) error
}

// BookingService manages passenger bookings on rides.
type BookingService struct {
	store      repository.Store
	fees       FeePolicy
	vouchers   *VoucherValidator
	settlement *SettlementEngine
	signer     OrderSigner
	captures   CaptureVerifier
	refunder   Refunder
	events     Publisher
	now        func() time.Time
	log        logrus.FieldLogger
}

// BookingDeps contains the collaborators of a BookingService.
type BookingDeps struct {
	Store      repository.Store
	Fees       FeePolicy
	Vouchers   *VoucherValidator
	Settlement *SettlementEngine
	Signer     OrderSigner
	Captures   CaptureVerifier
	Refunder   Refunder
	Events     Publisher
	Now        func() time.Time
	Log        logrus.FieldLogger
}

// NewBookingService creates a new BookingService.
func NewBookingService(deps BookingDeps) *BookingService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		store:      deps.Store,
		fees:       deps.Fees,
		vouchers:   deps.Vouchers,
		settlement: deps.Settlement,
		signer:     deps.Signer,
		captures:   deps.Captures,
		refunder:   deps.Refunder,
		events:     deps.Events,
		now:        now,
		log:        deps.Log,
	}
}

// BookRequest contains the parameters for booking or rebooking seats.
type BookRequest struct {
	UserID        string
	RideID        string
	PaymentMethod domain.PaymentMethod
	Seats         int
	VoucherCode   string
	Pickup        *domain.Point
}

// BookResult is the booking and its invoice. PaymentHash signs the amount still to
// be paid by card and is empty when nothing is owed.
type BookResult struct {
	Passenger   *domain.Passenger
	Invoice     *domain.Invoice
	PaymentHash string
}

func (r BookRequest) validate() error {
	if r.Seats < 1 {
		return ErrInvalidSeats
	}
	if r.PaymentMethod != domain.PaymentMethodCash && r.PaymentMethod != domain.PaymentMethodCard {
		return ErrInvalidPaymentMethod
	}
	if r.Pickup != nil && !r.Pickup.Valid() {
		return ErrInvalidLocation
	}
	return nil
}

// BookRide reserves seats for a user, or updates the user's existing booking on the
// ride. Capacity is checked against the locked ride row in the same transaction that
// writes the booking.
func (s *BookingService) BookRide(ctx context.Context, req BookRequest) (*BookResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		result *BookResult
		out    outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRideNotFound
			}
			return err
		}

		now := s.now()
		if ride.Status != domain.RideStatusScheduled || !ride.ScheduledAt.After(now) {
			return ErrRideUnavailable
		}

		user, err := repos.Users.GetByID(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if ride.Gender != "" && ride.Gender != domain.GenderAny && user.Gender != ride.Gender {
			return ErrGenderRestricted
		}
		if req.Pickup != nil && !ride.PickupEnabled {
			return ErrPickupDisabled
		}

		existing, err := repos.Passengers.GetActiveForUpdate(ctx, req.UserID, req.RideID)
		if err != nil {
			return err
		}

		active, err := repos.Passengers.ListActiveByRide(ctx, req.RideID)
		if err != nil {
			return err
		}
		occupied := domain.OccupiedSeats(active)

		added := req.Seats
		if existing != nil {
			if !existing.Status.BeforeArrival() {
				return ErrInvalidBookingState
			}
			if req.Seats < existing.Seats {
				return ErrSeatDecrease
			}
			added = req.Seats - existing.Seats
		}
		if occupied+added > ride.SeatsAvailable {
			return ErrRideFull
		}

		if existing == nil {
			result, err = s.createBooking(ctx, repos, ride, user, req, now)
		} else {
			result, err = s.rebook(ctx, repos, ride, user, existing, req, now)
		}
		if err != nil {
			return err
		}

		out.add(userEvent(ride.DriverID, "New booking", "A passenger booked seats on your ride."))
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"ride_id": req.RideID,
			"user_id": req.UserID,
		}).WithError(err).Warn("booking failed")
		return nil, orElse(err, ErrBookingFailed)
	}

	out.publish(s.events)

	if owed := result.Invoice.Outstanding(); result.Passenger.PaymentMethod == domain.PaymentMethodCard && owed > 0 {
		result.PaymentHash = s.signer.Sign(result.Passenger.ID, result.Passenger.UserID, owed)
	}
	return result, nil
}

func (s *BookingService) createBooking(ctx context.Context, repos repository.Repositories, ride *domain.Ride, user *domain.User, req BookRequest, now time.Time) (*BookResult, error) {
	var voucher *domain.Voucher
	if req.VoucherCode != "" {
		v, err := s.vouchers.Validate(ctx, repos, req.VoucherCode, req.UserID)
		if err != nil {
			return nil, err
		}
		if err := repos.Vouchers.IncrementUses(ctx, v.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, ErrVoucherExhausted
			}
			return nil, err
		}
		voucher = v
	}

	status := domain.PassengerStatusConfirmed
	if req.PaymentMethod == domain.PaymentMethodCard {
		status = domain.PassengerStatusAwaitingPayment
	}

	p := &domain.Passenger{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		RideID:        ride.ID,
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		Seats:         req.Seats,
		Pickup:        req.Pickup,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if voucher != nil {
		p.VoucherID = &voucher.ID
	}
	if err := repos.Passengers.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRideUnavailable
		}
		return nil, err
	}

	inv := &domain.Invoice{
		ID:            uuid.New().String(),
		PassengerID:   p.ID,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Reference:     uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.fees.ComputeInvoice(inv, InvoiceInput{
		Seats:          req.Seats,
		PaymentMethod:  req.PaymentMethod,
		Ride:           ride,
		Voucher:        voucher,
		PickupAddition: s.fees.PickupAddition(req.Pickup),
		UserBalance:    user.Balance,
	})
	if err := repos.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	return &BookResult{Passenger: p, Invoice: inv}, nil
}

// rebook grows an existing booking and recomputes its invoice in place. Card money
// already captured stays on the invoice, so only the difference is charged.
func (s *BookingService) rebook(ctx context.Context, repos repository.Repositories, ride *domain.Ride, user *domain.User, p *domain.Passenger, req BookRequest, now time.Time) (*BookResult, error) {
	inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod == domain.PaymentMethodCash && inv.CapturedAmount > 0 {
		return nil, ErrCardPaymentCaptured
	}

	var voucher *domain.Voucher
	if p.VoucherID != nil {
		if voucher, err = repos.Vouchers.GetByID(ctx, *p.VoucherID); err != nil {
			return nil, err
		}
	}

	s.fees.ComputeInvoice(inv, InvoiceInput{
		Seats:          req.Seats,
		PaymentMethod:  req.PaymentMethod,
		Ride:           ride,
		Voucher:        voucher,
		PickupAddition: s.fees.PickupAddition(req.Pickup),
		UserBalance:    user.Balance,
	})

	switch {
	case req.PaymentMethod == domain.PaymentMethodCash:
		inv.PaymentStatus = domain.PaymentStatusUnpaid
		if p.Status == domain.PassengerStatusAwaitingPayment {
			p.Status = domain.PassengerStatusConfirmed
		}
	case inv.Outstanding() > 0:
		inv.PaymentStatus = domain.PaymentStatusUnpaid
		p.Status = domain.PassengerStatusAwaitingPayment
	default:
		inv.PaymentStatus = domain.PaymentStatusPaid
		if p.Status == domain.PassengerStatusAwaitingPayment {
			p.Status = domain.PassengerStatusConfirmed
		}
	}
	inv.UpdatedAt = now
	if err := repos.Invoices.Update(ctx, inv); err != nil {
		return nil, err
	}

	p.Seats = req.Seats
	p.Pickup = req.Pickup
	p.PaymentMethod = req.PaymentMethod
	p.UpdatedAt = now
	if err := repos.Passengers.Update(ctx, p); err != nil {
		return nil, err
	}

	return &BookResult{Passenger: p, Invoice: inv}, nil
}

// CheckIn marks a passenger as picked up. Checking in an ENROUTE passenger again is a no-op.
func (s *BookingService) CheckIn(ctx context.Context, rideID, passengerUID, driverUID string) (*domain.Passenger, error) {
	var (
		passenger *domain.Passenger
		out       outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := s.lockDriversPassenger(ctx, repos, rideID, passengerUID, driverUID)
		if err != nil {
			return err
		}
		passenger = p

		switch p.Status {
		case domain.PassengerStatusEnroute:
			return nil
		case domain.PassengerStatusAwaitingPayment, domain.PassengerStatusConfirmed:
		default:
			return ErrInvalidBookingState
		}

		p.Status = domain.PassengerStatusEnroute
		p.UpdatedAt = s.now()
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return err
		}
		out.add(userEvent(p.UserID, "Checked in", "Enjoy your ride!"))
		return nil
	})
	if err != nil {
		return nil, orElse(err, ErrInternal)
	}

	out.publish(s.events)
	return passenger, nil
}

// NoShow marks a passenger who never turned up.
func (s *BookingService) NoShow(ctx context.Context, rideID, passengerUID, driverUID string) (*domain.Passenger, error) {
	var (
		passenger *domain.Passenger
		out       outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := s.lockDriversPassenger(ctx, repos, rideID, passengerUID, driverUID)
		if err != nil {
			return err
		}
		if !p.Status.BeforeArrival() {
			return ErrInvalidBookingState
		}

		p.Status = domain.PassengerStatusNoShow
		p.UpdatedAt = s.now()
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return err
		}
		passenger = p
		out.add(userEvent(p.UserID, "Marked as no-show", "The driver reported that you did not show up."))
		return nil
	})
	if err != nil {
		return nil, orElse(err, ErrInternal)
	}

	out.publish(s.events)
	return passenger, nil
}

func (s *BookingService) lockDriversPassenger(ctx context.Context, repos repository.Repositories, rideID, passengerUID, driverUID string) (*domain.Passenger, error) {
	ride, err := repos.Rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}
	if ride.DriverID != driverUID {
		return nil, ErrNotRideDriver
	}

	p, err := repos.Passengers.GetActiveForUpdate(ctx, passengerUID, rideID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrBookingNotFound
	}
	return p, nil
}

// CancelPassenger withdraws a user's booking from a scheduled ride and settles its invoice.
func (s *BookingService) CancelPassenger(ctx context.Context, rideID, uid string) (*domain.Invoice, error) {
	var (
		invoice *domain.Invoice
		out     outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRideNotFound
			}
			return err
		}
		if ride.Status != domain.RideStatusScheduled {
			return ErrInvalidRideState
		}

		p, err := repos.Passengers.GetActiveForUpdate(ctx, uid, rideID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrBookingNotFound
		}
		if !p.Status.BeforeArrival() {
			return ErrInvalidBookingState
		}

		if invoice, err = s.settlement.CancelPassengerInvoice(ctx, repos, ride, p); err != nil {
			return err
		}

		p.Status = domain.PassengerStatusCancelled
		p.UpdatedAt = s.now()
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return err
		}
		out.add(userEvent(ride.DriverID, "Booking cancelled", "A passenger cancelled their booking."))
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"ride_id": rideID, "user_id": uid}).WithError(err).Warn("passenger cancellation failed")
		return nil, orElse(err, ErrInternal)
	}

	out.publish(s.events)
	return invoice, nil
}

// ForceCancelPassenger abandons a card booking whose payment never completed. No
// money moved, so balances are left untouched.
func (s *BookingService) ForceCancelPassenger(ctx context.Context, passengerID, callerUID, invoiceID string) (*domain.Passenger, error) {
	var passenger *domain.Passenger
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := repos.Passengers.GetByIDForUpdate(ctx, passengerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if p.UserID != callerUID {
			return ErrNotBookingOwner
		}

		inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}
		if inv.ID != invoiceID {
			return ErrInvoiceMismatch
		}
		if p.Status != domain.PassengerStatusAwaitingPayment {
			return ErrNotAwaitingPayment
		}
		if inv.CapturedAmount > 0 {
			return ErrCardPaymentCaptured
		}

		now := s.now()
		inv.PaymentStatus = domain.PaymentStatusReversed
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}

		p.Status = domain.PassengerStatusCancelled
		p.UpdatedAt = now
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return err
		}
		passenger = p
		return nil
	})
	if err != nil {
		return nil, orElse(err, ErrInternal)
	}
	return passenger, nil
}

// ConfirmPayment records a card capture reported by the gateway for the amount the
// booking still owes. The capture is checked with the CaptureVerifier; the order
// hash handed to the client never authenticates a callback. A verified capture
// that can no longer be applied is refunded. Replaying the reference that settled
// the invoice returns the invoice unchanged.
func (s *BookingService) ConfirmPayment(ctx context.Context, passengerID, reference, signature string) (*domain.Invoice, error) {
	var (
		invoice  *domain.Invoice
		captured int64
		out      outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		p, err := repos.Passengers.GetByIDForUpdate(ctx, passengerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}

		if inv.PaymentStatus == domain.PaymentStatusPaid && inv.Reference == reference {
			invoice = inv
			return nil
		}

		amount := inv.Outstanding()
		if inv.PaymentMethod != domain.PaymentMethodCard || amount <= 0 {
			return ErrNotAwaitingPayment
		}
		if err := s.captures.VerifyCapture(ctx, Capture{
			PassengerID: p.ID,
			Reference:   reference,
			Amount:      amount,
			Signature:   signature,
		}); err != nil {
			return err
		}
		captured = amount

		if p.Status != domain.PassengerStatusAwaitingPayment {
			return ErrNotAwaitingPayment
		}

		now := s.now()
		p.Status = domain.PassengerStatusConfirmed
		p.UpdatedAt = now
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return err
		}

		inv.CapturedAmount += amount
		inv.PaymentStatus = domain.PaymentStatusPaid
		inv.Reference = reference
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		invoice = inv
		out.add(userEvent(p.UserID, "Payment received", "Your booking is confirmed."))
		return nil
	})
	if err != nil {
		if captured > 0 {
			s.refund(ctx, passengerID, reference, captured)
		}
		return nil, orElse(err, ErrInternal)
	}

	out.publish(s.events)
	return invoice, nil
}

func (s *BookingService) refund(ctx context.Context, passengerID, reference string, amount int64) {
	entry := s.log.WithFields(logrus.Fields{
		"passenger_id": passengerID,
		"reference":    reference,
		"amount":       amount,
	})
	if err := s.refunder.Refund(ctx, reference, amount); err != nil {
		entry.WithError(err).Error("refund of unapplied payment failed")
		return
	}
	entry.Info("unapplied payment refunded")
}

// ListBookings returns a page of a user's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, uid string, page domain.PageRequest) ([]*domain.Passenger, error) {
	passengers, err := s.store.Repositories().Passengers.ListByUser(ctx, uid, page.Normalize())
	if err != nil {
		return nil, ErrInternal.wrap(err)
	}
	return passengers, nil
}
