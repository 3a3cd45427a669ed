package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

const (
	rideLateCancelWindow      = 48 * time.Hour
	rideLateCancelGrace       = 30 * time.Minute
	passengerLateCancelWindow = 24 * time.Hour
	passengerLateCancelGrace  = 15 * time.Minute
)

// outbox collects notifications produced inside a transaction; they are
// published only after the transaction commits.
type outbox []Event

func (o *outbox) add(ev Event) {
	*o = append(*o, ev)
}

func (o outbox) publish(p Publisher) {
	if p == nil {
		return
	}
	for _, ev := range o {
		p.Publish(ev)
	}
}

// SettlementEngine moves money between passengers and drivers when bookings are
// cancelled or rides are checked out. Every method runs on transaction-scoped
// repositories and must be called inside TxRunner.WithinTx.
type SettlementEngine struct {
	fees FeePolicy
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewSettlementEngine creates a settlement engine; now defaults to time.Now.
func NewSettlementEngine(fees FeePolicy, now func() time.Time, log logrus.FieldLogger) *SettlementEngine {
	if now == nil {
		now = time.Now
	}
	return &SettlementEngine{fees: fees, now: now, log: log}
}

// CheckoutRide settles every ENROUTE passenger of a ride. The first failure aborts
// the whole checkout.
func (e *SettlementEngine) CheckoutRide(ctx context.Context, repos repository.Repositories, ride *domain.Ride, passengers []*domain.Passenger) error {
	now := e.now()
	for _, p := range passengers {
		if p.Status != domain.PassengerStatusEnroute {
			continue
		}

		inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load invoice of passenger %s: %w", p.ID, err)
		}

		delta := inv.GrandTotal - inv.TotalAmount + inv.DiscountAmount - inv.PickupAddition
		if _, err := repos.Users.AdjustBalance(ctx, p.UserID, delta); err != nil {
			return fmt.Errorf("adjust balance of user %s: %w", p.UserID, err)
		}

		inv.PaymentStatus = domain.PaymentStatusPaid
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice %s: %w", inv.ID, err)
		}

		driverShare := inv.TotalAmount + inv.PickupAddition - inv.DriverFeeTotal
		if inv.PaymentMethod == domain.PaymentMethodCash {
			if err := e.creditDriver(ctx, repos, ride, -inv.GrandTotal, domain.DriverInvoiceCashCollected, domain.ReasonRideCheckout); err != nil {
				return err
			}
		}
		if err := e.creditDriver(ctx, repos, ride, driverShare, domain.DriverInvoiceSettlement, domain.ReasonRideCheckout); err != nil {
			return err
		}

		if err := e.releaseCarriedBalance(ctx, repos, p, inv.BalanceDue, now); err != nil {
			return err
		}

		e.log.WithFields(logrus.Fields{
			"ride_id":      ride.ID,
			"passenger_id": p.ID,
			"grand_total":  inv.GrandTotal,
		}).Info("passenger settled")
	}
	return nil
}

// releaseCarriedBalance removes a settled carried balance from the user's other
// unpaid invoices so it is not collected twice.
func (e *SettlementEngine) releaseCarriedBalance(ctx context.Context, repos repository.Repositories, settled *domain.Passenger, balanceDue int64, now time.Time) error {
	if balanceDue == 0 {
		return nil
	}

	others, err := repos.Passengers.ListActiveByUser(ctx, settled.UserID)
	if err != nil {
		return fmt.Errorf("list bookings of user %s: %w", settled.UserID, err)
	}

	for _, other := range others {
		if other.ID == settled.ID || !other.Status.BeforeArrival() {
			continue
		}
		inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, other.ID)
		if err != nil {
			return fmt.Errorf("load invoice of passenger %s: %w", other.ID, err)
		}
		if inv.PaymentStatus != domain.PaymentStatusUnpaid {
			continue
		}
		inv.BalanceDue -= balanceDue
		inv.GrandTotal -= balanceDue
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice %s: %w", inv.ID, err)
		}
	}
	return nil
}

// CancelRideInvoices reverses every active booking of a ride being cancelled. A
// driver who cancels close to departure, after the ride has been public for a
// while, pays a flat penalty.
func (e *SettlementEngine) CancelRideInvoices(ctx context.Context, repos repository.Repositories, ride *domain.Ride, passengers []*domain.Passenger, out *outbox) error {
	now := e.now()

	if ride.ScheduledAt.Sub(now) <= rideLateCancelWindow &&
		now.Sub(ride.CreatedAt) > rideLateCancelGrace {
		if err := e.creditDriver(ctx, repos, ride, -e.fees.LateCancelPenalty, domain.DriverInvoicePenalty, domain.ReasonLateCancellationNoShow); err != nil {
			return err
		}
		e.log.WithField("ride_id", ride.ID).Info("late ride cancellation penalty charged")
	}

	for _, p := range passengers {
		inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load invoice of passenger %s: %w", p.ID, err)
		}

		if refund := rideCancelRefund(inv); refund > 0 {
			if _, err := repos.Users.AdjustBalance(ctx, p.UserID, refund); err != nil {
				return fmt.Errorf("refund user %s: %w", p.UserID, err)
			}
		}

		inv.PaymentStatus = domain.PaymentStatusReversed
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice %s: %w", inv.ID, err)
		}

		p.Status = domain.PassengerStatusCancelled
		p.UpdatedAt = now
		if err := repos.Passengers.Update(ctx, p); err != nil {
			return fmt.Errorf("cancel passenger %s: %w", p.ID, err)
		}

		out.add(userEvent(p.UserID, "Ride cancelled", "Your ride has been cancelled by the driver."))
	}
	return nil
}

// rideCancelRefund is what a passenger gets back when the driver cancels: the
// ride price for a paid card booking, capped by what was captured otherwise.
func rideCancelRefund(inv *domain.Invoice) int64 {
	if inv.PaymentMethod != domain.PaymentMethodCard || inv.CapturedAmount == 0 {
		return 0
	}
	if inv.PaymentStatus == domain.PaymentStatusPaid {
		return inv.TotalAmount
	}
	return min(inv.TotalAmount, inv.CapturedAmount)
}

// IsLateCancellation reports whether a passenger cancelling now owes the driver
// compensation.
func (e *SettlementEngine) IsLateCancellation(ride *domain.Ride, p *domain.Passenger) bool {
	now := e.now()
	return ride.ScheduledAt.Sub(now) <= passengerLateCancelWindow &&
		now.Sub(p.CreatedAt) >= passengerLateCancelGrace
}

// CancelPassengerInvoice settles the invoice of one passenger leaving a ride and
// returns it. The caller updates the booking status.
//
// A late cancellation compensates the driver and charges the passenger whatever
// part of the invoice was never captured: all of it for cash. Otherwise captured
// card money is returned to the balance, less the carried balance the invoice
// collected.
func (e *SettlementEngine) CancelPassengerInvoice(ctx context.Context, repos repository.Repositories, ride *domain.Ride, p *domain.Passenger) (*domain.Invoice, error) {
	inv, err := repos.Invoices.GetByPassengerIDForUpdate(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load invoice of passenger %s: %w", p.ID, err)
	}

	if e.IsLateCancellation(ride, p) {
		compensation := inv.TotalAmount - inv.DriverFeeTotal
		if err := e.creditDriver(ctx, repos, ride, compensation, domain.DriverInvoiceBonus, domain.ReasonLateCancellationCompensation); err != nil {
			return nil, err
		}
		if owed := inv.Outstanding(); owed > 0 {
			if _, err := repos.Users.AdjustBalance(ctx, p.UserID, -owed); err != nil {
				return nil, fmt.Errorf("charge user %s: %w", p.UserID, err)
			}
		}
		inv.PaymentStatus = domain.PaymentStatusPaid
	} else {
		if refund := inv.CapturedAmount - inv.BalanceDue; inv.CapturedAmount > 0 && refund > 0 {
			if _, err := repos.Users.AdjustBalance(ctx, p.UserID, refund); err != nil {
				return nil, fmt.Errorf("refund user %s: %w", p.UserID, err)
			}
		}
		inv.PaymentStatus = domain.PaymentStatusReversed
	}

	inv.UpdatedAt = e.now()
	if err := repos.Invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice %s: %w", inv.ID, err)
	}
	return inv, nil
}

// creditDriver adjusts a driver's balance by amount and appends the matching ledger row.
func (e *SettlementEngine) creditDriver(ctx context.Context, repos repository.Repositories, ride *domain.Ride, amount int64, typ domain.DriverInvoiceType, reason string) error {
	if _, err := repos.Users.AdjustBalance(ctx, ride.DriverID, amount); err != nil {
		return fmt.Errorf("adjust balance of driver %s: %w", ride.DriverID, err)
	}
	return repos.DriverInvoices.Create(ctx, &domain.DriverInvoice{
		ID:        uuid.New().String(),
		DriverID:  ride.DriverID,
		RideID:    ride.ID,
		Amount:    amount,
		Type:      typ,
		Reason:    reason,
		CreatedAt: e.now(),
	})
}
