package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"carpool/internal/service"
)

// passengerMetadataKey is the PaymentIntent metadata entry naming the booking.
const passengerMetadataKey = "passenger_id"

// StripeGateway verifies and refunds card payments captured through Stripe. The
// payment reference is the PaymentIntent ID.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway creates a gateway using secretKey.
func NewStripeGateway(secretKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{client: sc}
}

// VerifyCapture retrieves the PaymentIntent named by c.Reference and checks that
// it succeeded for this booking and amount. The callback signature is not used;
// Stripe itself is the source of truth.
func (g *StripeGateway) VerifyCapture(ctx context.Context, c service.Capture) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.Get(c.Reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return service.ErrInvalidPaymentSignature
		}
		return fmt.Errorf("retrieve payment intent: %w", err)
	}
	return matchIntent(pi, c)
}

func matchIntent(pi *stripe.PaymentIntent, c service.Capture) error {
	if pi.Status != stripe.PaymentIntentStatusSucceeded ||
		pi.AmountReceived != c.Amount ||
		pi.Metadata[passengerMetadataKey] != c.PassengerID {
		return service.ErrInvalidPaymentSignature
	}
	return nil
}

// Refund returns amount minor units of the payment identified by reference.
func (g *StripeGateway) Refund(ctx context.Context, reference string, amount int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	if _, err := g.client.Refunds.New(params); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

// LogRefunder records refunds it cannot perform. Used when Stripe is not configured.
type LogRefunder struct {
	log logrus.FieldLogger
}

// NewLogRefunder creates a new LogRefunder.
func NewLogRefunder(log logrus.FieldLogger) *LogRefunder {
	return &LogRefunder{log: log}
}

func (r *LogRefunder) Refund(_ context.Context, reference string, amount int64) error {
	r.log.WithFields(logrus.Fields{"reference": reference, "amount": amount}).Warn("refund requires manual processing")
	return nil
}

var (
	_ service.CaptureVerifier = (*StripeGateway)(nil)
	_ service.Refunder        = (*StripeGateway)(nil)
)
