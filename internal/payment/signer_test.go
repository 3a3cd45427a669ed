package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"

	"carpool/internal/logger"
	"carpool/internal/service"
)

func TestHMACSigner_IsDeterministic(t *testing.T) {
	s := NewHMACSigner("secret")

	hash := s.Sign("p-1", "u-1", 210)

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, s.Sign("p-1", "u-1", 210))
	assert.NotEqual(t, hash, s.Sign("p-1", "u-1", 209))
	assert.NotEqual(t, hash, NewHMACSigner("other").Sign("p-1", "u-1", 210))
}

func TestHMACSigner_FieldBoundariesMatter(t *testing.T) {
	s := NewHMACSigner("secret")
	assert.NotEqual(t, s.Sign("p-1", "2", 3), s.Sign("p-12", "", 3))
}

func TestCallbackVerifier_AcceptsGatewaySignature(t *testing.T) {
	v := NewCallbackVerifier("webhook")
	c := service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210}
	c.Signature = v.Sign(c.PassengerID, c.Reference, c.Amount)

	assert.NoError(t, v.VerifyCapture(context.Background(), c))
}

func TestCallbackVerifier_Rejects(t *testing.T) {
	v := NewCallbackVerifier("webhook")
	good := v.Sign("p-1", "pi_1", 210)

	tests := []struct {
		name    string
		capture service.Capture
	}{
		{"different amount", service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 209, Signature: good}},
		{"different reference", service.Capture{PassengerID: "p-1", Reference: "pi_2", Amount: 210, Signature: good}},
		{"different passenger", service.Capture{PassengerID: "p-2", Reference: "pi_1", Amount: 210, Signature: good}},
		{"order hash held by the client", service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210, Signature: NewHMACSigner("orders").Sign("p-1", "u-1", 210)}},
		{"signed with the order key", service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210, Signature: NewCallbackVerifier("orders").Sign("p-1", "pi_1", 210)}},
		{"not hex", service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210, Signature: "zz"}},
		{"empty", service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210}},
		{"no reference", service.Capture{PassengerID: "p-1", Amount: 210, Signature: v.Sign("p-1", "", 210)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.VerifyCapture(context.Background(), tt.capture)
			assert.ErrorIs(t, err, service.ErrInvalidPaymentSignature)
		})
	}
}

func TestMatchIntent(t *testing.T) {
	capture := service.Capture{PassengerID: "p-1", Reference: "pi_1", Amount: 210}
	intent := func(status stripe.PaymentIntentStatus, received int64, passengerID string) *stripe.PaymentIntent {
		return &stripe.PaymentIntent{
			ID:             "pi_1",
			Status:         status,
			AmountReceived: received,
			Metadata:       map[string]string{passengerMetadataKey: passengerID},
		}
	}

	assert.NoError(t, matchIntent(intent(stripe.PaymentIntentStatusSucceeded, 210, "p-1"), capture))

	tests := []struct {
		name   string
		intent *stripe.PaymentIntent
	}{
		{"not captured yet", intent(stripe.PaymentIntentStatusRequiresPaymentMethod, 0, "p-1")},
		{"processing", intent(stripe.PaymentIntentStatusProcessing, 210, "p-1")},
		{"short amount", intent(stripe.PaymentIntentStatusSucceeded, 105, "p-1")},
		{"other booking", intent(stripe.PaymentIntentStatusSucceeded, 210, "p-2")},
		{"no metadata", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded, AmountReceived: 210}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, matchIntent(tt.intent, capture), service.ErrInvalidPaymentSignature)
		})
	}
}

func TestLogRefunder_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogRefunder(logger.Discard()).Refund(context.Background(), "pi_123", 500))
}
