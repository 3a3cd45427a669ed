package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"carpool/internal/service"
)

// HMACSigner signs payment orders with HMAC-SHA256 over passenger, user and amount.
// The hash is given to the client and proves nothing about a capture.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a signer keyed with secret.
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

// Sign returns the hex-encoded order hash the client hands to the gateway.
func (s *HMACSigner) Sign(passengerID, userID string, amount int64) string {
	return macHex(s.secret, passengerID, userID, strconv.FormatInt(amount, 10))
}

// CallbackVerifier authenticates capture callbacks signed by the gateway with a
// secret shared only between the gateway and this service. The signature covers
// the booking, the gateway reference and the captured amount.
type CallbackVerifier struct {
	secret []byte
}

// NewCallbackVerifier creates a verifier keyed with the gateway webhook secret.
func NewCallbackVerifier(secret string) *CallbackVerifier {
	return &CallbackVerifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway attaches to a capture callback.
func (v *CallbackVerifier) Sign(passengerID, reference string, amount int64) string {
	return macHex(v.secret, passengerID, reference, strconv.FormatInt(amount, 10))
}

// VerifyCapture checks the callback signature of c.
func (v *CallbackVerifier) VerifyCapture(_ context.Context, c service.Capture) error {
	got, err := hex.DecodeString(c.Signature)
	if err != nil || c.Reference == "" {
		return service.ErrInvalidPaymentSignature
	}
	want, _ := hex.DecodeString(v.Sign(c.PassengerID, c.Reference, c.Amount))
	if !hmac.Equal(got, want) {
		return service.ErrInvalidPaymentSignature
	}
	return nil
}

// macHex is the hex HMAC-SHA256 of fields joined with '|'.
func macHex(secret []byte, fields ...string) string {
	mac := hmac.New(sha256.New, secret)
	for i, f := range fields {
		if i > 0 {
			mac.Write([]byte{'|'})
		}
		mac.Write([]byte(f))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

var (
	_ service.OrderSigner     = (*HMACSigner)(nil)
	_ service.CaptureVerifier = (*CallbackVerifier)(nil)
)
