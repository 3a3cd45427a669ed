package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/service"
)

// PaymentHandler receives payment-gateway confirmations.
type PaymentHandler struct {
	bookingService *service.BookingService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(bookingService *service.BookingService) *PaymentHandler {
	return &PaymentHandler{bookingService: bookingService}
}

// ConfirmPaymentRequest is the gateway callback body. Signature is the gateway's
// webhook signature and may be empty when captures are verified against Stripe.
type ConfirmPaymentRequest struct {
	Reference string `json:"reference"`
	Signature string `json:"signature"`
}

// ConfirmPayment handles POST /v1/passengers/:id/confirm-payment
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reference == "" {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	inv, err := h.bookingService.ConfirmPayment(c.Request.Context(), c.Param("id"), req.Reference, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toInvoiceResponse(inv))
}
