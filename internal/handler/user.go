package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// UserHandler handles HTTP requests scoped to the caller.
type UserHandler struct {
	bookingService *service.BookingService
	voucherService *service.VoucherService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(bookingService *service.BookingService, voucherService *service.VoucherService) *UserHandler {
	return &UserHandler{bookingService: bookingService, voucherService: voucherService}
}

// ValidateVoucherRequest is the HTTP request body for checking a voucher.
type ValidateVoucherRequest struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// VoucherResponse describes a usable voucher.
type VoucherResponse struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	MaxValue int64   `json:"max_value"`
	Discount int64   `json:"discount"`
}

// ListBookings handles GET /v1/bookings?limit=&after=
func (h *UserHandler) ListBookings(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newPage(bookings, page, toPassengerResponse, func(p *domain.Passenger) string { return p.ID }))
}

// ValidateVoucher handles POST /v1/vouchers/validate
func (h *UserHandler) ValidateVoucher(c *gin.Context) {
	var req ValidateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	quote, err := h.voucherService.Check(c.Request.Context(), req.Code, middleware.UserID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, VoucherResponse{
		ID:       quote.Voucher.ID,
		Type:     string(quote.Voucher.Type),
		Value:    quote.Voucher.Value,
		MaxValue: quote.Voucher.MaxValue,
		Discount: quote.Discount,
	})
}
