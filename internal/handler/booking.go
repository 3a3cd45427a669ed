package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// BookingHandler handles HTTP requests for passenger bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// BookRideRequest is the HTTP request body for booking seats.
type BookRideRequest struct {
	PaymentMethod string    `json:"payment_method"`
	Seats         int       `json:"seats"`
	VoucherCode   string    `json:"voucher_code"`
	Pickup        *PointDTO `json:"pickup"`
}

// ForceCancelRequest is the HTTP request body for abandoning an unpaid booking.
type ForceCancelRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// BookingResponse is a booking with its invoice.
type BookingResponse struct {
	Passenger   PassengerResponse `json:"passenger"`
	Invoice     InvoiceResponse   `json:"invoice"`
	PaymentHash string            `json:"payment_hash,omitempty"`
}

// BookRide handles POST /v1/rides/:id/book
func (h *BookingHandler) BookRide(c *gin.Context) {
	var req BookRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	var pickup *domain.Point
	if req.Pickup != nil {
		p := req.Pickup.toDomain()
		pickup = &p
	}

	result, err := h.bookingService.BookRide(c.Request.Context(), service.BookRequest{
		UserID:        middleware.UserID(c),
		RideID:        c.Param("id"),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Seats:         req.Seats,
		VoucherCode:   req.VoucherCode,
		Pickup:        pickup,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, BookingResponse{
		Passenger:   toPassengerResponse(result.Passenger),
		Invoice:     toInvoiceResponse(result.Invoice),
		PaymentHash: result.PaymentHash,
	})
}

// CancelBooking handles POST /v1/rides/:id/cancel-booking
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	inv, err := h.bookingService.CancelPassenger(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toInvoiceResponse(inv))
}

// CheckIn handles POST /v1/rides/:id/passengers/:uid/check-in
func (h *BookingHandler) CheckIn(c *gin.Context) {
	p, err := h.bookingService.CheckIn(c.Request.Context(), c.Param("id"), c.Param("uid"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPassengerResponse(p))
}

// NoShow handles POST /v1/rides/:id/passengers/:uid/no-show
func (h *BookingHandler) NoShow(c *gin.Context) {
	p, err := h.bookingService.NoShow(c.Request.Context(), c.Param("id"), c.Param("uid"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPassengerResponse(p))
}

// ForceCancel handles POST /v1/passengers/:id/force-cancel
func (h *BookingHandler) ForceCancel(c *gin.Context) {
	var req ForceCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.InvoiceID == "" {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	p, err := h.bookingService.ForceCancelPassenger(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.InvoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toPassengerResponse(p))
}
