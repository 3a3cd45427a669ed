package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/middleware"
	"carpool/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// PostRideRequest is the HTTP request body for publishing a ride.
type PostRideRequest struct {
	CommunityID    *string   `json:"community_id"`
	Origin         PointDTO  `json:"origin"`
	Destination    PointDTO  `json:"destination"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	PricePerSeat   int64     `json:"price_per_seat"`
	SeatsAvailable int       `json:"seats_available"`
	Gender         string    `json:"gender"`
	PickupEnabled  bool      `json:"pickup_enabled"`
}

// StartRideResponse reports whether the ride started.
type StartRideResponse struct {
	Started bool `json:"started"`
}

// PostRide handles POST /v1/rides
func (h *RideHandler) PostRide(c *gin.Context) {
	var req PostRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	ride, err := h.rideService.PostRide(c.Request.Context(), service.PostRideRequest{
		DriverID:       middleware.UserID(c),
		CommunityID:    req.CommunityID,
		Origin:         req.Origin.toDomain(),
		Destination:    req.Destination.toDomain(),
		ScheduledAt:    req.ScheduledAt,
		PricePerSeat:   req.PricePerSeat,
		SeatsAvailable: req.SeatsAvailable,
		Gender:         domain.Gender(req.Gender),
		PickupEnabled:  req.PickupEnabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /v1/rides?limit=&after=
func (h *RideHandler) ListRides(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newPage(rides, page, toRideResponse, func(r *domain.Ride) string { return r.ID }))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	started, err := h.rideService.StartRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, StartRideResponse{Started: started})
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// Checkout handles POST /v1/rides/:id/checkout
func (h *RideHandler) Checkout(c *gin.Context) {
	ride, err := h.rideService.Checkout(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}
