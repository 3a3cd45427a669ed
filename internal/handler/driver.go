package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/middleware"
	"carpool/internal/service"
)

// DriverHandler handles HTTP requests for driver locations.
type DriverHandler struct {
	rideService *service.RideService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(rideService *service.RideService) *DriverHandler {
	return &DriverHandler{rideService: rideService}
}

// LocationResponse is a driver's last-known position; Location is null when unknown.
type LocationResponse struct {
	Location *PointDTO `json:"location"`
}

// UpdateLocation handles POST /v1/drivers/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req PointDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, service.ErrInvalidRequest)
		return
	}

	if err := h.rideService.UpdateDriverLocation(c.Request.Context(), middleware.UserID(c), req.toDomain()); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, LocationResponse{Location: &req})
}

// RideDriverLocation handles GET /v1/rides/:id/driver-location
func (h *DriverHandler) RideDriverLocation(c *gin.Context) {
	p, err := h.rideService.DriverLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, LocationResponse{Location: toPointDTO(p)})
}
