package redis

import "carpool/internal/service"

// Ensure concrete types implement the service ports.
var (
	_ service.LocationStore = (*LocationStore)(nil)
	_ service.RideCache     = (*RideCache)(nil)
)
