package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusScheduled RideStatus = "SCHEDULED"
	RideStatusOngoing   RideStatus = "ONGOING"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
)

// CanTransition reports whether a ride may move from one status to another.
// SCHEDULED -> ONGOING -> COMPLETED and SCHEDULED -> CANCELLED are the only legal moves.
func (s RideStatus) CanTransition(to RideStatus) bool {
	switch s {
	case RideStatusScheduled:
		return to == RideStatusOngoing || to == RideStatusCancelled
	case RideStatusOngoing:
		return to == RideStatusCompleted
	default:
		return false
	}
}

// Gender restricts who may book a ride.
type Gender string

const (
	GenderAny    Gender = "ANY"
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate is within range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Ride represents a trip published by a driver.
type Ride struct {
	ID                 string
	DriverID           string
	CommunityID        *string
	Origin             Point
	Destination        Point
	OriginAddress      string
	DestinationAddress string
	Polyline           string
	DurationSeconds    int
	ScheduledAt        time.Time
	PricePerSeat       int64
	SeatsAvailable     int
	DriverFee          float64 // fraction of totalAmount kept by the platform
	Gender             Gender
	PickupEnabled      bool
	Status             RideStatus
	ChannelRef         string // notification topic for ride subscribers
	CreatedAt          time.Time
}
