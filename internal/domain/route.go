package domain

// Route is a resolved driving route between two points.
type Route struct {
	Polyline        string
	DurationSeconds int
	DistanceMeters  int
}
