package geo

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"carpool/internal/domain"
)

// ErrNoResult is returned when the provider answers without a usable result.
var ErrNoResult = errors.New("no geo result")

// GoogleProvider resolves addresses and routes through the Google Maps APIs.
type GoogleProvider struct {
	client *maps.Client
}

// NewGoogleProvider creates a provider authenticated with apiKey. Extra client
// options, such as a base URL, are passed through.
func NewGoogleProvider(apiKey string, opts ...maps.ClientOption) (*GoogleProvider, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

// Geocode returns the formatted address nearest to p.
func (g *GoogleProvider) Geocode(ctx context.Context, p domain.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNoResult
	}
	return results[0].FormattedAddress, nil
}

// Directions returns the first driving route from one point to another.
func (g *GoogleProvider) Directions(ctx context.Context, from, to domain.Point) (*domain.Route, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoResult
	}

	route := &domain.Route{Polyline: routes[0].OverviewPolyline.Points}
	for _, leg := range routes[0].Legs {
		route.DistanceMeters += leg.Distance.Meters
		route.DurationSeconds += int(leg.Duration.Seconds())
	}
	return route, nil
}

func latLng(p domain.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
