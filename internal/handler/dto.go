package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/domain"
	"carpool/internal/service"
)

// PointDTO is a coordinate in requests and responses.
type PointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p PointDTO) toDomain() domain.Point {
	return domain.Point{Lat: p.Lat, Lng: p.Lng}
}

func toPointDTO(p *domain.Point) *PointDTO {
	if p == nil {
		return nil
	}
	return &PointDTO{Lat: p.Lat, Lng: p.Lng}
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string    `json:"id"`
	DriverID           string    `json:"driver_id"`
	CommunityID        *string   `json:"community_id,omitempty"`
	Origin             PointDTO  `json:"origin"`
	Destination        PointDTO  `json:"destination"`
	OriginAddress      string    `json:"origin_address"`
	DestinationAddress string    `json:"destination_address"`
	Polyline           string    `json:"polyline"`
	DurationSeconds    int       `json:"duration_seconds"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	PricePerSeat       int64     `json:"price_per_seat"`
	SeatsAvailable     int       `json:"seats_available"`
	DriverFee          float64   `json:"driver_fee"`
	Gender             string    `json:"gender"`
	PickupEnabled      bool      `json:"pickup_enabled"`
	Status             string    `json:"status"`
	ChannelRef         string    `json:"channel_ref"`
	CreatedAt          time.Time `json:"created_at"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                 r.ID,
		DriverID:           r.DriverID,
		CommunityID:        r.CommunityID,
		Origin:             PointDTO{Lat: r.Origin.Lat, Lng: r.Origin.Lng},
		Destination:        PointDTO{Lat: r.Destination.Lat, Lng: r.Destination.Lng},
		OriginAddress:      r.OriginAddress,
		DestinationAddress: r.DestinationAddress,
		Polyline:           r.Polyline,
		DurationSeconds:    r.DurationSeconds,
		ScheduledAt:        r.ScheduledAt,
		PricePerSeat:       r.PricePerSeat,
		SeatsAvailable:     r.SeatsAvailable,
		DriverFee:          r.DriverFee,
		Gender:             string(r.Gender),
		PickupEnabled:      r.PickupEnabled,
		Status:             string(r.Status),
		ChannelRef:         r.ChannelRef,
		CreatedAt:          r.CreatedAt,
	}
}

// PassengerResponse is the HTTP representation of a booking.
type PassengerResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	RideID        string    `json:"ride_id"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	Seats         int       `json:"seats"`
	VoucherID     *string   `json:"voucher_id,omitempty"`
	Pickup        *PointDTO `json:"pickup,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toPassengerResponse(p *domain.Passenger) PassengerResponse {
	return PassengerResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		RideID:        p.RideID,
		PaymentMethod: string(p.PaymentMethod),
		Status:        string(p.Status),
		Seats:         p.Seats,
		VoucherID:     p.VoucherID,
		Pickup:        toPointDTO(p.Pickup),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// InvoiceResponse is the HTTP representation of an invoice.
type InvoiceResponse struct {
	ID                string `json:"id"`
	PassengerID       string `json:"passenger_id"`
	TotalAmount       int64  `json:"total_amount"`
	DriverFeeTotal    int64  `json:"driver_fee_total"`
	PassengerFeeTotal int64  `json:"passenger_fee_total"`
	PickupAddition    int64  `json:"pickup_addition"`
	DiscountAmount    int64  `json:"discount_amount"`
	BalanceDue        int64  `json:"balance_due"`
	GrandTotal        int64  `json:"grand_total"`
	PaymentStatus     string `json:"payment_status"`
	PaymentMethod     string `json:"payment_method"`
	Reference         string `json:"reference"`
}

func toInvoiceResponse(inv *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID,
		PassengerID:       inv.PassengerID,
		TotalAmount:       inv.TotalAmount,
		DriverFeeTotal:    inv.DriverFeeTotal,
		PassengerFeeTotal: inv.PassengerFeeTotal,
		PickupAddition:    inv.PickupAddition,
		DiscountAmount:    inv.DiscountAmount,
		BalanceDue:        inv.BalanceDue,
		GrandTotal:        inv.GrandTotal,
		PaymentStatus:     string(inv.PaymentStatus),
		PaymentMethod:     string(inv.PaymentMethod),
		Reference:         inv.Reference,
	}
}

// PageResponse is a page of items with the cursor for the next one.
type PageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// parsePage normalizes the loosely-typed limit and after query parameters.
func parsePage(c *gin.Context) (domain.PageRequest, error) {
	page := domain.PageRequest{Cursor: c.Query("after")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domain.PageRequest{}, service.ErrInvalidPage
		}
		page.Limit = limit
	}
	return page.Normalize(), nil
}

func newPage[E any, T any](items []E, page domain.PageRequest, convert func(E) T, id func(E) string) PageResponse[T] {
	out := PageResponse[T]{Items: make([]T, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, convert(item))
	}
	if len(items) == page.Limit && len(items) > 0 {
		out.NextCursor = id(items[len(items)-1])
	}
	return out
}
