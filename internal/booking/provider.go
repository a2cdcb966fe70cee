package booking

import "context"

// Provider is the capability set every scheduling backend implements.
//
// Rules:
// - No backend wire types leak out of an adapter; results use the plain types below.
// - Every outbound call carries the caller's context and a bounded timeout.
type Provider interface {
	Name() string

	CheckAvailability(ctx context.Context, q AvailabilityQuery) ([]TimeSlot, error)
	CreateBooking(ctx context.Context, req BookingRequest) (BookingResult, error)
	Services(ctx context.Context) ([]ServiceInfo, error)
	BusinessHours(ctx context.Context) ([]BusinessHours, error)
}

type AvailabilityQuery struct {
	// Date is a calendar day, YYYY-MM-DD.
	Date      string `json:"date"`
	ServiceID string `json:"service_id,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
}

type BookingRequest struct {
	// StartAt is an RFC 3339 timestamp.
	StartAt       string `json:"start_at"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	ServiceID     string `json:"service_id,omitempty"`
	StaffID       string `json:"staff_id,omitempty"`
}

type TimeSlot struct {
	StartAt         string `json:"startAt"`
	DurationMinutes int    `json:"durationMinutes"`
	StaffName       string `json:"staffName,omitempty"`
}

type BookingResult struct {
	ProviderBookingID string `json:"providerBookingId"`
	StartAt           string `json:"startAt"`
	ServiceName       string `json:"serviceName"`
	StaffName         string `json:"staffName,omitempty"`
	Confirmed         bool   `json:"confirmed"`
}

type ServiceInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	// PriceDisplay is pre-formatted, e.g. "$25.00".
	PriceDisplay string `json:"priceDisplay"`
}

type BusinessHours struct {
	// DayOfWeek is a three letter upper-case day, e.g. "MON".
	DayOfWeek string `json:"dayOfWeek"`
	// OpenTime and CloseTime are HH:MM in the shop's local time.
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}
