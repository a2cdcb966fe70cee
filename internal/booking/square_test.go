package booking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSquareServer(t *testing.T, h http.HandlerFunc) *SquareProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p := NewSquareProvider(&http.Client{Timeout: 2 * time.Second}, srv.URL, "tok", "L1")
	p.newIdempotencyKey = func() string { return "idem-1" }
	return p
}

func TestSquare_CheckAvailability(t *testing.T) {
	var body map[string]any
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bookings/availability/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, SquareAPIVersion, r.Header.Get("Square-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"availabilities":[
			{"start_at":"2026-03-01T14:00:00Z","appointment_segments":[{"duration_minutes":30,"team_member_id":"TM1"}]},
			{"start_at":"2026-03-01T14:30:00Z","appointment_segments":[]}
		]}`)
	})

	slots, err := p.CheckAvailability(context.Background(), AvailabilityQuery{Date: "2026-03-01", ServiceID: "SV1", StaffID: "TM1"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, TimeSlot{StartAt: "2026-03-01T14:00:00Z", DurationMinutes: 30, StaffName: "TM1"}, slots[0])
	assert.Equal(t, 0, slots[1].DurationMinutes)

	filter := body["query"].(map[string]any)["filter"].(map[string]any)
	assert.Equal(t, "L1", filter["location_id"])
	rng := filter["start_at_range"].(map[string]any)
	assert.Equal(t, "2026-03-01T00:00:00Z", rng["start_at"])
	assert.Equal(t, "2026-03-01T23:59:59Z", rng["end_at"])
	seg := filter["segment_filters"].([]any)[0].(map[string]any)
	assert.Equal(t, "SV1", seg["service_variation_id"])
}

func TestSquare_CheckAvailabilityWithoutServiceOmitsSegments(t *testing.T) {
	var body map[string]any
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{}`)
	})

	slots, err := p.CheckAvailability(context.Background(), AvailabilityQuery{Date: "2026-03-01"})
	require.NoError(t, err)
	assert.Empty(t, slots)
	filter := body["query"].(map[string]any)["filter"].(map[string]any)
	_, has := filter["segment_filters"]
	assert.False(t, has)
}

func TestSquare_CreateBooking(t *testing.T) {
	var in squareCreateBookingRequest
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bookings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = io.WriteString(w, `{"booking":{"id":"BK_1","status":"ACCEPTED","start_at":"2026-03-01T14:00:00Z",
			"appointment_segments":[{"service_variation_id":"SV1","team_member_id":"TM1"}]}}`)
	})

	res, err := p.CreateBooking(context.Background(), BookingRequest{
		StartAt: "2026-03-01T14:00:00Z", CustomerName: "Sam", CustomerPhone: "+15551234567", ServiceID: "SV1", StaffID: "TM1",
	})
	require.NoError(t, err)
	assert.Equal(t, BookingResult{ProviderBookingID: "BK_1", StartAt: "2026-03-01T14:00:00Z", ServiceName: "SV1", StaffName: "TM1", Confirmed: true}, res)

	assert.Equal(t, "idem-1", in.IdempotencyKey)
	assert.Equal(t, "L1", in.Booking.LocationID)
	assert.Equal(t, "Booked by AI for Sam (+15551234567)", in.Booking.CustomerNote)
}

func TestSquare_CreateBookingPendingIsNotConfirmed(t *testing.T) {
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"booking":{"id":"BK_2","status":"PENDING","start_at":"2026-03-01T14:00:00Z"}}`)
	})
	res, err := p.CreateBooking(context.Background(), BookingRequest{StartAt: "2026-03-01T14:00:00Z", CustomerName: "Sam"})
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
}

func TestSquare_Services(t *testing.T) {
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/catalog/search-catalog-items", r.URL.Path)
		_, _ = io.WriteString(w, `{"items":[
			{"type":"ITEM","id":"I1","item_data":{"name":"Haircut","variations":[
				{"type":"ITEM_VARIATION","id":"V1","item_variation_data":{"name":"Regular","service_duration":1800000,"price_money":{"amount":2500,"currency":"USD"}}},
				{"type":"ITEM_VARIATION","id":"V2","item_variation_data":{"name":"Kids"}}
			]}},
			{"type":"CATEGORY","id":"C1"}
		]}`)
	})

	svcs, err := p.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, svcs, 2)
	assert.Equal(t, ServiceInfo{ID: "V1", Name: "Haircut - Regular", DurationMinutes: 30, PriceDisplay: "$25.00"}, svcs[0])
	assert.Equal(t, ServiceInfo{ID: "V2", Name: "Haircut - Kids", DurationMinutes: 30, PriceDisplay: "$0.00"}, svcs[1])
}

func TestSquare_BusinessHours(t *testing.T) {
	p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/locations/L1", r.URL.Path)
		_, _ = io.WriteString(w, `{"location":{"business_hours":{"periods":[
			{"day_of_week":"MON","start_local_time":"09:00:00","end_local_time":"17:30:00"}
		]}}}`)
	})

	hours, err := p.BusinessHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []BusinessHours{{DayOfWeek: "MON", OpenTime: "09:00", CloseTime: "17:30"}}, hours)
}

func TestSquare_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusTooManyRequests, ErrUnavailable},
	}
	for _, tc := range cases {
		p := newSquareServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"errors":[{"category":"X","code":"Y"}]}`)
		})
		_, err := p.Services(context.Background())
		assert.ErrorIs(t, err, tc.kind, "status %d", tc.status)
		assert.NotContains(t, err.Error(), "tok")
	}
}

func TestSquare_TransportFailureIsUnavailable(t *testing.T) {
	p := NewSquareProvider(&http.Client{Timeout: time.Second}, "http://127.0.0.1:1", "tok", "L1")
	_, err := p.BusinessHours(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$25.00", formatCents(2500))
	assert.Equal(t, "$0.05", formatCents(5))
	assert.Equal(t, "$1234.50", formatCents(123450))
}

func TestSquareBaseURL(t *testing.T) {
	assert.Equal(t, "https://connect.squareup.com", SquareBaseURL("production"))
	assert.Equal(t, "https://connect.squareupsandbox.com", SquareBaseURL("sandbox"))
}
