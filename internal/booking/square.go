package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	squareProductionURL = "https://connect.squareup.com"
	squareSandboxURL    = "https://connect.squareupsandbox.com"

	// SquareAPIVersion pins the response shapes decoded below.
	SquareAPIVersion = "2025-01-23"

	defaultServiceMinutes = 30
)

// SquareBaseURL maps an environment name to the Square API host.
func SquareBaseURL(env string) string {
	if env == "production" {
		return squareProductionURL
	}
	return squareSandboxURL
}

// SquareProvider talks to the Square Bookings, Catalog and Locations REST APIs.
// It avoids the Square SDK; only the fields used here are decoded.
type SquareProvider struct {
	client     *http.Client
	baseURL    string
	token      string
	locationID string

	newIdempotencyKey func() string
}

func NewSquareProvider(client *http.Client, baseURL, token, locationID string) *SquareProvider {
	return &SquareProvider{
		client:            client,
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             token,
		locationID:        locationID,
		newIdempotencyKey: uuid.NewString,
	}
}

func (p *SquareProvider) Name() string { return ProviderSquare }

/* ===================== AVAILABILITY ===================== */

type squareSegment struct {
	DurationMinutes    int    `json:"duration_minutes,omitempty"`
	ServiceVariationID string `json:"service_variation_id,omitempty"`
	TeamMemberID       string `json:"team_member_id,omitempty"`
}

type squareSegmentFilter struct {
	ServiceVariationID string `json:"service_variation_id"`
	TeamMemberIDFilter *struct {
		Any []string `json:"any"`
	} `json:"team_member_id_filter,omitempty"`
}

type squareAvailabilityRequest struct {
	Query struct {
		Filter struct {
			StartAtRange struct {
				StartAt string `json:"start_at"`
				EndAt   string `json:"end_at"`
			} `json:"start_at_range"`
			LocationID     string                `json:"location_id"`
			SegmentFilters []squareSegmentFilter `json:"segment_filters,omitempty"`
		} `json:"filter"`
	} `json:"query"`
}

type squareAvailabilityResponse struct {
	Availabilities []struct {
		StartAt             string          `json:"start_at"`
		AppointmentSegments []squareSegment `json:"appointment_segments"`
	} `json:"availabilities"`
}

func (p *SquareProvider) CheckAvailability(ctx context.Context, q AvailabilityQuery) ([]TimeSlot, error) {
	var in squareAvailabilityRequest
	in.Query.Filter.StartAtRange.StartAt = q.Date + "T00:00:00Z"
	in.Query.Filter.StartAtRange.EndAt = q.Date + "T23:59:59Z"
	in.Query.Filter.LocationID = p.locationID
	if q.ServiceID != "" {
		f := squareSegmentFilter{ServiceVariationID: q.ServiceID}
		if q.StaffID != "" {
			f.TeamMemberIDFilter = &struct {
				Any []string `json:"any"`
			}{Any: []string{q.StaffID}}
		}
		in.Query.Filter.SegmentFilters = []squareSegmentFilter{f}
	}

	var out squareAvailabilityResponse
	if err := p.do(ctx, "availability", http.MethodPost, "/v2/bookings/availability/search", in, &out); err != nil {
		return nil, err
	}

	slots := make([]TimeSlot, 0, len(out.Availabilities))
	for _, a := range out.Availabilities {
		s := TimeSlot{StartAt: a.StartAt}
		if len(a.AppointmentSegments) > 0 {
			s.DurationMinutes = a.AppointmentSegments[0].DurationMinutes
			s.StaffName = a.AppointmentSegments[0].TeamMemberID
		}
		slots = append(slots, s)
	}
	return slots, nil
}

/* ===================== BOOKINGS ===================== */

type squareBooking struct {
	ID                  string          `json:"id,omitempty"`
	Status              string          `json:"status,omitempty"`
	LocationID          string          `json:"location_id,omitempty"`
	StartAt             string          `json:"start_at"`
	AppointmentSegments []squareSegment `json:"appointment_segments"`
	CustomerNote        string          `json:"customer_note,omitempty"`
}

type squareCreateBookingRequest struct {
	IdempotencyKey string        `json:"idempotency_key"`
	Booking        squareBooking `json:"booking"`
}

type squareBookingResponse struct {
	Booking *squareBooking `json:"booking"`
}

// CreateBooking uses a fresh idempotency key per call.
func (p *SquareProvider) CreateBooking(ctx context.Context, req BookingRequest) (BookingResult, error) {
	in := squareCreateBookingRequest{
		IdempotencyKey: p.newIdempotencyKey(),
		Booking: squareBooking{
			LocationID: p.locationID,
			StartAt:    req.StartAt,
			AppointmentSegments: []squareSegment{{
				ServiceVariationID: req.ServiceID,
				TeamMemberID:       req.StaffID,
			}},
			CustomerNote: fmt.Sprintf("Booked by AI for %s (%s)", req.CustomerName, req.CustomerPhone),
		},
	}

	var out squareBookingResponse
	if err := p.do(ctx, "create_booking", http.MethodPost, "/v2/bookings", in, &out); err != nil {
		return BookingResult{}, err
	}
	if out.Booking == nil || out.Booking.ID == "" {
		return BookingResult{}, p.fail("create_booking", ErrUnavailable, errors.New("response has no booking"))
	}

	b := out.Booking
	res := BookingResult{
		ProviderBookingID: b.ID,
		StartAt:           b.StartAt,
		Confirmed:         b.Status == "ACCEPTED",
	}
	if len(b.AppointmentSegments) > 0 {
		res.ServiceName = b.AppointmentSegments[0].ServiceVariationID
		res.StaffName = b.AppointmentSegments[0].TeamMemberID
	}
	return res, nil
}

/* ===================== CATALOG ===================== */

type squareSearchItemsRequest struct {
	EnabledLocationIDs []string `json:"enabled_location_ids"`
	ProductTypes       []string `json:"product_types"`
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squareSearchItemsResponse struct {
	Items []struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		ItemData struct {
			Name       string `json:"name"`
			Variations []struct {
				Type              string `json:"type"`
				ID                string `json:"id"`
				ItemVariationData struct {
					Name            string       `json:"name"`
					ServiceDuration *int64       `json:"service_duration"`
					PriceMoney      *squareMoney `json:"price_money"`
				} `json:"item_variation_data"`
			} `json:"variations"`
		} `json:"item_data"`
	} `json:"items"`
}

func (p *SquareProvider) Services(ctx context.Context) ([]ServiceInfo, error) {
	in := squareSearchItemsRequest{
		EnabledLocationIDs: []string{p.locationID},
		ProductTypes:       []string{"APPOINTMENTS_SERVICE"},
	}

	var out squareSearchItemsResponse
	if err := p.do(ctx, "services", http.MethodPost, "/v2/catalog/search-catalog-items", in, &out); err != nil {
		return nil, err
	}

	var services []ServiceInfo
	for _, item := range out.Items {
		if item.Type != "ITEM" {
			continue
		}
		for _, v := range item.ItemData.Variations {
			if v.Type != "ITEM_VARIATION" {
				continue
			}
			vd := v.ItemVariationData

			minutes := defaultServiceMinutes
			if vd.ServiceDuration != nil {
				minutes = int(*vd.ServiceDuration / 60000)
			}
			var cents int64
			if vd.PriceMoney != nil {
				cents = vd.PriceMoney.Amount
			}

			services = append(services, ServiceInfo{
				ID:              v.ID,
				Name:            item.ItemData.Name + " - " + vd.Name,
				DurationMinutes: minutes,
				PriceDisplay:    formatCents(cents),
			})
		}
	}
	return services, nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

/* ===================== LOCATION HOURS ===================== */

type squareLocationResponse struct {
	Location struct {
		BusinessHours struct {
			Periods []struct {
				DayOfWeek      string `json:"day_of_week"`
				StartLocalTime string `json:"start_local_time"`
				EndLocalTime   string `json:"end_local_time"`
			} `json:"periods"`
		} `json:"business_hours"`
	} `json:"location"`
}

func (p *SquareProvider) BusinessHours(ctx context.Context) ([]BusinessHours, error) {
	var out squareLocationResponse
	path := "/v2/locations/" + url.PathEscape(p.locationID)
	if err := p.do(ctx, "business_hours", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	periods := out.Location.BusinessHours.Periods
	hours := make([]BusinessHours, 0, len(periods))
	for _, pr := range periods {
		hours = append(hours, BusinessHours{
			DayOfWeek: pr.DayOfWeek,
			OpenTime:  hhmm(pr.StartLocalTime),
			CloseTime: hhmm(pr.EndLocalTime),
		})
	}
	return hours, nil
}

func hhmm(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

/* ===================== TRANSPORT ===================== */

func (p *SquareProvider) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return p.fail(op, ErrUnavailable, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return p.fail(op, ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Square-Version", SquareAPIVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return p.fail(op, ErrUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		return p.fail(op, kindForStatus(resp.StatusCode), fmt.Errorf("status %d: %s", resp.StatusCode, squareErrorDetail(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return p.fail(op, ErrUnavailable, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func (p *SquareProvider) fail(op string, kind, err error) error {
	return &ProviderError{Provider: ProviderSquare, Op: op, Kind: kind, Err: err}
}

func kindForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUnavailable
	}
}

// squareErrorDetail extracts the first error code for logs. The token never appears in responses.
func squareErrorDetail(raw []byte) string {
	var e struct {
		Errors []struct {
			Category string `json:"category"`
			Code     string `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(raw, &e) == nil && len(e.Errors) > 0 {
		return e.Errors[0].Category + "/" + e.Errors[0].Code
	}
	return "unparsed error body"
}
