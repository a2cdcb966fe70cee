package vapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barberline/internal/audit"
	"barberline/internal/booking"
	"barberline/internal/metrics"
	"barberline/internal/notify"
	"barberline/internal/ratelimit"
	"barberline/internal/shops"
	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxSlots             = 3
	defaultNotifyTimeout = 5 * time.Second
)

type ShopStore interface {
	GetShop(ctx context.Context, id string) (shops.Shop, error)
}

type ProviderFactory interface {
	Provider(ctx context.Context, cfg booking.Config) (booking.Provider, error)
}

// Handlers serves the function calls the voice agent makes mid-call.
// Every reply is a sentence the agent speaks; internal errors never leak.
type Handlers struct {
	Shops     ShopStore
	Providers ProviderFactory
	Bookings  booking.Repository
	Notifier  notify.Sender
	Audit     *audit.Service

	Now           func() time.Time
	NewID         func() string
	NotifyTimeout time.Duration
}

// begin parses the envelope and resolves the tenant. It writes the reply
// itself and returns false when the request cannot proceed.
func (h Handlers) begin(c *gin.Context, endpoint, missing string) (Message, string, bool) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		logger.FromGin(c).Warn("invalid function call body", "endpoint", endpoint, "err", err)
		reply(c, endpoint, http.StatusBadRequest, missing, nil)
		return Message{}, "", false
	}
	msg := env.Message
	trusted, untrusted := msg.TrustedShopID(), msg.UntrustedShopID()
	res := ResolveShopID(trusted, untrusted)
	if res.Mismatch {
		logger.FromGin(c).Warn("shop id mismatch",
			"endpoint", endpoint,
			"metadata_shop_id", trusted,
			"param_shop_id", untrusted,
		)
		h.Audit.Record(c.Request.Context(), audit.EventTenantMismatch, trusted, "", ratelimit.ClientIP(c),
			fmt.Sprintf("%s call named shop %q", endpoint, untrusted))
		reply(c, endpoint, http.StatusForbidden, msgMismatch, nil)
		return Message{}, "", false
	}
	if res.ShopID == "" {
		reply(c, endpoint, http.StatusBadRequest, missing, nil)
		return Message{}, "", false
	}
	logger.WithShop(c, res.ShopID)
	return msg, res.ShopID, true
}

func (h Handlers) loadShop(c *gin.Context, endpoint, shopID, unconfigured, failed string) (shops.Shop, bool) {
	shop, err := h.Shops.GetShop(c.Request.Context(), shopID)
	if errors.Is(err, shops.ErrNotFound) {
		logger.FromGin(c).Info("shop not found", "endpoint", endpoint)
		reply(c, endpoint, http.StatusOK, unconfigured, nil)
		return shops.Shop{}, false
	}
	if err != nil {
		logger.FromGin(c).Error("load shop failed", "endpoint", endpoint, "err", err)
		reply(c, endpoint, http.StatusInternalServerError, failed, nil)
		return shops.Shop{}, false
	}
	return shop, true
}

func (h Handlers) loadProvider(c *gin.Context, endpoint string, shop shops.Shop, unconfigured, failed string) (booking.Provider, bool) {
	p, err := h.Providers.Provider(c.Request.Context(), shop.ProviderConfig())
	switch {
	case err == nil:
		return p, true
	case errors.Is(err, booking.ErrNotConfigured), errors.Is(err, booking.ErrUnsupportedProvider):
		logger.FromGin(c).Info("booking provider not configured", "endpoint", endpoint, "provider", shop.ProviderType)
		reply(c, endpoint, http.StatusOK, unconfigured, nil)
	default:
		h.providerFailed(c, endpoint, shop.ProviderType, err, failed)
	}
	return nil, false
}

func (h Handlers) providerFailed(c *gin.Context, endpoint, provider string, err error, generic string) {
	kind := booking.KindOf(err)
	metrics.ProviderError(provider, kind)
	logger.FromGin(c).Error("booking provider call failed",
		"endpoint", endpoint,
		"provider", provider,
		"kind", kind,
		"err", err,
	)
	reply(c, endpoint, http.StatusInternalServerError, failureText(err, generic), nil)
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handlers) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

// notify sends an SMS without failing the caller's request.
func (h Handlers) notify(c *gin.Context, to, body string) error {
	if h.Notifier == nil {
		return notify.ErrNotConfigured
	}
	timeout := h.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()
	return h.Notifier.Send(ctx, to, body)
}

// Availability answers "when can I come in on <date>?".
func (h Handlers) Availability(c *gin.Context) {
	const endpoint = "availability"
	msg, shopID, ok := h.begin(c, endpoint, msgAvailabilityMissing)
	if !ok {
		return
	}
	date := msg.Param("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		reply(c, endpoint, http.StatusBadRequest, msgAvailabilityMissing, nil)
		return
	}

	shop, ok := h.loadShop(c, endpoint, shopID, msgNoShop, msgAvailabilityFailed)
	if !ok {
		return
	}
	p, ok := h.loadProvider(c, endpoint, shop, msgNoShop, msgAvailabilityFailed)
	if !ok {
		return
	}

	slots, err := p.CheckAvailability(c.Request.Context(), booking.AvailabilityQuery{
		Date:      date,
		ServiceID: msg.Param("serviceVariationId", "serviceId"),
		StaffID:   msg.Param("teamMemberId", "staffId"),
	})
	if err != nil {
		h.providerFailed(c, endpoint, p.Name(), err, msgAvailabilityFailed)
		return
	}
	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}
	reply(c, endpoint, http.StatusOK, availabilityText(date, slots, shop.Location()), gin.H{
		"availableSlots": slots,
	})
}

// Book creates an appointment with the shop's provider and records it locally.
func (h Handlers) Book(c *gin.Context) {
	const endpoint = "book"
	msg, shopID, ok := h.begin(c, endpoint, msgBookMissing)
	if !ok {
		return
	}
	customerName := msg.Param("customerName")
	serviceID := msg.Param("serviceVariationId", "serviceId")
	if customerName == "" || serviceID == "" {
		reply(c, endpoint, http.StatusBadRequest, msgBookMissing, nil)
		return
	}

	shop, ok := h.loadShop(c, endpoint, shopID, msgNoShop, msgBookFailed)
	if !ok {
		return
	}
	loc := shop.Location()
	start, err := parseStart(msg.Param("startAt"), msg.Param("date"), msg.Param("time"), loc)
	if err != nil {
		reply(c, endpoint, http.StatusBadRequest, msgBookMissing, nil)
		return
	}
	p, ok := h.loadProvider(c, endpoint, shop, msgNoShop, msgBookFailed)
	if !ok {
		return
	}

	customerPhone := msg.Param("customerPhone")
	if customerPhone == "" {
		customerPhone = msg.CallerNumber()
	}
	staffID := msg.Param("teamMemberId", "staffId")
	res, err := p.CreateBooking(c.Request.Context(), booking.BookingRequest{
		StartAt:       start.UTC().Format(time.RFC3339),
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		ServiceID:     serviceID,
		StaffID:       staffID,
	})
	if err != nil {
		h.providerFailed(c, endpoint, p.Name(), err, msgBookFailed)
		return
	}

	if t, err := time.Parse(time.RFC3339, res.StartAt); err == nil {
		start = t
	}
	service := orDefault(msg.Param("serviceName"), orDefault(res.ServiceName, "Appointment"))
	rec := booking.Record{
		ID:                h.newID(),
		ShopID:            shop.ID,
		ProviderBookingID: res.ProviderBookingID,
		CustomerName:      customerName,
		CustomerPhone:     customerPhone,
		TeamMemberID:      staffID,
		Service:           service,
		StartTime:         start.UTC(),
		Status:            booking.StatusConfirmed,
		CreatedAt:         h.now().UTC(),
	}
	// The provider already holds the appointment; a failed local write must
	// not make the caller book again.
	if err := h.Bookings.InsertBooking(c.Request.Context(), rec); err != nil {
		logger.FromGin(c).Error("record booking failed", "provider_booking_id", res.ProviderBookingID, "err", err)
	}

	if phone := shop.Phone(); phone != "" {
		body := fmt.Sprintf("New booking: %s at %s for %s. Booked via %s.",
			customerName, spokenDateTime(start, loc), orDefault(msg.Param("serviceName"), "an appointment"), smsSignature)
		switch err := h.notify(c, phone, body); {
		case errors.Is(err, notify.ErrNotConfigured):
			logger.FromGin(c).Info("booking notification skipped: sms not configured")
		case err != nil:
			logger.FromGin(c).Warn("booking notification failed", "to", logger.MaskPhone(phone), "err", err)
		}
	}

	spoken := start.In(loc).Format("3:04 PM")
	result := fmt.Sprintf("Your appointment is confirmed for %s. Confirmation number %s. %s, you're all set! Is there anything else I can help with?",
		spoken, res.ProviderBookingID, customerName)
	reply(c, endpoint, http.StatusOK, result, gin.H{
		"bookingId": res.ProviderBookingID,
		"confirmed": res.Confirmed,
	})
}

// Info reads back the shop's services and opening hours.
func (h Handlers) Info(c *gin.Context) {
	const endpoint = "info"
	_, shopID, ok := h.begin(c, endpoint, msgInfoMissing)
	if !ok {
		return
	}
	shop, ok := h.loadShop(c, endpoint, shopID, msgNoShopInfo, msgInfoFailed)
	if !ok {
		return
	}
	p, ok := h.loadProvider(c, endpoint, shop, msgNoShopInfo, msgInfoFailed)
	if !ok {
		return
	}

	var (
		services []booking.ServiceInfo
		hours    []booking.BusinessHours
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		services, err = p.Services(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		hours, err = p.BusinessHours(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.providerFailed(c, endpoint, p.Name(), err, msgInfoFailed)
		return
	}

	result := fmt.Sprintf("Here's the info for %s. Services offered: %s. Business hours: %s.",
		orDefault(shop.Name, "the shop"), servicesText(services), hoursText(hours))
	reply(c, endpoint, http.StatusOK, result, gin.H{
		"services":      services,
		"businessHours": hours,
	})
}

// Message relays a caller's message to the shop by SMS.
func (h Handlers) Message(c *gin.Context) {
	const endpoint = "message"
	msg, shopID, ok := h.begin(c, endpoint, msgMessageMissing)
	if !ok {
		return
	}
	text := msg.Param("message")
	if text == "" {
		reply(c, endpoint, http.StatusBadRequest, msgMessageMissing, nil)
		return
	}
	shop, ok := h.loadShop(c, endpoint, shopID, msgNoShop, msgMessageFailed)
	if !ok {
		return
	}
	phone := shop.Phone()
	if phone == "" {
		reply(c, endpoint, http.StatusOK, msgMessageNoPhone, nil)
		return
	}

	callerPhone := msg.Param("callerPhone")
	if callerPhone == "" {
		callerPhone = msg.CallerNumber()
	}
	if err := h.notify(c, phone, messageBody(msg.Param("callerName"), callerPhone, text)); err != nil {
		logger.FromGin(c).Error("relay message failed", "to", logger.MaskPhone(phone), "err", err)
		reply(c, endpoint, http.StatusInternalServerError, msgMessageFailed, nil)
		return
	}

	result := fmt.Sprintf("I've sent your message to %s. They should receive it shortly. Is there anything else I can help with?",
		orDefault(shop.Name, "the barber"))
	reply(c, endpoint, http.StatusOK, result, nil)
}

func messageBody(name, phone, text string) string {
	var from string
	switch {
	case name != "" && phone != "":
		from = fmt.Sprintf("%s (%s)", name, phone)
	case name != "":
		from = name
	default:
		from = phone
	}
	if from == "" {
		return fmt.Sprintf("Message via %s: %s", smsSignature, text)
	}
	return fmt.Sprintf("Message from %s via %s: %s", from, smsSignature, text)
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// parseStart accepts an RFC 3339 startAt, or a date plus a wall-clock time
// interpreted in the shop's zone.
func parseStart(startAt, date, clock string, loc *time.Location) (time.Time, error) {
	if startAt != "" {
		return time.Parse(time.RFC3339, startAt)
	}
	if date == "" || clock == "" {
		return time.Time{}, errors.New("start time required")
	}
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(time.DateOnly+" "+layout, date+" "+clock, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", clock)
}
