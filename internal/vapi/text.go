package vapi

import (
	"fmt"
	"strings"
	"time"

	"barberline/internal/booking"
)

const (
	msgMismatch      = "There was a shop ID mismatch. Please try again."
	msgNoShop        = "I'm sorry, I couldn't find the shop information. Please try again later."
	msgNoShopInfo    = "I'm sorry, I couldn't find the shop information right now."
	msgProviderAuth  = "I'm sorry, I can't reach the shop's booking system right now. Please try again later."
	msgNotFoundInput = "I'm sorry, I couldn't find that service or barber. Could you choose another?"

	msgAvailabilityMissing = "I need the shop ID and a date to check availability. Could you provide those?"
	msgAvailabilityFailed  = "I'm sorry, I had trouble checking availability. Please try again."

	msgBookMissing = "I need your name, the time slot, and the service to complete the booking."
	msgBookFailed  = "I'm sorry, I had trouble creating the booking. Please try again."

	msgInfoMissing = "I need the shop ID to look up information."
	msgInfoFailed  = "I'm sorry, I had trouble getting shop information. Please try again."

	msgMessageMissing = "I need the shop and your message to send it to the barber."
	msgMessageNoPhone = "I'm sorry, I don't have a phone number on file for this barber. Please try calling back later."
	msgMessageFailed  = "I'm sorry, I had trouble sending the message. Please try again later."

	smsSignature = "BarberLine AI"
)

var dayNames = map[string]string{
	"MON": "Monday",
	"TUE": "Tuesday",
	"WED": "Wednesday",
	"THU": "Thursday",
	"FRI": "Friday",
	"SAT": "Saturday",
	"SUN": "Sunday",
}

// failureText picks the spoken apology for a provider error.
func failureText(err error, generic string) string {
	switch booking.KindOf(err) {
	case "auth":
		return msgProviderAuth
	case "not_found":
		return msgNotFoundInput
	default:
		return generic
	}
}

// spokenTime renders an RFC 3339 instant as "2:00 PM" in loc. Unparseable
// input is returned unchanged.
func spokenTime(startAt string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return startAt
	}
	return t.In(loc).Format("3:04 PM")
}

// spokenDateTime renders an instant as "Mon, Mar 2 at 2:00 PM" in loc.
func spokenDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon, Jan 2 at 3:04 PM")
}

// clockTime turns "17:30" into "5:30 PM".
func clockTime(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

func availabilityText(date string, slots []booking.TimeSlot, loc *time.Location) string {
	if len(slots) == 0 {
		return fmt.Sprintf("There are no available time slots on %s. Would you like to check another date?", date)
	}
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, spokenTime(s.StartAt, loc))
	}
	return fmt.Sprintf("Available times on %s: %s. Which time works best for you?", date, strings.Join(times, ", "))
}

func servicesText(services []booking.ServiceInfo) string {
	if len(services) == 0 {
		return "No services listed"
	}
	parts := make([]string, 0, len(services))
	for _, s := range services {
		p := s.Name
		if s.PriceDisplay != "" {
			p += " - " + s.PriceDisplay
		}
		if s.DurationMinutes > 0 {
			p += fmt.Sprintf(" (%d min)", s.DurationMinutes)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

func hoursText(hours []booking.BusinessHours) string {
	if len(hours) == 0 {
		return "Hours not available"
	}
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		day, ok := dayNames[h.DayOfWeek]
		if !ok {
			day = h.DayOfWeek
		}
		parts = append(parts, fmt.Sprintf("%s: %s - %s", day, clockTime(h.OpenTime), clockTime(h.CloseTime)))
	}
	return strings.Join(parts, "; ")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
