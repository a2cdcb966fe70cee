package ratelimit

import "time"

// Policy is a namespaced limit/window pair.
type Policy struct {
	Namespace string
	Limit     int
	Window    time.Duration
}

var (
	PolicyAvailability = Policy{Namespace: "availability", Limit: 100, Window: time.Minute}
	PolicyInfo         = Policy{Namespace: "info", Limit: 100, Window: time.Minute}
	PolicyMessage      = Policy{Namespace: "message", Limit: 20, Window: time.Minute}
	PolicyBooking      = Policy{Namespace: "booking", Limit: 20, Window: time.Minute}
	PolicyWebhook      = Policy{Namespace: "webhook", Limit: 100, Window: time.Minute}
	PolicyOAuthStart   = Policy{Namespace: "oauth-start", Limit: 5, Window: time.Minute}
)
