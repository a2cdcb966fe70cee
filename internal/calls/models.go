package calls

import (
	"encoding/json"
	"time"
)

// CallLog is one completed voice agent call attributed to a shop.
//
// VapiCallID is unique when present; a replayed end-of-call report for the
// same call never produces a second row.
type CallLog struct {
	ID     string `json:"id" db:"id"`
	ShopID string `json:"shop_id" db:"shop_id"`

	VapiCallID  *string `json:"vapi_call_id,omitempty" db:"vapi_call_id"`
	CallerPhone *string `json:"caller_phone,omitempty" db:"caller_phone"`

	// DurationSec is rounded to whole seconds.
	DurationSec *int `json:"duration_sec,omitempty" db:"duration_sec"`

	Outcome Outcome `json:"outcome" db:"outcome"`

	// Transcript is kept exactly as the platform sent it (JSON), or nil.
	Transcript json.RawMessage `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Outcome string

const (
	OutcomeBooked         Outcome = "booked"
	OutcomeNoAvailability Outcome = "no_availability"
	OutcomeInfoOnly       Outcome = "info_only"
	OutcomeFallback       Outcome = "fallback"
	OutcomeHangup         Outcome = "hangup"
)
