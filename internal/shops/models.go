package shops

import (
	"fmt"
	"time"

	"barberline/internal/booking"
)

const DefaultTimezone = "America/New_York"

// Shop is a tenant. ProviderToken holds the stored credential form: sealed
// ciphertext, or plaintext on rows written before encryption existed.
type Shop struct {
	ID                 string    `json:"id" db:"id"`
	OwnerUserID        string    `json:"owner_user_id" db:"owner_user_id"`
	Name               string    `json:"name" db:"name"`
	PhoneNumber        *string   `json:"phone_number,omitempty" db:"phone_number"`
	Timezone           *string   `json:"timezone,omitempty" db:"timezone"`
	Greeting           *string   `json:"greeting,omitempty" db:"greeting"`
	ProviderType       string    `json:"provider_type" db:"provider_type"`
	ProviderToken      *string   `json:"-" db:"provider_token"`
	ProviderLocationID *string   `json:"provider_location_id,omitempty" db:"provider_location_id"`
	VapiAgentID        *string   `json:"vapi_agent_id,omitempty" db:"vapi_agent_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Location returns the shop's time zone, falling back to DefaultTimezone.
func (s Shop) Location() *time.Location {
	name := DefaultTimezone
	if s.Timezone != nil && *s.Timezone != "" {
		name = *s.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			return time.UTC
		}
	}
	return loc
}

// Phone is the shop's notification number, or "".
func (s Shop) Phone() string {
	if s.PhoneNumber == nil {
		return ""
	}
	return *s.PhoneNumber
}

// ProviderConfig is the input the booking factory needs.
func (s Shop) ProviderConfig() booking.Config {
	cfg := booking.Config{ShopID: s.ID, ProviderType: s.ProviderType}
	if s.ProviderToken != nil {
		cfg.Credential = *s.ProviderToken
	}
	if s.ProviderLocationID != nil {
		cfg.LocationID = *s.ProviderLocationID
	}
	return cfg
}

// PendingAgentID marks a shop whose voice agent has been requested but not
// provisioned yet.
const PendingAgentID = "pending_setup"

const (
	maxNameLen     = 100
	maxGreetingLen = 500
)

// SettingsUpdate carries the owner-editable fields. A nil field is left
// unchanged; an empty Timezone or Greeting clears it.
type SettingsUpdate struct {
	Name     *string
	Timezone *string
	Greeting *string
}

func (u SettingsUpdate) Empty() bool {
	return u.Name == nil && u.Timezone == nil && u.Greeting == nil
}

func (u SettingsUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidArgument)
	}
	if u.Name != nil && (*u.Name == "" || len(*u.Name) > maxNameLen) {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidArgument, maxNameLen)
	}
	if u.Timezone != nil && *u.Timezone != "" {
		if _, err := time.LoadLocation(*u.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidArgument, *u.Timezone)
		}
	}
	if u.Greeting != nil && len(*u.Greeting) > maxGreetingLen {
		return fmt.Errorf("%w: greeting must be at most %d characters", ErrInvalidArgument, maxGreetingLen)
	}
	return nil
}

// Activated reports whether a voice agent has been requested for the shop.
func (s Shop) Activated() bool {
	return s.VapiAgentID != nil && *s.VapiAgentID != ""
}
