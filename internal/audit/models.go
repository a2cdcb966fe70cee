package audit

import "time"

// Event is an immutable, append-only security audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit writes are best-effort; critical flows never block on them.
// - Events never carry credentials, tokens or OAuth codes.
type Event struct {
	ID     string    `json:"id" db:"id"`
	ShopID *string   `json:"shop_id,omitempty" db:"shop_id"`
	Type   EventType `json:"type" db:"type"`

	// ActorUserID is the dashboard user causing the event (if applicable).
	ActorUserID *string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// IPAddress is the resolved client IP when available.
	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTenantMismatch: platform metadata and call parameters named different shops.
	EventTenantMismatch EventType = "tenant_mismatch"
	// EventCSRFMismatch: OAuth callback state did not match the issued cookie.
	EventCSRFMismatch EventType = "csrf_mismatch"
	// EventCredentialLinked: a provider credential was stored via OAuth.
	EventCredentialLinked EventType = "credential_linked"
	// EventCredentialUpgraded: a legacy plaintext credential was re-stored sealed.
	EventCredentialUpgraded EventType = "credential_upgraded"
)
