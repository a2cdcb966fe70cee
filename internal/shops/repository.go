package shops

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"barberline/internal/secretbox"
	"barberline/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound        = errors.New("shops: not found")
	ErrInvalidArgument = errors.New("shops: invalid argument")
)

// Repository is the shop store. Credential writes only accept sealed values.
type Repository interface {
	GetShop(ctx context.Context, id string) (Shop, error)
	GetShopByOwner(ctx context.Context, ownerUserID string) (Shop, error)
	// UpdateProviderCredential stores a linked account. An empty locationID is
	// stored as NULL and leaves the shop unable to book until one exists.
	UpdateProviderCredential(ctx context.Context, shopID, providerType string, token secretbox.Sealed, locationID string) error
	// UpgradeLegacyCredential replaces plaintext only if the stored value is
	// still exactly legacy; it reports whether a row changed.
	UpgradeLegacyCredential(ctx context.Context, shopID, legacy string, token secretbox.Sealed) (bool, error)
	UpdateSettings(ctx context.Context, shopID string, u SettingsUpdate) (Shop, error)
	// Activate saves the greeting and marks the voice agent as pending setup
	// unless an agent id is already assigned.
	Activate(ctx context.Context, shopID, greeting string) (Shop, error)
}

type PostgresRepo struct {
	db    *sqlx.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const shopColumns = `id, owner_user_id, name, phone_number, timezone, greeting, provider_type,
	provider_token, provider_location_id, vapi_agent_id, created_at, updated_at`

func (r *PostgresRepo) GetShop(ctx context.Context, id string) (Shop, error) {
	if id == "" {
		return Shop{}, ErrInvalidArgument
	}
	// Ids arrive from call payloads; a malformed one names no shop.
	if _, err := uuid.Parse(id); err != nil {
		return Shop{}, ErrNotFound
	}
	var s Shop
	err := r.db.GetContext(ctx, &s, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) GetShopByOwner(ctx context.Context, ownerUserID string) (Shop, error) {
	if ownerUserID == "" {
		return Shop{}, ErrInvalidArgument
	}
	var s Shop
	err := r.db.GetContext(ctx, &s, `SELECT `+shopColumns+` FROM shops WHERE owner_user_id = $1 ORDER BY created_at LIMIT 1`, ownerUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) UpdateProviderCredential(ctx context.Context, shopID, providerType string, token secretbox.Sealed, locationID string) error {
	if shopID == "" || providerType == "" || token.IsZero() {
		return ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE shops
SET provider_type = $2, provider_token = $3, provider_location_id = $4, updated_at = $5
WHERE id = $1`, shopID, providerType, token.String(), nullString(locationID), r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) UpgradeLegacyCredential(ctx context.Context, shopID, legacy string, token secretbox.Sealed) (bool, error) {
	if shopID == "" || legacy == "" || token.IsZero() {
		return false, ErrInvalidArgument
	}

	var changed bool
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sqlx.Tx) error {
		var current sql.NullString
		if err := tx.GetContext(ctx, &current, `SELECT provider_token FROM shops WHERE id = $1 FOR UPDATE`, shopID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		// Someone re-linked or already upgraded in the meantime.
		if !current.Valid || current.String != legacy {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE shops SET provider_token = $2, updated_at = $3 WHERE id = $1`,
			shopID, token.String(), r.clock().UTC()); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (r *PostgresRepo) UpdateSettings(ctx context.Context, shopID string, u SettingsUpdate) (Shop, error) {
	if shopID == "" {
		return Shop{}, ErrInvalidArgument
	}
	if err := u.Validate(); err != nil {
		return Shop{}, err
	}
	var s Shop
	err := r.db.GetContext(ctx, &s, `
UPDATE shops
SET name = CASE WHEN $2 THEN $3 ELSE name END,
    timezone = CASE WHEN $4 THEN NULLIF($5, '') ELSE timezone END,
    greeting = CASE WHEN $6 THEN NULLIF($7, '') ELSE greeting END,
    updated_at = $8
WHERE id = $1
RETURNING `+shopColumns,
		shopID,
		u.Name != nil, deref(u.Name),
		u.Timezone != nil, deref(u.Timezone),
		u.Greeting != nil, deref(u.Greeting),
		r.clock().UTC(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) Activate(ctx context.Context, shopID, greeting string) (Shop, error) {
	if shopID == "" {
		return Shop{}, ErrInvalidArgument
	}
	var s Shop
	err := r.db.GetContext(ctx, &s, `
UPDATE shops
SET greeting = NULLIF($2, ''),
    vapi_agent_id = COALESCE(NULLIF(vapi_agent_id, ''), $3),
    updated_at = $4
WHERE id = $1
RETURNING `+shopColumns, shopID, greeting, PendingAgentID, r.clock().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return Shop{}, ErrNotFound
	}
	return s, err
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu    sync.Mutex
	shops map[string]Shop
}

func NewMemoryRepo(seed ...Shop) *MemoryRepo {
	m := &MemoryRepo{shops: make(map[string]Shop)}
	for _, s := range seed {
		m.shops[s.ID] = s
	}
	return m
}

func (m *MemoryRepo) GetShop(ctx context.Context, id string) (Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return Shop{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryRepo) GetShopByOwner(ctx context.Context, ownerUserID string) (Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shops {
		if s.OwnerUserID == ownerUserID && ownerUserID != "" {
			return s, nil
		}
	}
	return Shop{}, ErrNotFound
}

func (m *MemoryRepo) UpdateProviderCredential(ctx context.Context, shopID, providerType string, token secretbox.Sealed, locationID string) error {
	if shopID == "" || providerType == "" || token.IsZero() {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return ErrNotFound
	}
	tok := token.String()
	s.ProviderType = providerType
	s.ProviderToken = &tok
	s.ProviderLocationID = optional(locationID)
	m.shops[shopID] = s
	return nil
}

func (m *MemoryRepo) UpgradeLegacyCredential(ctx context.Context, shopID, legacy string, token secretbox.Sealed) (bool, error) {
	if shopID == "" || legacy == "" || token.IsZero() {
		return false, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return false, ErrNotFound
	}
	if s.ProviderToken == nil || *s.ProviderToken != legacy {
		return false, nil
	}
	tok := token.String()
	s.ProviderToken = &tok
	m.shops[shopID] = s
	return true, nil
}

func (m *MemoryRepo) UpdateSettings(ctx context.Context, shopID string, u SettingsUpdate) (Shop, error) {
	if shopID == "" {
		return Shop{}, ErrInvalidArgument
	}
	if err := u.Validate(); err != nil {
		return Shop{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return Shop{}, ErrNotFound
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Timezone != nil {
		s.Timezone = optional(*u.Timezone)
	}
	if u.Greeting != nil {
		s.Greeting = optional(*u.Greeting)
	}
	m.shops[shopID] = s
	return s, nil
}

func (m *MemoryRepo) Activate(ctx context.Context, shopID, greeting string) (Shop, error) {
	if shopID == "" {
		return Shop{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[shopID]
	if !ok {
		return Shop{}, ErrNotFound
	}
	s.Greeting = optional(greeting)
	if s.VapiAgentID == nil || *s.VapiAgentID == "" {
		s.VapiAgentID = optional(PendingAgentID)
	}
	m.shops[shopID] = s
	return s, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
