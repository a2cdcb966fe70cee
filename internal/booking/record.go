package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Record is a booking made by the voice agent, as stored locally.
type Record struct {
	ID                string    `json:"id" db:"id"`
	ShopID            string    `json:"shop_id" db:"shop_id"`
	CallLogID         *string   `json:"call_log_id,omitempty" db:"call_log_id"`
	ProviderBookingID string    `json:"provider_booking_id" db:"provider_booking_id"`
	CustomerName      string    `json:"customer_name" db:"customer_name"`
	CustomerPhone     string    `json:"customer_phone" db:"customer_phone"`
	TeamMemberID      string    `json:"team_member_id,omitempty" db:"team_member_id"`
	Service           string    `json:"service" db:"service"`
	StartTime         time.Time `json:"start_time" db:"start_time"`
	Status            Status    `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var ErrInvalidRecord = errors.New("booking: invalid record")

type Repository interface {
	InsertBooking(ctx context.Context, r Record) error
}

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const insertBookingSQL = `
INSERT INTO bookings (
	id, shop_id, call_log_id, provider_booking_id, customer_name, customer_phone,
	team_member_id, service, start_time, status, created_at
) VALUES (
	:id, :shop_id, :call_log_id, :provider_booking_id, :customer_name, :customer_phone,
	:team_member_id, :service, :start_time, :status, :created_at
)`

func (r *PostgresRepo) InsertBooking(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := r.db.NamedExecContext(ctx, insertBookingSQL, rec)
	return err
}

func validateRecord(rec Record) error {
	if rec.ID == "" || rec.ShopID == "" || rec.ProviderBookingID == "" || rec.StartTime.IsZero() {
		return ErrInvalidRecord
	}
	switch rec.Status {
	case StatusConfirmed, StatusCancelled, StatusNoShow:
		return nil
	default:
		return ErrInvalidRecord
	}
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
	Err     error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) InsertBooking(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryRepo) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
