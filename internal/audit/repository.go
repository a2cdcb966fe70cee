package audit

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const insertEventSQL = `
INSERT INTO audit_events (id, shop_id, type, actor_user_id, ip_address, message, created_at)
VALUES (:id, :shop_id, :type, :actor_user_id, :ip_address, :message, :created_at)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.NamedExecContext(ctx, insertEventSQL, e)
	return err
}

// MemoryRepo keeps events in process. It backs tests and local runs without
// a database; it is not intended for production use.
type MemoryRepo struct {
	// Err, when set, is returned by Append and nothing is stored.
	Err error

	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything appended so far, oldest first.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the stored events of one type, oldest first.
func (r *MemoryRepo) OfType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
