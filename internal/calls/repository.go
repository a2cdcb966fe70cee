package calls

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
)

var ErrInvalidCallLog = errors.New("calls: invalid call log")

// Repository persists call logs. InsertCallLog reports false when a row for
// the same VapiCallID already exists.
type Repository interface {
	InsertCallLog(ctx context.Context, l CallLog) (bool, error)
}

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const insertCallLogSQL = `
INSERT INTO call_logs (id, shop_id, vapi_call_id, caller_phone, duration_sec, outcome, transcript, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
ON CONFLICT (vapi_call_id) DO NOTHING
`

func (r *PostgresRepo) InsertCallLog(ctx context.Context, l CallLog) (bool, error) {
	if l.ShopID == "" || l.ID == "" {
		return false, ErrInvalidCallLog
	}

	var transcript *string
	if len(l.Transcript) > 0 {
		s := string(l.Transcript)
		transcript = &s
	}

	res, err := r.db.ExecContext(ctx, insertCallLogSQL,
		l.ID, l.ShopID, l.VapiCallID, l.CallerPhone, l.DurationSec, string(l.Outcome), transcript, l.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu   sync.Mutex
	logs []CallLog
	// Err, when set, is returned from every insert.
	Err error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) InsertCallLog(ctx context.Context, l CallLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return false, r.Err
	}
	if l.ShopID == "" || l.ID == "" {
		return false, ErrInvalidCallLog
	}
	if l.VapiCallID != nil {
		for _, existing := range r.logs {
			if existing.VapiCallID != nil && *existing.VapiCallID == *l.VapiCallID {
				return false, nil
			}
		}
	}
	r.logs = append(r.logs, l)
	return true, nil
}

func (r *MemoryRepo) CallLogs() []CallLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallLog, len(r.logs))
	copy(out, r.logs)
	return out
}
