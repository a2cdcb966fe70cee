package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"barberline/internal/calls"

	"github.com/jmoiron/sqlx"
)

// Repository reads call history. Every method is scoped to one shop.
type Repository interface {
	ListCallLogs(ctx context.Context, shopID string, since time.Time) ([]calls.CallLog, error)
	PageCallLogs(ctx context.Context, shopID string, limit, offset int) ([]calls.CallLog, int, error)
}

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

type callLogRow struct {
	calls.CallLog
	TranscriptText *string `db:"transcript_text"`
}

const callLogColumns = `id, shop_id, vapi_call_id, caller_phone, duration_sec, outcome, transcript::text AS transcript_text, created_at`

func (r *PostgresRepo) ListCallLogs(ctx context.Context, shopID string, since time.Time) ([]calls.CallLog, error) {
	if shopID == "" {
		return nil, ErrInvalidRequest
	}
	var rows []callLogRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+callLogColumns+` FROM call_logs WHERE shop_id = $1 AND created_at >= $2 ORDER BY created_at`,
		shopID, since)
	if err != nil {
		return nil, err
	}
	return toCallLogs(rows), nil
}

func (r *PostgresRepo) PageCallLogs(ctx context.Context, shopID string, limit, offset int) ([]calls.CallLog, int, error) {
	if shopID == "" {
		return nil, 0, ErrInvalidRequest
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM call_logs WHERE shop_id = $1`, shopID); err != nil {
		return nil, 0, err
	}
	var rows []callLogRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+callLogColumns+` FROM call_logs WHERE shop_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		shopID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return toCallLogs(rows), total, nil
}

func toCallLogs(rows []callLogRow) []calls.CallLog {
	out := make([]calls.CallLog, 0, len(rows))
	for _, row := range rows {
		l := row.CallLog
		if row.TranscriptText != nil {
			l.Transcript = json.RawMessage(*row.TranscriptText)
		}
		out = append(out, l)
	}
	return out
}

// MemoryRepo is an in-memory Repository for tests and early development.
// It enforces shop isolation on reads.
type MemoryRepo struct {
	mu   sync.Mutex
	Logs []calls.CallLog
}

func NewMemoryRepo(logs ...calls.CallLog) *MemoryRepo { return &MemoryRepo{Logs: logs} }

func (r *MemoryRepo) ListCallLogs(ctx context.Context, shopID string, since time.Time) ([]calls.CallLog, error) {
	if shopID == "" {
		return nil, errors.New("shop_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallLog, 0)
	for _, l := range r.Logs {
		if l.ShopID != shopID || l.CreatedAt.Before(since) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) PageCallLogs(ctx context.Context, shopID string, limit, offset int) ([]calls.CallLog, int, error) {
	if shopID == "" {
		return nil, 0, errors.New("shop_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]calls.CallLog, 0)
	for _, l := range r.Logs {
		if l.ShopID == shopID {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []calls.CallLog{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}
