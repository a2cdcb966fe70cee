package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"barberline/internal/metrics"
	"barberline/pkg/logger"

	"github.com/google/uuid"
)

const EventEndOfCallReport = "end-of-call-report"

// Report is the part of a platform event the processor needs.
// ShopID must come from the platform's own assistant metadata.
type Report struct {
	Type            string
	ShopID          string
	CallID          string
	CallerPhone     string
	Summary         string
	DurationSeconds *float64
	Transcript      json.RawMessage
}

// State is the terminal state of one processed event.
type State string

const (
	StateAcknowledged State = "acknowledged"
	StateRecorded     State = "recorded"
	StateDuplicate    State = "duplicate"
)

// Guard suppresses repeated deliveries of the same call.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Processor struct {
	repo  Repository
	guard Guard
	now   func() time.Time
	newID func() string
}

// NewProcessor builds a Processor. guard may be nil; the repository's unique
// call id still prevents duplicate rows.
func NewProcessor(repo Repository, guard Guard) *Processor {
	return &Processor{repo: repo, guard: guard, now: time.Now, newID: uuid.NewString}
}

// Process records end-of-call reports and acknowledges everything else.
func (p *Processor) Process(ctx context.Context, r Report) (State, error) {
	log := logger.From(ctx)

	if r.Type != EventEndOfCallReport {
		return StateAcknowledged, nil
	}
	if r.ShopID == "" {
		log.Warn("end-of-call report without shop id in assistant metadata", "call_id", r.CallID)
		metrics.CallLog("dropped", "")
		return StateAcknowledged, nil
	}

	entry := p.buildLog(r)

	claimKey := ""
	if r.CallID != "" && p.guard != nil {
		claimKey = "call_log:" + r.CallID
		first, err := p.guard.Claim(ctx, claimKey)
		if err != nil {
			// Fall through to the database constraint.
			log.Warn("dedupe claim failed", "call_id", r.CallID, "err", err)
			claimKey = ""
		} else if !first {
			metrics.CallLog("duplicate", string(entry.Outcome))
			return StateDuplicate, nil
		}
	}

	inserted, err := p.repo.InsertCallLog(ctx, entry)
	if err != nil {
		if claimKey != "" {
			if rerr := p.guard.Release(ctx, claimKey); rerr != nil {
				log.Warn("dedupe release failed", "call_id", r.CallID, "err", rerr)
			}
		}
		metrics.CallLog("dropped", string(entry.Outcome))
		return StateAcknowledged, fmt.Errorf("insert call log: %w", err)
	}
	if !inserted {
		metrics.CallLog("duplicate", string(entry.Outcome))
		return StateDuplicate, nil
	}

	log.Info("call log recorded",
		"shop_id", entry.ShopID,
		"call_id", r.CallID,
		"outcome", entry.Outcome,
		"caller", logger.MaskPhone(r.CallerPhone),
	)
	metrics.CallLog("recorded", string(entry.Outcome))
	return StateRecorded, nil
}

func (p *Processor) buildLog(r Report) CallLog {
	l := CallLog{
		ID:        p.newID(),
		ShopID:    r.ShopID,
		Outcome:   Classify(r.Summary),
		CreatedAt: p.now().UTC(),
	}
	if r.CallID != "" {
		id := r.CallID
		l.VapiCallID = &id
	}
	if r.CallerPhone != "" {
		phone := r.CallerPhone
		l.CallerPhone = &phone
	}
	if r.DurationSeconds != nil && *r.DurationSeconds >= 0 && !math.IsInf(*r.DurationSeconds, 0) {
		d := int(math.Round(*r.DurationSeconds))
		l.DurationSec = &d
	}
	if t := bytes.TrimSpace(r.Transcript); len(t) > 0 && !bytes.Equal(t, []byte("null")) {
		l.Transcript = append(json.RawMessage(nil), t...)
	}
	return l
}
