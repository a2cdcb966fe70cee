package audit

import (
	"context"
	"errors"
	"time"

	"barberline/pkg/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ShopID == nil && e.ActorUserID == nil && e.IPAddress == nil {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event and only logs failures.
func (s *Service) Record(ctx context.Context, typ EventType, shopID, actorUserID, ip, message string) {
	if s == nil {
		return
	}
	err := s.Append(ctx, Event{
		Type:        typ,
		ShopID:      optional(shopID),
		ActorUserID: optional(actorUserID),
		IPAddress:   optional(ip),
		Message:     message,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "type", typ, "err", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
