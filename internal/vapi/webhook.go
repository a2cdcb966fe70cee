package vapi

import (
	"context"

	"barberline/internal/calls"
	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
)

type EventProcessor interface {
	Process(ctx context.Context, r calls.Report) (calls.State, error)
}

// Webhook receives server events (status updates, end-of-call reports).
// Once a request has passed the secret check and rate limit it is always
// acknowledged: the platform does not act on failures, and recording is
// idempotent on the call id so a later redelivery can still land.
type Webhook struct {
	Processor EventProcessor
}

func (w Webhook) Handle(c *gin.Context) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		logger.FromGin(c).Warn("invalid webhook body", "err", err)
		ack(c)
		return
	}
	report := env.Message.Report()
	if report.ShopID != "" {
		logger.WithShop(c, report.ShopID)
	}

	state, err := w.Processor.Process(c.Request.Context(), report)
	if err != nil {
		logger.FromGin(c).Error("webhook processing failed",
			"type", report.Type,
			"call_id", report.CallID,
			"err", err,
		)
		ack(c)
		return
	}
	logger.FromGin(c).Debug("webhook processed", "type", report.Type, "state", state)
	ack(c)
}
