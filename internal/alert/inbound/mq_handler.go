package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/alert/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/shared/event"
)

type uc interface {
	ConsumeSecurityEvent(ctx context.Context, in usecase.ConsumeSecurityEventInput) error
}

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	if cID, ok := messaging.Lookup(headers, event.HeaderCorrelationID); ok && cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) SecurityEvent(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("alert.inbound.mq").Start(ctx, "SecurityEvent")
	defer span.End()

	var payload event.SecurityEventMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse security event", "msg_id", msg.ID(), "attempts", msg.Attempts(), "error", err)
		return nil
	}

	slog.InfoContext(ctx, "consume: security event", "type", payload.Type, "user_id", payload.UserID)

	return h.uc.ConsumeSecurityEvent(ctx, usecase.ConsumeSecurityEventInput{
		Type:       payload.Type,
		UserID:     payload.UserID,
		Email:      payload.Email,
		ActionType: payload.ActionType,
		DeviceID:   payload.DeviceID,
		IPAddress:  payload.IPAddress,
		UserAgent:  payload.UserAgent,
		OccurredAt: payload.OccurredAt,
	})
}
