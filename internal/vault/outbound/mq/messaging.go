package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"github.com/shandysiswandi/govault/internal/vault/usecase"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishVaultExported(ctx context.Context, msg usecase.VaultExportedEvent) error {
	ctx, span := m.ins.Tracer("vault.outbound.mq").Start(ctx, "PublishVaultExported")
	defer span.End()

	body, err := json.Marshal(event.SecurityEventMessage{
		Type:       event.SecurityEventVaultExported,
		UserID:     msg.UserID,
		Email:      msg.Email,
		ActionType: "export_vault",
		DeviceID:   msg.DeviceID,
		IPAddress:  msg.IPAddress,
		UserAgent:  msg.UserAgent,
		OccurredAt: msg.OccurredAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if err := m.client.Publish(ctx, event.SecurityEventDestination, messaging.Envelope{
		Key:     []byte(strconv.FormatInt(msg.UserID, 10)),
		Body:    body,
		Headers: []messaging.Header{{Key: event.HeaderCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
