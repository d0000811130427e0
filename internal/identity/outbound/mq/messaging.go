package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/govault/internal/identity/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishTwoFAReset(ctx context.Context, msg usecase.TwoFAResetEvent) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, "PublishTwoFAReset")
	defer span.End()

	body, err := json.Marshal(event.SecurityEventMessage{
		Type:       event.SecurityEventTwoFAReset,
		UserID:     msg.UserID,
		Email:      msg.Email,
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
