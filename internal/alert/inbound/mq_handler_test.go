package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/govault/internal/alert/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/shared/event"
)

type stubMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m stubMessage) ID() string                  { return "m-1" }
func (m stubMessage) Body() []byte                { return m.body }
func (m stubMessage) Headers() []messaging.Header { return m.headers }
func (m stubMessage) Attempts() int               { return 1 }

type stubUsecase struct {
	in  usecase.ConsumeSecurityEventInput
	cID string
	err error
}

func (s *stubUsecase) ConsumeSecurityEvent(ctx context.Context, in usecase.ConsumeSecurityEventInput) error {
	s.in = in
	s.cID = instrument.GetCorrelationID(ctx)
	return s.err
}

func TestMQHandler_SecurityEvent(t *testing.T) {
	body := []byte(`{"type":"vault_exported","user_id":7,"email":"alice@govault.test","ip_address":"10.0.0.1","occurred_at":"2026-07-01T10:00:00Z"}`)

	t.Run("decodes and keeps the correlation id", func(t *testing.T) {
		stub := &stubUsecase{}
		h := &MQHandler{uc: stub, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		err := h.SecurityEvent(context.Background(), stubMessage{
			body:    body,
			headers: []messaging.Header{{Key: event.HeaderCorrelationID, Value: []byte("cid-123")}},
		})
		if err != nil {
			t.Fatalf("SecurityEvent: %v", err)
		}
		if stub.in.Type != event.SecurityEventVaultExported || stub.in.UserID != 7 || stub.in.IPAddress != "10.0.0.1" {
			t.Fatalf("input = %+v", stub.in)
		}
		if stub.cID != "cid-123" {
			t.Fatalf("correlation id = %q", stub.cID)
		}
	})

	t.Run("bad json is acknowledged", func(t *testing.T) {
		stub := &stubUsecase{err: errors.New("must not be called")}
		h := &MQHandler{uc: stub, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		if err := h.SecurityEvent(context.Background(), stubMessage{body: []byte("{")}); err != nil {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("usecase failure is returned for redelivery", func(t *testing.T) {
		boom := errors.New("smtp down")
		h := &MQHandler{uc: &stubUsecase{err: boom}, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		if err := h.SecurityEvent(context.Background(), stubMessage{body: body}); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	})
}
