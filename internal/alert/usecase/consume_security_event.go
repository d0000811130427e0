package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shandysiswandi/govault/internal/alert/entity"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"github.com/shandysiswandi/govault/internal/shared/event"
)

type ConsumeSecurityEventInput struct {
	Type       event.SecurityEventType `validate:"required"`
	UserID     int64                   `validate:"required,gt=0"`
	Email      string                  `validate:"required,email"`
	ActionType string
	DeviceID   string
	IPAddress  string
	UserAgent  string
	OccurredAt time.Time
}

// ConsumeSecurityEvent emails the account owner about one security event.
//
// Malformed and unknown events are dropped without error so the broker does
// not redeliver them. A delivery failure is returned so it is redelivered, and
// a redelivery of an event already mailed is a no-op.
func (s *Usecase) ConsumeSecurityEvent(ctx context.Context, in ConsumeSecurityEventInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeSecurityEvent")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "dropping invalid security event", "type", in.Type, "user_id", in.UserID, "error", err)
		return nil
	}

	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.clock.Now()
	}

	tpl, ok := entity.Templates[in.Type]
	if !ok {
		slog.InfoContext(ctx, "no alert for security event type", "type", in.Type)
		return nil
	}

	if muted := s.cfg.GetArray("modules.alert.muted_types"); slices.Contains(muted, string(in.Type)) {
		slog.InfoContext(ctx, "security event type is muted", "type", in.Type)
		return nil
	}

	data := s.baseTemplateData()
	data["email"] = in.Email
	data["action_type"] = in.ActionType
	data["device_id"] = in.DeviceID
	data["ip_address"] = fallback(in.IPAddress)
	data["user_agent"] = fallback(in.UserAgent)
	data["occurred_at"] = in.OccurredAt.UTC().Format(time.RFC1123)

	body, err := s.renderTemplate(string(in.Type), tpl.Body, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render alert body", "type", in.Type, "user_id", in.UserID, "error", err)
		return nil
	}

	key := fmt.Sprintf("alert:%s:%d:%d", in.Type, in.UserID, in.OccurredAt.UnixNano())
	_, replayed, err := s.idempotency.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		if err := s.repoMail.Send(ctx, mail.Message{
			To:       []string{in.Email},
			Subject:  tpl.Subject,
			HTMLBody: body,
		}); err != nil {
			return nil, err
		}
		return []byte(`true`), nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to send security alert", "type", in.Type, "user_id", in.UserID, "error", err)
		return err
	}
	if replayed {
		slog.InfoContext(ctx, "security alert already sent", "type", in.Type, "user_id", in.UserID)
		return nil
	}

	slog.InfoContext(ctx, "security alert sent", "type", in.Type, "user_id", in.UserID)
	return nil
}

func fallback(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
