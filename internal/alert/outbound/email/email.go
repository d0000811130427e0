package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Backoff bounds how hard Send tries before giving up on one alert.
type Backoff struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries uint64
}

func (b Backoff) orDefault() Backoff {
	if b.Base <= 0 {
		b.Base = 200 * time.Millisecond
	}
	if b.Cap <= 0 {
		b.Cap = 5 * time.Second
	}
	return b
}

type Mail struct {
	client  mail.Mail
	from    string
	backoff Backoff
	ins     instrument.Instrumentation
}

func New(client mail.Mail, from string, backoff Backoff, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, from: from, backoff: backoff.orDefault(), ins: ins}
}

// Send delivers msg, retrying transient SMTP failures with a capped Fibonacci backoff.
func (m *Mail) Send(ctx context.Context, msg mail.Message) error {
	ctx, span := m.ins.Tracer("alert.outbound.email").Start(ctx, "Send")
	defer span.End()

	if msg.From == "" {
		msg.From = m.from
	}

	b := retry.NewFibonacci(m.backoff.Base)
	b = retry.WithCappedDuration(m.backoff.Cap, b)
	b = retry.WithMaxRetries(m.backoff.MaxRetries, b)

	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if err := m.client.Send(ctx, msg); err != nil {
			slog.WarnContext(ctx, "failed to send alert email, will retry", "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
