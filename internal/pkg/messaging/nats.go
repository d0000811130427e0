package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when no server URL is configured.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

// NATSConfig configures the NATS driver.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS is a Messaging backed by core NATS. Core NATS has no redelivery, so
// a handler error is logged and the message is gone.
type NATS struct {
	conn *nats.Conn
	gate gate
}

// NewNATS connects to the configured server.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Close drains every subscription and then the connection.
func (n *NATS) Close() error {
	if !n.gate.shut() {
		return nil
	}
	return n.conn.Drain()
}

func (n *NATS) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if err := n.gate.check(); err != nil {
		return err
	}

	msg := nats.NewMsg(topic)
	msg.Data = env.Body
	for _, hd := range env.Headers {
		if hd.Key != "" {
			msg.Header.Add(hd.Key, string(hd.Value))
		}
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("messaging: nats flush: %w", err)
	}
	return nil
}

// Subscribe joins the queue group named group so each message reaches one
// member of the group.
func (n *NATS) Subscribe(ctx context.Context, topic, group string, h Handler, opts ...SubscribeOption) error {
	if err := validateSubscribe(ctx, topic, group, h); err != nil {
		return err
	}
	if err := n.gate.check(); err != nil {
		return err
	}

	so := newSubscribeOptions(opts...)
	inbox := make(chan *nats.Msg, so.maxInFlight)

	sub, err := n.conn.ChanQueueSubscribe(topic, group, inbox)
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	wg := fanOut(ctx, so.workers, inbox, func(m *nats.Msg) {
		d := natsDelivery(m)
		if err := dispatch(ctx, DriverNATS, h, d); err != nil {
			slog.WarnContext(ctx, "messaging: nats handler failed", "topic", topic, "error", err)
		}
	})

	<-ctx.Done()
	uerr := sub.Unsubscribe()
	wg.Wait()

	if uerr != nil && !errors.Is(uerr, nats.ErrConnectionClosed) {
		return errors.Join(ctx.Err(), uerr)
	}
	return ctx.Err()
}

func natsDelivery(m *nats.Msg) *delivery {
	d := &delivery{body: m.Data, attempts: 1}
	for k, vs := range m.Header {
		for _, v := range vs {
			d.headers = append(d.headers, Header{Key: k, Value: []byte(v)})
		}
	}
	if meta, err := m.Metadata(); err == nil {
		d.id = fmt.Sprintf("%s/%d", meta.Stream, meta.Sequence.Stream)
		d.attempts = int(meta.NumDelivered)
	} else {
		d.id = m.Header.Get(nats.MsgIdHdr)
	}
	return d
}
