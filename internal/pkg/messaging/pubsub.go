package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

// ErrPubSubProjectIDRequired is returned when no project is configured.
var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

// PubSubConfig configures the Google Pub/Sub driver.
type PubSubConfig struct {
	ProjectID     string
	ClientOptions []option.ClientOption
}

// PubSub is a Messaging backed by Google Pub/Sub. The subscription named by
// the consumer group must already exist on the topic.
type PubSub struct {
	client *pubsub.Client
	gate   gate

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewPubSub creates the Pub/Sub client.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub client: %w", err)
	}
	return &PubSub{client: c, publishers: map[string]*pubsub.Publisher{}}, nil
}

// Close flushes pending publishes and closes the client.
func (p *PubSub) Close() error {
	if !p.gate.shut() {
		return nil
	}

	p.mu.Lock()
	for _, pub := range p.publishers {
		pub.Stop()
	}
	p.publishers = nil
	p.mu.Unlock()

	return p.client.Close()
}

func (p *PubSub) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	pub, err := p.publisher(topic)
	if err != nil {
		return err
	}

	var attrs map[string]string
	if len(env.Headers) > 0 {
		attrs = make(map[string]string, len(env.Headers))
		for _, hd := range env.Headers {
			if _, ok := attrs[hd.Key]; !ok && hd.Key != "" {
				attrs[hd.Key] = string(hd.Value)
			}
		}
	}

	if _, err := pub.Publish(ctx, &pubsub.Message{Data: env.Body, Attributes: attrs}).Get(ctx); err != nil {
		return fmt.Errorf("messaging: pubsub publish: %w", err)
	}
	return nil
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.publishers == nil {
		return nil, ErrClosed
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub, nil
}

// Subscribe receives from the subscription named group. A handler error
// nacks the message for redelivery.
func (p *PubSub) Subscribe(ctx context.Context, topic, group string, h Handler, opts ...SubscribeOption) error {
	if err := validateSubscribe(ctx, topic, group, h); err != nil {
		return err
	}
	if err := p.gate.check(); err != nil {
		return err
	}

	so := newSubscribeOptions(opts...)
	sub := p.client.Subscriber(group)
	sub.ReceiveSettings.NumGoroutines = so.workers
	sub.ReceiveSettings.MaxOutstandingMessages = so.maxInFlight

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := dispatch(ctx, DriverGooglePubSub, h, pubsubDelivery(m)); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

func pubsubDelivery(m *pubsub.Message) *delivery {
	d := &delivery{id: m.ID, body: m.Data, attempts: 1}
	if m.DeliveryAttempt != nil {
		d.attempts = *m.DeliveryAttempt
	}
	for k, v := range m.Attributes {
		d.headers = append(d.headers, Header{Key: k, Value: []byte(v)})
	}
	return d
}
