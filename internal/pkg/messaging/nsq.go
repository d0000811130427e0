package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	nsq "github.com/nsqio/go-nsq"
)

var (
	// ErrNSQProducerRequired is returned by Publish when no producer address is configured.
	ErrNSQProducerRequired = errors.New("messaging: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned by Subscribe when neither nsqd nor lookupd addresses are configured.
	ErrNSQConsumerAddrsRequired = errors.New("messaging: nsq nsqd or lookupd addresses are required")
)

// NSQConfig configures the NSQ driver.
type NSQConfig struct {
	ProducerAddr string
	NSQDAddrs    []string
	LookupdAddrs []string

	ProducerConfig *nsq.Config
	ConsumerConfig *nsq.Config
}

// NSQ is a Messaging backed by NSQ. NSQ has no message headers, so the
// envelope is framed as JSON on the wire.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer
	gate     gate
	stops    []*nsq.Consumer
}

// nsqFrame is the wire form of an Envelope on NSQ.
type nsqFrame struct {
	Headers map[string]string `json:"h,omitempty"`
	Body    []byte            `json:"b"`
}

// NewNSQ constructs an NSQ client. The producer is optional; a client
// without one can only subscribe.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ProducerConfig == nil {
		cfg.ProducerConfig = nsq.NewConfig()
	}
	if cfg.ConsumerConfig == nil {
		cfg.ConsumerConfig = nsq.NewConfig()
	}

	n := &NSQ{cfg: cfg}
	if cfg.ProducerAddr != "" {
		p, err := nsq.NewProducer(cfg.ProducerAddr, cfg.ProducerConfig)
		if err != nil {
			return nil, fmt.Errorf("messaging: nsq producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		n.producer = p
	}
	return n, nil
}

func (n *NSQ) Close() error {
	if !n.gate.shut() {
		return nil
	}

	n.gate.mu.Lock()
	consumers := n.stops
	n.stops = nil
	n.gate.mu.Unlock()

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if n.producer == nil {
		return ErrNSQProducerRequired
	}
	if err := n.gate.check(); err != nil {
		return err
	}

	raw, err := encodeNSQFrame(env)
	if err != nil {
		return err
	}
	if err := n.producer.Publish(topic, raw); err != nil {
		return fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return nil
}

// Subscribe consumes topic on the channel named group. A handler error
// requeues the message with the consumer's backoff.
func (n *NSQ) Subscribe(ctx context.Context, topic, group string, h Handler, opts ...SubscribeOption) error {
	if err := validateSubscribe(ctx, topic, group, h); err != nil {
		return err
	}
	if len(n.cfg.NSQDAddrs) == 0 && len(n.cfg.LookupdAddrs) == 0 {
		return ErrNSQConsumerAddrsRequired
	}

	so := newSubscribeOptions(opts...)
	ccfg := *n.cfg.ConsumerConfig
	ccfg.MaxInFlight = so.maxInFlight

	consumer, err := nsq.NewConsumer(topic, group, &ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		d, err := decodeNSQFrame(m)
		if err != nil {
			// a frame that cannot be read will never be readable; drop it
			slog.ErrorContext(ctx, "messaging: nsq frame dropped", "topic", topic, "error", err)
			return nil
		}
		return dispatch(ctx, DriverNSQ, h, d)
	}), so.workers)

	if err := n.track(consumer); err != nil {
		return err
	}

	if len(n.cfg.LookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.LookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.NSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) track(c *nsq.Consumer) error {
	n.gate.mu.Lock()
	defer n.gate.mu.Unlock()
	if n.gate.closed {
		return ErrClosed
	}
	n.stops = append(n.stops, c)
	return nil
}

func encodeNSQFrame(env Envelope) ([]byte, error) {
	f := nsqFrame{Body: env.Body}
	if len(env.Headers) > 0 {
		f.Headers = make(map[string]string, len(env.Headers))
		for _, hd := range env.Headers {
			if hd.Key == "" {
				continue
			}
			if _, ok := f.Headers[hd.Key]; !ok {
				f.Headers[hd.Key] = string(hd.Value)
			}
		}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq frame: %w", err)
	}
	return raw, nil
}

func decodeNSQFrame(m *nsq.Message) (*delivery, error) {
	var f nsqFrame
	if err := json.Unmarshal(m.Body, &f); err != nil {
		return nil, err
	}

	d := &delivery{id: fmt.Sprintf("%x", m.ID), body: f.Body, attempts: int(m.Attempts)}
	for k, v := range f.Headers {
		d.headers = append(d.headers, Header{Key: k, Value: []byte(v)})
	}
	return d, nil
}
