package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"
)

// ErrKafkaBrokersRequired is returned when no broker is configured.
var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

// KafkaConfig configures the Kafka driver.
type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
}

// Kafka is a Messaging backed by kafka-go. Offsets are committed after the
// handler returns whatever the outcome; a consumer group has no per-message
// redelivery, and a failed message is logged instead.
type Kafka struct {
	cfg  KafkaConfig
	gate gate

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[*kafka.Reader]struct{}
}

// NewKafka constructs a Kafka client. No connection is made until the first
// publish or subscribe.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	return &Kafka{
		cfg:     cfg,
		writers: map[string]*kafka.Writer{},
		readers: map[*kafka.Reader]struct{}{},
	}, nil
}

func (k *Kafka) Close() error {
	if !k.gate.shut() {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var err error
	for r := range k.readers {
		err = errors.Join(err, r.Close())
	}
	for _, w := range k.writers {
		err = errors.Join(err, w.Close())
	}
	k.readers, k.writers = nil, nil
	return err
}

func (k *Kafka) Publish(ctx context.Context, topic string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	msg := kafka.Message{Key: env.Key, Value: env.Body}
	for _, hd := range env.Headers {
		if hd.Key != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: hd.Key, Value: hd.Value})
		}
	}

	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writers == nil {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}
	// Hash keeps the events of one user on one partition.
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  k.cfg.Brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer:   k.cfg.Dialer,
	})
	k.writers[topic] = w
	return w, nil
}

// Subscribe reads topic as member group of a consumer group until ctx is
// done or the reader fails.
func (k *Kafka) Subscribe(ctx context.Context, topic, group string, h Handler, opts ...SubscribeOption) error {
	if err := validateSubscribe(ctx, topic, group, h); err != nil {
		return err
	}

	so := newSubscribeOptions(opts...)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:       k.cfg.Brokers,
		GroupID:       group,
		Topic:         topic,
		MaxBytes:      10e6,
		QueueCapacity: so.maxInFlight,
		Dialer:        k.cfg.Dialer,
	})

	k.mu.Lock()
	if k.readers == nil {
		k.mu.Unlock()
		return errors.Join(ErrClosed, reader.Close())
	}
	k.readers[reader] = struct{}{}
	k.mu.Unlock()

	defer func() {
		k.mu.Lock()
		if _, ok := k.readers[reader]; ok {
			delete(k.readers, reader)
			//nolint:errcheck // the subscription is already over
			_ = reader.Close()
		}
		k.mu.Unlock()
	}()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetched := make(chan kafka.Message)
	wg := fanOut(subCtx, so.workers, fetched, func(m kafka.Message) {
		if err := dispatch(subCtx, DriverKafka, h, kafkaDelivery(m)); err != nil {
			slog.WarnContext(subCtx, "messaging: kafka handler failed", "topic", topic, "offset", m.Offset, "error", err)
		}
		if err := reader.CommitMessages(subCtx, m); err != nil && subCtx.Err() == nil {
			slog.ErrorContext(subCtx, "messaging: kafka commit failed", "topic", topic, "offset", m.Offset, "error", err)
		}
	})

	var fetchErr error
	for {
		m, err := reader.FetchMessage(subCtx)
		if err != nil {
			fetchErr = err
			break
		}
		select {
		case fetched <- m:
		case <-subCtx.Done():
		}
	}

	cancel()
	close(fetched)
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("messaging: kafka fetch: %w", fetchErr)
}

func kafkaDelivery(m kafka.Message) *delivery {
	d := &delivery{
		id:       fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		body:     m.Value,
		attempts: 1,
	}
	for _, hd := range m.Headers {
		d.headers = append(d.headers, Header{Key: hd.Key, Value: hd.Value})
	}
	return d
}
