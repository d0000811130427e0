// Package messaging moves security events between modules over a pluggable
// broker. Business code publishes an Envelope to a topic and subscribes a
// Handler under a consumer group; the driver maps the group onto the broker's
// own notion (NSQ channel, NATS queue group, Kafka consumer group, Pub/Sub
// subscription).
//
// A handler returning nil acknowledges the message. A non-nil error asks the
// broker to redeliver where the broker can.
package messaging

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrClosed is returned by any call made after Close.
	ErrClosed = errors.New("messaging: client closed")
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrGroupRequired is returned when Subscribe has no consumer group.
	ErrGroupRequired = errors.New("messaging: consumer group is required")
	// ErrHandlerRequired is returned when Subscribe has a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
)

// Header is a single message header.
type Header struct {
	Key   string
	Value []byte
}

// Envelope is a message to publish.
type Envelope struct {
	// Key selects the partition on Kafka; other brokers ignore it.
	Key     []byte
	Body    []byte
	Headers []Header
}

// Message is a received message.
type Message interface {
	ID() string
	Body() []byte
	Headers() []Header
	// Attempts counts deliveries of this message, starting at 1.
	Attempts() int
}

// Handler processes one message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends envelopes to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

// Subscriber delivers messages of a topic to a handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, h Handler, opts ...SubscribeOption) error
}

// Messaging is a broker client.
type Messaging interface {
	io.Closer
	Publisher
	Subscriber
}

// Lookup returns the first value of the header named key.
func Lookup(headers []Header, key string) (string, bool) {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func validateSubscribe(ctx context.Context, topic, group string, h Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case topic == "":
		return ErrTopicRequired
	case group == "":
		return ErrGroupRequired
	case h == nil:
		return ErrHandlerRequired
	}
	return nil
}
