package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/govault/internal/pkg/stacktrace"
)

type subscribeOptions struct {
	workers     int
	maxInFlight int
}

// SubscribeOption tunes a subscription.
type SubscribeOption func(*subscribeOptions)

// WithWorkers sets how many handlers run in parallel.
func WithWorkers(n int) SubscribeOption {
	return func(o *subscribeOptions) { o.workers = n }
}

// WithMaxInFlight caps unacknowledged messages held by the client.
func WithMaxInFlight(n int) SubscribeOption {
	return func(o *subscribeOptions) { o.maxInFlight = n }
}

func newSubscribeOptions(opts ...SubscribeOption) subscribeOptions {
	o := subscribeOptions{workers: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	if o.maxInFlight < o.workers {
		o.maxInFlight = o.workers
	}
	return o
}

type delivery struct {
	id       string
	body     []byte
	headers  []Header
	attempts int
}

func (d *delivery) ID() string        { return d.id }
func (d *delivery) Body() []byte      { return d.body }
func (d *delivery) Headers() []Header { return d.headers }
func (d *delivery) Attempts() int     { return d.attempts }

// dispatch runs h and turns a panic into an error so one bad message
// cannot take the subscription down.
func dispatch(ctx context.Context, driver string, h Handler, msg Message) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in message handler", "driver", driver, "msg_id", msg.ID(), "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in message handler", "driver", driver, "msg_id", msg.ID(), "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: %s handler panic: %v", driver, rvr)
		}
	}()

	return h(ctx, msg)
}

// fanOut runs fn for every item of in on n goroutines. The returned group
// finishes once in is closed or ctx is done.
func fanOut[T any](ctx context.Context, n int, in <-chan T, fn func(T)) *sync.WaitGroup {
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-in:
					if !ok {
						return
					}
					fn(item)
				}
			}
		})
	}
	return &wg
}

// gate tracks whether a client has been closed.
type gate struct {
	mu     sync.Mutex
	closed bool
}

func (g *gate) check() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	return nil
}

// shut marks the gate closed and reports whether this call closed it.
func (g *gate) shut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}
