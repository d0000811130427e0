// Package idempotency makes retried requests safe by remembering the outcome
// of the first attempt under a client supplied key.
//
// A key moves from in_progress to completed. A completed key replays the stored
// result; a failed attempt releases the key so the client may try again.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInProgress = errors.New("idempotency: operation already in progress")
	ErrEmptyKey   = errors.New("idempotency: key is empty")
	ErrBadState   = errors.New("idempotency: unrecognized stored state")
)

type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

type record struct {
	State  State           `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
}

type Idempotency interface {
	Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) (result []byte, replayed bool, err error)
}

type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client) *Store {
	return &Store{
		client: client,
		prefix: "idempotency:",
	}
}

const (
	defaultLockDuration = time.Minute
	defaultResultTTL    = 24 * time.Hour
)

type Option func(*doOptions)

type doOptions struct {
	lockDuration time.Duration
	resultTTL    time.Duration
}

// WithLockDuration bounds how long an unfinished attempt holds the key.
func WithLockDuration(d time.Duration) Option {
	return func(o *doOptions) {
		o.lockDuration = d
	}
}

// WithResultTTL sets how long a completed result is replayed.
func WithResultTTL(d time.Duration) Option {
	return func(o *doOptions) {
		o.resultTTL = d
	}
}

// Do runs fn once per key. fn must return JSON. A later call with the same key
// gets the stored result back with replayed set; a concurrent call gets ErrInProgress.
func (s *Store) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	o := doOptions{lockDuration: defaultLockDuration, resultTTL: defaultResultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.resultTTL <= 0 {
		o.resultTTL = defaultResultTTL
	}

	fk := s.prefix + key
	prev, acquired, err := s.acquire(ctx, fk, o.lockDuration)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		switch prev.State {
		case StateCompleted:
			return prev.Result, true, nil
		case StateInProgress:
			return nil, false, ErrInProgress
		default:
			return nil, false, ErrBadState
		}
	}

	result, err := fn(ctx)
	if err != nil {
		if delErr := s.client.Del(context.WithoutCancel(ctx), fk).Err(); delErr != nil {
			return nil, false, errors.Join(err, fmt.Errorf("idempotency: release: %w", delErr))
		}
		return nil, false, err
	}

	body, err := json.Marshal(record{State: StateCompleted, Result: result})
	if err != nil {
		return nil, false, fmt.Errorf("idempotency: encode result: %w", err)
	}
	if err := s.client.Set(context.WithoutCancel(ctx), fk, body, o.resultTTL).Err(); err != nil {
		return nil, false, fmt.Errorf("idempotency: store result: %w", err)
	}

	return result, false, nil
}

func (s *Store) acquire(ctx context.Context, fk string, lock time.Duration) (*record, bool, error) {
	inProgress, err := json.Marshal(record{State: StateInProgress})
	if err != nil {
		return nil, false, err
	}

	// the holder may finish or release between SETNX and GET, so look twice
	for range 2 {
		ok, err := s.client.SetNX(ctx, fk, inProgress, lock).Result()
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: acquire: %w", err)
		}
		if ok {
			return nil, true, nil
		}

		raw, err := s.client.Get(ctx, fk).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("idempotency: load: %w", err)
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, false, ErrBadState
		}
		return &rec, false, nil
	}

	return &record{State: StateInProgress}, false, nil
}
