package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	attemptsPrefix = "stepup:attempts:"
	usedCodePrefix = "stepup:otp:used:"
	lockPrefix     = "stepup:lock:"
)

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Cache keeps the short-lived protocol state that must be shared across replicas:
// failed attempt counters, used OTP steps and the sweeper lock.
type Cache struct {
	client *redis.Client
	ins    instrument.Instrumentation
}

func NewCache(client *redis.Client, ins instrument.Instrumentation) *Cache {
	return &Cache{client: client, ins: ins}
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("stepup.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AllowAttempt counts one verification attempt and reports whether the user is
// still within limit for the current window. The window starts at the first attempt.
func (c *Cache) AllowAttempt(ctx context.Context, userID int64, limit int64, window time.Duration) (ok bool, err error) {
	ctx, span := c.startSpan(ctx, "AllowAttempt")
	defer func() { c.endSpan(span, err) }()

	key := fmt.Sprintf("%s%d", attemptsPrefix, userID)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err = c.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}

	return n <= limit, nil
}

// ResetAttempts clears the counter after a successful verification.
func (c *Cache) ResetAttempts(ctx context.Context, userID int64) (err error) {
	ctx, span := c.startSpan(ctx, "ResetAttempts")
	defer func() { c.endSpan(span, err) }()

	err = c.client.Del(ctx, fmt.Sprintf("%s%d", attemptsPrefix, userID)).Err()
	return err
}

// ClaimCode marks the OTP time step as used by grant. When the step was
// already claimed it returns the grant that owns it and claimed=false.
func (c *Cache) ClaimCode(ctx context.Context, userID int64, step uint64, grant string, ttl time.Duration) (owner string, claimed bool, err error) {
	ctx, span := c.startSpan(ctx, "ClaimCode")
	defer func() { c.endSpan(span, err) }()

	key := fmt.Sprintf("%s%d:%d", usedCodePrefix, userID, step)

	for range 2 {
		claimed, err = c.client.SetNX(ctx, key, grant, ttl).Result()
		if err != nil {
			return "", false, err
		}
		if claimed {
			return grant, true, nil
		}

		owner, err = c.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", false, err
		}
		return owner, false, nil
	}

	return "", false, nil
}

// AcquireLock takes a named lock for ttl on behalf of owner.
func (c *Cache) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (ok bool, err error) {
	ctx, span := c.startSpan(ctx, "AcquireLock")
	defer func() { c.endSpan(span, err) }()

	ok, err = c.client.SetNX(ctx, lockPrefix+name, owner, ttl).Result()
	return ok, err
}

// ReleaseLock frees the lock only if owner still holds it.
func (c *Cache) ReleaseLock(ctx context.Context, name, owner string) (err error) {
	ctx, span := c.startSpan(ctx, "ReleaseLock")
	defer func() { c.endSpan(span, err) }()

	err = releaseLock.Run(ctx, c.client, []string{lockPrefix + name}, owner).Err()
	if errors.Is(err, redis.Nil) {
		err = nil
	}
	return err
}
