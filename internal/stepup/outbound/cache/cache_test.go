package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, instrument.NewNoop()), mr
}

func TestCache_AllowAttempt(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := c.AllowAttempt(ctx, 42, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("attempt %d = %v, %v", i, ok, err)
		}
	}

	ok, err := c.AllowAttempt(ctx, 42, 3, time.Minute)
	if err != nil || ok {
		t.Fatalf("fourth attempt = %v, %v; want blocked", ok, err)
	}

	if other, _ := c.AllowAttempt(ctx, 43, 3, time.Minute); !other {
		t.Fatal("counter leaked across users")
	}

	mr.FastForward(time.Minute + time.Second)

	ok, err = c.AllowAttempt(ctx, 42, 3, time.Minute)
	if err != nil || !ok {
		t.Fatalf("after window = %v, %v", ok, err)
	}

	if err := c.ResetAttempts(ctx, 42); err != nil {
		t.Fatalf("ResetAttempts: %v", err)
	}
	if mr.Exists(attemptsPrefix + "42") {
		t.Fatal("counter not cleared")
	}
}

func TestCache_ClaimCode(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	owner, claimed, err := c.ClaimCode(ctx, 7, 100, "grant-a", 90*time.Second)
	if err != nil || !claimed || owner != "grant-a" {
		t.Fatalf("first claim = %q, %v, %v", owner, claimed, err)
	}

	owner, claimed, err = c.ClaimCode(ctx, 7, 100, "grant-b", 90*time.Second)
	if err != nil || claimed || owner != "grant-a" {
		t.Fatalf("second claim = %q, %v, %v", owner, claimed, err)
	}

	if _, claimed, _ := c.ClaimCode(ctx, 7, 101, "grant-b", 90*time.Second); !claimed {
		t.Fatal("next step should be free")
	}

	mr.FastForward(91 * time.Second)

	if _, claimed, _ := c.ClaimCode(ctx, 7, 100, "grant-b", 90*time.Second); !claimed {
		t.Fatal("claim should be free after ttl")
	}
}

func TestCache_Lock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "sweep", "node-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	if ok, _ := c.AcquireLock(ctx, "sweep", "node-2", time.Minute); ok {
		t.Fatal("second owner acquired a held lock")
	}

	if err := c.ReleaseLock(ctx, "sweep", "node-2"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if !mr.Exists(lockPrefix + "sweep") {
		t.Fatal("foreign owner released the lock")
	}

	if err := c.ReleaseLock(ctx, "sweep", "node-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(lockPrefix + "sweep") {
		t.Fatal("lock still held")
	}
}
