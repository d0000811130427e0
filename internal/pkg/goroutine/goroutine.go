// Package goroutine runs fire-and-forget work with a concurrency ceiling and
// a drain step for shutdown.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/govault/internal/pkg/stacktrace"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager gets a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager tracks background tasks. Once Wait is called it refuses new work.
type Manager struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	errMu sync.Mutex
	errs  []error
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{sem: semaphore.NewWeighted(int64(maxGoroutine))}
}

// Go runs f in its own goroutine and reports whether it was started. Work is
// dropped, with a warning, when the manager is full or already draining.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		slog.WarnContext(ctx, "goroutine manager is closed, task dropped")
		return false
	}
	if !g.sem.TryAcquire(1) {
		g.mu.Unlock()
		slog.WarnContext(ctx, "goroutine limit reached, task dropped")
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer g.sem.Release(1)
		defer g.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "error", err)
			return
		}
		if err := f(ctx); err != nil {
			g.errMu.Lock()
			g.errs = append(g.errs, err)
			g.errMu.Unlock()
		}
	}()

	return true
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait stops accepting tasks, blocks until the running ones return and
// joins their errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}
