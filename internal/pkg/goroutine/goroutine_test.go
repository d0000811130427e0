package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestManager_CollectsErrors(t *testing.T) {
	g := NewManager(4)
	boom := errors.New("boom")

	var ran atomic.Int32
	for i := range 3 {
		g.Go(context.Background(), func(context.Context) error {
			ran.Add(1)
			if i == 1 {
				return boom
			}
			return nil
		})
	}

	if err := g.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want boom", err)
	}
	if ran.Load() != 3 {
		t.Fatalf("ran = %d", ran.Load())
	}
}

func TestManager_Limit(t *testing.T) {
	g := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})

	if !g.Go(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	}) {
		t.Fatal("first task must start")
	}
	<-started

	if g.Go(context.Background(), func(context.Context) error { return nil }) {
		t.Fatal("second task must be dropped at the limit")
	}

	close(release)
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
}

func TestManager_ClosedAndPanics(t *testing.T) {
	g := NewManager(2)
	g.Go(context.Background(), func(context.Context) error { panic("kaboom") })
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}

	if g.Go(context.Background(), func(context.Context) error { return nil }) {
		t.Fatal("closed manager must refuse work")
	}

	var nilMgr *Manager
	if nilMgr.Go(context.Background(), nil) || nilMgr.Wait() != nil {
		t.Fatal("nil manager must be inert")
	}
}

func TestManager_CanceledContext(t *testing.T) {
	g := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	g.Go(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	_ = g.Wait()

	if ran.Load() {
		t.Fatal("task ran with a canceled context")
	}
}
