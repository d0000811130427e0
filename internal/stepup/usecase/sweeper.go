package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/atomic"
)

const (
	sweepLockName           = "ledger_sweep"
	defaultSweepInterval    = 10 * time.Minute
	defaultSweepRetention   = 24 * time.Hour
	defaultSweepLockTimeout = time.Minute
)

type sweeperState struct {
	running atomic.Bool
}

// SweepExpired deletes ledger rows that expired more than the retention ago.
// Expiry is already enforced on read, so this only reclaims space. Overlapping
// runs in this process are skipped and a redis lock keeps replicas apart.
func (s *Usecase) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer span.End()

	if !s.sweeper.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.sweeper.running.Store(false)

	retention := s.cfg.GetDuration("modules.stepup.sweeper.retention")
	if retention <= 0 {
		retention = defaultSweepRetention
	}
	lockTTL := s.cfg.GetDuration("modules.stepup.sweeper.lock_ttl")
	if lockTTL <= 0 {
		lockTTL = defaultSweepLockTimeout
	}

	owner := s.oid.Generate()
	ok, err := s.repoCache.AcquireLock(ctx, sweepLockName, owner, lockTTL)
	if err != nil {
		slog.WarnContext(ctx, "failed to cache acquire sweep lock", "error", err)
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	defer func() {
		if err := s.repoCache.ReleaseLock(context.WithoutCancel(ctx), sweepLockName, owner); err != nil {
			slog.WarnContext(ctx, "failed to cache release sweep lock", "error", err)
		}
	}()

	n, err := s.repoDB.DeleteExpiredChallenges(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete expired challenges", "error", err)
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.AddSwept(n)
	}
	if n > 0 {
		slog.InfoContext(ctx, "swept expired challenges", "rows", n)
	}

	return n, nil
}

// StartSweeper runs SweepExpired on a ticker until ctx is done. It does nothing
// unless modules.stepup.sweeper.enabled is set.
func (s *Usecase) StartSweeper(ctx context.Context) {
	if !s.cfg.GetBool("modules.stepup.sweeper.enabled") {
		return
	}

	interval := s.cfg.GetDuration("modules.stepup.sweeper.interval")
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	s.goroutine.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil {
					slog.WarnContext(ctx, "ledger sweep failed", "error", err)
				}
			}
		}
	})
}
