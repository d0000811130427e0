package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

// Ledger calls carry their own deadlines. Reads follow the request; writes are
// detached from it so a client disconnect cannot drop a grant half way.

func (s *Usecase) readCtx(ctx context.Context, p policy) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.readTimeout)
}

func (s *Usecase) writeCtx(ctx context.Context, p policy) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
}

func (s *Usecase) observeLedger(op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, goerror.ErrNotFound) {
		err = nil
	}
	s.metrics.ObserveLedger(op, err, time.Since(start))
}

// findLive returns nil, nil when no live challenge exists.
func (s *Usecase) findLive(ctx context.Context, p policy, k entity.Key, now time.Time) (*entity.Challenge, error) {
	ctx, cancel := s.readCtx(ctx, p)
	defer cancel()

	start := time.Now()
	ch, err := s.repoDB.FindLiveChallenge(ctx, k, now, p.grantTTL)
	s.observeLedger("find_live", err, start)

	if errors.Is(err, goerror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ch.IsLive(k, now, p.grantTTL) {
		return nil, nil
	}

	return ch, nil
}

func (s *Usecase) refresh(ctx context.Context, p policy, k entity.Key, now time.Time) error {
	ctx, cancel := s.writeCtx(ctx, p)
	defer cancel()

	start := time.Now()
	_, err := s.repoDB.RefreshChallenge(ctx, k, now, p.grantTTL)
	s.observeLedger("refresh", err, start)

	return err
}

func (s *Usecase) record(ctx context.Context, p policy, k entity.Key, env entity.Environment, now time.Time) (*entity.Challenge, error) {
	ctx, cancel := s.writeCtx(ctx, p)
	defer cancel()

	verifiedAt := now
	ch := entity.Challenge{
		ID:          s.uid.Generate(),
		Key:         k,
		Method:      entity.MethodTOTP,
		IsVerified:  true,
		VerifiedAt:  &verifiedAt,
		ExpiresAt:   now.Add(p.grantTTL),
		Environment: env.Normalize(),
		CreatedAt:   now,
	}

	start := time.Now()
	err := s.repoDB.CreateVerifiedChallenge(ctx, ch)
	s.observeLedger("create", err, start)
	if err != nil {
		return nil, err
	}

	return &ch, nil
}

func (s *Usecase) loadSubject(ctx context.Context, p policy, userID int64) (*entity.Subject, error) {
	ctx, cancel := s.readCtx(ctx, p)
	defer cancel()

	return s.repoDB.GetSubject(ctx, userID)
}
