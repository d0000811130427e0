package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

type AuthorizeInput struct {
	UserID      int64             `validate:"required,gt=0"`
	ActionType  entity.ActionType `validate:"required,action_type"`
	Context     entity.Context    `validate:"required,twofa_context"`
	DeviceID    string            `validate:"required,max=255"`
	Code        string            `validate:"omitempty,len=6,number"`
	Environment entity.Environment

	// StrictFingerprint denies on an environment change even when policy is soft.
	StrictFingerprint bool
}

func (in AuthorizeInput) key() entity.Key {
	return entity.Key{UserID: in.UserID, ActionType: in.ActionType, Context: in.Context, DeviceID: in.DeviceID}
}

// Authorize decides whether the user may perform the action from the device.
//
// A non-nil error means the request itself was malformed or the server failed
// in a way that is not an authorization outcome; the Result is only meaningful
// when the error is nil.
func (s *Usecase) Authorize(ctx context.Context, in AuthorizeInput) (entity.Result, error) {
	ctx, span := s.startSpan(ctx, "Authorize")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid authorize input", "error", err)
		return entity.Denied(entity.ReasonMalformedRequest), goerror.NewInvalidInput(err)
	}
	if err := validateScope(in.Context, in.ActionType); err != nil {
		return entity.Denied(entity.ReasonMalformedRequest), err
	}

	res, err := s.authorize(ctx, s.policy(), in)
	if err == nil {
		s.observe(in.Context, in.ActionType, res)
	}

	return res, err
}

func validateScope(c entity.Context, a entity.ActionType) error {
	switch {
	case c == entity.ContextLogin && a != entity.ActionTypeLogin:
		return goerror.NewInvalidInput(nil, "action_type", "action_type must be login in the login context")
	case c == entity.ContextSensitive && a == entity.ActionTypeLogin:
		return goerror.NewInvalidInput(nil, "action_type", "action_type login is not a sensitive action")
	default:
		return nil
	}
}

func (s *Usecase) authorize(ctx context.Context, p policy, in AuthorizeInput) (entity.Result, error) {
	k := in.key()
	env := in.Environment.Normalize()

	sub, err := s.loadSubject(ctx, p, in.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "user not found for authorization", "user_id", in.UserID)
		return entity.Denied(entity.ReasonUnauthenticated), nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get subject", "user_id", in.UserID, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable), nil
	}
	if !sub.HasSecret() {
		slog.WarnContext(ctx, "user has no totp secret", "user_id", in.UserID)
		return entity.Denied(entity.ReasonSecretMissing), nil
	}

	now := s.clock.Now()

	live, err := s.findLive(ctx, p, k, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find live challenge", "user_id", in.UserID, "action_type", in.ActionType, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable), nil
	}
	if live != nil {
		return s.reuseGrant(ctx, p, in, sub, live, env, now), nil
	}

	if in.Code == "" {
		return entity.RequiresVerification(), nil
	}

	res, ok, err := s.checkCode(ctx, p, sub, k, in.Code, env, now)
	if err != nil || !ok {
		return res, err
	}

	ch, err := s.record(ctx, p, k, env, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create challenge", "user_id", in.UserID, "action_type", in.ActionType, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable), nil
	}

	slog.InfoContext(ctx, "step-up verified", "user_id", in.UserID, "action_type", in.ActionType, "device_id", in.DeviceID)
	return entity.Authorized(ch), nil
}

func (s *Usecase) reuseGrant(
	ctx context.Context,
	p policy,
	in AuthorizeInput,
	sub *entity.Subject,
	live *entity.Challenge,
	env entity.Environment,
	now time.Time,
) entity.Result {
	ipChanged, uaChanged := live.Environment.Mismatch(env)
	if ipChanged || uaChanged {
		slog.WarnContext(ctx, "grant used from a different environment",
			"user_id", in.UserID,
			"action_type", in.ActionType,
			"challenge_id", live.ID,
			"ip_changed", ipChanged,
			"user_agent_changed", uaChanged,
		)
		s.publish(ctx, SecurityEvent{
			Type:        event.SecurityEventFingerprintMismatch,
			UserID:      sub.UserID,
			Email:       sub.Email,
			ActionType:  in.ActionType,
			DeviceID:    in.DeviceID,
			Environment: env,
			OccurredAt:  now,
		})

		if p.fingerprintEnforce || in.StrictFingerprint {
			return entity.Denied(entity.ReasonFingerprintMismatch)
		}
	}

	if err := s.refresh(ctx, p, in.key(), now); err != nil {
		slog.ErrorContext(ctx, "failed to repo refresh challenge", "user_id", in.UserID, "challenge_id", live.ID, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable)
	}

	live.VerifiedAt = &now
	live.ExpiresAt = now.Add(p.grantTTL)
	return entity.Authorized(live)
}

// grantOwner identifies which grant consumed an OTP time step.
func grantOwner(k entity.Key) string {
	return fmt.Sprintf("%s|%s|%s", k.Context, k.ActionType, k.DeviceID)
}

// checkCode runs the attempt limiter, the TOTP check and the replay guard.
// ok is true when the code is accepted; otherwise res carries the denial.
func (s *Usecase) checkCode(
	ctx context.Context,
	p policy,
	sub *entity.Subject,
	k entity.Key,
	code string,
	env entity.Environment,
	now time.Time,
) (res entity.Result, ok bool, err error) {
	allowed, err := s.repoCache.AllowAttempt(ctx, sub.UserID, p.maxAttempts, p.attemptWindow)
	if err != nil {
		slog.ErrorContext(ctx, "failed to cache count attempt", "user_id", sub.UserID, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable), false, nil
	}
	if !allowed {
		slog.WarnContext(ctx, "too many verification attempts", "user_id", sub.UserID)
		s.publish(ctx, SecurityEvent{
			Type:        event.SecurityEventTooManyAttempts,
			UserID:      sub.UserID,
			Email:       sub.Email,
			ActionType:  k.ActionType,
			DeviceID:    k.DeviceID,
			Environment: env,
			OccurredAt:  now,
		})
		return entity.DeniedRetryable(entity.ReasonTooManyAttempts), false, nil
	}

	secret, err := s.sealer.Open(sub.TOTPSecret, sealer.Scope{UserID: sub.UserID, Purpose: sealer.PurposeOTPSeed})
	if err != nil {
		slog.ErrorContext(ctx, "failed to open totp secret", "user_id", sub.UserID, "error", err)
		return entity.Result{}, false, goerror.NewServer(err)
	}

	step, valid := s.totp.Verify(code, string(secret), now)
	if !valid {
		slog.WarnContext(ctx, "invalid totp code", "user_id", sub.UserID, "action_type", k.ActionType)
		return entity.Denied(entity.ReasonInvalidCode), false, nil
	}

	if !p.allowCodeReuse {
		owner := grantOwner(k)
		ttl := time.Duration(2*s.totp.Skew()+1) * s.totp.Period()

		holder, claimed, err := s.repoCache.ClaimCode(ctx, sub.UserID, step, owner, ttl)
		if err != nil {
			slog.ErrorContext(ctx, "failed to cache claim code", "user_id", sub.UserID, "error", err)
			return entity.DeniedRetryable(entity.ReasonUnavailable), false, nil
		}
		if !claimed && holder != owner {
			slog.WarnContext(ctx, "totp code replayed for another grant", "user_id", sub.UserID, "action_type", k.ActionType)
			s.publish(ctx, SecurityEvent{
				Type:        event.SecurityEventCodeReplay,
				UserID:      sub.UserID,
				Email:       sub.Email,
				ActionType:  k.ActionType,
				DeviceID:    k.DeviceID,
				Environment: env,
				OccurredAt:  now,
			})
			return entity.Denied(entity.ReasonInvalidCode), false, nil
		}
	}

	if err := s.repoCache.ResetAttempts(ctx, sub.UserID); err != nil {
		slog.WarnContext(ctx, "failed to cache reset attempts", "user_id", sub.UserID, "error", err)
	}

	return entity.Result{}, true, nil
}
