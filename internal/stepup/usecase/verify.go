package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"github.com/shandysiswandi/govault/internal/shared/session"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
)

type VerifyInput struct {
	Code            string            `validate:"required,len=6,number"`
	DeviceID        string            `validate:"required,max=255"`
	Context         entity.Context    `validate:"required,twofa_context"`
	ActionType      entity.ActionType `validate:"required,action_type"`
	PreSessionToken string
	SessionUserID   int64
	Environment     entity.Environment
}

// SessionGrant is returned when a login verification completes.
type SessionGrant struct {
	UserID      int64
	Email       string
	AccessToken string
	ExpiresAt   time.Time
	CSRFToken   string
}

type VerifyOutput struct {
	Result  entity.Result
	Session *SessionGrant
}

// Verify is the single entry point for submitting a code. The login context
// turns a pre-session into a full session; the sensitive context records a
// grant for one action.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "invalid verify input", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}
	if err := validateScope(in.Context, in.ActionType); err != nil {
		return nil, err
	}

	p := s.policy()

	var (
		out *VerifyOutput
		err error
	)
	if in.Context == entity.ContextLogin {
		out, err = s.verifyLogin(ctx, p, in)
	} else {
		out, err = s.verifySensitive(ctx, p, in)
	}
	if err != nil {
		return nil, err
	}

	s.observe(in.Context, in.ActionType, out.Result)
	return out, nil
}

func denied(r entity.Result) *VerifyOutput {
	return &VerifyOutput{Result: r}
}

func (s *Usecase) verifySensitive(ctx context.Context, p policy, in VerifyInput) (*VerifyOutput, error) {
	if in.SessionUserID == 0 {
		slog.WarnContext(ctx, "sensitive verification without a session")
		return denied(entity.Denied(entity.ReasonUnauthenticated)), nil
	}

	res, err := s.authorize(ctx, p, AuthorizeInput{
		UserID:      in.SessionUserID,
		ActionType:  in.ActionType,
		Context:     entity.ContextSensitive,
		DeviceID:    in.DeviceID,
		Code:        in.Code,
		Environment: in.Environment,
	})
	if err != nil {
		return nil, err
	}

	return &VerifyOutput{Result: res}, nil
}

func (s *Usecase) verifyLogin(ctx context.Context, p policy, in VerifyInput) (*VerifyOutput, error) {
	pre, res := s.peekPreSession(ctx, in.PreSessionToken)
	if pre == nil {
		return denied(res), nil
	}

	sub, err := s.loadSubject(ctx, p, pre.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "pre-session user no longer exists", "user_id", pre.UserID)
		return denied(entity.Denied(entity.ReasonUnauthenticated)), nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get subject", "user_id", pre.UserID, "error", err)
		return denied(entity.DeniedRetryable(entity.ReasonUnavailable)), nil
	}
	if !sub.HasSecret() {
		slog.WarnContext(ctx, "login verification before totp setup", "user_id", sub.UserID)
		return denied(entity.Denied(entity.ReasonSecretMissing)), nil
	}

	now := s.clock.Now()
	env := in.Environment.Normalize()
	k := entity.Key{UserID: sub.UserID, ActionType: entity.ActionTypeLogin, Context: entity.ContextLogin, DeviceID: in.DeviceID}

	res, ok, err := s.checkCode(ctx, p, sub, k, in.Code, env, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return denied(res), nil
	}

	if !sub.TwoFAEnabled {
		if res, ok := s.activateTwoFA(ctx, p, sub, in.DeviceID, env, now); !ok {
			return denied(res), nil
		}
	}

	ch, err := s.record(ctx, p, k, env, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create login challenge", "user_id", sub.UserID, "error", err)
		return denied(entity.DeniedRetryable(entity.ReasonUnavailable)), nil
	}

	if _, err := s.session.ConsumePreSession(ctx, in.PreSessionToken); err != nil {
		if errors.Is(err, session.ErrPreSessionNotFound) {
			slog.WarnContext(ctx, "pre-session consumed by a concurrent request", "user_id", sub.UserID)
			return denied(entity.Denied(entity.ReasonUnauthenticated)), nil
		}
		slog.ErrorContext(ctx, "failed to consume pre-session", "user_id", sub.UserID, "error", err)
		return denied(entity.DeniedRetryable(entity.ReasonUnavailable)), nil
	}

	sess, err := s.session.IssueSession(ctx, jwt.Subject{UserID: sub.UserID, Email: sub.Email, Role: sub.Role})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue session", "user_id", sub.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.publish(ctx, SecurityEvent{
		Type:        event.SecurityEventNewLogin,
		UserID:      sub.UserID,
		Email:       sub.Email,
		ActionType:  entity.ActionTypeLogin,
		DeviceID:    in.DeviceID,
		Environment: env,
		OccurredAt:  now,
	})

	return &VerifyOutput{
		Result: entity.Authorized(ch),
		Session: &SessionGrant{
			UserID:      sub.UserID,
			Email:       sub.Email,
			AccessToken: sess.AccessToken,
			ExpiresAt:   sess.ExpiresAt,
			CSRFToken:   sess.CSRFToken,
		},
	}, nil
}

// peekPreSession checks the login precondition without spending the token, so
// a mistyped code leaves it usable.
func (s *Usecase) peekPreSession(ctx context.Context, token string) (*session.PreSession, entity.Result) {
	if token == "" {
		slog.WarnContext(ctx, "login verification without a pre-session token")
		return nil, entity.Denied(entity.ReasonUnauthenticated)
	}

	pre, err := s.session.PeekPreSession(ctx, token)
	if errors.Is(err, session.ErrPreSessionNotFound) || errors.Is(err, session.ErrEmptyToken) {
		slog.WarnContext(ctx, "unknown or expired pre-session token")
		return nil, entity.Denied(entity.ReasonUnauthenticated)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to peek pre-session", "error", err)
		return nil, entity.DeniedRetryable(entity.ReasonUnavailable)
	}

	return pre, entity.Result{}
}

func (s *Usecase) activateTwoFA(
	ctx context.Context,
	p policy,
	sub *entity.Subject,
	deviceID string,
	env entity.Environment,
	now time.Time,
) (entity.Result, bool) {
	wctx, cancel := s.writeCtx(ctx, p)
	defer cancel()

	changed, err := s.repoDB.EnableTwoFA(wctx, sub.UserID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo enable twofa", "user_id", sub.UserID, "error", err)
		return entity.DeniedRetryable(entity.ReasonUnavailable), false
	}

	if changed {
		slog.InfoContext(ctx, "two-factor authentication activated", "user_id", sub.UserID)
		s.publish(ctx, SecurityEvent{
			Type:        event.SecurityEventTwoFAActivated,
			UserID:      sub.UserID,
			Email:       sub.Email,
			ActionType:  entity.ActionTypeLogin,
			DeviceID:    deviceID,
			Environment: env,
			OccurredAt:  now,
		})
	}

	return entity.Result{}, true
}
