package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/event"
	"github.com/shandysiswandi/govault/internal/shared/session"
	"github.com/shandysiswandi/govault/internal/stepup/entity"
	"go.opentelemetry.io/otel/trace"
)

type SecurityEvent struct {
	Type        event.SecurityEventType
	UserID      int64
	Email       string
	ActionType  entity.ActionType
	DeviceID    string
	Environment entity.Environment
	OccurredAt  time.Time
}

type repoMessaging interface {
	PublishSecurityEvent(ctx context.Context, msg SecurityEvent) error
}

type repoDB interface {
	FindLiveChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (*entity.Challenge, error)
	CreateVerifiedChallenge(ctx context.Context, in entity.Challenge) error
	RefreshChallenge(ctx context.Context, k entity.Key, now time.Time, ttl time.Duration) (int64, error)
	ListChallenges(ctx context.Context, userID int64, limit int) ([]entity.Challenge, error)
	DeleteExpiredChallenges(ctx context.Context, cutoff time.Time) (int64, error)

	GetSubject(ctx context.Context, userID int64) (*entity.Subject, error)
	EnableTwoFA(ctx context.Context, userID int64, at time.Time) (bool, error)
}

type repoCache interface {
	AllowAttempt(ctx context.Context, userID int64, limit int64, window time.Duration) (bool, error)
	ResetAttempts(ctx context.Context, userID int64) error
	ClaimCode(ctx context.Context, userID int64, step uint64, grant string, ttl time.Duration) (string, bool, error)
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

type sessionIssuer interface {
	PeekPreSession(ctx context.Context, token string) (*session.PreSession, error)
	ConsumePreSession(ctx context.Context, token string) (*session.PreSession, error)
	IssueSession(ctx context.Context, sub jwt.Subject) (*session.Session, error)
}

type recorder interface {
	ObserveDecision(context, action, result, reason string)
	ObserveLedger(op string, err error, elapsed time.Duration)
	AddSwept(n int64)
}

type Usecase struct {
	repoDB        repoDB
	repoCache     repoCache
	repoMessaging repoMessaging
	session       sessionIssuer
	validator     validator.Validator
	cfg           config.Config
	sealer        sealer.Sealer
	totp          otp.OTP
	uid           uid.NumberID
	oid           uid.StringID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	metrics       recorder
	goroutine     *goroutine.Manager

	sweeper sweeperState
}

type Dependency struct {
	RepoDB        repoDB
	RepoCache     repoCache
	RepoMessaging repoMessaging
	Session       sessionIssuer
	Validator     validator.Validator
	Config        config.Config
	Sealer        sealer.Sealer
	Totp          otp.OTP
	UID           uid.NumberID
	OID           uid.StringID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Metrics       recorder
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoCache:     dep.RepoCache,
		repoMessaging: dep.RepoMessaging,
		session:       dep.Session,
		validator:     dep.Validator,
		cfg:           dep.Config,
		sealer:        dep.Sealer,
		totp:          dep.Totp,
		uid:           dep.UID,
		oid:           dep.OID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		metrics:       dep.Metrics,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("stepup.usecase").Start(ctx, name)
}

// publish sends a security event off the request path. Delivery is best effort.
func (s *Usecase) publish(ctx context.Context, ev SecurityEvent) {
	ctx = context.WithoutCancel(ctx)
	s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoMessaging.PublishSecurityEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "failed to publish security event", "type", ev.Type, "user_id", ev.UserID, "error", err)
		}
		return nil
	})
}

func (s *Usecase) observe(c entity.Context, a entity.ActionType, res entity.Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDecision(c.String(), a.String(), res.Kind.String(), res.Reason.String())
}
