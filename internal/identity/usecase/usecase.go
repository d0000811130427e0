package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/govault/internal/identity/entity"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/hash"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/session"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
	"go.opentelemetry.io/otel/trace"
)

type TwoFAResetEvent struct {
	UserID     int64
	Email      string
	IPAddress  string
	UserAgent  string
	OccurredAt time.Time
}

type repoMessaging interface {
	PublishTwoFAReset(ctx context.Context, msg TwoFAResetEvent) error
}

type repoDB interface {
	CreateUser(ctx context.Context, in entity.NewUser) error
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	UpdateTOTPSecret(ctx context.Context, userID int64, secret []byte, at time.Time) error
}

type sessionIssuer interface {
	IssuePreSession(ctx context.Context, sub jwt.Subject) (string, time.Time, error)
	PeekPreSession(ctx context.Context, token string) (*session.PreSession, error)
	RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// stepUp guards replacing an active second factor.
type stepUp interface {
	Authorize(ctx context.Context, in stepupusecase.AuthorizeInput) (stepupentity.Result, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	session       sessionIssuer
	stepUp        stepUp
	validator     validator.Validator
	cfg           config.Config
	bcrypt        hash.Hash
	sealer        sealer.Sealer
	totp          otp.OTP
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	dummyHash func() []byte
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Session       sessionIssuer
	StepUp        stepUp
	Validator     validator.Validator
	Config        config.Config
	Bcrypt        hash.Hash
	Sealer        sealer.Sealer
	Totp          otp.OTP
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		session:       dep.Session,
		stepUp:        dep.StepUp,
		validator:     dep.Validator,
		cfg:           dep.Config,
		bcrypt:        dep.Bcrypt,
		sealer:        dep.Sealer,
		totp:          dep.Totp,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}

	// unknown emails still pay for one bcrypt comparison
	s.dummyHash = sync.OnceValue(func() []byte {
		h, err := s.bcrypt.Hash("govault-unknown-account")
		if err != nil {
			slog.Warn("failed to hash dummy password", "error", err)
		}
		return h
	})

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}
