package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	stepupentity "github.com/shandysiswandi/govault/internal/stepup/entity"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
	"github.com/shandysiswandi/govault/internal/vault/entity"
	"go.opentelemetry.io/otel/trace"
)

type VaultExportedEvent struct {
	UserID     int64
	Email      string
	DeviceID   string
	IPAddress  string
	UserAgent  string
	OccurredAt time.Time
}

type repoDB interface {
	CreateCredential(ctx context.Context, in entity.Credential) error
	ListCredentials(ctx context.Context, userID int64) ([]entity.Credential, error)
	GetCredential(ctx context.Context, userID, id int64) (*entity.Credential, error)
	SoftDeleteCredential(ctx context.Context, userID, id int64, at time.Time) error
}

type repoBlob interface {
	PutExport(ctx context.Context, key string, body []byte) error
	PresignExport(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteExport(ctx context.Context, key string) error
}

type repoMessaging interface {
	PublishVaultExported(ctx context.Context, msg VaultExportedEvent) error
}

// stepUp decides whether a sensitive operation may run.
type stepUp interface {
	Authorize(ctx context.Context, in stepupusecase.AuthorizeInput) (stepupentity.Result, error)
}

type Usecase struct {
	repoDB        repoDB
	repoBlob      repoBlob
	repoMessaging repoMessaging
	stepUp        stepUp
	idempotency   idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	sealer        sealer.Sealer
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoBlob      repoBlob
	RepoMessaging repoMessaging
	StepUp        stepUp
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	Sealer        sealer.Sealer
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoBlob:      dep.RepoBlob,
		repoMessaging: dep.RepoMessaging,
		stepUp:        dep.StepUp,
		idempotency:   dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		sealer:        dep.Sealer,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("vault.usecase").Start(ctx, name)
}

func credentialScope(userID int64) sealer.Scope {
	return sealer.Scope{UserID: userID, Purpose: sealer.PurposeCredential}
}

// Gate identifies who asks for a sensitive operation and from where.
type Gate struct {
	UserID    int64  `validate:"required,gt=0"`
	Email     string `validate:"omitempty,email"`
	DeviceID  string `validate:"required,max=255"`
	Code      string `validate:"omitempty,len=6,number"`
	IPAddress string
	UserAgent string
}

// requireGrant returns nil only when step-up authorizes the action. Denials
// come back as *stepupentity.DenialError so the transport can render them.
func (s *Usecase) requireGrant(ctx context.Context, g Gate, action stepupentity.ActionType) error {
	res, err := s.stepUp.Authorize(ctx, stepupusecase.AuthorizeInput{
		UserID:      g.UserID,
		ActionType:  action,
		Context:     stepupentity.ContextSensitive,
		DeviceID:    g.DeviceID,
		Code:        g.Code,
		Environment: stepupentity.Environment{IPAddress: g.IPAddress, UserAgent: g.UserAgent},
	})
	if err != nil {
		return err
	}
	if !res.Authorized() {
		slog.InfoContext(ctx, "sensitive operation not authorized",
			"user_id", g.UserID,
			"action_type", action,
			"result", res.Kind.String(),
			"reason", res.Reason.String(),
		)
	}

	return res.Err()
}
