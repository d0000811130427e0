package vault

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/storage"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
	"github.com/shandysiswandi/govault/internal/vault/inbound"
	"github.com/shandysiswandi/govault/internal/vault/outbound/blob"
	"github.com/shandysiswandi/govault/internal/vault/outbound/db"
	"github.com/shandysiswandi/govault/internal/vault/outbound/mq"
	"github.com/shandysiswandi/govault/internal/vault/usecase"
)

type Dependency struct {
	DBConn      *pgxpool.Pool              `validate:"required"`
	Storage     storage.Storage            `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	StepUp      *stepupusecase.Usecase     `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Sealer      sealer.Sealer              `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        db.NewDB(dep.DBConn, dep.Instrument),
		RepoBlob:      blob.NewBlob(dep.Storage, dep.Config.GetString("modules.vault.export_bucket"), dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		StepUp:        dep.StepUp,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Sealer:        dep.Sealer,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
