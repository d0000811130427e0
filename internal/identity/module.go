package identity

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/govault/internal/identity/inbound"
	"github.com/shandysiswandi/govault/internal/identity/outbound/db"
	"github.com/shandysiswandi/govault/internal/identity/outbound/mq"
	"github.com/shandysiswandi/govault/internal/identity/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/hash"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/session"
	stepupusecase "github.com/shandysiswandi/govault/internal/stepup/usecase"
)

type Dependency struct {
	DBConn     *pgxpool.Pool              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Session    *session.Issuer            `validate:"required"`
	StepUp     *stepupusecase.Usecase     `validate:"required"`
	Sealer     sealer.Sealer              `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Bcrypt     hash.Hash                  `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        db.NewDB(dep.DBConn, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Session:       dep.Session,
		StepUp:        dep.StepUp,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Bcrypt:        dep.Bcrypt,
		Sealer:        dep.Sealer,
		Totp:          dep.Totp,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
