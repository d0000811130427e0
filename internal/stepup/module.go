package stepup

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/metrics"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/session"
	"github.com/shandysiswandi/govault/internal/stepup/inbound"
	"github.com/shandysiswandi/govault/internal/stepup/outbound/cache"
	"github.com/shandysiswandi/govault/internal/stepup/outbound/db"
	"github.com/shandysiswandi/govault/internal/stepup/outbound/mq"
	"github.com/shandysiswandi/govault/internal/stepup/usecase"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	DBConn     *pgxpool.Pool              `validate:"required"`
	CacheConn  *redis.Client              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Session    *session.Issuer            `validate:"required"`
	Sealer     sealer.Sealer              `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	OID        uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Metrics    *metrics.Metrics
}

// New wires the step-up module and returns its usecase so other modules can
// gate their sensitive operations on it.
func New(dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        db.NewDB(dep.DBConn, dep.Instrument),
		RepoCache:     cache.NewCache(dep.CacheConn, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Session:       dep.Session,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Sealer:        dep.Sealer,
		Totp:          dep.Totp,
		UID:           dep.UID,
		OID:           dep.OID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Metrics:       dep.Metrics,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	uc.StartSweeper(dep.Ctx)

	return uc, nil
}
