package alert

import (
	"context"

	"github.com/shandysiswandi/govault/internal/alert/inbound"
	"github.com/shandysiswandi/govault/internal/alert/outbound/email"
	"github.com/shandysiswandi/govault/internal/alert/usecase"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoMail := email.New(dep.Mail, dep.Config.GetString("mail.from"), email.Backoff{
		Base:       dep.Config.GetDuration("modules.alert.retry.base"),
		Cap:        dep.Config.GetDuration("modules.alert.retry.cap"),
		MaxRetries: uint64(dep.Config.GetUint("modules.alert.retry.max_retries")),
	}, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoMail:    repoMail,
		Idempotency: dep.Idempotency,
		Config:      dep.Config,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	})

	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return nil
}
