package app

import (
	"fmt"

	"github.com/shandysiswandi/govault/internal/alert"
	"github.com/shandysiswandi/govault/internal/identity"
	"github.com/shandysiswandi/govault/internal/stepup"
	"github.com/shandysiswandi/govault/internal/vault"
)

func (a *App) initModules() error {
	// step-up is not optional: every other module gates on it.
	stepUp, err := stepup.New(stepup.Dependency{
		Ctx:        a.ctx,
		DBConn:     a.dbConn,
		CacheConn:  a.cacheConn,
		Goroutine:  a.goroutine,
		Router:     a.router,
		Messaging:  a.messaging,
		Session:    a.session,
		Sealer:     a.sealer,
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		OID:        a.oid,
		Clock:      a.clock,
		Totp:       a.totp,
		Validator:  a.validator,
		Metrics:    a.metrics,
	})
	if err != nil {
		return fmt.Errorf("stepup: %w", err)
	}

	if a.config.GetBool("modules.identity.enabled") {
		if err := identity.New(identity.Dependency{
			DBConn:     a.dbConn,
			Goroutine:  a.goroutine,
			Router:     a.router,
			Messaging:  a.messaging,
			Session:    a.session,
			StepUp:     stepUp,
			Sealer:     a.sealer,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			Bcrypt:     a.bcrypt,
			Clock:      a.clock,
			Totp:       a.totp,
			Validator:  a.validator,
		}); err != nil {
			return fmt.Errorf("identity: %w", err)
		}
	}

	if a.config.GetBool("modules.vault.enabled") {
		if err := vault.New(vault.Dependency{
			DBConn:      a.dbConn,
			Storage:     a.storage,
			Idempotency: a.idemp,
			StepUp:      stepUp,
			Goroutine:   a.goroutine,
			Router:      a.router,
			Messaging:   a.messaging,
			Sealer:      a.sealer,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			Clock:       a.clock,
			Validator:   a.validator,
		}); err != nil {
			return fmt.Errorf("vault: %w", err)
		}
	}

	if a.config.GetBool("modules.alert.enabled") {
		if err := alert.New(alert.Dependency{
			Ctx:         a.ctx,
			Messaging:   a.messaging,
			Mail:        a.mail,
			Idempotency: a.idemp,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
		}); err != nil {
			return fmt.Errorf("alert: %w", err)
		}
	}

	return nil
}
