package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/clock"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/hash"
	"github.com/shandysiswandi/govault/internal/pkg/idempotency"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/mail"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/metrics"
	"github.com/shandysiswandi/govault/internal/pkg/otp"
	"github.com/shandysiswandi/govault/internal/pkg/router"
	"github.com/shandysiswandi/govault/internal/pkg/sealer"
	"github.com/shandysiswandi/govault/internal/pkg/storage"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
	"github.com/shandysiswandi/govault/internal/shared/session"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config  config.Config
	ins     instrument.Instrumentation
	metrics *metrics.Metrics

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	bcrypt    hash.Hash
	uid       uid.NumberID
	oid       uid.StringID
	token     uid.StringID
	uuid      uid.StringID
	totp      otp.OTP
	jwt       jwt.JWT
	sealer    sealer.Sealer

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	session   *session.Issuer
	mail      mail.Mail
	messaging messaging.Messaging
	storage   storage.Storage
	casbin    *casbin.Enforcer

	// server
	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New builds every dependency in order. A failing step aborts startup and
// closes whatever had been opened before it.
func New() (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"sealer", a.initSealer},
		{"jwt", a.initJWT},
		{"database", a.initDatabase},
		{"cache", a.initCache},
		{"session", a.initSession},
		{"mail", a.initMail},
		{"storage", a.initStorage},
		{"messaging", a.initMessaging},
		{"casbin", a.initCasbin},
		{"http", a.initHTTPServer},
		{"modules", a.initModules},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			cancel()
			a.closeAll(context.Background())
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	return a, nil
}

// onClose registers fn to run at shutdown; closers run in reverse order.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) closeAll(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	a.closers = nil
}
