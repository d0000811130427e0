package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/rs/cors"
	"github.com/shandysiswandi/govault/internal/pkg/router"
)

// rbacModel allows a role when a policy names it, or a role it inherits,
// with a matching object and action. "*" matches anything.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// newEnforcer loads policies written as "role, object, action".
func newEnforcer(policies []string) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	for _, raw := range policies {
		parts := strings.Split(raw, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("policy %q: want role, object, action", raw)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if _, err := e.AddPolicy(parts[0], parts[1], parts[2]); err != nil {
			return nil, fmt.Errorf("policy %q: %w", raw, err)
		}
	}
	return e, nil
}

func (a *App) initCasbin() error {
	e, err := newEnforcer(a.config.GetArray("casbin.policies"))
	if err != nil {
		return err
	}
	a.casbin = e
	return nil
}

func (a *App) initHTTPServer() error {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		JWT:        a.jwt,
		Instrument: a.ins,
		Enforcer:   a.casbin,
		Revocation: a.session,
		Metrics:    a.metrics,
		CSRF:       a.session,
	})

	a.router.GET("/healthz", a.healthz)
	if a.metrics != nil {
		a.router.GETRaw("/metrics", a.metrics.Handler())
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
	return nil
}
