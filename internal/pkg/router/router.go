package router

import (
	"context"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/metrics"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
)

// Handler returns a payload to encode as JSON, or an error.
type Handler func(r *Request) (any, error)

// Config holds dependencies required to build a Router.
type Config struct {
	Config     config.Config
	UUID       uid.StringID
	JWT        jwt.JWT
	Instrument instrument.Instrumentation
	// Enforcer backs Authorize.
	Enforcer *casbin.Enforcer
	// Revocation reports session token ids revoked by logout.
	Revocation RevocationChecker
	// Metrics is optional.
	Metrics *metrics.Metrics
	// CSRF is consulted only when app.csrf.enabled is set.
	CSRF CSRFChecker
}

// RevocationChecker reports revoked session token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Router is an http.Handler that wraps httprouter and a middleware chain.
type Router struct {
	hr       *httprouter.Router
	mws      []Middleware
	enforcer *casbin.Enforcer
}

// publicRoutes skip the Bearer requirement. A valid Bearer sent to one of
// them is still decoded, so /2fa/verify can tell a login from a step-up.
var publicRoutes = map[string]map[string]struct{}{
	http.MethodGet: {
		"/":        {},
		"/healthz": {},
		"/metrics": {},
	},
	http.MethodPost: {
		"/api/v1/identity/login":     {},
		"/api/v1/identity/register":  {},
		"/api/v1/identity/2fa/setup": {},
		"/api/v1/2fa/verify":         {},
	},
}

// NewRouter builds the application router and its global middleware chain.
func NewRouter(cfg Config) *Router {
	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			deny(w, http.StatusNotFound, "endpoint not found", "")
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			deny(w, http.StatusMethodNotAllowed, "method not allowed", "")
		}),
	}

	hr.GET("/", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, map[string]string{"message": "Welcome to API GoVault"}, http.StatusOK)
	})

	return &Router{
		hr:       hr,
		enforcer: cfg.Enforcer,
		mws: []Middleware{
			middlewareRecoverer,
			middlewareIP,
			middlewareRateLimit(cfg.Config),
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Instrument, cfg.Metrics),
			middlewareMaintenance(cfg.Config),
			middlewareAuthentication(cfg.JWT, cfg.Revocation, publicRoutes),
			middlewareCSRF(cfg.Config, cfg.CSRF),
		},
	}
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

// GETRaw registers a GET endpoint that writes directly to the response writer.
func (r *Router) GETRaw(path string, h http.Handler, mws ...Middleware) {
	r.hr.Handler(http.MethodGet, path, Chain(h, r.chain(mws)...))
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) PUT(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPut, path, h, mws...)
}

func (r *Router) PATCH(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPatch, path, h, mws...)
}

func (r *Router) DELETE(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodDelete, path, h, mws...)
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	final := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			if rec, ok := w.(interface{ SetError(error) }); ok {
				rec.SetError(err)
			}
			writeError(w, err)
			return
		}
		writeOK(w, resp)
	})

	r.hr.Handler(method, path, Chain(final, r.chain(mws)...))
}

// chain returns the global middlewares followed by the route's own.
func (r *Router) chain(route []Middleware) []Middleware {
	out := make([]Middleware, 0, len(r.mws)+len(route))
	return append(append(out, r.mws...), route...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
