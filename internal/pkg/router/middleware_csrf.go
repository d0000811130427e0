package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
)

// CSRFHeader carries the anti-forgery token issued alongside a session.
const CSRFHeader = "X-CSRF-Token"

// CSRFChecker validates the anti-forgery token bound to a session token id.
type CSRFChecker interface {
	VerifyCSRF(ctx context.Context, tokenID, token string) (bool, error)
}

// middlewareCSRF rejects state-changing requests made with a session whose
// anti-forgery token is missing or wrong. It only runs when app.csrf.enabled is
// set: bearer-only clients never send ambient credentials, browser clients do.
func middlewareCSRF(cfg config.Config, checker CSRFChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil || cfg == nil || !cfg.GetBool("app.csrf.enabled") {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			clm := jwt.GetAuth(r.Context())
			if clm == nil {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := checker.VerifyCSRF(r.Context(), clm.ID, r.Header.Get(CSRFHeader))
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to verify csrf token", "jti", clm.ID, "error", err)
				deny(w, http.StatusServiceUnavailable, "Service unavailable", "unavailable")
				return
			}
			if !ok {
				deny(w, http.StatusForbidden, "Forbidden", "csrf_token_invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
