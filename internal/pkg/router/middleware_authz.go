package router

import (
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/govault/internal/pkg/jwt"
)

// Authorize returns a per-route middleware that asks casbin whether the caller's
// role may perform act on obj. It must run after authentication.
func (r *Router) Authorize(obj, act string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			clm := jwt.GetAuth(req.Context())
			if clm == nil {
				deny(w, http.StatusUnauthorized, "Unauthorized", "unauthenticated")
				return
			}

			if r.enforcer == nil {
				deny(w, http.StatusForbidden, "Forbidden", "")
				return
			}

			ok, err := r.enforcer.Enforce(clm.Role, obj, act)
			if err != nil {
				slog.ErrorContext(req.Context(), "failed to enforce policy", "role", clm.Role, "obj", obj, "act", act, "error", err)
				deny(w, http.StatusInternalServerError, "Internal server error", "")
				return
			}
			if !ok {
				deny(w, http.StatusForbidden, "Forbidden", "")
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
