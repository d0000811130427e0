package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/govault/internal/pkg/jwt"
)

func bearerToken(r *http.Request) (string, bool) {
	p := strings.Fields(r.Header.Get("Authorization"))
	if len(p) != 2 || !strings.EqualFold(p[0], "Bearer") {
		return "", false
	}
	return p[1], true
}

func middlewareAuthentication(
	verifier jwt.JWT,
	revocation RevocationChecker,
	publicEndpoints map[string]map[string]struct{},
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := routeOf(r)

			_, public := publicEndpoints[r.Method][path]
			token, hasToken := bearerToken(r)

			if !hasToken {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				deny(w, http.StatusUnauthorized, "Unauthorized", "unauthenticated")
				return
			}

			claims, err := verifier.Verify(token)
			if err == nil && revocation != nil {
				revoked, rerr := revocation.IsRevoked(r.Context(), claims.ID)
				if rerr != nil {
					slog.WarnContext(r.Context(), "failed to check session revocation", "jti", claims.ID, "error", rerr)
				}
				// fail closed when the revocation store is unreachable
				if revoked || rerr != nil {
					err = jwt.ErrInvalidToken
				}
			}

			if err != nil {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				deny(w, http.StatusUnauthorized, "Unauthorized", "unauthenticated")
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}
