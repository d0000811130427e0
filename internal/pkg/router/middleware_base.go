package router

import (
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/stacktrace"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the request correlation id in and out.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is accepted when HeaderCorrelationID is absent.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint // sentinel compared as documented by net/http
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(r.Context(), "panic on the server", "because", rvr, "stack", paths)
			} else {
				slog.ErrorContext(r.Context(), "panic on the server", "because", rvr, "stack", string(stack))
			}
			deny(w, http.StatusInternalServerError, "Internal server error", "")
		}()

		next.ServeHTTP(w, r)
	})
}

// middlewareIP rewrites RemoteAddr to the resolved client address so the
// rate limiter and the step-up environment see the same value.
func middlewareIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := realIP(r); ip != "" {
			r.RemoteAddr = ip
		}
		next.ServeHTTP(w, r)
	})
}

// realIP prefers True-Client-IP, then X-Real-IP, then the first
// X-Forwarded-For hop, then the socket address. Values that do not parse as
// an IP are skipped.
func realIP(r *http.Request) string {
	xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, v := range []string{r.Header.Get("True-Client-IP"), r.Header.Get("X-Real-IP"), xff} {
		if v = strings.TrimSpace(v); v != "" && net.ParseIP(v) != nil {
			return v
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}
	return ""
}

func cleanCorrelationID(v string) string {
	if strings.ContainsAny(v, "\r\n") {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cID := cleanCorrelationID(r.Header.Get(HeaderCorrelationID))
			if cID == "" {
				cID = cleanCorrelationID(r.Header.Get(HeaderRequestID))
			}
			if cID == "" && gen != nil {
				cID = gen.Generate()
			}

			if cID != "" {
				w.Header().Set(HeaderCorrelationID, cID)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
