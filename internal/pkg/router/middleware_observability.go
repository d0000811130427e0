package router

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// maxLoggedBody caps how much of a request body reaches the log.
const maxLoggedBody = 8 << 10

// recorder captures what the handler wrote. Response bodies are never kept:
// they carry decrypted credentials.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *recorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// SetError lets the router hand the handler's error to the middleware.
func (w *recorder) SetError(err error) { w.err = err }

func (w *recorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (w *recorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func routeOf(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return r.URL.Path
}

// peekBody reads up to maxLoggedBody bytes and puts them back in front of
// the rest of the body. Only JSON is returned, since the log redactor can
// only see field names inside JSON.
func peekBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody)) //nolint:errcheck // logging only
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	if !json.Valid(head) {
		return "<omitted>"
	}
	return string(head)
}

// headerMap flattens headers so the logger's redaction sees one key per header.
func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}

func middlewareObservability(ins instrument.Instrumentation, prom *metrics.Metrics) Middleware {
	tracer := ins.Tracer("http.server")
	meter := ins.Meter("http.server")

	requests, err := meter.Int64Counter("http.server.requests", metric.WithDescription("HTTP requests served"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	duration, err := meter.Float64Histogram("http.server.duration", metric.WithDescription("HTTP request duration"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeOf(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"headers", headerMap(r.Header),
				"body", peekBody(r),
			)

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusCode()
			elapsed := time.Since(start)
			attrs := metric.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			)

			span.SetAttributes(
				semconv.HTTPResponseStatusCodeKey.Int(status),
				attribute.Int("http.response_content_length", rec.bytes),
			)
			reason := ""
			if rec.err != nil {
				reason = goerror.ReasonOf(rec.err)
				span.RecordError(rec.err)
				if reason != "" {
					span.SetAttributes(attribute.String("govault.reason", reason))
				}
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			if requests != nil {
				requests.Add(ctx, 1, attrs)
			}
			if duration != nil {
				duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
			}
			prom.ObserveHTTP(r.Method, route, status, elapsed)

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"reason", reason,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
			)
		})
	}
}
