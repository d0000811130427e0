package instrument

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogConfig shapes the default slog logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is json or text. Empty means json.
	Format string
	// Redact lists attribute names whose values never reach the output.
	Redact []string
	// Output defaults to stdout.
	Output io.Writer
}

// SetupLogging installs the process-wide slog logger. Records are redacted,
// tagged with the service and correlation id, and also handed to lp when it
// is not nil.
func SetupLogging(service string, cfg LogConfig, lp *sdklog.LoggerProvider) {
	slog.SetDefault(slog.New(NewHandler(service, cfg, lp)))
}

// NewHandler builds the handler SetupLogging installs.
func NewHandler(service string, cfg LogConfig, lp *sdklog.LoggerProvider) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   true,
		ReplaceAttr: renameAttr,
	}

	var sink slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		sink = slog.NewTextHandler(out, opts)
	} else {
		sink = slog.NewJSONHandler(out, opts)
	}
	if lp != nil {
		sink = teeHandler{sink, otelslog.NewHandler(service, otelslog.WithLoggerProvider(lp))}
	}

	return &serviceHandler{
		Handler: &redactHandler{next: sink, keys: newRedactor(cfg.Redact)},
		service: service,
	}
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// renameAttr shortens the built-in keys and trims source paths to the
// module-relative part.
func renameAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", "internal/"+rel+":"+strconv.Itoa(src.Line))
	}
	return a
}

type serviceHandler struct {
	slog.Handler
	service string
}

func (h *serviceHandler) Handle(ctx context.Context, r slog.Record) error {
	if cID := GetCorrelationID(ctx); cID != "" {
		r.AddAttrs(slog.String("_cID", cID))
	}
	r.AddAttrs(slog.String("service", h.service))
	return h.Handler.Handle(ctx, r)
}

func (h *serviceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &serviceHandler{Handler: h.Handler.WithAttrs(attrs), service: h.service}
}

func (h *serviceHandler) WithGroup(name string) slog.Handler {
	return &serviceHandler{Handler: h.Handler.WithGroup(name), service: h.service}
}

// teeHandler writes every record to both handlers.
type teeHandler [2]slog.Handler

func (t teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return t[0].Enabled(ctx, lvl) || t[1].Enabled(ctx, lvl)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{t[0].WithAttrs(attrs), t[1].WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{t[0].WithGroup(name), t[1].WithGroup(name)}
}
