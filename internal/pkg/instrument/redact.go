package instrument

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const redacted = "***"

// redactor holds lower-cased attribute names to hide.
type redactor map[string]struct{}

func newRedactor(names []string) redactor {
	r := redactor{}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			r[n] = struct{}{}
		}
	}
	return r
}

func (r redactor) hides(key string) bool {
	_, ok := r[strings.ToLower(key)]
	return ok
}

// attr hides a matching attribute outright and otherwise walks into groups,
// maps, and JSON payloads.
func (r redactor) attr(a slog.Attr) slog.Attr {
	if r.hides(a.Key) {
		return slog.String(a.Key, redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.attr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if s, ok := r.json([]byte(v.String())); ok {
			return slog.String(a.Key, s)
		}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case map[string]any:
			return slog.Any(a.Key, r.walk(x))
		case map[string]string:
			m := make(map[string]any, len(x))
			for k, s := range x {
				m[k] = s
			}
			return slog.Any(a.Key, r.walk(m))
		case []byte:
			if s, ok := r.json(x); ok {
				return slog.String(a.Key, s)
			}
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// json redacts a JSON object or array payload. ok is false when raw is not JSON.
func (r redactor) json(raw []byte) (string, bool) {
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		return "", false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	out, err := json.Marshal(r.walk(doc))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func (r redactor) walk(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			if r.hides(k) {
				out[k] = redacted
				continue
			}
			out[k] = r.walk(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = r.walk(e)
		}
		return out
	}
	return v
}

type redactHandler struct {
	next slog.Handler
	keys redactor
}

func (h *redactHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *redactHandler) Handle(ctx context.Context, rec slog.Record) error {
	if len(h.keys) == 0 {
		return h.next.Handle(ctx, rec)
	}

	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.keys.attr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.keys.attr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(clean), keys: h.keys}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), keys: h.keys}
}
