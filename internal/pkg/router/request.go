package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	*http.Request
}

// GetParam returns a path parameter.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// GetParamInt64 parses a path parameter as a positive id.
func (r *Request) GetParamInt64(key string) (int64, error) {
	v, err := strconv.ParseInt(r.GetParam(key), 10, 64)
	if err != nil || v <= 0 {
		return 0, goerror.NewInvalidFormat(key + " must be a positive integer")
	}
	return v, nil
}

// GetQuery returns a trimmed query value.
func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// GetQueryInt parses an optional integer query value; absent means def.
func (r *Request) GetQueryInt(key string, def int) (int, error) {
	v := r.GetQuery(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, goerror.NewInvalidFormat(key + " must be an integer")
	}
	return n, nil
}

// DecodeBody decodes exactly one JSON value into dst. Unknown fields,
// trailing data and bodies over 1 MiB are malformed.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}
	return nil
}

// ClientIP returns the caller address resolved from proxy headers or the socket.
func (r *Request) ClientIP() string {
	return realIP(r.Request)
}
