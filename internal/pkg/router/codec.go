package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/validator"
)

// errorResponse is the body of every non-2xx answer. Error carries field
// messages and, for refusals, the machine-readable "reason".
type errorResponse struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// deny writes a refusal issued by a middleware.
func deny(w http.ResponseWriter, status int, msg, reason string) {
	resp := errorResponse{Message: msg}
	if reason != "" {
		resp.Error = map[string]string{"reason": reason}
	}
	writeJSON(w, resp, status)
}

// writeError maps err onto the envelope. Anything that is not a
// *goerror.Error is hidden behind a 500.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	resp := errorResponse{Message: gerr.Msg()}
	var verr validator.FieldErrors
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Values()
	case len(gerr.Fields()) > 0:
		resp.Error = gerr.Fields()
	}

	if reason := gerr.Reason(); reason != "" {
		if resp.Error == nil {
			resp.Error = map[string]string{}
		}
		resp.Error["reason"] = reason
	}

	writeJSON(w, resp, gerr.StatusCode())
}

// writeOK encodes a handler result. The payload may implement StatusCode,
// Message, or Meta to shape the envelope.
func writeOK(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(interface{ StatusCode() int }); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := successResponse{Message: "request has been successfully", Data: resp}
	if m, ok := resp.(interface{ Message() string }); ok {
		out.Message = m.Message()
	}
	if m, ok := resp.(interface{ Meta() map[string]any }); ok {
		out.Meta = m.Meta()
	}
	writeJSON(w, out, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("router: failed to encode response", "error", err)
	}
}
