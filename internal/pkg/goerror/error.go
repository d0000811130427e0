// Package goerror carries the error taxonomy every layer speaks: a Type
// for the bucket, a Code that picks the HTTP status, a user-facing message,
// and an optional machine-readable reason.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned by repositories on a unique violation.
	ErrConflict = errors.New("resource conflict")
)

// Type is the bucket an error falls in.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeServer:
		return "server"
	case TypeBusiness:
		return "business"
	case TypeValidation:
		return "validation"
	}
	return "unknown"
}

// Code selects the HTTP status of an error.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	CodeTooManyRequest
	CodeUnauthorized
	CodeForbidden
	CodeTimeout
	// CodeUnavailable marks a dependency that is down; the caller may retry.
	CodeUnavailable
)

var codes = map[Code]struct {
	name   string
	status int
}{
	CodeInternal:       {"internal", http.StatusInternalServerError},
	CodeInvalidFormat:  {"invalid_format", http.StatusBadRequest},
	CodeInvalidInput:   {"invalid_input", http.StatusUnprocessableEntity},
	CodeNotFound:       {"not_found", http.StatusNotFound},
	CodeConflict:       {"conflict", http.StatusConflict},
	CodeTooManyRequest: {"too_many_requests", http.StatusTooManyRequests},
	CodeUnauthorized:   {"unauthorized", http.StatusUnauthorized},
	CodeForbidden:      {"forbidden", http.StatusForbidden},
	CodeTimeout:        {"timeout", http.StatusRequestTimeout},
	CodeUnavailable:    {"unavailable", http.StatusServiceUnavailable},
}

func (c Code) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return codes[CodeInternal].name
}

// Error is the structured error used across the application.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
	reason  string
}

func (e *Error) Error() string {
	switch {
	case e.err != nil:
		return e.err.Error()
	case e.msg != "":
		return e.msg
	}
	return e.errType.String() + " error"
}

// String is the verbose form for logs.
func (e *Error) String() string {
	return fmt.Sprintf("type=%s code=%s reason=%q msg=%q err=%v", e.errType, e.code, e.reason, e.msg, e.err)
}

func (e *Error) Msg() string               { return e.msg }
func (e *Error) Type() Type                { return e.errType }
func (e *Error) Code() Code                { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Reason() string            { return e.reason }
func (e *Error) Unwrap() error             { return e.err }

// StatusCode maps the code to an HTTP status.
func (e *Error) StatusCode() int {
	if info, ok := codes[e.code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// NewServer wraps an unexpected failure. The cause is kept for logs and
// never shown to the caller.
func NewServer(err error) error {
	return &Error{err: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewBusiness reports a rule the request broke.
func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// NewInvalidInput reports a 422. With err set it wraps a validator error;
// otherwise kv is read as field/message pairs. An odd kv is a programming
// error and degrades to NewInvalidFormat.
func NewInvalidInput(err error, kv ...string) error {
	e := &Error{err: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}
	if err != nil {
		return e
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e.fields = make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}
	return e
}

// NewInvalidFormat reports a body or parameter that could not be decoded.
func NewInvalidFormat(msg ...string) error {
	m := "Invalid request body"
	if len(msg) > 0 {
		m = msg[0]
	}
	return &Error{msg: m, errType: TypeValidation, code: CodeInvalidFormat}
}

// WithReason returns a copy of err carrying reason. Non *Error values are
// wrapped as server errors first.
func WithReason(err error, reason string) error {
	if err == nil {
		return nil
	}

	var gerr *Error
	if !errors.As(err, &gerr) {
		gerr = NewServer(err).(*Error)
	}

	cp := *gerr
	cp.reason = reason
	return &cp
}

// ReasonOf returns the reason carried by err, or "".
func ReasonOf(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.reason
	}
	return ""
}
