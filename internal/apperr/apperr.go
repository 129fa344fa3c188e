// Package apperr is the error taxonomy shared by services and the HTTP edge.
//
// Services return *Error values carrying an HTTP status and a client-safe message.
// Anything else reaching the edge is treated as an unexpected, non-operational failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

type Error struct {
	Status  int
	Message string
	// Operational errors are expected outcomes (validation, auth, not found)
	// and always reach the client with their own status and message.
	Operational bool
	// Reason is a short machine code kept for logs only.
	Reason string
	// Details is an optional client-facing payload (field errors).
	Details any
	Cause   error
	stack   string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Stack() string { return e.stack }

// WithCause attaches the underlying failure without changing what the client sees.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

func New(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Status:      status,
		Message:     message,
		Operational: true,
		stack:       captureStack(3),
	}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, message)
}

// Internal wraps an unexpected failure. The cause message is kept for
// development responses and logs.
func Internal(err error) *Error {
	msg := http.StatusText(http.StatusInternalServerError)
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Status:      http.StatusInternalServerError,
		Message:     msg,
		Operational: false,
		Cause:       err,
		stack:       captureStack(3),
	}
}

// From normalizes any error into an *Error. Untyped errors become
// non-operational internal errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Internal(err)
}

// StatusOf reports the HTTP status an error maps to.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}

func Is(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

func captureStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}
