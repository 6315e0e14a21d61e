// Package domainerrors provides coded errors that cross package boundaries.
//
// Infrastructure layers return plain wrapped errors; services attach a Code
// (or construct fresh coded errors) so transports and the CLI can map
// failures to HTTP statuses and exit codes without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadInput marks rejected input: malformed keys, bad query params.
	CodeBadInput Code = "bad_input"
	// CodeRetrieval marks failures fetching raw source files. Fatal for a run.
	CodeRetrieval Code = "retrieval"
	// CodeSchema marks a raw file whose positional layout cannot be trusted.
	CodeSchema Code = "schema"
	// CodeTemporalOrder marks an out-of-order or gapped reconciliation attempt.
	CodeTemporalOrder Code = "temporal_order"
	// CodeConsistency marks a running-levels drift in the panel. Never published.
	CodeConsistency Code = "consistency"
	// CodeNotFound marks a missing record at the service layer.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a write conflict.
	CodeConflict Code = "conflict"
	// CodeInternal marks everything that should not happen.
	CodeInternal Code = "internal"
)

// Error carries a code, a human message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
