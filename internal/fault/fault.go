// Package fault defines the coded errors shared by the recording and
// replay engine.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// StorageUnavailable: the persisted log cannot be read or written.
	StorageUnavailable Code = "STORAGE_UNAVAILABLE"

	// MalformedLog: the persisted log does not decode into a valid sample log.
	MalformedLog Code = "MALFORMED_LOG"

	// InvalidStateTransition: an operation was called in the wrong session state.
	InvalidStateTransition Code = "INVALID_STATE_TRANSITION"

	// ClockAnomaly: a timestamp went backwards or replay fell far behind.
	// Only ever reported, never returned from an operation.
	ClockAnomaly Code = "CLOCK_ANOMALY"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrStorageUnavailable = &Error{Code: StorageUnavailable}
	ErrMalformedLog       = &Error{Code: MalformedLog}
	ErrInvalidState       = &Error{Code: InvalidStateTransition}
)

// Error is a coded engine error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed, e.g. "recorder.stop" or "storage.read".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can compare
// against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Err == nil
}

// New creates an *Error without an underlying cause.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error around err.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Storage wraps err as STORAGE_UNAVAILABLE unless it already carries a code.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return Wrap(StorageUnavailable, op, err)
}

// Malformed creates a MALFORMED_LOG error.
func Malformed(op, format string, args ...any) *Error {
	return New(MalformedLog, op, format, args...)
}

// InvalidState creates an INVALID_STATE_TRANSITION error.
func InvalidState(op string, from fmt.Stringer) *Error {
	return New(InvalidStateTransition, op, "not allowed in state %s", from)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsStorageUnavailable reports whether err is a STORAGE_UNAVAILABLE error.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == StorageUnavailable
}

// IsMalformedLog reports whether err is a MALFORMED_LOG error.
func IsMalformedLog(err error) bool {
	return CodeOf(err) == MalformedLog
}

// IsInvalidState reports whether err is an INVALID_STATE_TRANSITION error.
func IsInvalidState(err error) bool {
	return CodeOf(err) == InvalidStateTransition
}
