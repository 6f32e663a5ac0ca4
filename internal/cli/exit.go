package cli

import (
	"errors"
	"fmt"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Session failed or was cancelled
	ExitCommandError = 2 // Bad flags, config, storage or log
)

// ExitError carries the process exit code for a command error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
// Storage and malformed-log errors are command errors; anything else
// without an explicit ExitError is a failure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch fault.CodeOf(err) {
	case fault.StorageUnavailable, fault.MalformedLog:
		return ExitCommandError
	}
	return ExitFailure
}
