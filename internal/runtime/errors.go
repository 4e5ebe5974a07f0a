package runtime

import (
	"errors"
	"fmt"
)

// ErrorCode classifies runtime failures so callers can react without
// matching on message text.
type ErrorCode int

const (
	// CodeFail is a generic, unclassified failure.
	CodeFail ErrorCode = iota + 1
	// CodeInvalidArgument marks a caller mistake: bad shapes, unknown input
	// names, invalid options.
	CodeInvalidArgument
	// CodeNoSuchFile marks a missing model file.
	CodeNoSuchFile
	// CodeInvalidModel marks a model descriptor that could not be parsed or
	// failed validation.
	CodeInvalidModel
	// CodeEngineError marks a failure inside a backend during execution.
	CodeEngineError
	// CodeNotImplemented marks an operation the active backend does not
	// support.
	CodeNotImplemented
	// CodeBackendUnavailable marks a backend that cannot run in this build
	// or environment.
	CodeBackendUnavailable
)

// String returns a short name for the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeFail:
		return "fail"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeNoSuchFile:
		return "no such file"
	case CodeInvalidModel:
		return "invalid model"
	case CodeEngineError:
		return "engine error"
	case CodeNotImplemented:
		return "not implemented"
	case CodeBackendUnavailable:
		return "backend unavailable"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a classified runtime error. It wraps an optional cause so that
// errors.Is/As keep working through it.
type Error struct {
	code ErrorCode
	msg  string
	err  error
}

// NewError creates a classified error with a plain message.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Errorf creates a classified error with a formatted message. The %w verb
// is honored for wrapping.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{code: code, msg: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the error's classification.
func (e *Error) Code() ErrorCode {
	return e.code
}

// CodeOf extracts the classification from an error chain. Unclassified
// errors report CodeFail.
func CodeOf(err error) ErrorCode {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.code
	}
	return CodeFail
}

// ErrEnvironmentInitialized is returned by Use when the environment has
// already been initialized; backend installation must happen first.
var ErrEnvironmentInitialized = errors.New("environment already initialized; install backends before any other use")
