package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures for callers.
type ErrorCode string

const (
	// CodeInvalidInput indicates a caller error such as an empty report.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	// CodeUnknownRun indicates no checkpoint exists for the run identifier.
	CodeUnknownRun ErrorCode = "UNKNOWN_RUN"
	// CodeDuplicateRun indicates Start was called for an existing run.
	CodeDuplicateRun ErrorCode = "DUPLICATE_RUN"
	// CodeInvalidTransition indicates an attempted overwrite of a protected
	// state field with a conflicting value.
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// CodeConcurrentResume indicates another Start/Resume is in flight for
	// the same run.
	CodeConcurrentResume ErrorCode = "CONCURRENT_RESUME"
	// CodeStoreUnavailable indicates the checkpoint store rejected a
	// read or write.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error is a structured engine error with a machine-readable code.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrNotFound is returned by Store implementations when a run has no
// checkpoints. The Engine maps it to CodeUnknownRun.
var ErrNotFound = errors.New("checkpoint not found")
