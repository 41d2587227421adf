// Package domainerrors provides code-carrying errors shared by all
// services. Stores return sentinel errors (pkg/platform/sentinel);
// services translate them into these typed failures so transport layers
// can map codes to status codes without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers. Codes are part of the API
// surface: transports map them to status codes and clients branch on
// them to decide retryability.
type Code string

const (
	// CodeValidation marks bad input shape or value. Non-retryable until
	// the caller corrects the request.
	CodeValidation Code = "validation"

	// CodeUnauthorized marks a caller without the required role.
	CodeUnauthorized Code = "unauthorized"

	// CodeUntrustedSource marks a data submission from a source that is
	// not admitted to the trusted-source registry.
	CodeUntrustedSource Code = "untrusted_source"

	// CodeNotFound marks a reference to an absent entity.
	CodeNotFound Code = "not_found"

	// CodeInsufficientFunds marks a payment the pool cannot cover.
	// Transient: retryable once the pool is topped up.
	CodeInsufficientFunds Code = "insufficient_funds"

	// CodeDeadlineExpired marks a verification attempted past the
	// milestone deadline. Terminal for that attempt; no state change.
	CodeDeadlineExpired Code = "deadline_expired"

	// CodeInvalidTransition marks an operation attempted on an entity
	// that is not in the required status.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeSystemPaused marks mutations rejected while the system is
	// globally halted. Transient: retryable after unpause.
	CodeSystemPaused Code = "system_paused"

	// CodeConflict marks an operation that lost to concurrent state.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks a domain invariant breach detected in
	// a model constructor or transition guard.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a domain error with a stable code and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. The cause
// remains reachable via errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is
// not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
