package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an application error.
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidMarket represents a market-parameter contract violation:
	// non-positive price/strike/time, out-of-band rate, unknown option type
	ErrorTypeInvalidMarket
	// ErrorTypeNonConvergence represents a numerical method that failed to
	// converge. The solver itself never returns this; it reports
	// non-convergence through its result. Callers that must promote a failed
	// solve into an error use this type.
	ErrorTypeNonConvergence
	// ErrorTypeNotFound represents a missing resource
	ErrorTypeNotFound
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

// AppError carries a type, a message and an optional wrapped cause.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new unclassified error
func New(message string) error {
	return &AppError{Type: ErrorTypeUnknown, Message: message}
}

// Wrap wraps an error with a message, preserving the original type when the
// cause is already an AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	t := ErrorTypeUnknown
	var appErr *AppError
	if errors.As(err, &appErr) {
		t = appErr.Type
	}
	return &AppError{Type: t, Message: message, Err: err}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not
// an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsInvalidMarket reports whether err is an invalid-market-parameters error
func IsInvalidMarket(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidMarket
}

// InvalidMarket creates a new invalid-market-parameters error
func InvalidMarket(message string) error {
	return &AppError{Type: ErrorTypeInvalidMarket, Message: message}
}

// InvalidMarketf creates a new formatted invalid-market-parameters error
func InvalidMarketf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeInvalidMarket, Message: fmt.Sprintf(format, args...)}
}

// NonConvergence creates a new non-convergence error
func NonConvergence(message string) error {
	return &AppError{Type: ErrorTypeNonConvergence, Message: message}
}

// NotFound creates a new not-found error
func NotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// Internal creates a new internal error
func Internal(message string) error {
	return &AppError{Type: ErrorTypeInternal, Message: message}
}
