// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, orders, facts, configuration
//   - Event bus errors (200-299): Closed bus or subscription misuse
//   - Ledger errors (300-399): Key lookup and index ordering failures
//   - Order book errors (400-499): Unknown orders and lifecycle violations
//   - Execution errors (500-599): Rate and notional limit violations
//   - Venue errors (600-699): Venue transport failures, rejections, timeouts
//   - Persistence errors (700-799): Durable store append/flush failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidOrder, "quantity must be positive")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeOrderNotFound, "no venue order with id %s", id)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodePersistenceFlush, "flush failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeVenueTimeout) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// TransitionError records a rejected order state transition. It is returned by
// the order books so callers can distinguish lifecycle violations (which are
// reported, never retried) from transport failures.
type TransitionError struct {
	OrderID string
	From    string
	To      string
}

// NewTransitionError creates a TransitionError for the given order and states.
func NewTransitionError(orderID, from, to string) *TransitionError {
	return &TransitionError{
		OrderID: orderID,
		From:    from,
		To:      to,
	}
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}

// IsTransitionError checks if an error chain contains a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
