// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, missing data, type mismatches
//   - Data/Resource errors (200-299): Data not found, query failures, unavailable resources
//   - Indicator errors (300-399): Indicator column calculation errors
//   - Strategy errors (400-499): Strategy lookup, configuration, and runtime errors
//   - Trading errors (500-599): Exchange calls, order execution and position errors
//   - Backtest errors (600-699): Evaluator and parameter search errors
//   - Market data errors (700-799): Historical data fetching and parsing errors
//   - Callback errors (800-899): Callback execution failures
//   - Worker errors (900-999): Registry and worker lifecycle errors
//   - Job errors (1000-1099): Background job dispatch errors
//   - Risk errors (1100-1199): Risk gate and circuit breaker errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeWorkerNotFound, "no worker for %s", key)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeOrderFailed, "failed to create order", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeJobBusy) { ... }
//
//	// Fatal errors stop a worker without retry
//	if errors.IsFatal(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error carries an ErrorCode alongside the message and the optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to cause. A nil cause yields a plain New.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}

	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so a bare New(code, "") works
// as a sentinel with the standard errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ErrCodeUnknown
	}

	return e.Code
}

func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsFatal reports whether err belongs to the programming-defect class. Fatal
// errors stop a worker without retry.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	_, ok := fatalCodes[GetCode(err)]

	return ok
}
