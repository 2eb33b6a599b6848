package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type used throughout pkgci. It carries a
// stable code, a human-readable message, an optional wrapped cause, and
// optional context values for diagnostics.
type Error struct {
	// Code classifies the error condition.
	Code ErrorCode

	// Message is a human-readable description of the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Context holds additional key/value diagnostics (paths, commands,
	// exit codes). May be nil.
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message. Returns nil if
// err is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithContext wraps an existing error with a code, message, and
// context values. Returns nil if err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: ctx,
	}
}

// GetCode extracts the ErrorCode from an error. It walks the wrap chain
// and returns the code of the outermost *Error, or CodeUnknown if the
// chain contains none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code anywhere in its
// wrap chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is delegates to the standard library for sentinel comparison.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to the standard library for type extraction.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
