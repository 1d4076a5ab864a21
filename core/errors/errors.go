// Package errors provides structured error handling compatible with the standard library.
//
// Overview:
//   - Responsibility: Define error codes and structured error wrapping for molt
//   - Key Types: Code type for error classification, E struct for structured errors
//   - Concurrency Model: All functions are safe for concurrent use
//   - Error Semantics: Compatible with standard library error wrapping
//   - Performance Notes: Minimal allocations, errors are built once and inspected often
//
// Usage:
//
//	err := errors.New(errors.CodeConstructionFailure, "no invokable constructor")
//	wrapped := errors.Wrap(errors.CodeConversionFailure, "buildx.convert", originalErr)
//	code := errors.CodeOf(err)
package errors

import (
	"errors"
	"fmt"
)

// Code represents an error classification code.
type Code string

// Error codes raised by the molt packages. The first four form the build
// and reload taxonomy; the remainder classify programmer errors.
const (
	// CodeInvalidConfiguration marks missing required type information,
	// an unassignable declared type, or an unresolvable default type.
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"

	// CodeConstructionFailure marks a type with no constructor that is
	// invokable even with defaults. Details carries the missing
	// parameter names.
	CodeConstructionFailure Code = "CONSTRUCTION_FAILURE"

	// CodeConversionFailure marks a scalar or subtree that could not be
	// converted to the requested target type.
	CodeConversionFailure Code = "CONVERSION_FAILURE"

	// CodeUnsupportedShape marks a proxy target that is not an
	// interface or that is a bare sequence capability.
	CodeUnsupportedShape Code = "UNSUPPORTED_SHAPE"

	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

// E represents a structured error with code, operation, message, and details.
type E struct {
	Code    Code   // Error classification code
	Op      string // Operation that failed
	Err     error  // Underlying error (may be nil)
	Msg     string // Human-readable message
	Details []any  // Additional structured details (e.g., missing parameter names)
}

// Error implements the error interface.
func (e *E) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *E) Unwrap() error {
	return e.Err
}

// New creates a new structured error with the given code and message.
func New(code Code, msg string) error {
	return &E{
		Code: code,
		Msg:  msg,
	}
}

// Newf creates a new structured error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &E{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// NewWithDetails creates a new structured error carrying structured details.
func NewWithDetails(code Code, msg string, details ...any) error {
	return &E{
		Code:    code,
		Msg:     msg,
		Details: details,
	}
}

// Wrap creates a new structured error wrapping an existing error.
// The operation name helps identify where the error occurred.
func Wrap(code Code, op string, err error) error {
	return &E{
		Code: code,
		Op:   op,
		Err:  err,
	}
}

// Wrapf creates a new structured error wrapping an existing error with a formatted message.
func Wrapf(code Code, op string, err error, format string, args ...any) error {
	return &E{
		Code: code,
		Op:   op,
		Err:  err,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// CodeOf extracts the error code from an error.
// Returns empty string if the error doesn't carry a code.
func CodeOf(err error) Code {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// DetailsOf extracts the structured details from an error.
// Returns nil if the error doesn't carry details.
func DetailsOf(err error) []any {
	var e *E
	if err != nil && errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// As is a type assertion helper for error unwrapping.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is checks if an error is of a specific type.
func Is(err error, target error) bool {
	return errors.Is(err, target)
}
