// Package errors provides domain-specific errors for moneta.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrCategoryNameRequired   = errors.New("category name required")
	ErrBudgetCategoryRequired = errors.New("budget category required")
	ErrBudgetMonthRange       = errors.New("budget month must be between 1 and 12")
	ErrAmountNegative         = errors.New("amount must not be negative")
	ErrRecordNotFound         = errors.New("record not found")
	ErrNoCloudID              = errors.New("record has no cloud ID")
	ErrNotAuthenticated       = errors.New("no authenticated user")
	ErrNoNetwork              = errors.New("no usable network path")
	ErrRemoteUnreachable      = errors.New("remote store unreachable")
	ErrProviderTripped        = errors.New("chat provider circuit tripped")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation ErrorCode = "VALIDATION"
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeStorage    ErrorCode = "STORAGE"
	CodeRemote     ErrorCode = "REMOTE"
	CodeNetwork    ErrorCode = "NETWORK"
	CodeAuth       ErrorCode = "AUTH"
	CodeConfig     ErrorCode = "CONFIG"
)

// MonetaError wraps errors with additional context for debugging and handling.
type MonetaError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *MonetaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *MonetaError) Unwrap() error {
	return e.Cause
}

// NewError creates a new MonetaError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *MonetaError {
	return &MonetaError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the ErrorCode from err's chain, or empty when err carries none.
func CodeOf(err error) ErrorCode {
	var me *MonetaError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// Is reports whether err matches target using errors.Is semantics.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
