// Package domain defines core types, interfaces, and errors for the BI asset
// inventory service.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ThrottlingError indicates the provider rate-limited the request. Retryable.
type ThrottlingError struct {
	Message string
}

func (e *ThrottlingError) Error() string { return e.Message }

// ServiceUnavailableError indicates a transient provider outage (502/503).
// Retryable.
type ServiceUnavailableError struct {
	Message string
}

func (e *ServiceUnavailableError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrThrottling creates a ThrottlingError with a formatted message.
func ErrThrottling(format string, args ...interface{}) *ThrottlingError {
	return &ThrottlingError{Message: fmt.Sprintf(format, args...)}
}

// ErrServiceUnavailable creates a ServiceUnavailableError with a formatted message.
func ErrServiceUnavailable(format string, args ...interface{}) *ServiceUnavailableError {
	return &ServiceUnavailableError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether err is a transient provider error worth
// retrying: throttling or temporary service unavailability. Everything else
// (not-found, access-denied, malformed responses) is permanent and fails the
// current unit of work immediately.
func IsRetryable(err error) bool {
	var throttled *ThrottlingError
	var unavailable *ServiceUnavailableError
	return errors.As(err, &throttled) || errors.As(err, &unavailable)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
