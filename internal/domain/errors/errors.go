// Package errors provides standardized error types for the domain layer.
// These errors provide consistent error handling across all services
// and enable proper error categorization for HTTP responses.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request is forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrConflict indicates a conflict with the current state
	ErrConflict = errors.New("conflict")

	// ErrRateLimit indicates rate limit exceeded
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrServiceUnavailable indicates the service is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(err error, code, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// WithRetryable marks the error as retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ValidationError creates a validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError(message string) *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// ForbiddenError creates a forbidden error
func ForbiddenError(message string) *DomainError {
	return &DomainError{
		Err:     ErrForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// ConflictError creates a conflict error
func ConflictError(resource, reason string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: fmt.Sprintf("conflict with %s: %s", resource, reason),
	}
}

// ServiceUnavailableError creates a service unavailable error
func ServiceUnavailableError(service string, err error) *DomainError {
	de := &DomainError{
		Err:       ErrServiceUnavailable,
		Code:      "SERVICE_UNAVAILABLE",
		Message:   fmt.Sprintf("%s service is temporarily unavailable", service),
		Retryable: true,
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidInput checks if an error is a validation error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
