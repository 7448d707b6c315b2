// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// ErrIdempotentNoop marks an operation that detected it was already applied
// and returned without repeating its side effects. Callers treat it as
// success, not as a failure.
var ErrIdempotentNoop = errors.New("operation already applied")

// ValidationError covers malformed input (empty signature, empty message
// content, bad amounts). Maps to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a guarded transition attempted from the wrong status,
// or a duplicate active request. CurrentStatus carries the actual state so
// the caller can retry with fresh data. Maps to HTTP 409.
type ConflictError struct {
	Message       string
	CurrentStatus string
}

func (e *ConflictError) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Message, e.CurrentStatus)
	}
	return e.Message
}

func NewConflict(message, currentStatus string) *ConflictError {
	return &ConflictError{Message: message, CurrentStatus: currentStatus}
}

// NotFoundError covers both a genuinely missing resource and a resource the
// caller is not a party to. The two cases are deliberately indistinguishable
// so existence is never leaked to unauthorized callers. Maps to HTTP 404.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func NewNotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// ExternalServiceError wraps a failed or timed-out call to an external
// collaborator (the payment gateway). Safe for the client to retry.
// Maps to HTTP 502.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func NewExternal(service string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsExternal(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}
