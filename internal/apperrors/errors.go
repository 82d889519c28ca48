// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrParse        = errors.New("parse error")
	ErrProvisioning = errors.New("provisioning error")
	ErrUnknown      = errors.New("unknown upstream error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "jobName", "taskRoles")
	Resource string // For not found/forbidden (e.g., "job")
	Op       string // Operation that failed (e.g., "hdfs.mkdirs", "launcher.getFramework")
	Status   int    // Upstream HTTP status for unknown errors
	Body     string // Upstream response body for unknown errors
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Forbidden creates an ownership error for a resource.
func Forbidden(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrForbidden,
		Message:  reason,
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// Parse creates a parse error for a malformed structured document.
// Parse errors degrade the affected segment only; callers log and continue.
func Parse(op string, cause error) error {
	return &Error{
		Sentinel: ErrParse,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Provisioning creates an error for a failed required provisioning sub-task.
func Provisioning(op string, cause error) error {
	return &Error{
		Sentinel: ErrProvisioning,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Unknown wraps a non-2xx upstream response, carrying status and body for diagnosis.
func Unknown(op string, status int, body string) error {
	return &Error{
		Sentinel: ErrUnknown,
		Message:  fmt.Sprintf("%s: upstream returned %d: %s", op, status, body),
		Op:       op,
		Status:   status,
		Body:     body,
	}
}
