// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "content", "studentstate", "xmodule"
	Op      string // Operation that failed, e.g., "Load", "Dispatch"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Content domain errors
var (
	ErrItemNotFound      = NewDomainError("content", "GetItem", ErrNotFound, "content item not found")
	ErrCourseNotFound    = NewDomainError("content", "GetCourse", ErrNotFound, "course not found")
	ErrInvalidLocation   = NewDomainError("content", "ParseLocation", ErrInvalidFormat, "invalid module location")
	ErrInvalidDescriptor = NewDomainError("content", "Validate", ErrInvalidEntity, "invalid content descriptor")
)

// Student state domain errors
var (
	ErrStateNotFound      = NewDomainError("studentstate", "Get", ErrNotFound, "student module state not found")
	ErrStateAlreadyExists = NewDomainError("studentstate", "Create", ErrAlreadyExists, "student module state already exists")
	ErrInvalidGrade       = NewDomainError("studentstate", "Validate", ErrInvalidInput, "grade exceeds max grade or is negative")
)

// Module runtime domain errors
var (
	ErrUnknownCategory = NewDomainError("xmodule", "New", ErrNotFound, "no module registered for category")
	ErrUnknownCommand  = NewDomainError("xmodule", "HandleRequest", ErrInvalidInput, "module does not handle this command")
	ErrModuleFailure   = NewDomainError("xmodule", "HandleRequest", ErrInvalidState, "module request handling failed")
)

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrInvalidCredentials   = NewDomainError("student", "Authenticate", ErrUnauthorized, "invalid email or password")
	ErrSessionNotFound      = NewDomainError("student", "Session", ErrUnauthorized, "session not found or expired")
	ErrStaffOnly            = NewDomainError("student", "Authorize", ErrForbidden, "staff access required")
)

// Grading queue errors
var (
	ErrQueueUnavailable = NewDomainError("xqueue", "Submit", ErrServiceUnavailable, "grading queue unavailable")
	ErrBadQueueHeader   = NewDomainError("xqueue", "ParseHeader", ErrInvalidFormat, "malformed grading queue header")
	ErrQueueKeyMismatch = NewDomainError("xqueue", "Verify", ErrInvalidState, "queue key does not match pending submission")
)
