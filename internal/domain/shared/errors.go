package shared

import "errors"

// ErrorKind classifies a domain error so transport layers can map it without
// knowing every individual code.
type ErrorKind string

const (
	KindScope        ErrorKind = "SCOPE"
	KindValidation   ErrorKind = "VALIDATION"
	KindConflict     ErrorKind = "CONFLICT"
	KindIntegrity    ErrorKind = "INTEGRITY"
	KindCollaborator ErrorKind = "COLLABORATOR"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInternal     ErrorKind = "INTERNAL"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError by code, so wrapped copies of the sentinel
// errors below still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithCause returns a copy of the error carrying cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Kind: e.Kind, cause: cause}
}

// WithMessage returns a copy of the error with a more specific message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message, Kind: e.Kind, cause: e.cause}
}

// NewDomainError creates a new domain error of kind INTERNAL
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindInternal,
	}
}

func newKinded(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: kind}
}

// NewScopeError reports a missing or foreign tenant/session scope
func NewScopeError(code, message string) *DomainError {
	return newKinded(KindScope, code, message)
}

// NewValidationError reports malformed input
func NewValidationError(code, message string) *DomainError {
	return newKinded(KindValidation, code, message)
}

// NewConflictError reports a state conflict such as a record already settled
func NewConflictError(code, message string) *DomainError {
	return newKinded(KindConflict, code, message)
}

// NewIntegrityError reports a broken reference or a failed authenticity check
func NewIntegrityError(code, message string) *DomainError {
	return newKinded(KindIntegrity, code, message)
}

// NewCollaboratorError reports a failure of an external dependency
func NewCollaboratorError(code, message string) *DomainError {
	return newKinded(KindCollaborator, code, message)
}

// KindOf returns the kind of the first DomainError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) && de.Kind != "" {
		return de.Kind
	}
	return KindInternal
}

// Common domain errors
var (
	ErrNotFound            = newKinded(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = newKinded(KindConflict, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = newKinded(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = newKinded(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = newKinded(KindConflict, "INVALID_STATE", "Operation not allowed in current state")
)
