package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every ledger component
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeConsistency     = "CONSISTENCY_ERROR"
	CodeExternalAdapter = "EXTERNAL_ADAPTER_ERROR"
	CodeInvalidState    = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets errors.Is(err, shared.ErrConflict) match any conflict.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps the underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrValidation      = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound        = NewDomainError(CodeNotFound, "Resource not found")
	ErrConflict        = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrConsistency     = NewDomainError(CodeConsistency, "Ledger data is inconsistent")
	ErrExternalAdapter = NewDomainError(CodeExternalAdapter, "External collaborator failed")
	ErrInvalidState    = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// NewValidationError creates a VALIDATION_ERROR with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError creates a NOT_FOUND error with a specific message
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// NewConflictError creates a retryable CONFLICT error
func NewConflictError(message string, cause error) *DomainError {
	return WrapDomainError(CodeConflict, message, cause)
}

// NewConsistencyError creates a fatal CONSISTENCY_ERROR
func NewConsistencyError(message string) *DomainError {
	return NewDomainError(CodeConsistency, message)
}

// NewExternalAdapterError wraps a failure reported by an outbound collaborator
func NewExternalAdapterError(message string, cause error) *DomainError {
	return WrapDomainError(CodeExternalAdapter, message, cause)
}

// IsRetryable reports whether the error is worth retrying
func IsRetryable(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == CodeConflict
}

// AsDomainError extracts a *DomainError from an error chain
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
