package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	ErrorTypeRetrieval        ErrorType = "retrieval"
	ErrorTypeGeneration       ErrorType = "generation"
	ErrorTypeInternal         ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrEmptyQuestion  = NewDomainError(ErrorTypeValidation, "question cannot be empty", nil)
	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrStoreNotLoaded = NewDomainError(ErrorTypeStoreUnavailable, "vector store not loaded", nil)
	ErrEmptyAnswer    = NewDomainError(ErrorTypeGeneration, "generation model returned no answer", nil)
	ErrInternal       = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// NewStoreLoadError reports that the index or store artifacts could not be
// deserialized or attached.
func NewStoreLoadError(err error) *DomainError {
	return NewDomainError(ErrorTypeStoreUnavailable, "failed to load vector store", err)
}

// NewRetrievalError reports a similarity index fault for a single request.
func NewRetrievalError(question string, err error) *DomainError {
	return NewDomainError(ErrorTypeRetrieval, "failed to retrieve documents", err).
		WithDetail("question", question)
}

// NewGenerationError reports that the generation model failed or returned
// unusable output.
func NewGenerationError(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeGeneration, message, err)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsStoreUnavailableError checks if an error reports a missing or corrupt store
func IsStoreUnavailableError(err error) bool {
	return hasType(err, ErrorTypeStoreUnavailable)
}

// IsRetrievalError checks if an error is a retrieval error
func IsRetrievalError(err error) bool {
	return hasType(err, ErrorTypeRetrieval)
}

// IsGenerationError checks if an error is a generation error
func IsGenerationError(err error) bool {
	return hasType(err, ErrorTypeGeneration)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
