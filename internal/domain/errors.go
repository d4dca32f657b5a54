package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUpstream         = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField    = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery              = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrUnsupportedDocument     = NewDomainError(ErrCodeValidation, "unsupported document type")
	ErrEmptyDocument           = NewDomainError(ErrCodeValidation, "document has no content")
	ErrInvalidIngestJobStatus  = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrInvalidToolArguments    = NewDomainError(ErrCodeValidation, "invalid tool arguments")
	ErrInvalidLessonNumber     = NewDomainError(ErrCodeValidation, "lesson number cannot be negative")
	ErrDuplicateLessonNumber   = NewDomainError(ErrCodeValidation, "duplicate lesson number")
	ErrInvalidDocumentEncoding = NewDomainError(ErrCodeValidation, "document is not valid UTF-8 text")
	ErrInvalidPage             = NewDomainError(ErrCodeValidation, "invalid page request")
)

// Configuration errors
var (
	ErrInvalidChunkConfig = NewDomainError(ErrCodeConfiguration, "invalid chunk configuration")
)

// Not found errors
var (
	ErrCourseNotFound    = NewDomainError(ErrCodeNotFound, "course not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
	ErrSessionNotFound   = NewDomainError(ErrCodeNotFound, "session not found")
)

// Authorization errors
var (
	ErrInvalidAdminToken = NewDomainError(ErrCodeUnauthorized, "invalid admin token")
	ErrAdminDisabled     = NewDomainError(ErrCodeUnauthorized, "admin endpoints are disabled")
)

// Operation errors
var (
	ErrUnknownTool          = NewDomainError(ErrCodeInvalidOperation, "unknown tool")
	ErrGenerationFailed     = NewDomainError(ErrCodeUpstream, "response generation failed")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
