package common

import (
	"fmt"
	"net/http"
)

// Error codes returned in API responses
const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeForbidden     = "forbidden"
	CodeConfiguration = "configuration_error"
	CodeIngestion     = "ingestion_error"
	CodeInternal      = "internal_error"
	CodeBadRequest    = "bad_request"
)

// AppError is an application error carrying an HTTP status, a
// machine-checkable code and a human-readable message.
type AppError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a 400 error with field-level details
func NewValidationError(message string, fields map[string]string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: message,
		Fields:  fields,
	}
}

// NewBadRequestError creates a generic 400 error
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: message,
		Err:     err,
	}
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Status:  http.StatusForbidden,
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewConfigurationError creates a 500 error for server-side configuration
// defects (e.g. an unknown recording type with no processing-state table).
// These are never the client's fault.
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeConfiguration,
		Message: message,
	}
}

// NewIngestionError creates a 500 error for a failed storage write during
// upload ingestion.
func NewIngestionError(message string, err error) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeIngestion,
		Message: message,
		Err:     err,
	}
}

// NewInternalServerError creates a generic 500 error
func NewInternalServerError(message string) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "internal server error: " + message,
	}
}
